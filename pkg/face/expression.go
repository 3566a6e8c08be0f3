package face

import "encoding/json"

// Expression is a discrete face mode. It drives the default rig values
// (eye and mouth openness) unless a sticky override is set.
type Expression int

const (
	Neutral Expression = iota
	Happy
	Sad
	Angry
	Surprised
	Thinking
	Sleeping
)

// String returns the wire name of the expression.
func (e Expression) String() string {
	switch e {
	case Happy:
		return "happy"
	case Sad:
		return "sad"
	case Angry:
		return "angry"
	case Surprised:
		return "surprised"
	case Thinking:
		return "thinking"
	case Sleeping:
		return "sleeping"
	default:
		return "neutral"
	}
}

// ParseExpression maps a wire name to an Expression.
// Unknown names map to Neutral.
func ParseExpression(name string) Expression {
	switch name {
	case "happy":
		return Happy
	case "sad":
		return Sad
	case "angry":
		return Angry
	case "surprised":
		return Surprised
	case "thinking":
		return Thinking
	case "sleeping":
		return Sleeping
	default:
		return Neutral
	}
}

// MarshalJSON implements json.Marshaler.
func (e Expression) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Expression) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	*e = ParseExpression(name)
	return nil
}

// DefaultEyeOpen returns the eye openness this expression implies when no
// override is active.
func (e Expression) DefaultEyeOpen() float64 {
	switch e {
	case Surprised:
		return 1.0
	case Happy:
		return 0.85
	case Sad:
		return 0.55
	case Thinking:
		return 0.35
	case Angry:
		return 0.25
	case Sleeping:
		return 0.05
	default:
		return 0.80
	}
}

// DefaultMouthOpen returns the mouth openness this expression implies when
// no override is active and no viseme is in effect.
func (e Expression) DefaultMouthOpen() float64 {
	if e == Surprised {
		return 1.0
	}
	return 0.0
}
