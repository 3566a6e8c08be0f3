// Package face holds the shared mutable state of the animatronic face.
//
// Exactly one State exists per device. The command dispatcher mutates it and
// the display renderer reads it; both go through Update, which serializes
// access with a bounded-wait lock and sweeps expired TTL fields before
// handing back a snapshot.
package face

import (
	"errors"
	"time"
	"unicode/utf8"
)

// Sentinel errors.
var (
	// ErrBusy is returned when the state lock could not be acquired
	// within the caller's timeout.
	ErrBusy = errors.New("face: state busy")
)

// Field bounds, matching the device's fixed display buffers.
const (
	MaxCaptionLen = 96
	MaxVisemeLen  = 7

	// RestViseme is the baseline lip-sync pose.
	RestViseme = "rest"
)

// Clock returns milliseconds since device boot.
type Clock func() int64

// NewBootClock returns a Clock anchored at the moment of the call.
func NewBootClock() Clock {
	start := time.Now()
	return func() int64 {
		return time.Since(start).Milliseconds()
	}
}

// Data is the raw face state. All numeric fields stay within their declared
// ranges: mutators clamp rather than reject. TTL fields hold a deadline in
// boot-relative milliseconds, 0 meaning no expiry.
type Data struct {
	Expression Expression `json:"expression"`
	Intensity  float64    `json:"intensity"` // 0..1
	GazeX      float64    `json:"gaze_x"`    // -1..1
	GazeY      float64    `json:"gaze_y"`    // -1..1

	// Parametric rig values, authoritative while the matching
	// override flag is set.
	EyeOpen           float64 `json:"eye_open"`   // 0..1
	MouthOpen         float64 `json:"mouth_open"` // 0..1
	EyeOpenOverride   bool    `json:"eye_open_override"`
	MouthOpenOverride bool    `json:"mouth_open_override"`

	Caption        string `json:"caption"`
	CaptionUntilMs int64  `json:"caption_until_ms"`

	Viseme        string  `json:"viseme"`
	VisemeWeight  float64 `json:"viseme_weight"` // 0..1
	VisemeUntilMs int64   `json:"viseme_until_ms"`

	BlinkUntilMs int64 `json:"blink_until_ms"`
}

// Snapshot is a value copy of Data taken under the lock after the TTL sweep.
type Snapshot = Data

// State is the single shared face state instance.
type State struct {
	clock Clock
	sem   chan struct{} // 1-slot semaphore; full while locked
	data  Data
}

// New creates a State with the device defaults. A nil clock uses a boot
// clock anchored at the call.
func New(clock Clock) *State {
	if clock == nil {
		clock = NewBootClock()
	}
	return &State{
		clock: clock,
		sem:   make(chan struct{}, 1),
		data: Data{
			Expression: Neutral,
			Intensity:  1.0,
			EyeOpen:    0.8,
			Viseme:     RestViseme,
		},
	}
}

// NowMs returns the current boot-relative time in milliseconds.
func (s *State) NowMs() int64 {
	return s.clock()
}

// Update acquires the state lock, waiting at most timeout, applies fn (which
// may be nil for a pure read), sweeps expired TTL fields, and returns the
// resulting snapshot. The whole effect of fn and the snapshot happen under
// one acquisition, so the snapshot reflects exactly fn's mutation.
//
// Returns ErrBusy if the lock was not acquired in time.
func (s *State) Update(timeout time.Duration, fn func(d *Data, nowMs int64)) (Snapshot, error) {
	select {
	case s.sem <- struct{}{}:
	default:
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case s.sem <- struct{}{}:
		case <-t.C:
			return Snapshot{}, ErrBusy
		}
	}
	defer func() { <-s.sem }()

	now := s.clock()
	if fn != nil {
		fn(&s.data, now)
	}
	s.data.expire(now)
	return s.data, nil
}

// expire resets TTL fields whose deadline has passed to their baseline.
// Expiry happens on read, never eagerly on write.
func (d *Data) expire(nowMs int64) {
	if d.CaptionUntilMs != 0 && nowMs >= d.CaptionUntilMs {
		d.Caption = ""
		d.CaptionUntilMs = 0
	}
	if d.VisemeUntilMs != 0 && nowMs >= d.VisemeUntilMs {
		d.Viseme = RestViseme
		d.VisemeWeight = 0
		d.VisemeUntilMs = 0
	}
	if d.BlinkUntilMs != 0 && nowMs >= d.BlinkUntilMs {
		d.BlinkUntilMs = 0
	}
}

// SetExpression switches the discrete face mode.
func (d *Data) SetExpression(e Expression) {
	d.Expression = e
}

// SetIntensity clamps v into 0..1.
func (d *Data) SetIntensity(v float64) {
	d.Intensity = clamp(v, 0, 1)
}

// SetGazeX clamps v into -1..1.
func (d *Data) SetGazeX(v float64) {
	d.GazeX = clamp(v, -1, 1)
}

// SetGazeY clamps v into -1..1.
func (d *Data) SetGazeY(v float64) {
	d.GazeY = clamp(v, -1, 1)
}

// SetCaption stores display text, truncated to MaxCaptionLen bytes.
func (d *Data) SetCaption(text string) {
	d.Caption = truncate(text, MaxCaptionLen)
}

// SetCaptionTTL arms caption expiry; ttlMs 0 means no expiry.
func (d *Data) SetCaptionTTL(nowMs, ttlMs int64) {
	if ttlMs <= 0 {
		d.CaptionUntilMs = 0
		return
	}
	d.CaptionUntilMs = nowMs + ttlMs
}

// SetViseme stores the lip-sync pose name, truncated to MaxVisemeLen bytes.
func (d *Data) SetViseme(name string) {
	d.Viseme = truncate(name, MaxVisemeLen)
}

// SetVisemeWeight clamps v into 0..1.
func (d *Data) SetVisemeWeight(v float64) {
	d.VisemeWeight = clamp(v, 0, 1)
}

// SetVisemeTTL arms viseme expiry; ttlMs 0 means no expiry.
func (d *Data) SetVisemeTTL(nowMs, ttlMs int64) {
	if ttlMs <= 0 {
		d.VisemeUntilMs = 0
		return
	}
	d.VisemeUntilMs = nowMs + ttlMs
}

// Blink arms the blink deadline. Durations above MaxBlinkMs are capped.
func (d *Data) Blink(nowMs, durationMs int64) {
	if durationMs > MaxBlinkMs {
		durationMs = MaxBlinkMs
	}
	d.BlinkUntilMs = nowMs + durationMs
}

// Blink limits.
const (
	DefaultBlinkMs = 150
	MaxBlinkMs     = 2000
)

// SetEyeOpen sets the eye rig value and makes it authoritative.
func (d *Data) SetEyeOpen(v float64) {
	d.EyeOpen = clamp(v, 0, 1)
	d.EyeOpenOverride = true
}

// SetMouthOpen sets the mouth rig value and makes it authoritative.
func (d *Data) SetMouthOpen(v float64) {
	d.MouthOpen = clamp(v, 0, 1)
	d.MouthOpenOverride = true
}

// ClearOverrides returns both rig axes to expression-derived defaults.
// Idempotent.
func (d *Data) ClearOverrides() {
	d.EyeOpenOverride = false
	d.MouthOpenOverride = false
}

// EffectiveEyeOpen is the eye openness the renderer should draw: the sticky
// rig value when overridden, otherwise the expression default.
func (d Data) EffectiveEyeOpen() float64 {
	if d.EyeOpenOverride {
		return d.EyeOpen
	}
	return d.Expression.DefaultEyeOpen()
}

// EffectiveMouthOpen is the mouth openness the renderer should draw. The
// sticky rig value wins; otherwise an active non-rest viseme drives the
// mouth, falling back to the expression default.
func (d Data) EffectiveMouthOpen() float64 {
	if d.MouthOpenOverride {
		return d.MouthOpen
	}
	if d.Viseme != RestViseme && d.VisemeWeight > 0.1 {
		return d.VisemeWeight
	}
	return d.Expression.DefaultMouthOpen()
}

// BlinkActive reports whether the eyes should render closed at nowMs.
// Sleeping counts as closed regardless of the blink deadline.
func (d Data) BlinkActive(nowMs int64) bool {
	if d.Expression == Sleeping {
		return true
	}
	return d.BlinkUntilMs != 0 && nowMs < d.BlinkUntilMs
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
