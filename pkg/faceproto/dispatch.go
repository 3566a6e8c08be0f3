// Package faceproto implements the JSON command protocol that drives the
// face. Messages arrive over a persistent connection; each one is parsed,
// applied to the shared face state under a single bounded-wait lock
// acquisition, and answered with a reply carrying the resulting snapshot.
package faceproto

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/littleai/facegear/pkg/audio"
	"github.com/littleai/facegear/pkg/face"
)

// Protocol limits.
const (
	// MaxMessageBytes is the inbound size ceiling. Larger messages are
	// dropped without a reply.
	MaxMessageBytes = 16 * 1024

	// LockTimeout bounds the wait for the face state lock. A timeout is
	// reported as face_busy and the caller may retry.
	LockTimeout = 50 * time.Millisecond
)

// Error codes returned in replies.
const (
	errInvalidJSON     = "invalid_json"
	errMissingType     = "missing_type"
	errFaceBusy        = "face_busy"
	errFaceUnavailable = "face_unavailable"
	errBadBase64       = "bad_base64"
	errUnknownCommand  = "unknown_or_invalid_command"
	errMissingData     = "missing_data_b64"
)

// Dispatcher applies protocol commands to the face and the audio player.
// It is stateless across messages and safe for concurrent use by multiple
// connections; the face lock is the only serialization point.
type Dispatcher struct {
	// Face is the shared state. Commands report face_unavailable when nil.
	Face *face.State

	// Audio handles beep and speak_pcm. Defaults to audio.Nop.
	Audio audio.Player
}

// message is the inbound envelope. Pointer fields distinguish absent from
// zero; absent fields are ignored.
type message struct {
	Type *string `json:"type"`

	Expression *string  `json:"expression"`
	Intensity  *float64 `json:"intensity"`

	X *float64 `json:"x"`
	Y *float64 `json:"y"`

	Text  *string `json:"text"`
	TTLMs *int64  `json:"ttl_ms"`

	Name   *string  `json:"name"`
	Weight *float64 `json:"weight"`

	DurationMs *int64 `json:"duration_ms"`

	Open     *float64 `json:"open"`
	Override *bool    `json:"override"`

	EyeOpen   *float64 `json:"eye_open"`
	MouthOpen *float64 `json:"mouth_open"`

	FreqHz *int `json:"freq_hz"`

	DataB64 *string `json:"data_b64"`

	State *bulkState `json:"state"`
}

// bulkState is the nested object accepted by set_state.
type bulkState struct {
	Expression        *string  `json:"expression"`
	Intensity         *float64 `json:"intensity"`
	GazeX             *float64 `json:"gaze_x"`
	GazeY             *float64 `json:"gaze_y"`
	Caption           *string  `json:"caption"`
	CaptionTTLMs      *int64   `json:"caption_ttl_ms"`
	EyeOpen           *float64 `json:"eye_open"`
	EyeOpenOverride   *bool    `json:"eye_open_override"`
	MouthOpen         *float64 `json:"mouth_open"`
	MouthOpenOverride *bool    `json:"mouth_open_override"`
}

// reply is the outbound envelope.
type reply struct {
	OK    bool           `json:"ok"`
	Type  string         `json:"type,omitempty"`
	Cmd   string         `json:"cmd,omitempty"`
	Error string         `json:"error,omitempty"`
	TsMs  *int64         `json:"ts_ms,omitempty"`
	State *face.Snapshot `json:"state,omitempty"`
}

func marshalReply(r reply) []byte {
	b, err := json.Marshal(r)
	if err != nil {
		// Reply structs always marshal; this is unreachable in practice.
		return []byte(`{"ok":false,"error":"no_mem"}`)
	}
	return b
}

func errorReply(code string) []byte {
	return marshalReply(reply{Error: code})
}

// Dispatch processes one raw protocol message and returns the serialized
// reply. A nil return means the message was dropped (oversized) and no
// reply must be sent.
func (d *Dispatcher) Dispatch(raw []byte) []byte {
	if len(raw) > MaxMessageBytes {
		return nil
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errorReply(errInvalidJSON)
	}
	var msg message
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return errorReply(errInvalidJSON)
	}
	if msg.Type == nil {
		return errorReply(errMissingType)
	}

	switch t := *msg.Type; t {
	case "ping":
		return d.ping()
	case "get_state":
		return d.getState()
	case "beep":
		return d.beep(&msg)
	case "speak_pcm":
		return d.speakPCM(&msg)
	case "set_expression", "gaze", "caption", "viseme", "blink",
		"eyes", "mouth", "rig", "rig_clear", "set_state":
		return d.mutate(t, &msg)
	default:
		return errorReply(errUnknownCommand)
	}
}

func (d *Dispatcher) ping() []byte {
	now := int64(0)
	if d.Face != nil {
		now = d.Face.NowMs()
	}
	return marshalReply(reply{OK: true, Type: "pong", TsMs: &now})
}

func (d *Dispatcher) getState() []byte {
	if d.Face == nil {
		return marshalReply(reply{Error: errFaceUnavailable})
	}
	snap, err := d.Face.Update(LockTimeout, nil)
	if err != nil {
		return marshalReply(reply{Error: errFaceUnavailable})
	}
	return marshalReply(reply{OK: true, Type: "state", State: &snap})
}

// mutate runs a state-changing command. Validation, mutation, and snapshot
// all happen inside one lock acquisition so the reply reflects exactly this
// command's effect.
func (d *Dispatcher) mutate(cmd string, msg *message) []byte {
	if d.Face == nil {
		return marshalReply(reply{Error: errFaceUnavailable})
	}

	updated := false
	snap, err := d.Face.Update(LockTimeout, func(data *face.Data, nowMs int64) {
		updated = applyCommand(cmd, msg, data, nowMs)
	})
	if err != nil {
		return marshalReply(reply{Error: errFaceBusy})
	}

	r := reply{OK: updated, Type: "ack", Cmd: cmd, State: &snap}
	now := d.Face.NowMs()
	r.TsMs = &now
	if !updated {
		r.Error = errUnknownCommand
	}
	return marshalReply(r)
}

// applyCommand mutates the face data for one command and reports whether
// anything was applied. Numeric inputs are clamped by the Data setters;
// absent fields are ignored.
func applyCommand(cmd string, msg *message, d *face.Data, nowMs int64) bool {
	updated := false

	switch cmd {
	case "set_expression":
		if msg.Expression != nil {
			d.SetExpression(face.ParseExpression(*msg.Expression))
			updated = true
		}
		if msg.Intensity != nil {
			d.SetIntensity(*msg.Intensity)
			updated = true
		}

	case "gaze":
		if msg.X != nil {
			d.SetGazeX(*msg.X)
			updated = true
		}
		if msg.Y != nil {
			d.SetGazeY(*msg.Y)
			updated = true
		}

	case "caption":
		if msg.Text != nil {
			d.SetCaption(*msg.Text)
			updated = true
		}
		if msg.TTLMs != nil {
			d.SetCaptionTTL(nowMs, *msg.TTLMs)
			updated = true
		}

	case "viseme":
		if msg.Name != nil {
			d.SetViseme(*msg.Name)
			updated = true
		}
		if msg.Weight != nil {
			d.SetVisemeWeight(*msg.Weight)
			updated = true
		}
		if msg.TTLMs != nil {
			d.SetVisemeTTL(nowMs, *msg.TTLMs)
			updated = true
		}

	case "blink":
		dur := int64(face.DefaultBlinkMs)
		if msg.DurationMs != nil {
			dur = *msg.DurationMs
		}
		d.Blink(nowMs, dur)
		updated = true

	case "eyes":
		if msg.Open != nil {
			d.SetEyeOpen(*msg.Open)
			updated = true
		}
		if msg.Override != nil {
			d.EyeOpenOverride = *msg.Override
			updated = true
		}

	case "mouth":
		if msg.Open != nil {
			d.SetMouthOpen(*msg.Open)
			updated = true
		}
		if msg.Override != nil {
			d.MouthOpenOverride = *msg.Override
			updated = true
		}

	case "rig":
		if msg.EyeOpen != nil {
			d.SetEyeOpen(*msg.EyeOpen)
			updated = true
		}
		if msg.MouthOpen != nil {
			d.SetMouthOpen(*msg.MouthOpen)
			updated = true
		}

	case "rig_clear":
		d.ClearOverrides()
		updated = true

	case "set_state":
		if msg.State != nil {
			updated = applyBulk(msg.State, d, nowMs)
		}
	}

	return updated
}

func applyBulk(st *bulkState, d *face.Data, nowMs int64) bool {
	updated := false
	if st.Expression != nil {
		d.SetExpression(face.ParseExpression(*st.Expression))
		updated = true
	}
	if st.Intensity != nil {
		d.SetIntensity(*st.Intensity)
		updated = true
	}
	if st.GazeX != nil {
		d.SetGazeX(*st.GazeX)
		updated = true
	}
	if st.GazeY != nil {
		d.SetGazeY(*st.GazeY)
		updated = true
	}
	if st.Caption != nil {
		d.SetCaption(*st.Caption)
		updated = true
	}
	if st.CaptionTTLMs != nil {
		d.SetCaptionTTL(nowMs, *st.CaptionTTLMs)
		updated = true
	}
	if st.EyeOpen != nil {
		d.SetEyeOpen(*st.EyeOpen)
		updated = true
	}
	if st.EyeOpenOverride != nil {
		d.EyeOpenOverride = *st.EyeOpenOverride
		updated = true
	}
	if st.MouthOpen != nil {
		d.SetMouthOpen(*st.MouthOpen)
		updated = true
	}
	if st.MouthOpenOverride != nil {
		d.MouthOpenOverride = *st.MouthOpenOverride
		updated = true
	}
	return updated
}

func (d *Dispatcher) player() audio.Player {
	if d.Audio != nil {
		return d.Audio
	}
	return audio.Nop{}
}

// Beep defaults.
const (
	defaultBeepFreqHz     = 880
	defaultBeepDurationMs = 140
)

func (d *Dispatcher) beep(msg *message) []byte {
	freq := defaultBeepFreqHz
	dur := defaultBeepDurationMs
	if msg.FreqHz != nil {
		freq = *msg.FreqHz
	}
	if msg.DurationMs != nil {
		dur = int(*msg.DurationMs)
	}

	r := reply{Type: "ack", Cmd: "beep"}
	if err := d.player().PlayTone(freq, dur); err != nil {
		r.Error = err.Error()
	} else {
		r.OK = true
	}
	return marshalReply(r)
}

func (d *Dispatcher) speakPCM(msg *message) []byte {
	r := reply{Type: "ack", Cmd: "speak_pcm"}

	if msg.DataB64 == nil || *msg.DataB64 == "" {
		r.Error = errMissingData
		return marshalReply(r)
	}

	raw, err := base64.StdEncoding.DecodeString(*msg.DataB64)
	if err != nil || len(raw) < 2 {
		r.Error = errBadBase64
		return marshalReply(r)
	}

	// Drop a trailing odd byte to keep 16-bit alignment.
	raw = raw[:len(raw)&^1]
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
	}

	if err := d.player().PlayPCM16Mono(samples); err != nil {
		r.Error = err.Error()
	} else {
		r.OK = true
	}
	return marshalReply(r)
}
