// Package protocol defines the event model shared with the capture service
// and the codec for its newline-delimited JSON stream.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Raw mouse button flags as emitted by the capture service. These match the
// RAWMOUSE usButtonFlags bits for the three standard buttons.
const (
	ButtonLeftDown   uint32 = 0x0001
	ButtonLeftUp     uint32 = 0x0002
	ButtonRightDown  uint32 = 0x0004
	ButtonRightUp    uint32 = 0x0008
	ButtonMiddleDown uint32 = 0x0010
	ButtonMiddleUp   uint32 = 0x0020
)

// Event is one decoded input record. Exactly one line of the upstream
// stream produces one Event; decoded events are immutable values.
type Event interface {
	// Device returns the stable device identifier the event came from.
	Device() string
}

// Keyboard is a key press for a single virtual key. The capture service
// only reports key-down transitions.
type Keyboard struct {
	DeviceID  string
	VKey      uint16
	Timestamp int64
}

func (e Keyboard) Device() string { return e.DeviceID }

// Mouse carries relative motion and/or button transitions. Buttons is a
// bitmask of the Button* flags; zero motion with zero buttons is legal and
// injects nothing.
type Mouse struct {
	DeviceID  string
	DX, DY    int32
	Buttons   uint32
	Timestamp int64
}

func (e Mouse) Device() string { return e.DeviceID }

// Unknown is a well-formed record whose type discriminator this version
// does not recognize. The dispatcher discards these without routing, so a
// newer capture service does not break the stream.
type Unknown struct {
	DeviceID string
	Kind     string
}

func (e Unknown) Device() string { return e.DeviceID }

// wireEvent mirrors one upstream JSON line. Kind-specific required fields
// are pointers so a missing field is distinguishable from a zero value.
type wireEvent struct {
	DeviceID  string  `json:"device_id"`
	Type      string  `json:"type"`
	VKey      *uint16 `json:"vkey,omitempty"`
	DX        *int32  `json:"dx,omitempty"`
	DY        *int32  `json:"dy,omitempty"`
	Buttons   *uint32 `json:"buttons,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

var (
	ErrMissingDevice = errors.New("event: missing device_id")
	ErrMissingType   = errors.New("event: missing type")
	ErrMissingVKey   = errors.New("event: keyboard record missing vkey")
)

// DecodeEvent parses one stream line into a typed Event. The discriminator
// and required fields are validated up front; an unrecognized discriminator
// decodes to Unknown rather than an error.
func DecodeEvent(line []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return nil, fmt.Errorf("event: %w", err)
	}
	if w.DeviceID == "" {
		return nil, ErrMissingDevice
	}
	if w.Type == "" {
		return nil, ErrMissingType
	}

	switch w.Type {
	case "keyboard":
		if w.VKey == nil {
			return nil, ErrMissingVKey
		}
		return Keyboard{DeviceID: w.DeviceID, VKey: *w.VKey, Timestamp: w.Timestamp}, nil

	case "mouse":
		ev := Mouse{DeviceID: w.DeviceID, Timestamp: w.Timestamp}
		if w.DX != nil {
			ev.DX = *w.DX
		}
		if w.DY != nil {
			ev.DY = *w.DY
		}
		if w.Buttons != nil {
			ev.Buttons = *w.Buttons
		}
		return ev, nil

	default:
		return Unknown{DeviceID: w.DeviceID, Kind: w.Type}, nil
	}
}

// EncodeEvent renders an Event as one newline-terminated stream line in the
// capture service's wire form. Used by the mock upstream and tests.
func EncodeEvent(ev Event) ([]byte, error) {
	var w wireEvent
	switch e := ev.(type) {
	case Keyboard:
		vk := e.VKey
		w = wireEvent{DeviceID: e.DeviceID, Type: "keyboard", VKey: &vk, Timestamp: e.Timestamp}
	case Mouse:
		dx, dy, buttons := e.DX, e.DY, e.Buttons
		w = wireEvent{DeviceID: e.DeviceID, Type: "mouse", DX: &dx, DY: &dy, Buttons: &buttons, Timestamp: e.Timestamp}
	default:
		return nil, fmt.Errorf("event: cannot encode %T", ev)
	}

	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("event: %w", err)
	}
	return append(data, '\n'), nil
}
