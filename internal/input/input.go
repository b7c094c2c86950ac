// Package input delivers decoded events into target windows.
//
// Keyboard events are posted to a specific window's message queue so the
// target never needs foreground focus. Mouse events go through the
// system-wide synthesized input queue and land wherever the cursor is.
package input

import (
	"errors"

	"inputrouter/internal/window"
)

// ErrNotSupported is returned on platforms without an injection backend.
var ErrNotSupported = errors.New("input: injection not supported on this platform")

// Injector writes synthetic input. Keyboard targets a window handle;
// Mouse is global and ignores window state entirely.
type Injector interface {
	Keyboard(h window.Handle, vkey uint16) error
	Mouse(dx, dy int32, buttons uint32) error
}
