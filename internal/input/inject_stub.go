//go:build !windows

package input

import "inputrouter/internal/window"

type stubInjector struct{}

// New returns an injector that rejects everything. Routing still works
// on non-Windows hosts for development; only delivery is unavailable.
func New() Injector {
	return stubInjector{}
}

func (stubInjector) Keyboard(h window.Handle, vkey uint16) error {
	return ErrNotSupported
}

func (stubInjector) Mouse(dx, dy int32, buttons uint32) error {
	return ErrNotSupported
}
