// Package router decides, per event, which window receives it.
package router

import (
	"inputrouter/internal/input"
	"inputrouter/internal/protocol"
	"inputrouter/internal/registry"
	"inputrouter/internal/window"
)

// Outcome classifies what happened to a routed event.
type Outcome int

const (
	Delivered Outcome = iota
	DroppedUnmappedDevice
	DroppedNoSession
	DroppedProcessDead
	DroppedWindowUnresolvable
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case DroppedUnmappedDevice:
		return "dropped_unmapped_device"
	case DroppedNoSession:
		return "dropped_no_session"
	case DroppedProcessDead:
		return "dropped_process_dead"
	case DroppedWindowUnresolvable:
		return "dropped_window_unresolvable"
	default:
		return "unknown"
	}
}

// Router walks an event through mapping, session, process and window
// checks and hands it to the injector.
type Router struct {
	store    *registry.Store
	resolver window.Resolver
	injector input.Injector
}

func New(store *registry.Store, resolver window.Resolver, injector input.Injector) *Router {
	return &Router{store: store, resolver: resolver, injector: injector}
}

// Route delivers one event. The caller filters Unknown events; Route
// only sees Keyboard and Mouse. A Delivered outcome with a non-nil
// error means the target was resolved but injection failed.
func (r *Router) Route(ev protocol.Event) (Outcome, error) {
	userID, ok := r.store.LookupMapping(ev.Device())
	if !ok {
		return DroppedUnmappedDevice, nil
	}

	sess, ok := r.store.Session(userID)
	if !ok {
		return DroppedNoSession, nil
	}

	if sess.Proc != nil && sess.Proc.Exited() {
		r.store.MarkProcessDead(userID)
		return DroppedProcessDead, nil
	}

	h := sess.Window
	if h == 0 || !r.resolver.IsLive(h) {
		h = r.refreshWindow(userID, sess.PID)
		if h == 0 {
			return DroppedWindowUnresolvable, nil
		}
	}

	switch e := ev.(type) {
	case protocol.Keyboard:
		if err := r.injector.Keyboard(h, e.VKey); err != nil {
			return Delivered, err
		}
	case protocol.Mouse:
		if err := r.injector.Mouse(e.DX, e.DY, e.Buttons); err != nil {
			return Delivered, err
		}
	}
	return Delivered, nil
}

// refreshWindow re-resolves the session's window by pid and records the
// result. Attached sessions have pid 0 and never re-resolve.
func (r *Router) refreshWindow(userID string, pid int) window.Handle {
	h, ok := window.FindByPid(r.resolver, pid)
	if !ok {
		r.store.InvalidateWindow(userID)
		return 0
	}
	r.store.SetWindow(userID, h)
	return h
}
