// Package window resolves live OS windows for routing targets.
package window

import "strings"

// Handle is an opaque OS window identifier. The zero value means no window;
// a nonzero handle can go stale at any time and must be liveness-checked.
type Handle uintptr

// Info describes one visible, titled, top-level window at enumeration time.
type Info struct {
	Handle Handle
	PID    int
	Title  string
}

// Resolver enumerates and liveness-checks top-level windows.
//
// Snapshot materializes the window list once per call; windows created
// afterwards need a fresh snapshot. IsLive reports whether a handle still
// refers to an existing window.
type Resolver interface {
	Snapshot() ([]Info, error)
	IsLive(Handle) bool
}

// FindByPid returns the first snapshot window owned by pid, in enumeration
// order. Multi-window processes resolve to whichever window the OS lists
// first. Not finding a window is a normal outcome, not an error: windows
// legitimately take time to appear after launch.
func FindByPid(r Resolver, pid int) (Handle, bool) {
	if pid <= 0 {
		return 0, false
	}
	infos, err := r.Snapshot()
	if err != nil {
		return 0, false
	}
	for _, in := range infos {
		if in.PID == pid {
			return in.Handle, true
		}
	}
	return 0, false
}

// FindByTitleSubstring returns the first snapshot window whose title
// contains text, case-insensitively.
func FindByTitleSubstring(r Resolver, text string) (Handle, bool) {
	if text == "" {
		return 0, false
	}
	infos, err := r.Snapshot()
	if err != nil {
		return 0, false
	}
	needle := strings.ToLower(text)
	for _, in := range infos {
		if strings.Contains(strings.ToLower(in.Title), needle) {
			return in.Handle, true
		}
	}
	return 0, false
}

// EditorKeywords marks window titles that look like attachable editor
// instances.
var EditorKeywords = []string{"cursor", "code", "kiro", "visual studio", "notepad", "sublime", "atom"}

// FilterCandidates keeps the windows whose titles contain any of the
// keywords, case-insensitively, preserving enumeration order.
func FilterCandidates(infos []Info, keywords []string) []Info {
	var out []Info
	for _, in := range infos {
		title := strings.ToLower(in.Title)
		for _, kw := range keywords {
			if strings.Contains(title, strings.ToLower(kw)) {
				out = append(out, in)
				break
			}
		}
	}
	return out
}
