package window

import (
	"errors"
	"testing"
)

// fakeResolver serves a fixed snapshot for resolution tests.
type fakeResolver struct {
	infos []Info
	err   error
	live  map[Handle]bool
}

func (f *fakeResolver) Snapshot() ([]Info, error) { return f.infos, f.err }
func (f *fakeResolver) IsLive(h Handle) bool      { return f.live[h] }

func TestFindByPidFirstMatchWins(t *testing.T) {
	// A multi-window process resolves to the first window in enumeration
	// order; later windows of the same pid are never preferred.
	r := &fakeResolver{infos: []Info{
		{Handle: 0x100, PID: 7, Title: "other - Cursor"},
		{Handle: 0x200, PID: 42, Title: "main.go - Cursor"},
		{Handle: 0x300, PID: 42, Title: "lib.go - Cursor"},
	}}

	h, ok := FindByPid(r, 42)
	if !ok {
		t.Fatal("Expected a window for pid 42")
	}
	if h != 0x200 {
		t.Errorf("Expected first enumerated window 0x200, got %#x", uintptr(h))
	}
}

func TestFindByPidNotFound(t *testing.T) {
	r := &fakeResolver{infos: []Info{{Handle: 0x100, PID: 7, Title: "x"}}}

	if _, ok := FindByPid(r, 99); ok {
		t.Error("Expected no window for unknown pid")
	}
	if _, ok := FindByPid(r, 0); ok {
		t.Error("pid 0 must never resolve")
	}
	if _, ok := FindByPid(r, -1); ok {
		t.Error("Negative pid must never resolve")
	}
}

func TestFindByPidSnapshotError(t *testing.T) {
	r := &fakeResolver{err: errors.New("enumeration failed")}

	// Enumeration failure reads as "not found", never as a hard error.
	if _, ok := FindByPid(r, 42); ok {
		t.Error("Expected no window when the snapshot fails")
	}
}

func TestFindByTitleSubstring(t *testing.T) {
	r := &fakeResolver{infos: []Info{
		{Handle: 0x100, PID: 1, Title: "readme.md - Visual Studio Code"},
		{Handle: 0x200, PID: 2, Title: "Untitled - Notepad"},
	}}

	tests := []struct {
		text string
		want Handle
		ok   bool
	}{
		{"notepad", 0x200, true},  // case-insensitive
		{"Visual", 0x100, true},
		{"CODE", 0x100, true},
		{"emacs", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		h, ok := FindByTitleSubstring(r, tt.text)
		if ok != tt.ok || h != tt.want {
			t.Errorf("FindByTitleSubstring(%q) = (%#x, %v), want (%#x, %v)",
				tt.text, uintptr(h), ok, uintptr(tt.want), tt.ok)
		}
	}
}

func TestFilterCandidates(t *testing.T) {
	infos := []Info{
		{Handle: 0x100, PID: 1, Title: "main.go - proj - Cursor"},
		{Handle: 0x200, PID: 2, Title: "Calculator"},
		{Handle: 0x300, PID: 3, Title: "Untitled - Notepad"},
		{Handle: 0x400, PID: 4, Title: "app.py - Visual Studio Code"},
	}

	got := FilterCandidates(infos, EditorKeywords)
	if len(got) != 3 {
		t.Fatalf("Expected 3 candidates, got %d", len(got))
	}
	for _, in := range got {
		if in.Handle == 0x200 {
			t.Error("Calculator should not be an attach candidate")
		}
	}
	// Enumeration order is preserved.
	if got[0].Handle != 0x100 || got[2].Handle != 0x400 {
		t.Errorf("Candidate order changed: %+v", got)
	}
}
