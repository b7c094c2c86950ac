package engine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"inputrouter/internal/config"
	"inputrouter/internal/protocol"
	"inputrouter/internal/registry"
	"inputrouter/internal/window"
)

type fakeResolver struct {
	infos []window.Info
	live  map[window.Handle]bool
}

func (f *fakeResolver) Snapshot() ([]window.Info, error) { return f.infos, nil }
func (f *fakeResolver) IsLive(h window.Handle) bool      { return f.live[h] }

type fakeInjector struct {
	keys int
}

func (f *fakeInjector) Keyboard(h window.Handle, vkey uint16) error {
	f.keys++
	return nil
}

func (f *fakeInjector) Mouse(dx, dy int32, buttons uint32) error { return nil }

type fakeProc struct {
	pid        int
	exited     bool
	terminated bool
}

func (f *fakeProc) Pid() int     { return f.pid }
func (f *fakeProc) Exited() bool { return f.exited }
func (f *fakeProc) Terminate() error {
	f.terminated = true
	return nil
}

func newTestEngine(t *testing.T) (*Engine, *config.Manager, *fakeResolver, *fakeInjector) {
	t.Helper()
	cfgMgr := config.NewManagerAt(filepath.Join(t.TempDir(), "config.json"))
	res := &fakeResolver{live: map[window.Handle]bool{}}
	inj := &fakeInjector{}
	return New(cfgMgr, res, inj), cfgMgr, res, inj
}

func TestAddMappingValidates(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	if err := e.AddMapping("", "alice"); !errors.Is(err, ErrEmptyMapping) {
		t.Errorf("Expected ErrEmptyMapping, got %v", err)
	}
	if err := e.AddMapping("0x1", ""); !errors.Is(err, ErrEmptyMapping) {
		t.Errorf("Expected ErrEmptyMapping, got %v", err)
	}
}

func TestAddMappingPersists(t *testing.T) {
	e, cfgMgr, _, _ := newTestEngine(t)

	if err := e.AddMapping("0xABC", "alice"); err != nil {
		t.Fatalf("AddMapping: %v", err)
	}

	if e.Mappings()["0xABC"] != "alice" {
		t.Error("Mapping not active in the routing table")
	}
	if cfgMgr.Get().Mappings["0xABC"] != "alice" {
		t.Error("Mapping not recorded in config")
	}
	if _, err := os.Stat(cfgMgr.Path()); err != nil {
		t.Errorf("Config file not written: %v", err)
	}
}

func TestRemoveMapping(t *testing.T) {
	e, cfgMgr, _, _ := newTestEngine(t)

	if err := e.RemoveMapping("0xNONE"); !errors.Is(err, ErrMappingNotFound) {
		t.Errorf("Expected ErrMappingNotFound, got %v", err)
	}

	e.AddMapping("0x1", "alice")
	if err := e.RemoveMapping("0x1"); err != nil {
		t.Fatalf("RemoveMapping: %v", err)
	}
	if len(e.Mappings()) != 0 {
		t.Error("Mapping survived removal")
	}
	if len(cfgMgr.Get().Mappings) != 0 {
		t.Error("Config mapping survived removal")
	}
}

func TestHandleEventIgnoresUnknownKind(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	var notified []OutcomeEvent
	e.SetOutcomeListener(func(ev OutcomeEvent) { notified = append(notified, ev) })

	e.handleEvent(protocol.Unknown{DeviceID: "0x1", Kind: "touchpad"})
	if len(notified) != 0 {
		t.Errorf("Unknown event reached the feed: %+v", notified)
	}
}

func TestHandleEventPublishesOutcome(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	e.AddMapping("0x1", "alice")

	var notified []OutcomeEvent
	e.SetOutcomeListener(func(ev OutcomeEvent) { notified = append(notified, ev) })

	e.handleEvent(protocol.Keyboard{DeviceID: "0x1", VKey: 65})

	if len(notified) != 1 {
		t.Fatalf("Expected 1 feed entry, got %d", len(notified))
	}
	got := notified[0]
	if got.DeviceID != "0x1" || got.Kind != "keyboard" || got.Outcome != "dropped_no_session" {
		t.Errorf("Unexpected feed entry: %+v", got)
	}
}

func TestHandleEventDeliversToInjector(t *testing.T) {
	e, _, res, inj := newTestEngine(t)
	e.AddMapping("0x1", "alice")
	res.live[0x500] = true
	e.store.Upsert(registry.Session{UserID: "alice", Window: 0x500, PID: 10})

	e.handleEvent(protocol.Keyboard{DeviceID: "0x1", VKey: 65})
	if inj.keys != 1 {
		t.Errorf("Expected 1 keyboard injection, got %d", inj.keys)
	}
}

func TestApplyConfigReseedsMappings(t *testing.T) {
	e, cfgMgr, _, _ := newTestEngine(t)
	e.AddMapping("0x1", "alice")

	next := config.DefaultConfig()
	next.Mappings = map[string]string{"0x2": "bob"}
	cfgMgr.Set(next)

	m := e.Mappings()
	if _, ok := m["0x1"]; ok {
		t.Error("Old mapping survived config replacement")
	}
	if m["0x2"] != "bob" {
		t.Errorf("New mapping not seeded: %v", m)
	}
}

func TestAttach(t *testing.T) {
	e, _, res, _ := newTestEngine(t)

	if _, err := e.Attach("", 0x500); !errors.Is(err, ErrEmptyUserID) {
		t.Errorf("Expected ErrEmptyUserID, got %v", err)
	}
	if _, err := e.Attach("alice", 0x500); !errors.Is(err, ErrWindowNotFound) {
		t.Errorf("Expected ErrWindowNotFound for dead handle, got %v", err)
	}
	if _, err := e.Attach("alice", 0); !errors.Is(err, ErrWindowNotFound) {
		t.Errorf("Expected ErrWindowNotFound for zero handle, got %v", err)
	}

	res.live[0x500] = true
	st, err := e.Attach("alice", 0x500)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if st.Window != 0x500 || st.Editor != "attached" || st.PID != 0 {
		t.Errorf("Unexpected session status: %+v", st)
	}
	if !st.Running {
		t.Error("Attached session with a live window should report running")
	}
}

func TestTerminateSession(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	if err := e.TerminateSession("ghost"); !errors.Is(err, ErrNoSession) {
		t.Errorf("Expected ErrNoSession, got %v", err)
	}

	proc := &fakeProc{pid: 99}
	e.store.Upsert(registry.Session{UserID: "alice", Proc: proc, PID: 99})

	if err := e.TerminateSession("alice"); err != nil {
		t.Fatalf("TerminateSession: %v", err)
	}
	if !proc.terminated {
		t.Error("Owned editor not terminated")
	}
	if _, ok := e.store.Session("alice"); ok {
		t.Error("Session survived termination")
	}
}

func TestLaunchUnknownEditor(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	_, err := e.Launch("alice", "", "emacs")
	if !errors.Is(err, ErrUnknownEditor) {
		t.Fatalf("Expected ErrUnknownEditor, got %v", err)
	}
	if !strings.Contains(err.Error(), "emacs") {
		t.Errorf("Error should name the editor: %v", err)
	}
}

func TestLaunchUsesUserDefaults(t *testing.T) {
	e, cfgMgr, _, _ := newTestEngine(t)

	cfg := cfgMgr.Get()
	cfg.Users["alice"] = config.UserConfig{ProjectDir: `C:\proj`, Editor: "vim"}

	// The configured default editor has no path entry, so Launch fails
	// after default resolution and before any process starts.
	_, err := e.Launch("alice", "", "")
	if !errors.Is(err, ErrUnknownEditor) {
		t.Fatalf("Expected ErrUnknownEditor, got %v", err)
	}
	if !strings.Contains(err.Error(), "vim") {
		t.Errorf("Expected user's default editor in error, got %v", err)
	}
}

func TestSessionsSortedByUser(t *testing.T) {
	e, _, res, _ := newTestEngine(t)
	res.live[0x1] = true
	res.live[0x2] = true
	e.store.Upsert(registry.Session{UserID: "zoe", Window: 0x1})
	e.store.Upsert(registry.Session{UserID: "amy", Window: 0x2})

	got := e.Sessions()
	if len(got) != 2 || got[0].UserID != "amy" || got[1].UserID != "zoe" {
		t.Errorf("Sessions not sorted: %+v", got)
	}
}

func TestCandidateWindows(t *testing.T) {
	e, _, res, _ := newTestEngine(t)
	res.infos = []window.Info{
		{Handle: 0x1, PID: 10, Title: "main.go - Cursor"},
		{Handle: 0x2, PID: 20, Title: "Calculator"},
	}

	got, err := e.CandidateWindows()
	if err != nil {
		t.Fatalf("CandidateWindows: %v", err)
	}
	if len(got) != 1 || got[0].Handle != 0x1 {
		t.Errorf("Unexpected candidates: %+v", got)
	}
}

func TestResolveWindowLookups(t *testing.T) {
	e, _, res, _ := newTestEngine(t)
	res.infos = []window.Info{
		{Handle: 0x1, PID: 10, Title: "main.go - Cursor"},
		{Handle: 0x2, PID: 20, Title: "Calculator"},
	}

	if h, ok := e.ResolveWindowForPid(20); !ok || h != 0x2 {
		t.Errorf("ResolveWindowForPid(20) = (%#x, %v)", h, ok)
	}
	if _, ok := e.ResolveWindowForPid(99); ok {
		t.Error("Expected no window for unknown pid")
	}

	if h, ok := e.ResolveWindowByTitle("calc"); !ok || h != 0x2 {
		t.Errorf("ResolveWindowByTitle(calc) = (%#x, %v)", h, ok)
	}
	if _, ok := e.ResolveWindowByTitle("emacs"); ok {
		t.Error("Expected no window for unmatched title")
	}
}

func TestStatus(t *testing.T) {
	e, _, _, _ := newTestEngine(t)
	e.AddMapping("0x1", "alice")

	st := e.Status()
	if st.UpstreamAddr != "127.0.0.1:9999" {
		t.Errorf("Unexpected upstream addr %q", st.UpstreamAddr)
	}
	if st.UpstreamConnected {
		t.Error("Receiver never started; cannot be connected")
	}
	if st.Mappings != 1 || st.Sessions != 0 {
		t.Errorf("Unexpected counts: %+v", st)
	}
}
