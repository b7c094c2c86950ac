// Package engine provides the core input routing logic.
package engine

import (
	"fmt"
	"log"
	"runtime"
	"sort"
	"sync"
	"time"

	"inputrouter/internal/config"
	"inputrouter/internal/input"
	"inputrouter/internal/launcher"
	"inputrouter/internal/network"
	"inputrouter/internal/osutils"
	"inputrouter/internal/protocol"
	"inputrouter/internal/registry"
	"inputrouter/internal/router"
	"inputrouter/internal/window"
)

// launchSettleDelay gives a fresh editor time to create its main window
// before the first resolve attempt.
const launchSettleDelay = 2 * time.Second

// OutcomeEvent is one routing feed entry for websocket clients.
type OutcomeEvent struct {
	DeviceID string `json:"device_id"`
	Kind     string `json:"kind"`
	Outcome  string `json:"outcome"`
	Error    string `json:"error,omitempty"`
}

// SessionStatus is the API view of one session.
type SessionStatus struct {
	UserID     string `json:"user_id"`
	PID        int    `json:"pid"`
	Window     uint64 `json:"hwnd"`
	Editor     string `json:"editor"`
	ProjectDir string `json:"project_dir,omitempty"`
	Process    string `json:"process,omitempty"`
	Running    bool   `json:"running"`
}

// WindowStatus describes one attach candidate window.
type WindowStatus struct {
	Handle  uint64 `json:"hwnd"`
	PID     int    `json:"pid"`
	Title   string `json:"title"`
	Process string `json:"process,omitempty"`
}

// Status is the service-level snapshot for the status endpoint.
type Status struct {
	UpstreamAddr      string `json:"upstream_addr"`
	UpstreamConnected bool   `json:"upstream_connected"`
	Mappings          int    `json:"mappings"`
	Sessions          int    `json:"sessions"`
	Admin             bool   `json:"admin"`
}

// Engine coordinates the upstream receiver, the routing table and the
// injection backend.
type Engine struct {
	cfgMgr   *config.Manager
	store    *registry.Store
	resolver window.Resolver
	injector input.Injector
	router   *router.Router
	receiver *network.Receiver
	admin    bool

	mu       sync.Mutex
	listener func(OutcomeEvent)
}

// New assembles an engine from a loaded config manager.
func New(cfgMgr *config.Manager, resolver window.Resolver, injector input.Injector) *Engine {
	cfg := cfgMgr.Get()

	e := &Engine{
		cfgMgr:   cfgMgr,
		store:    registry.NewStore(),
		resolver: resolver,
		injector: injector,
		admin:    osutils.IsAdmin(),
	}
	e.router = router.New(e.store, resolver, injector)
	e.store.SeedMappings(cfg.Mappings)

	e.receiver = network.NewReceiver(cfg.Service.Addr(), cfg.Settings.ReconnectDelay())
	e.receiver.OnEvent = e.handleEvent

	cfgMgr.RegisterChangeCallback(e.applyConfig)
	return e
}

// Start begins pulling events from the upstream service.
func (e *Engine) Start() {
	if runtime.GOOS == "windows" && !e.admin {
		log.Println("Engine: Not running as administrator; injection into elevated windows will fail")
	}
	log.Printf("Engine: Starting with %d mappings", len(e.cfgMgr.Get().Mappings))
	e.receiver.Start()
}

// Stop disconnects from the upstream and kills launched editors.
func (e *Engine) Stop() {
	e.receiver.Stop()
	for _, sess := range e.store.Sessions() {
		if sess.Proc != nil {
			if err := sess.Proc.Terminate(); err != nil {
				log.Printf("Engine: Terminate editor for %s: %v", sess.UserID, err)
			}
		}
	}
}

// handleEvent routes one upstream event and publishes the outcome.
// Events of unknown type never reach the router.
func (e *Engine) handleEvent(ev protocol.Event) {
	if unk, ok := ev.(protocol.Unknown); ok {
		log.Printf("Engine: Ignoring %q event from %s", unk.Kind, unk.DeviceID)
		return
	}

	outcome, err := e.router.Route(ev)
	if err != nil {
		log.Printf("Engine: Injection failed for %s: %v", ev.Device(), err)
	} else if outcome != router.Delivered {
		log.Printf("Engine: Dropped event from %s: %s", ev.Device(), outcome)
	}

	oe := OutcomeEvent{
		DeviceID: ev.Device(),
		Kind:     kindOf(ev),
		Outcome:  outcome.String(),
	}
	if err != nil {
		oe.Error = err.Error()
	}
	e.notify(oe)
}

func kindOf(ev protocol.Event) string {
	switch ev.(type) {
	case protocol.Keyboard:
		return "keyboard"
	case protocol.Mouse:
		return "mouse"
	default:
		return "unknown"
	}
}

// SetOutcomeListener wires the routing feed. Pass nil to detach.
func (e *Engine) SetOutcomeListener(fn func(OutcomeEvent)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = fn
}

func (e *Engine) notify(ev OutcomeEvent) {
	e.mu.Lock()
	listener := e.listener
	e.mu.Unlock()
	if listener != nil {
		listener(ev)
	}
}

// applyConfig reseeds routing state after a config replacement.
func (e *Engine) applyConfig() {
	cfg := e.cfgMgr.Get()
	e.store.SeedMappings(cfg.Mappings)
	log.Printf("Engine: Config applied, %d mappings", len(cfg.Mappings))
}

// AddMapping binds a device to a user and persists the change.
func (e *Engine) AddMapping(deviceID, userID string) error {
	if deviceID == "" || userID == "" {
		return ErrEmptyMapping
	}
	e.store.SetMapping(deviceID, userID)
	e.cfgMgr.SetMapping(deviceID, userID)
	if err := e.cfgMgr.Save(); err != nil {
		return fmt.Errorf("persist mapping: %w", err)
	}
	log.Printf("Engine: Mapped device %s to %s", deviceID, userID)
	return nil
}

// RemoveMapping unbinds a device and persists the change.
func (e *Engine) RemoveMapping(deviceID string) error {
	if !e.store.RemoveMapping(deviceID) {
		return ErrMappingNotFound
	}
	e.cfgMgr.RemoveMapping(deviceID)
	if err := e.cfgMgr.Save(); err != nil {
		return fmt.Errorf("persist mapping removal: %w", err)
	}
	log.Printf("Engine: Unmapped device %s", deviceID)
	return nil
}

// Mappings returns the active device table.
func (e *Engine) Mappings() map[string]string {
	return e.store.Mappings()
}

// Sessions returns one status row per session, sorted by user.
func (e *Engine) Sessions() []SessionStatus {
	sessions := e.store.Sessions()
	out := make([]SessionStatus, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, e.sessionStatus(sess))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (e *Engine) sessionStatus(sess registry.Session) SessionStatus {
	st := SessionStatus{
		UserID:     sess.UserID,
		PID:        sess.PID,
		Window:     uint64(sess.Window),
		Editor:     sess.Editor,
		ProjectDir: sess.ProjectDir,
	}
	switch {
	case sess.Proc != nil:
		st.Running = !sess.Proc.Exited()
	case sess.PID > 0:
		st.Running = launcher.PidAlive(sess.PID)
	default:
		st.Running = e.resolver.IsLive(sess.Window)
	}
	if sess.PID > 0 {
		st.Process = launcher.PidName(sess.PID)
	}
	return st
}

// Launch starts an editor for the user and binds its main window.
// Empty projectDir and editor fall back to the user's configured
// defaults.
func (e *Engine) Launch(userID, projectDir, editor string) (SessionStatus, error) {
	if userID == "" {
		return SessionStatus{}, ErrEmptyUserID
	}

	cfg := e.cfgMgr.Get()
	if user, ok := cfg.Users[userID]; ok {
		if projectDir == "" {
			projectDir = user.ProjectDir
		}
		if editor == "" {
			editor = user.Editor
		}
	}
	if editor == "" {
		editor = "cursor"
	}

	path, ok := cfg.EditorPaths[editor]
	if !ok {
		return SessionStatus{}, fmt.Errorf("%w: %s", ErrUnknownEditor, editor)
	}
	path = config.ExpandUser(path)

	// Replace any editor this service already launched for the user.
	if old, ok := e.store.Session(userID); ok && old.Proc != nil {
		if err := old.Proc.Terminate(); err != nil {
			log.Printf("Engine: Terminate old editor for %s: %v", userID, err)
		}
	}

	var args []string
	if projectDir != "" {
		args = append(args, projectDir)
	}
	proc, err := launcher.Start(path, args, "")
	if err != nil {
		return SessionStatus{}, err
	}

	time.Sleep(launchSettleDelay)

	sess := registry.Session{
		UserID:     userID,
		Proc:       proc,
		PID:        proc.Pid(),
		ProjectDir: projectDir,
		Editor:     editor,
	}
	if h, ok := window.FindByPid(e.resolver, proc.Pid()); ok {
		sess.Window = h
	} else {
		log.Printf("Engine: No window yet for %s (pid %d), will resolve on first event", userID, proc.Pid())
	}
	e.store.Upsert(sess)

	log.Printf("Engine: Session for %s: %s (pid %d)", userID, editor, proc.Pid())
	return e.sessionStatus(sess), nil
}

// Attach binds a user to an existing window without owning a process.
// The session stays pinned to this handle; if the window closes, events
// drop until the user attaches again or launches.
func (e *Engine) Attach(userID string, handle uint64) (SessionStatus, error) {
	if userID == "" {
		return SessionStatus{}, ErrEmptyUserID
	}
	h := window.Handle(handle)
	if h == 0 || !e.resolver.IsLive(h) {
		return SessionStatus{}, fmt.Errorf("%w: %#x", ErrWindowNotFound, handle)
	}

	sess := registry.Session{UserID: userID, Window: h, Editor: "attached"}
	e.store.Upsert(sess)
	log.Printf("Engine: Attached %s to window %#x", userID, handle)
	return e.sessionStatus(sess), nil
}

// TerminateSession removes the session and kills the editor when owned.
func (e *Engine) TerminateSession(userID string) error {
	sess, ok := e.store.Remove(userID)
	if !ok {
		return ErrNoSession
	}
	if sess.Proc != nil {
		if err := sess.Proc.Terminate(); err != nil {
			return fmt.Errorf("terminate editor: %w", err)
		}
	}
	log.Printf("Engine: Session for %s stopped", userID)
	return nil
}

// ResolveWindowForPid finds the first top-level window owned by a pid.
func (e *Engine) ResolveWindowForPid(pid int) (uint64, bool) {
	h, ok := window.FindByPid(e.resolver, pid)
	return uint64(h), ok
}

// ResolveWindowByTitle finds the first window whose title contains text.
func (e *Engine) ResolveWindowByTitle(text string) (uint64, bool) {
	h, ok := window.FindByTitleSubstring(e.resolver, text)
	return uint64(h), ok
}

// CandidateWindows lists editor-looking windows for attach.
func (e *Engine) CandidateWindows() ([]WindowStatus, error) {
	infos, err := e.resolver.Snapshot()
	if err != nil {
		return nil, err
	}
	out := make([]WindowStatus, 0)
	for _, in := range window.FilterCandidates(infos, window.EditorKeywords) {
		out = append(out, WindowStatus{
			Handle:  uint64(in.Handle),
			PID:     in.PID,
			Title:   in.Title,
			Process: launcher.PidName(in.PID),
		})
	}
	return out, nil
}

// Status reports service-level counters.
func (e *Engine) Status() Status {
	mappings, sessions := e.store.Counts()
	return Status{
		UpstreamAddr:      e.cfgMgr.Get().Service.Addr(),
		UpstreamConnected: e.receiver.IsConnected(),
		Mappings:          mappings,
		Sessions:          sessions,
		Admin:             e.admin,
	}
}
