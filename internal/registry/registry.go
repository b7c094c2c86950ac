// Package registry holds the device mapping table and the per-user
// session table behind a single mutex. Every component reads and writes
// through it; nothing else in the service keeps routing state.
package registry

import (
	"sync"

	"inputrouter/internal/window"
)

// Process is the slice of a launched editor process the router needs.
// Attached sessions carry a nil Process.
type Process interface {
	Pid() int
	Exited() bool
	Terminate() error
}

// Session binds a user to an editor window. Window may be zero while a
// relaunch or re-resolve is pending; PID is zero for attached sessions,
// which pins them to their original handle.
type Session struct {
	UserID     string
	Proc       Process
	Window     window.Handle
	PID        int
	ProjectDir string
	Editor     string
}

// Store is the shared routing state: device_id -> user_id mappings and
// user_id -> Session records.
type Store struct {
	mu       sync.Mutex
	mappings map[string]string
	sessions map[string]Session
}

func NewStore() *Store {
	return &Store{
		mappings: make(map[string]string),
		sessions: make(map[string]Session),
	}
}

// SeedMappings replaces the whole mapping table, copying the input.
func (s *Store) SeedMappings(m map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings = make(map[string]string, len(m))
	for k, v := range m {
		s.mappings[k] = v
	}
}

func (s *Store) LookupMapping(deviceID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.mappings[deviceID]
	return userID, ok
}

func (s *Store) SetMapping(deviceID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings[deviceID] = userID
}

// RemoveMapping reports whether the device was mapped.
func (s *Store) RemoveMapping(deviceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.mappings[deviceID]
	delete(s.mappings, deviceID)
	return ok
}

// Mappings returns a copy of the mapping table.
func (s *Store) Mappings() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.mappings))
	for k, v := range s.mappings {
		out[k] = v
	}
	return out
}

func (s *Store) Session(userID string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

// Sessions returns a copy of every session record.
func (s *Store) Sessions() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// Upsert installs or replaces the session for sess.UserID.
func (s *Store) Upsert(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.UserID] = sess
}

// SetWindow records a freshly resolved handle. A session removed while
// the resolve was in flight stays removed.
func (s *Store) SetWindow(userID string, h window.Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return
	}
	sess.Window = h
	s.sessions[userID] = sess
}

// InvalidateWindow clears a stale handle so the next event re-resolves.
func (s *Store) InvalidateWindow(userID string) {
	s.SetWindow(userID, 0)
}

// MarkProcessDead clears the window of a session whose process exited.
// The process record stays so the exit remains observable until the
// user relaunches or stops the session.
func (s *Store) MarkProcessDead(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return
	}
	sess.Window = 0
	s.sessions[userID] = sess
}

// Remove deletes the session and returns it for teardown.
func (s *Store) Remove(userID string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	delete(s.sessions, userID)
	return sess, ok
}

// Counts reports table sizes for status output.
func (s *Store) Counts() (mappings, sessions int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.mappings), len(s.sessions)
}
