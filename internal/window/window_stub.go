//go:build !windows

package window

// Stub resolver for non-Windows platforms: sees no windows and treats every
// handle as dead. Keeps the daemon buildable for development and tests.

type stubResolver struct{}

// New returns the stub resolver.
func New() Resolver {
	return stubResolver{}
}

func (stubResolver) Snapshot() ([]Info, error) { return nil, nil }
func (stubResolver) IsLive(Handle) bool        { return false }
