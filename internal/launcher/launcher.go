// Package launcher starts editor processes and answers pid questions
// for sessions the service does not own.
package launcher

import (
	"fmt"
	"log"
	"os/exec"

	"github.com/shirou/gopsutil/v3/process"
)

// Process is a launched editor. It satisfies registry.Process.
type Process struct {
	cmd  *exec.Cmd
	pid  int
	done chan struct{}
}

// Start launches path with args. dir sets the working directory when
// non-empty. The child is reaped in the background so Exited flips as
// soon as it goes away.
func Start(path string, args []string, dir string) (*Process, error) {
	cmd := exec.Command(path, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launcher: start %s: %w", path, err)
	}

	p := &Process{cmd: cmd, pid: cmd.Process.Pid, done: make(chan struct{})}
	go func() {
		cmd.Wait()
		close(p.done)
	}()

	log.Printf("Launcher: Started %s (pid %d)", path, p.pid)
	return p, nil
}

func (p *Process) Pid() int { return p.pid }

// Exited reports whether the child has been reaped.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Terminate kills the child. Already-exited processes are fine.
func (p *Process) Terminate() error {
	if p.Exited() {
		return nil
	}
	log.Printf("Launcher: Terminating pid %d", p.pid)
	return p.cmd.Process.Kill()
}

// PidAlive reports whether any process currently has the pid. Used for
// sessions whose editor the service did not start.
func PidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	alive, err := process.PidExists(int32(pid))
	if err != nil {
		return false
	}
	return alive
}

// PidName returns the executable name behind a pid, or "" when the pid
// is gone or unreadable.
func PidName(pid int) string {
	if pid <= 0 {
		return ""
	}
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return ""
	}
	name, err := proc.Name()
	if err != nil {
		return ""
	}
	return name
}
