//go:build windows

package window

import (
	"fmt"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Windows API functions
var (
	user32                       = windows.NewLazyDLL("user32.dll")
	procEnumWindows              = user32.NewProc("EnumWindows")
	procIsWindow                 = user32.NewProc("IsWindow")
	procIsWindowVisible          = user32.NewProc("IsWindowVisible")
	procGetWindowTextW           = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW     = user32.NewProc("GetWindowTextLengthW")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
)

// syscall.NewCallback allocations are process-lifetime and capped, so the
// enumeration callback is created once and the collector behind it is
// swapped under a lock.
var (
	enumMu      sync.Mutex
	enumCollect func(h uintptr)
	enumCB      = syscall.NewCallback(func(h, _ uintptr) uintptr {
		enumCollect(h)
		return 1
	})
)

type winResolver struct{}

// New returns the resolver backed by user32 window enumeration.
func New() Resolver {
	return winResolver{}
}

func (winResolver) Snapshot() ([]Info, error) {
	enumMu.Lock()
	defer enumMu.Unlock()

	var infos []Info
	enumCollect = func(h uintptr) {
		if visible, _, _ := procIsWindowVisible.Call(h); visible == 0 {
			return
		}
		length, _, _ := procGetWindowTextLengthW.Call(h)
		if length == 0 {
			return
		}
		buf := make([]uint16, length+1)
		n, _, _ := procGetWindowTextW.Call(h, uintptr(unsafe.Pointer(&buf[0])), length+1)
		if n == 0 {
			return
		}
		var pid uint32
		procGetWindowThreadProcessId.Call(h, uintptr(unsafe.Pointer(&pid)))
		infos = append(infos, Info{
			Handle: Handle(h),
			PID:    int(pid),
			Title:  windows.UTF16ToString(buf[:n]),
		})
	}
	ret, _, err := procEnumWindows.Call(enumCB, 0)
	enumCollect = nil
	if ret == 0 {
		return nil, fmt.Errorf("window: EnumWindows failed: %w", err)
	}
	return infos, nil
}

func (winResolver) IsLive(h Handle) bool {
	if h == 0 {
		return false
	}
	ret, _, _ := procIsWindow.Call(uintptr(h))
	return ret != 0
}
