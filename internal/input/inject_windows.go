//go:build windows

package input

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"inputrouter/internal/window"
)

var (
	user32             = windows.NewLazyDLL("user32.dll")
	procPostMessageW   = user32.NewProc("PostMessageW")
	procMapVirtualKeyW = user32.NewProc("MapVirtualKeyW")
	procSendInput      = user32.NewProc("SendInput")
)

const (
	wmKeyDown = 0x0100
	wmKeyUp   = 0x0101
	wmChar    = 0x0102

	mapvkVkToVsc  = 0
	mapvkVkToChar = 2

	inputMouse = 0
)

type mouseInput struct {
	Dx        int32
	Dy        int32
	MouseData uint32
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

// winInput is the 64-bit INPUT layout for mouse events. The union starts
// at offset 8, so 4 bytes of padding follow the type field.
type winInput struct {
	Type uint32
	_    [4]byte
	Mi   mouseInput
}

type winInjector struct{}

// New returns the Windows injection backend.
func New() Injector {
	return winInjector{}
}

// Keyboard posts a full key press to the window's message queue without
// changing foreground focus. A WM_CHAR follows the down message when the
// key has a character translation, so plain text lands even in windows
// that skip TranslateMessage.
func (winInjector) Keyboard(h window.Handle, vkey uint16) error {
	scan, _, _ := procMapVirtualKeyW.Call(uintptr(vkey), mapvkVkToVsc)
	ext := isExtendedKey(vkey)

	ret, _, err := procPostMessageW.Call(uintptr(h), wmKeyDown, uintptr(vkey), keyDownLParam(uint32(scan), ext))
	if ret == 0 {
		return fmt.Errorf("input: post WM_KEYDOWN to %#x: %w", uintptr(h), err)
	}

	ch, _, _ := procMapVirtualKeyW.Call(uintptr(vkey), mapvkVkToChar)
	if ch != 0 {
		ret, _, err = procPostMessageW.Call(uintptr(h), wmChar, ch, keyDownLParam(uint32(scan), ext))
		if ret == 0 {
			return fmt.Errorf("input: post WM_CHAR to %#x: %w", uintptr(h), err)
		}
	}

	ret, _, err = procPostMessageW.Call(uintptr(h), wmKeyUp, uintptr(vkey), keyUpLParam(uint32(scan), ext))
	if ret == 0 {
		return fmt.Errorf("input: post WM_KEYUP to %#x: %w", uintptr(h), err)
	}
	return nil
}

// Mouse injects relative movement and button transitions through
// SendInput. Movement goes first so button events land at the new
// cursor position.
func (winInjector) Mouse(dx, dy int32, buttons uint32) error {
	if dx != 0 || dy != 0 {
		if err := sendMouse(mouseInput{Dx: dx, Dy: dy, Flags: mouseEventMove}); err != nil {
			return err
		}
	}
	if flags := translateButtons(buttons); flags != 0 {
		if err := sendMouse(mouseInput{Flags: flags}); err != nil {
			return err
		}
	}
	return nil
}

func sendMouse(mi mouseInput) error {
	in := winInput{Type: inputMouse, Mi: mi}
	n, _, err := procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
	if n != 1 {
		return fmt.Errorf("input: SendInput: %w", err)
	}
	return nil
}
