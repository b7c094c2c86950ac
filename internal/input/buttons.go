package input

import "inputrouter/internal/protocol"

// MOUSEEVENTF flags for SendInput.
const (
	mouseEventMove       = 0x0001
	mouseEventLeftDown   = 0x0002
	mouseEventLeftUp     = 0x0004
	mouseEventRightDown  = 0x0008
	mouseEventRightUp    = 0x0010
	mouseEventMiddleDown = 0x0020
	mouseEventMiddleUp   = 0x0040
)

// buttonMap pairs each wire button bit with its MOUSEEVENTF flag.
var buttonMap = []struct {
	raw      uint32
	injected uint32
}{
	{protocol.ButtonLeftDown, mouseEventLeftDown},
	{protocol.ButtonLeftUp, mouseEventLeftUp},
	{protocol.ButtonRightDown, mouseEventRightDown},
	{protocol.ButtonRightUp, mouseEventRightUp},
	{protocol.ButtonMiddleDown, mouseEventMiddleDown},
	{protocol.ButtonMiddleUp, mouseEventMiddleUp},
}

// translateButtons converts a wire button bitmask into MOUSEEVENTF flags.
// Bits outside the known set are dropped.
func translateButtons(buttons uint32) uint32 {
	var flags uint32
	for _, b := range buttonMap {
		if buttons&b.raw != 0 {
			flags |= b.injected
		}
	}
	return flags
}
