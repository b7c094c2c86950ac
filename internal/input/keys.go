package input

// lParam layout for WM_KEYDOWN/WM_KEYUP: bit 0 repeat count, bits 16-23
// scan code, bit 24 extended key, bit 30 previous state, bit 31 transition.

func keyDownLParam(scan uint32, extended bool) uintptr {
	lp := uintptr(1) | uintptr(scan&0xFF)<<16
	if extended {
		lp |= 1 << 24
	}
	return lp
}

func keyUpLParam(scan uint32, extended bool) uintptr {
	return keyDownLParam(scan, extended) | 1<<30 | 1<<31
}

// extendedKeys lists virtual keys whose scan codes carry the 0xE0 prefix
// on the wire and therefore need the extended bit set in lParam.
var extendedKeys = map[uint16]bool{
	0x21: true, // VK_PRIOR (page up)
	0x22: true, // VK_NEXT (page down)
	0x23: true, // VK_END
	0x24: true, // VK_HOME
	0x25: true, // VK_LEFT
	0x26: true, // VK_UP
	0x27: true, // VK_RIGHT
	0x28: true, // VK_DOWN
	0x2C: true, // VK_SNAPSHOT
	0x2D: true, // VK_INSERT
	0x2E: true, // VK_DELETE
	0x5B: true, // VK_LWIN
	0x5C: true, // VK_RWIN
	0x5D: true, // VK_APPS
	0x6F: true, // VK_DIVIDE
	0x90: true, // VK_NUMLOCK
	0xA3: true, // VK_RCONTROL
	0xA5: true, // VK_RMENU
}

func isExtendedKey(vkey uint16) bool {
	return extendedKeys[vkey]
}
