//go:build !windows

package autostart

import "errors"

var errNotWindows = errors.New("windows auto-start requires windows")

func enableWindows() error  { return errNotWindows }
func disableWindows() error { return errNotWindows }
func isEnabledWindows() bool {
	return false
}
