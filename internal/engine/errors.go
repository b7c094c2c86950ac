package engine

import "errors"

var (
	// ErrEmptyUserID is returned when an operation needs a user id
	ErrEmptyUserID = errors.New("user id must be non-empty")

	// ErrEmptyMapping is returned when a mapping is missing either id
	ErrEmptyMapping = errors.New("device id and user id must be non-empty")

	// ErrMappingNotFound is returned when removing an unknown device
	ErrMappingNotFound = errors.New("mapping not found")

	// ErrNoSession is returned when the user has no session
	ErrNoSession = errors.New("no session for user")

	// ErrUnknownEditor is returned when the editor has no configured path
	ErrUnknownEditor = errors.New("unknown editor")

	// ErrWindowNotFound is returned when a window handle is gone or invalid
	ErrWindowNotFound = errors.New("window not found")
)
