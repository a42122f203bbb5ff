package domain

import "errors"

// ErrUnknownOperation is returned when a name is not in the schema registry.
var ErrUnknownOperation = errors.New("unknown operation")

// ErrNoPendingCall is returned when an identity has no pending slot state.
var ErrNoPendingCall = errors.New("no pending call")

// ErrParse is returned when a delimited call block cannot be parsed.
var ErrParse = errors.New("malformed call block")

// Dispatch failure kinds.
var (
	ErrChannelSetup = errors.New("channel setup failed")
	ErrRemote       = errors.New("remote operation failed")
	ErrTimeout      = errors.New("dispatch timed out")
)
