// Package protoerr defines the client-visible error taxonomy
// The command and engine layers render their texts as "-ERR ..." replies;
// ErrWrongType's text carries its own "WRONGTYPE" prefix instead.
package protoerr

import "errors"

var (
	ErrWrongType       = errors.New("WRONGTYPE Operation against a key holding the wrong kind of value")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrNoSuchKey       = errors.New("no such key")
	ErrSyntax          = errors.New("syntax error")
	ErrNotAuthed       = errors.New("operation not permitted")
	ErrDenyOOM         = errors.New("command not allowed when used memory > 'maxmemory'")
	ErrNotInteger      = errors.New("value is not an integer or out of range")
	ErrBGSaveInProgress = errors.New("background save in progress")
)

// Unknown formats the "unknown command" error for an unrecognized name.
func Unknown(name string) error {
	return errUnknownCommand{name}
}

type errUnknownCommand struct{ name string }

func (e errUnknownCommand) Error() string {
	return "unknown command '" + e.name + "'"
}

// Arity formats the "wrong number of arguments" error.
func Arity(name string) error {
	return errArity{name}
}

type errArity struct{ name string }

func (e errArity) Error() string {
	return "wrong number of arguments for '" + e.name + "'"
}

// ErrProtocolType marks a connection-fatal protocol violation (distinguished
// from argument-level errors, which reply and reset rather than close).
type ErrProtocolType struct{ msg string }

func (e ErrProtocolType) Error() string { return e.msg }

func Protocol(msg string) error { return ErrProtocolType{msg} }
