package builtin

import (
	"errors"
	"fmt"
)

// -- Sentinels --

var (
	ErrOutsideWorkspace = errors.New("path is outside workspace")
	ErrNotFound         = errors.New("not found")
	ErrNotADirectory    = errors.New("not a directory")
	ErrTimeout          = errors.New("command timeout")
)

// -- Error Types --

// BlockedError is returned when the active mode forbids an operation.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string { return e.Reason }

// FileTooLargeError is returned when a file exceeds the read limit.
type FileTooLargeError struct {
	Path  string
	Limit int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("File too large (max %d bytes)", e.Limit)
}

// CommandError wraps a failure to start a command.
type CommandError struct {
	Cmd   string
	Cause error
	Stage string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed at %s: %v", e.Cmd, e.Stage, e.Cause)
}
func (e *CommandError) Unwrap() error { return e.Cause }
