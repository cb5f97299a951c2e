package session

import (
	"errors"
	"fmt"
)

// ErrSessionReset is returned by an operation whose session was reset while
// it was in flight. Its result has been discarded.
var ErrSessionReset = errors.New("session was reset")

// ScriptGenerationError wraps a script provider failure.
type ScriptGenerationError struct {
	Topic string
	Err   error
}

func (e *ScriptGenerationError) Error() string {
	return fmt.Sprintf("generating script for %q: %v", e.Topic, e.Err)
}

func (e *ScriptGenerationError) Unwrap() error { return e.Err }

// SynthesisError wraps a synthesis or playback failure for an AI line.
type SynthesisError struct {
	Index int
	Err   error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("speaking line %d: %v", e.Index, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// CaptureError wraps a microphone failure for a user line.
type CaptureError struct {
	Index int
	Err   error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capturing line %d: %v", e.Index, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// TranscriptionError wraps a transcriber failure. An empty transcript is not
// an error.
type TranscriptionError struct {
	Index     int
	Retryable bool
	Err       error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcribing line %d: %v", e.Index, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// InvalidStateError is returned when an operation does not fit the current
// session state. It always indicates a driver bug.
type InvalidStateError struct {
	Op     string
	Index  int
	State  State
	Reason string
}

func (e *InvalidStateError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("%s line %d rejected in state %s: %s", e.Op, e.Index, e.State, e.Reason)
	}
	return fmt.Sprintf("%s rejected in state %s: %s", e.Op, e.State, e.Reason)
}

// IsInvalidState reports whether err is an *InvalidStateError.
func IsInvalidState(err error) bool {
	var ise *InvalidStateError
	return errors.As(err, &ise)
}

// ErrEngineClosed is returned after Close.
var ErrEngineClosed = errors.New("session engine is closed")
