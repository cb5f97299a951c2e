// Package speech turns AI lines into audio and learner recordings into
// text. Providers are swappable behind Synthesizer and Transcriber.
package speech

import (
	"context"
	"errors"
	"fmt"

	"github.com/abhisek/lingo/internal/audio"
)

// Voice selects how a line is spoken.
type Voice struct {
	ID    string
	Speed float64 // 1.0 is normal; 0 means provider default
}

// Synthesizer converts text to a playable clip.
type Synthesizer interface {
	Name() string

	// Synthesize renders text with voice.
	Synthesize(ctx context.Context, text string, voice Voice) (*audio.Clip, error)

	// Voices lists the voice IDs this provider offers, in preference order.
	Voices() []string
}

// Transcriber converts a learner recording to text. An empty result with a
// nil error means nothing intelligible was said.
type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, rec *audio.Recording) (string, error)
}

// ErrEmptyText is returned when asked to synthesize nothing.
var ErrEmptyText = errors.New("nothing to synthesize")

// Error is a provider failure with a retry hint.
type Error struct {
	Provider  string
	Op        string // "synthesize" or "transcribe"
	Retryable bool
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a transient provider failure, such as
// a dropped connection or a rate limit, that is worth trying again.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}
