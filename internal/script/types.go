package script

import (
	"context"
	"time"
)

// Status is the per-line progress marker. It only moves forward:
// pending → (playing | waiting) → (completed | failed).
type Status string

const (
	StatusPending   Status = "pending"
	StatusPlaying   Status = "playing"
	StatusWaiting   Status = "waiting"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanMoveTo reports whether s → next is a legal forward transition.
func (s Status) CanMoveTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusPlaying || next == StatusWaiting
	case StatusPlaying, StatusWaiting:
		return next.Terminal()
	default:
		return false
	}
}

// Line is one turn of dialogue.
type Line struct {
	ID      string `json:"id"`
	Speaker string `json:"speaker"`

	// Text is what the AI speaks, or for a user turn a placeholder prompt
	// that is replaced by the transcription.
	Text string `json:"text"`

	// IsUserTurn is set once by the provider and never re-derived.
	IsUserTurn bool `json:"is_user_turn"`

	Status Status `json:"status"`
}

// Provider produces an ordered script for a topic.
type Provider interface {
	// Request returns the dialogue lines for topic. durationHint is the
	// desired spoken length of the whole conversation; contextDescription
	// carries prior conversation or learner context and may be empty.
	Request(ctx context.Context, topic string, durationHint time.Duration, contextDescription string) ([]Line, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, topic string, durationHint time.Duration, contextDescription string) ([]Line, error)

// Request calls f.
func (f ProviderFunc) Request(ctx context.Context, topic string, durationHint time.Duration, contextDescription string) ([]Line, error) {
	return f(ctx, topic, durationHint, contextDescription)
}
