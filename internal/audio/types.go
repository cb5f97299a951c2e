// Package audio owns the two exclusive audio resources of a practice
// session: the output channel, driven through a Controller, and the
// microphone, guarded by a Microphone.
package audio

import (
	"context"
	"time"
)

// Clip is a synthesized utterance ready for playback.
type Clip struct {
	ID     string
	Text   string
	Data   []byte
	Format string // "mp3", "wav", "pcm"
}

// Recording is a sealed microphone capture. It is transient: the engine
// drops it as soon as it has been transcribed.
type Recording struct {
	StartedAt time.Time
	StoppedAt time.Time
	Audio     []byte
	Format    string
}

// Duration returns the wall-clock length of the capture.
func (r *Recording) Duration() time.Duration {
	if r == nil || r.StoppedAt.Before(r.StartedAt) {
		return 0
	}
	return r.StoppedAt.Sub(r.StartedAt)
}

// Player plays one clip and blocks until playback finishes or ctx is done.
type Player interface {
	Play(ctx context.Context, clip *Clip) error
}

// Recorder is the microphone backend.
type Recorder interface {
	// Start opens the microphone and begins capturing.
	Start(ctx context.Context) error

	// Stop closes the microphone and returns what was captured.
	Stop(ctx context.Context) (*Recording, error)
}
