package session

import (
	"time"

	"github.com/abhisek/lingo/internal/audio"
	"github.com/abhisek/lingo/internal/history"
	"github.com/abhisek/lingo/internal/script"
	"github.com/abhisek/lingo/internal/settings"
)

// State is the engine-level phase of a session.
type State string

const (
	StateIdle               State = "idle" // no session; before Initialize or after Reset
	StateGenerating         State = "generating"
	StateAITurnPlaying      State = "ai_turn_playing"
	StateUserTurnWaiting    State = "user_turn_waiting"
	StateUserTurnProcessing State = "user_turn_processing"
	StateReadyToAdvance     State = "ready_to_advance"
	StateCompleted          State = "completed"
	StateFailed             State = "failed"
)

// Terminal reports whether the session can make no further progress.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Marker texts replace a user line's placeholder when no transcript exists.
const (
	MarkerUnintelligible = "(could not understand)"
	MarkerNoResponse     = "(no response recorded)"
)

// Snapshot is a read-only copy of the session.
type Snapshot struct {
	ID    string `json:"id,omitempty"`
	Topic string `json:"topic,omitempty"`

	Lines []script.Line `json:"lines"`

	// CurrentIndex is -1 until the first line is dispatched.
	CurrentIndex int `json:"current_index"`

	State    State             `json:"state"`
	Settings settings.Settings `json:"settings"`

	// FallbackUsed is set when the built-in script replaced a failed
	// generation.
	FallbackUsed bool `json:"fallback_used"`

	// Capturing is true while the microphone is open for the current line.
	Capturing bool `json:"capturing"`

	// AwaitingRetry is true when a transcription failed and the recording is
	// held for RetryTranscription.
	AwaitingRetry bool `json:"awaiting_retry"`

	StartedAt time.Time `json:"started_at,omitzero"`
	EndedAt   time.Time `json:"ended_at,omitzero"`
}

// Current returns the line under the turn pointer.
func (s Snapshot) Current() (script.Line, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Lines) {
		return script.Line{}, false
	}
	return s.Lines[s.CurrentIndex], true
}

// sessionState is the single mutable session record. Only the engine
// touches it, always with Engine.mu held.
type sessionState struct {
	id        string
	topic     string
	lines     []script.Line
	current   int
	state     State
	fallback  bool
	capturing bool

	// pending is the recording kept after a failed transcription.
	pending       *audio.Recording
	awaitingRetry bool

	voices    map[string]string
	history   *history.Log
	startedAt time.Time
	endedAt   time.Time
}

func (s *sessionState) terminalCount() int {
	n := 0
	for _, l := range s.lines {
		if l.Status.Terminal() {
			n++
		}
	}
	return n
}
