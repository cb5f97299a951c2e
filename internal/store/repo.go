package store

import (
	"context"
	"time"
)

// QueryOpts configures list queries with filtering and pagination.
type QueryOpts struct {
	Limit   int       // max results (0 = unlimited)
	After   int64     // sequence > After
	Before  int64     // sequence < Before
	From    time.Time // timestamp >= From
	To      time.Time // timestamp <= To
	Topic   string    // sessions only: exact topic match
	Purpose string    // LLM events only: exact purpose match
}

// SessionRecord is a finished (or abandoned) practice session as persisted.
type SessionRecord struct {
	ID           string
	Sequence     int64
	Topic        string
	State        string
	FallbackUsed bool
	Settings     string // JSON-encoded settings at save time
	StartedAt    time.Time
	EndedAt      time.Time
	Lines        []LineRecord
	History      []HistoryRecord
}

// LineRecord is one script line with its final status.
type LineRecord struct {
	Position   int
	LineID     string
	Speaker    string
	Text       string
	IsUserTurn bool
	Status     string
}

// HistoryRecord is one entry of the conversation history.
type HistoryRecord struct {
	Sequence int
	Speaker  string
	Text     string
}

// SessionSummary is a row of `lingo history list`.
type SessionSummary struct {
	ID           string
	Sequence     int64
	Topic        string
	State        string
	FallbackUsed bool
	StartedAt    time.Time
	EndedAt      time.Time
	LineCount    int
	Completed    int
	Failed       int
}

// SessionRepo persists practice sessions.
type SessionRepo interface {
	// Save inserts or replaces a session with its lines and history.
	Save(ctx context.Context, rec *SessionRecord) error

	// Get returns the session with the given ID, or nil if absent.
	Get(ctx context.Context, id string) (*SessionRecord, error)

	// List returns summaries, newest first.
	List(ctx context.Context, opts QueryOpts) ([]SessionSummary, error)

	// LatestForTopic returns the most recent session on topic, or nil.
	LatestForTopic(ctx context.Context, topic string) (*SessionRecord, error)

	// Prune deletes all but the keep most recent sessions.
	Prune(ctx context.Context, keep int) (int, error)
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
	RequestBody  string
	ResponseBody string
}

// LLMEventRecord is a stored LLM request event.
type LLMEventRecord struct {
	ID        int
	Sequence  int64
	Timestamp time.Time
	LLMRequestEventData
}

// LLMUsageStats aggregates events for one purpose or model.
type LLMUsageStats struct {
	Key          string
	Calls        int
	Failures     int
	InputTokens  int
	OutputTokens int
	AvgLatencyMs int64
}

// EventRepo records and queries LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns events, newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEventRecord, error)

	// GetLLMEvent returns a single event, or nil if absent.
	GetLLMEvent(ctx context.Context, id int) (*LLMEventRecord, error)

	// LLMUsageByPurpose aggregates all events by purpose.
	LLMUsageByPurpose(ctx context.Context) ([]LLMUsageStats, error)

	// LLMUsageByModel aggregates all events by model.
	LLMUsageByModel(ctx context.Context) ([]LLMUsageStats, error)
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
