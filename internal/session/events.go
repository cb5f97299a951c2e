package session

// EventKind classifies engine notifications.
type EventKind string

const (
	EventStateChanged    EventKind = "state_changed"
	EventLineUpdated     EventKind = "line_updated"
	EventSettingsChanged EventKind = "settings_changed"
	EventNotice          EventKind = "notice"
)

// NoticeKind names a recoverable condition the host may want to show.
type NoticeKind string

const (
	NoticeFallbackScript      NoticeKind = "fallback_script"
	NoticeSynthesisSkipped    NoticeKind = "synthesis_skipped"
	NoticeCaptureFailed       NoticeKind = "capture_failed"
	NoticeTranscriptionFailed NoticeKind = "transcription_failed"
	NoticeInvalidState        NoticeKind = "invalid_state"
)

// Notice describes a non-fatal failure. Err holds the typed error.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Index   int        `json:"index"`
	Message string     `json:"message"`
	Err     error      `json:"-"`
}

// Event is one notification. Snapshot is taken at emission time.
type Event struct {
	Kind     EventKind `json:"kind"`
	Snapshot Snapshot  `json:"snapshot"`
	Notice   *Notice   `json:"notice,omitempty"`
}

type subscriber struct {
	ch      chan Event
	dropped int
}
