// Package bridge hosts practice sessions for browser clients over a
// websocket. Each connection owns one session engine. The browser plays the
// clips the server sends and streams microphone audio back as binary frames.
package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/abhisek/lingo/internal/session"
)

// Client → server message types. The first group are engine commands; the
// second are replies to server requests.
const (
	CmdStart        = "start"
	CmdAdvance      = "advance"
	CmdStartCapture = "start_capture"
	CmdStopCapture  = "stop_capture"
	CmdRetry        = "retry"
	CmdTranscript   = "transcript"
	CmdToggleMute   = "toggle_mute"
	CmdSetAutoplay  = "set_autoplay"
	CmdSetHandsFree = "set_hands_free"
	CmdReset        = "reset"

	ReplyPlayed         = "played"
	ReplyCaptureStarted = "capture_started"
	ReplyCaptureDone    = "capture_done"
)

// Server → client message types.
const (
	MsgEvent        = "event"
	MsgClip         = "clip"
	MsgClipCancel   = "clip_cancel"
	MsgCaptureStart = "capture_start"
	MsgCaptureStop  = "capture_stop"
	MsgError        = "error"
)

// ClientMessage is any JSON frame sent by the browser. Fields are used
// according to Type.
type ClientMessage struct {
	Type string `json:"type"`

	// start
	Topic           string `json:"topic,omitempty"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
	Context         string `json:"context,omitempty"`

	// advance, transcript
	Index int    `json:"index,omitempty"`
	Text  string `json:"text,omitempty"`

	// set_autoplay, set_hands_free
	On bool `json:"on,omitempty"`

	// played
	ClipID string `json:"clip_id,omitempty"`

	// capture_done
	Format string `json:"format,omitempty"`

	// played, capture_started: a non-empty value reports a client-side
	// failure such as a denied microphone permission.
	Error string `json:"error,omitempty"`
}

// ServerMessage is any JSON frame sent to the browser.
type ServerMessage struct {
	Type string `json:"type"`

	Event *session.Event `json:"event,omitempty"`

	ClipID string `json:"clip_id,omitempty"`
	Format string `json:"format,omitempty"`
	Text   string `json:"text,omitempty"`
	Audio  []byte `json:"audio,omitempty"` // base64 in JSON

	Op      string `json:"op,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// DecodeClientMessage parses a text frame.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("decoding client message: %w", err)
	}
	if msg.Type == "" {
		return ClientMessage{}, fmt.Errorf("client message has no type")
	}
	return msg, nil
}
