package bridge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lingo/internal/audio"
	"github.com/abhisek/lingo/internal/script"
	"github.com/abhisek/lingo/internal/session"
	"github.com/abhisek/lingo/internal/settings"
	"github.com/abhisek/lingo/internal/speech"
)

func testFactory(set settings.Settings) EngineFactory {
	return func(player audio.Player, rec audio.Recorder) (*session.Engine, error) {
		cfg := session.DefaultConfig()
		cfg.GraceDelay = 10 * time.Millisecond
		return session.New(session.Deps{
			Scripts: script.ProviderFunc(func(context.Context, string, time.Duration, string) ([]script.Line, error) {
				return []script.Line{
					{Speaker: "Barista", Text: "Hello"},
					{Speaker: "You", Text: "?", IsUserTurn: true},
					{Speaker: "Barista", Text: "Bye"},
				}, nil
			}),
			Synth:       speech.NewMockSynthesizer(),
			Transcriber: speech.NewMockTranscriber(),
			Player:      audio.NewController(player),
			Mic:         audio.NewMicrophone(rec),
			Settings:    settings.NewController(set),
		}, cfg, nil)
	}
}

func startServer(t *testing.T, factory EngineFactory) (*httptest.Server, *Metrics) {
	t.Helper()
	metrics := NewMetrics("")
	srv, err := NewServer(DefaultConfig(), factory, metrics, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts, metrics
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func sendJSON(t *testing.T, ws *websocket.Conn, msg ClientMessage) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(msg))
}

func readMsg(t *testing.T, ws *websocket.Conn) ServerMessage {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	var msg ServerMessage
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

// browser plays the client side of a conversation: it acknowledges clips,
// grants or denies the microphone and speaks micAudio on each user turn.
type browser struct {
	micError string
	micAudio []byte

	clips     []string
	errors    []ServerMessage
	final     session.Snapshot
	requested bool
	stopped   bool
}

func (b *browser) converse(t *testing.T, ws *websocket.Conn) {
	t.Helper()
	for {
		msg := readMsg(t, ws)
		switch msg.Type {
		case MsgClip:
			b.clips = append(b.clips, msg.Text)
			sendJSON(t, ws, ClientMessage{Type: ReplyPlayed, ClipID: msg.ClipID})
		case MsgCaptureStart:
			sendJSON(t, ws, ClientMessage{Type: ReplyCaptureStarted, Error: b.micError})
		case MsgCaptureStop:
			sendJSON(t, ws, ClientMessage{Type: ReplyCaptureDone, Format: "wav"})
		case MsgError:
			b.errors = append(b.errors, msg)
		case MsgEvent:
			snap := msg.Event.Snapshot
			switch {
			case snap.State == session.StateCompleted:
				b.final = snap
				return
			case snap.State == session.StateUserTurnWaiting && !snap.Capturing && !b.requested:
				b.requested = true
				sendJSON(t, ws, ClientMessage{Type: CmdStartCapture})
			case snap.Capturing && !b.stopped:
				b.stopped = true
				require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, b.micAudio))
				sendJSON(t, ws, ClientMessage{Type: CmdStopCapture})
			}
		}
	}
}

func TestBridge_FullConversation(t *testing.T) {
	ts, metrics := startServer(t, testFactory(settings.Settings{Autoplay: true}))
	ws := dial(t, ts)

	sendJSON(t, ws, ClientMessage{Type: CmdStart, Topic: "ordering coffee", DurationSeconds: 60})
	b := &browser{micAudio: []byte("Hi")}
	b.converse(t, ws)

	assert.Equal(t, []string{"Hello", "Bye"}, b.clips)
	assert.Empty(t, b.errors)
	require.Len(t, b.final.Lines, 3)
	assert.Equal(t, "Hi", b.final.Lines[1].Text)
	for _, l := range b.final.Lines {
		assert.Equal(t, script.StatusCompleted, l.Status)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionsTotal.WithLabelValues("completed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.LinesTotal.WithLabelValues("ai", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LinesTotal.WithLabelValues("user", "completed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.AudioBytesTotal.WithLabelValues("in")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.SessionsActive))
}

func TestBridge_MicrophoneDenied(t *testing.T) {
	ts, metrics := startServer(t, testFactory(settings.Settings{Autoplay: true}))
	ws := dial(t, ts)

	sendJSON(t, ws, ClientMessage{Type: CmdStart, Topic: "ordering coffee"})
	b := &browser{micError: "NotAllowedError"}
	b.converse(t, ws)
	for len(b.errors) == 0 {
		if msg := readMsg(t, ws); msg.Type == MsgError {
			b.errors = append(b.errors, msg)
		}
	}

	assert.Equal(t, "capture_failed", b.errors[0].Code)
	assert.Contains(t, b.errors[0].Message, "NotAllowedError")
	assert.Equal(t, session.MarkerNoResponse, b.final.Lines[1].Text)
	assert.Equal(t, script.StatusFailed, b.final.Lines[1].Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.NoticesTotal.WithLabelValues("capture_failed")))
}

func TestBridge_CommandErrors(t *testing.T) {
	ts, _ := startServer(t, testFactory(settings.Default()))
	ws := dial(t, ts)

	nextError := func() ServerMessage {
		for {
			msg := readMsg(t, ws)
			if msg.Type == MsgError {
				return msg
			}
		}
	}

	sendJSON(t, ws, ClientMessage{Type: CmdAdvance, Index: 4})
	msg := nextError()
	assert.Equal(t, "invalid_state", msg.Code)
	assert.Equal(t, CmdAdvance, msg.Op)

	sendJSON(t, ws, ClientMessage{Type: "dance"})
	assert.Equal(t, "unknown_command", nextError().Code)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
	assert.Equal(t, "bad_request", nextError().Code)
}

func TestBridge_Healthz(t *testing.T) {
	ts, _ := startServer(t, testFactory(settings.Default()))

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ = io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "lingo_connections_active")
}

func TestServer_RejectsForeignOrigin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowedOrigins = []string{"https://app.example"}
	srv, err := NewServer(cfg, testFactory(settings.Default()), nil, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example"}})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

type fakeSender struct {
	mu    sync.Mutex
	sent  []ServerMessage
	onMsg func(ServerMessage)
}

func (f *fakeSender) send(msg ServerMessage) error {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	hook := f.onMsg
	f.mu.Unlock()
	if hook != nil {
		go hook(msg)
	}
	return nil
}

func (f *fakeSender) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent {
		out = append(out, m.Type)
	}
	return out
}

func TestRemotePlayer_CancelTellsClient(t *testing.T) {
	out := &fakeSender{}
	p := newRemotePlayer(out)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- p.Play(ctx, &audio.Clip{ID: "c1", Text: "Hola"}) }()

	require.Eventually(t, func() bool { return len(out.types()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.Equal(t, []string{MsgClip, MsgClipCancel}, out.types())

	// A late reply for the cancelled clip is ignored.
	p.handlePlayed(ClientMessage{Type: ReplyPlayed, ClipID: "c1"})
}

func TestRemotePlayer_ClientError(t *testing.T) {
	out := &fakeSender{}
	p := newRemotePlayer(out)
	out.onMsg = func(m ServerMessage) {
		p.handlePlayed(ClientMessage{Type: ReplyPlayed, ClipID: m.ClipID, Error: "autoplay blocked"})
	}
	err := p.Play(context.Background(), &audio.Clip{Text: "Hola"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "autoplay blocked")
}

func TestRemoteRecorder_CollectsFramesDuringCapture(t *testing.T) {
	out := &fakeSender{}
	cfg := DefaultConfig()
	cfg.MaxCaptureBytes = 6
	r := newRemoteRecorder(out, cfg)
	out.onMsg = func(m ServerMessage) {
		switch m.Type {
		case MsgCaptureStart:
			r.handleStarted(ClientMessage{Type: ReplyCaptureStarted})
		case MsgCaptureStop:
			r.handleDone(ClientMessage{Type: ReplyCaptureDone, Format: "ogg"})
		}
	}

	r.appendAudio([]byte("early"))
	require.NoError(t, r.Start(context.Background()))
	assert.ErrorIs(t, r.Start(context.Background()), audio.ErrMicrophoneBusy)

	r.appendAudio([]byte("abc"))
	r.appendAudio([]byte("def"))
	r.appendAudio([]byte("overflow"))

	rec, err := r.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdef"), rec.Audio)
	assert.Equal(t, "ogg", rec.Format)

	r.appendAudio([]byte("late"))
	_, err = r.Stop(context.Background())
	assert.Error(t, err)
}

func TestRemoteRecorder_DisconnectUnblocksStart(t *testing.T) {
	out := &fakeSender{}
	r := newRemoteRecorder(out, DefaultConfig())

	errc := make(chan error, 1)
	go func() { errc <- r.Start(context.Background()) }()
	require.Eventually(t, func() bool { return len(out.types()) == 1 }, time.Second, 5*time.Millisecond)

	r.disconnect()
	assert.ErrorIs(t, <-errc, errDisconnected)
	assert.ErrorIs(t, r.Start(context.Background()), errDisconnected)
}

func TestDecodeClientMessage(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"transcript","index":3,"text":"hola"}`))
	require.NoError(t, err)
	assert.Equal(t, ClientMessage{Type: CmdTranscript, Index: 3, Text: "hola"}, msg)

	_, err = DecodeClientMessage([]byte(`{}`))
	assert.Error(t, err)
}

func TestServerMessage_EventJSON(t *testing.T) {
	ev := session.Event{
		Kind:     session.EventNotice,
		Snapshot: session.Snapshot{State: session.StateUserTurnWaiting, CurrentIndex: 1},
		Notice:   &session.Notice{Kind: session.NoticeCaptureFailed, Index: 1, Message: "denied"},
	}
	data, err := json.Marshal(ServerMessage{Type: MsgEvent, Event: &ev})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"capture_failed"`)
	assert.Contains(t, string(data), `"state":"user_turn_waiting"`)
}
