package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/abhisek/lingo/internal/session"
)

// connection hosts one engine over one websocket. The read loop handles
// protocol replies inline and queues engine commands for a single worker,
// so a command that waits on the browser (stop_capture waits for
// capture_done) never blocks the reads it depends on.
type connection struct {
	ws      *websocket.Conn
	cfg     Config
	logger  *zap.Logger
	metrics *Metrics

	writeMu  sync.Mutex
	player   *RemotePlayer
	recorder *RemoteRecorder
	engine   *session.Engine
	commands chan ClientMessage
}

func (c *connection) send(msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding %s message: %w", msg.Type, err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	if msg.Type == MsgClip && c.metrics != nil {
		c.metrics.RecordAudio("out", len(msg.Audio))
	}
	return nil
}

func (c *connection) sendError(op string, err error) {
	msg := ServerMessage{Type: MsgError, Op: op, Code: errorCode(err), Message: err.Error()}
	if sendErr := c.send(msg); sendErr != nil {
		c.logger.Debug("failed to send error to client", zap.Error(sendErr))
	}
}

// run serves the connection until the client goes away.
func (c *connection) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, _ := c.engine.Subscribe(256)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.forwardEvents(events)
	}()
	go func() {
		defer wg.Done()
		c.runCommands(ctx)
	}()

	c.readLoop()

	cancel()
	close(c.commands)
	c.player.disconnect()
	c.recorder.disconnect()
	c.engine.Close()
	wg.Wait()
}

func (c *connection) readLoop() {
	c.ws.SetReadLimit(c.cfg.ReadLimit)
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("websocket read ended", zap.Error(err))
			}
			return
		}

		if mt == websocket.BinaryMessage {
			c.recorder.appendAudio(data)
			if c.metrics != nil {
				c.metrics.RecordAudio("in", len(data))
			}
			continue
		}

		msg, err := DecodeClientMessage(data)
		if err != nil {
			c.sendError("decode", err)
			continue
		}
		switch msg.Type {
		case ReplyPlayed:
			c.player.handlePlayed(msg)
		case ReplyCaptureStarted:
			c.recorder.handleStarted(msg)
		case ReplyCaptureDone:
			c.recorder.handleDone(msg)
		default:
			select {
			case c.commands <- msg:
			default:
				c.sendError(msg.Type, errors.New("too many queued commands"))
			}
		}
	}
}

func (c *connection) runCommands(ctx context.Context) {
	for msg := range c.commands {
		if err := c.execute(ctx, msg); err != nil {
			c.sendError(msg.Type, err)
		}
	}
}

func (c *connection) execute(ctx context.Context, msg ClientMessage) error {
	c.logger.Debug("client command", zap.String("type", msg.Type), zap.Int("index", msg.Index))

	switch msg.Type {
	case CmdStart:
		d := time.Duration(msg.DurationSeconds) * time.Second
		if d <= 0 {
			d = c.cfg.DefaultDuration
		}
		// Generation can take a while; keep the worker free for reset.
		go func() {
			if err := c.engine.InitializeWithContext(ctx, msg.Topic, d, msg.Context); err != nil {
				c.sendError(msg.Type, err)
			}
		}()
		return nil
	case CmdAdvance:
		return c.engine.Advance(msg.Index)
	case CmdStartCapture:
		return c.engine.StartCapture()
	case CmdStopCapture:
		return c.engine.StopCapture()
	case CmdRetry:
		return c.engine.RetryTranscription()
	case CmdTranscript:
		return c.engine.OnUserTranscriptReady(msg.Index, msg.Text)
	case CmdToggleMute:
		c.engine.ToggleMute()
	case CmdSetAutoplay:
		c.engine.SetAutoplay(msg.On)
	case CmdSetHandsFree:
		c.engine.SetHandsFree(msg.On)
	case CmdReset:
		c.engine.Reset()
	default:
		return &unknownCommandError{Type: msg.Type}
	}
	return nil
}

func (c *connection) forwardEvents(events <-chan session.Event) {
	tracker := newSessionTracker(c.metrics)
	for ev := range events {
		tracker.observe(ev)
		if err := c.send(ServerMessage{Type: MsgEvent, Event: &ev}); err != nil {
			c.logger.Debug("dropping event for closed connection", zap.String("kind", string(ev.Kind)))
		}
	}
	tracker.end("abandoned")
}

type unknownCommandError struct {
	Type string
}

func (e *unknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Type)
}

// errorCode classifies err for the client.
func errorCode(err error) string {
	var (
		ise     *session.InvalidStateError
		capErr  *session.CaptureError
		genErr  *session.ScriptGenerationError
		unknown *unknownCommandError
	)
	switch {
	case errors.As(err, &ise):
		return "invalid_state"
	case errors.As(err, &capErr):
		return "capture_failed"
	case errors.As(err, &genErr):
		return "script_generation_failed"
	case errors.As(err, &unknown):
		return "unknown_command"
	case errors.Is(err, session.ErrSessionReset):
		return "session_reset"
	case errors.Is(err, session.ErrEngineClosed):
		return "closed"
	default:
		return "bad_request"
	}
}
