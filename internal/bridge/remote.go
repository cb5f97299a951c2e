package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/lingo/internal/audio"
)

var errDisconnected = errors.New("client disconnected")

type sender interface {
	send(msg ServerMessage) error
}

// RemotePlayer implements audio.Player by sending each clip to the browser
// and waiting for its "played" reply.
type RemotePlayer struct {
	out sender

	mu      sync.Mutex
	waiting map[string]chan error
	closed  bool
}

func newRemotePlayer(out sender) *RemotePlayer {
	return &RemotePlayer{out: out, waiting: make(map[string]chan error)}
}

// Play sends clip and blocks until the browser reports the end of playback.
// On cancellation the browser is told to stop.
func (p *RemotePlayer) Play(ctx context.Context, clip *audio.Clip) error {
	id := clip.ID
	if id == "" {
		id = uuid.NewString()
	}
	done := make(chan error, 1)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errDisconnected
	}
	p.waiting[id] = done
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.waiting, id)
		p.mu.Unlock()
	}()

	err := p.out.send(ServerMessage{
		Type:   MsgClip,
		ClipID: id,
		Format: clip.Format,
		Text:   clip.Text,
		Audio:  clip.Data,
	})
	if err != nil {
		return fmt.Errorf("sending clip: %w", err)
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = p.out.send(ServerMessage{Type: MsgClipCancel, ClipID: id})
		return ctx.Err()
	}
}

func (p *RemotePlayer) handlePlayed(msg ClientMessage) {
	p.mu.Lock()
	ch, ok := p.waiting[msg.ClipID]
	p.mu.Unlock()
	if !ok {
		return // cancelled or unknown clip
	}
	var err error
	if msg.Error != "" {
		err = fmt.Errorf("client playback: %s", msg.Error)
	}
	select {
	case ch <- err:
	default:
	}
}

func (p *RemotePlayer) disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for _, ch := range p.waiting {
		select {
		case ch <- errDisconnected:
		default:
		}
	}
}

// RemoteRecorder implements audio.Recorder over the browser microphone.
// Audio arrives as binary frames between capture_start and capture_done.
type RemoteRecorder struct {
	out          sender
	startTimeout time.Duration
	stopTimeout  time.Duration
	maxBytes     int

	mu        sync.Mutex
	active    bool
	closed    bool
	buf       bytes.Buffer
	startedAt time.Time
	startAck  chan error
	doneAck   chan string
}

func newRemoteRecorder(out sender, cfg Config) *RemoteRecorder {
	return &RemoteRecorder{
		out:          out,
		startTimeout: cfg.CaptureStartTimeout,
		stopTimeout:  cfg.CaptureStopTimeout,
		maxBytes:     cfg.MaxCaptureBytes,
	}
}

// Start asks the browser to open its microphone and waits for the answer.
func (r *RemoteRecorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errDisconnected
	}
	if r.active {
		r.mu.Unlock()
		return audio.ErrMicrophoneBusy
	}
	ack := make(chan error, 1)
	r.active = true
	r.buf.Reset()
	r.startAck = ack
	r.mu.Unlock()

	err := r.out.send(ServerMessage{Type: MsgCaptureStart})
	if err == nil {
		err = wait(ctx, ack, r.startTimeout, "capture_started")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.startAck = nil
	if err != nil {
		r.active = false
		return err
	}
	r.startedAt = time.Now()
	return nil
}

// Stop asks the browser to end the capture and returns the audio received.
func (r *RemoteRecorder) Stop(ctx context.Context) (*audio.Recording, error) {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return nil, errors.New("remote capture is not running")
	}
	done := make(chan string, 1)
	r.doneAck = done
	closed := r.closed
	r.mu.Unlock()

	stoppedAt := time.Now()
	var format string
	var err error
	if closed {
		err = errDisconnected
	} else if err = r.out.send(ServerMessage{Type: MsgCaptureStop}); err == nil {
		format, err = waitValue(ctx, done, r.stopTimeout, "capture_done")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	data := bytes.Clone(r.buf.Bytes())
	r.buf.Reset()
	r.active = false
	r.doneAck = nil
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = "webm"
	}
	return &audio.Recording{
		StartedAt: r.startedAt,
		StoppedAt: stoppedAt,
		Audio:     data,
		Format:    format,
	}, nil
}

// appendAudio buffers one binary frame. Frames outside a capture are
// dropped, as is anything past the size cap.
func (r *RemoteRecorder) appendAudio(frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return
	}
	if r.maxBytes > 0 && r.buf.Len()+len(frame) > r.maxBytes {
		return
	}
	r.buf.Write(frame)
}

func (r *RemoteRecorder) handleStarted(msg ClientMessage) {
	r.mu.Lock()
	ch := r.startAck
	r.mu.Unlock()
	if ch == nil {
		return
	}
	var err error
	if msg.Error != "" {
		err = fmt.Errorf("client microphone: %s", msg.Error)
	}
	select {
	case ch <- err:
	default:
	}
}

// handleDone sends with the lock held because disconnect may close doneAck.
func (r *RemoteRecorder) handleDone(msg ClientMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doneAck == nil {
		return
	}
	select {
	case r.doneAck <- msg.Format:
	default:
	}
}

func (r *RemoteRecorder) disconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.startAck != nil {
		select {
		case r.startAck <- errDisconnected:
		default:
		}
	}
	if r.doneAck != nil {
		close(r.doneAck)
		r.doneAck = nil
	}
}

func wait(ctx context.Context, ch <-chan error, timeout time.Duration, what string) error {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case err := <-ch:
		return err
	case <-t.C:
		return fmt.Errorf("client did not send %s within %s", what, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func waitValue(ctx context.Context, ch <-chan string, timeout time.Duration, what string) (string, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case v, ok := <-ch:
		if !ok {
			return "", errDisconnected
		}
		return v, nil
	case <-t.C:
		return "", fmt.Errorf("client did not send %s within %s", what, timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
