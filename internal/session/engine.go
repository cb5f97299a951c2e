// Package session implements the conversation practice engine: a state
// machine that walks a script line by line, speaking AI turns and
// capturing and transcribing user turns.
//
// All session state lives in one struct owned by Engine and is mutated only
// with Engine.mu held. Every blocking step (script generation, synthesis,
// playback, capture, transcription) runs outside the lock as a task stamped
// with the session epoch. Reset bumps the epoch, so a result that arrives
// after a reset is dropped instead of touching the next session.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/lingo/internal/audio"
	"github.com/abhisek/lingo/internal/history"
	"github.com/abhisek/lingo/internal/script"
	"github.com/abhisek/lingo/internal/settings"
	"github.com/abhisek/lingo/internal/speech"
)

// Deps are the collaborators an engine drives.
type Deps struct {
	Scripts     script.Provider
	Synth       speech.Synthesizer
	Transcriber speech.Transcriber
	Player      *audio.Controller
	Mic         *audio.Microphone
	Settings    *settings.Controller
}

// Engine runs at most one session at a time. Construct one per host.
type Engine struct {
	cfg         Config
	scripts     script.Provider
	synth       speech.Synthesizer
	transcriber speech.Transcriber
	player      *audio.Controller
	mic         *audio.Microphone
	settings    *settings.Controller
	logger      *zap.Logger

	mu       sync.Mutex
	sess     *sessionState
	epoch    uint64
	ctx      context.Context // cancelled by Reset
	cancel   context.CancelFunc
	inflight bool // one outstanding operation at a time
	subs     []*subscriber
	closed   bool

	tasks sync.WaitGroup
}

// New creates an idle engine.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Engine, error) {
	switch {
	case deps.Scripts == nil:
		return nil, errors.New("session: script provider is required")
	case deps.Synth == nil:
		return nil, errors.New("session: synthesizer is required")
	case deps.Transcriber == nil:
		return nil, errors.New("session: transcriber is required")
	case deps.Player == nil:
		return nil, errors.New("session: playback controller is required")
	case deps.Mic == nil:
		return nil, errors.New("session: microphone is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	if deps.Settings == nil {
		deps.Settings = settings.NewController(settings.Default())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:         cfg,
		scripts:     deps.Scripts,
		synth:       deps.Synth,
		transcriber: deps.Transcriber,
		player:      deps.Player,
		mic:         deps.Mic,
		settings:    deps.Settings,
		logger:      logger,
	}, nil
}

// Initialize starts a session for topic. See InitializeWithContext.
func (e *Engine) Initialize(ctx context.Context, topic string, durationHint time.Duration) error {
	return e.InitializeWithContext(ctx, topic, durationHint, "")
}

// InitializeWithContext requests a script and dispatches its first line. It
// blocks until the script is available; ctx bounds only the request.
//
// A provider failure is recovered with the fallback script and reported as
// a fallback_script notice. In strict mode (no fallback configured) the
// session moves to StateFailed and a *ScriptGenerationError is returned.
func (e *Engine) InitializeWithContext(ctx context.Context, topic string, durationHint time.Duration, contextDescription string) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrEngineClosed
	}
	if e.sess != nil {
		err := e.rejectLocked("initialize", -1, "a session is already active; reset first")
		e.mu.Unlock()
		return err
	}
	e.epoch++
	epoch := e.epoch
	e.ctx, e.cancel = context.WithCancel(context.Background())
	sessCtx := e.ctx
	e.sess = &sessionState{
		id:        uuid.NewString(),
		topic:     topic,
		current:   -1,
		state:     StateGenerating,
		history:   history.New(),
		startedAt: time.Now(),
	}
	e.inflight = true
	e.logger.Info("session started",
		zap.String("session_id", e.sess.id),
		zap.String("topic", topic),
		zap.Duration("duration_hint", durationHint))
	e.publishLocked(EventStateChanged, nil)
	e.mu.Unlock()

	reqCtx, reqCancel := context.WithCancel(sessCtx)
	stop := context.AfterFunc(ctx, reqCancel)
	lines, err := e.scripts.Request(reqCtx, topic, durationHint, contextDescription)
	stop()
	reqCancel()
	if err == nil {
		lines, err = script.Validate(lines)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.liveLocked(epoch) {
		return ErrSessionReset
	}
	e.inflight = false
	s := e.sess

	if err != nil && ctx.Err() != nil {
		e.resetLocked()
		return ctx.Err()
	}
	if err != nil {
		genErr := &ScriptGenerationError{Topic: topic, Err: err}
		if e.cfg.Fallback != nil {
			lines, err = script.Validate(e.cfg.Fallback(topic))
		}
		if e.cfg.Fallback == nil || err != nil {
			e.logger.Error("script generation failed", zap.String("topic", topic), zap.Error(genErr))
			s.endedAt = time.Now()
			e.setStateLocked(StateFailed)
			return genErr
		}
		s.fallback = true
		e.noticeLocked(NoticeFallbackScript, -1, genErr)
	}

	s.lines = lines
	s.voices = e.assignVoices(lines)
	e.dispatchLocked(0)
	return nil
}

// Advance dispatches line index. It is accepted only when index is the line
// after the current one, the current line is terminal and nothing is in
// flight; otherwise an *InvalidStateError is returned and nothing changes.
func (e *Engine) Advance(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.sess
	switch {
	case s == nil:
		return e.rejectLocked("advance", index, "no active session")
	case e.inflight:
		return e.rejectLocked("advance", index, "an operation is still outstanding")
	case index < 0 || index >= len(s.lines):
		return e.rejectLocked("advance", index, fmt.Sprintf("index out of range [0, %d)", len(s.lines)))
	case index != s.current+1:
		return e.rejectLocked("advance", index, fmt.Sprintf("next line is %d", s.current+1))
	case s.current >= 0 && !s.lines[s.current].Status.Terminal():
		return e.rejectLocked("advance", index,
			fmt.Sprintf("line %d is still %s", s.current, s.lines[s.current].Status))
	}
	e.dispatchLocked(index)
	return nil
}

// StartCapture opens the microphone for the waiting user line. A microphone
// failure marks the line failed, advances the session and is returned as a
// *CaptureError.
func (e *Engine) StartCapture() error {
	e.mu.Lock()
	if err := e.checkUserTurnLocked("start_capture"); err != nil {
		e.mu.Unlock()
		return err
	}
	s := e.sess
	if s.capturing {
		err := e.rejectLocked("start_capture", s.current, "microphone is already open")
		e.mu.Unlock()
		return err
	}
	if e.inflight {
		err := e.rejectLocked("start_capture", s.current, "an operation is still outstanding")
		e.mu.Unlock()
		return err
	}
	e.inflight = true
	ctx, epoch, index := e.ctx, e.epoch, s.current
	e.mu.Unlock()

	return e.openMic(ctx, epoch, index)
}

// StopCapture seals the recording and hands it to the transcriber. The
// transcript is applied asynchronously.
func (e *Engine) StopCapture() error {
	e.mu.Lock()
	if err := e.checkUserTurnLocked("stop_capture"); err != nil {
		e.mu.Unlock()
		return err
	}
	s := e.sess
	if !s.capturing {
		err := e.rejectLocked("stop_capture", s.current, "microphone is not open")
		e.mu.Unlock()
		return err
	}
	s.capturing = false
	e.inflight = true
	ctx, epoch, index := e.ctx, e.epoch, s.current
	e.setStateLocked(StateUserTurnProcessing)
	e.mu.Unlock()

	rec, err := e.mic.Close(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.liveLocked(epoch) {
		return ErrSessionReset
	}
	if err != nil {
		e.inflight = false
		capErr := &CaptureError{Index: index, Err: err}
		e.failCaptureLocked(capErr)
		return capErr
	}
	e.goTask(func() { e.transcribe(ctx, epoch, index, rec) })
	return nil
}

// OnUserTranscriptReady completes the current user line with text produced
// outside the engine, for hosts that transcribe on their own. An empty text
// marks the line failed with MarkerUnintelligible. An open capture is
// discarded.
func (e *Engine) OnUserTranscriptReady(index int, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.sess
	switch {
	case s == nil:
		return e.rejectLocked("transcript", index, "no active session")
	case index != s.current:
		return e.rejectLocked("transcript", index, fmt.Sprintf("current line is %d", s.current))
	case !s.lines[index].IsUserTurn:
		return e.rejectLocked("transcript", index, "not a user turn")
	case s.lines[index].Status != script.StatusWaiting:
		return e.rejectLocked("transcript", index, fmt.Sprintf("line is %s", s.lines[index].Status))
	case e.inflight:
		return e.rejectLocked("transcript", index, "an operation is still outstanding")
	}
	if s.capturing {
		s.capturing = false
		e.releaseMicLocked()
	}
	s.pending = nil
	s.awaitingRetry = false
	e.completeUserLocked(index, text)
	return nil
}

// RetryTranscription resubmits the recording held after a failed
// transcription.
func (e *Engine) RetryTranscription() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.sess
	if s == nil || !s.awaitingRetry || s.pending == nil {
		idx := -1
		if s != nil {
			idx = s.current
		}
		return e.rejectLocked("retry_transcription", idx, "no transcription is awaiting retry")
	}
	rec, ctx, epoch, index := s.pending, e.ctx, e.epoch, s.current
	s.awaitingRetry = false
	e.inflight = true
	e.logger.Info("retrying transcription", zap.Int("index", index))
	e.publishLocked(EventLineUpdated, nil)
	e.goTask(func() { e.transcribe(ctx, epoch, index, rec) })
	return nil
}

// ToggleMute flips the mute flag and returns the new value. It applies from
// the next dispatched line.
func (e *Engine) ToggleMute() bool {
	muted := e.settings.ToggleMute()
	e.settingsChanged()
	return muted
}

// SetAutoplay applies from the next completed line.
func (e *Engine) SetAutoplay(on bool) {
	e.settings.SetAutoplay(on)
	e.settingsChanged()
}

// SetHandsFree applies from the next dispatched user line.
func (e *Engine) SetHandsFree(on bool) {
	e.settings.SetHandsFree(on)
	e.settingsChanged()
}

// Settings returns the current preferences.
func (e *Engine) Settings() settings.Settings {
	return e.settings.Get()
}

func (e *Engine) settingsChanged() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.publishLocked(EventSettingsChanged, nil)
}

// Reset cancels whatever is in flight, stops playback, releases the
// microphone and discards the session. Settings are kept. Safe in any state.
// It does not wait for the recorder to stop; the next capture does.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
}

// Close resets the engine, closes every subscription and waits for running
// tasks to wind down.
func (e *Engine) Close() {
	e.mu.Lock()
	e.resetLocked()
	e.closed = true
	for _, sub := range e.subs {
		close(sub.ch)
	}
	e.subs = nil
	e.mu.Unlock()

	e.tasks.Wait()
}

// Subscribe returns a channel of events and a function that ends the
// subscription. Events are dropped, with a warning, when the buffer is full.
func (e *Engine) Subscribe(buffer int) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, max(buffer, 1))}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	e.subs = append(e.subs, sub)

	return sub.ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if i := slices.Index(e.subs, sub); i >= 0 {
			e.subs = slices.Delete(e.subs, i, i+1)
			close(sub.ch)
		}
	}
}

// Snapshot returns a copy of the session, or an idle snapshot.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// History returns the spoken turns so far.
func (e *Engine) History() []history.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess == nil {
		return nil
	}
	return e.sess.history.Entries()
}

// ContextDescription renders the history as generation context for a
// follow-up session.
func (e *Engine) ContextDescription() string {
	return history.Describe(e.History())
}

func (e *Engine) dispatchLocked(index int) {
	s := e.sess
	s.current = index
	line := s.lines[index]
	set := e.settings.Get()
	ctx, epoch := e.ctx, e.epoch

	if line.IsUserTurn {
		e.markLocked(index, script.StatusWaiting)
		e.setStateLocked(StateUserTurnWaiting)
		if set.HandsFree {
			e.inflight = true
			e.goTask(func() { _ = e.openMic(ctx, epoch, index) })
		}
		return
	}

	e.markLocked(index, script.StatusPlaying)
	e.setStateLocked(StateAITurnPlaying)
	e.inflight = true
	voice := speech.Voice{ID: s.voices[line.Speaker], Speed: e.cfg.Speed}
	e.goTask(func() { e.speak(ctx, epoch, index, line.Text, voice, set.Muted) })
}

// speak synthesizes and plays one AI line. Failures are skipped: the line
// still completes after the grace delay.
func (e *Engine) speak(ctx context.Context, epoch uint64, index int, text string, voice speech.Voice, muted bool) {
	if muted {
		if sleepCtx(ctx, e.cfg.GraceDelay) != nil {
			return
		}
		e.finishAI(epoch, index)
		return
	}

	err := e.playLine(ctx, text, voice)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		e.mu.Lock()
		if e.liveLocked(epoch) {
			e.noticeLocked(NoticeSynthesisSkipped, index, &SynthesisError{Index: index, Err: err})
		}
		e.mu.Unlock()
		if sleepCtx(ctx, e.cfg.GraceDelay) != nil {
			return
		}
	}
	e.finishAI(epoch, index)
}

func (e *Engine) playLine(ctx context.Context, text string, voice speech.Voice) error {
	clip, err := e.synth.Synthesize(ctx, text, voice)
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	if clip.ID == "" {
		clip.ID = uuid.NewString()
	}
	if err := <-e.player.Play(ctx, clip); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	return nil
}

func (e *Engine) finishAI(epoch uint64, index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.liveLocked(epoch) {
		return
	}
	e.inflight = false
	e.completeLocked(index, script.StatusCompleted, e.sess.lines[index].Text)
}

// openMic opens the microphone for line index. It backs both the manual
// trigger and hands-free arming.
func (e *Engine) openMic(ctx context.Context, epoch uint64, index int) error {
	err := e.mic.Open(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.liveLocked(epoch) {
		// Reset cancels ctx before detaching the microphone, so an Open
		// that succeeded was already detached by that reset.
		return ErrSessionReset
	}
	e.inflight = false
	if err != nil {
		capErr := &CaptureError{Index: index, Err: err}
		e.failCaptureLocked(capErr)
		return capErr
	}
	e.sess.capturing = true
	e.logger.Debug("microphone open", zap.Int("index", index))
	e.publishLocked(EventLineUpdated, nil)
	return nil
}

func (e *Engine) failCaptureLocked(capErr *CaptureError) {
	e.sess.capturing = false
	e.releaseMicLocked()
	e.noticeLocked(NoticeCaptureFailed, capErr.Index, capErr)
	e.completeLocked(capErr.Index, script.StatusFailed, MarkerNoResponse)
}

func (e *Engine) transcribe(ctx context.Context, epoch uint64, index int, rec *audio.Recording) {
	text, err := e.transcriber.Transcribe(ctx, rec)

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.liveLocked(epoch) {
		e.logger.Debug("discarding late transcription", zap.Int("index", index))
		return
	}
	e.inflight = false
	s := e.sess
	if err != nil {
		// Keep the recording; the learner's answer is lost otherwise.
		s.pending = rec
		s.awaitingRetry = true
		e.noticeLocked(NoticeTranscriptionFailed, index, &TranscriptionError{
			Index:     index,
			Retryable: speech.IsRetryable(err),
			Err:       err,
		})
		return
	}
	s.pending = nil
	s.awaitingRetry = false
	e.completeUserLocked(index, text)
}

func (e *Engine) completeUserLocked(index int, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		e.logger.Info("empty transcript, marking line unintelligible", zap.Int("index", index))
		e.completeLocked(index, script.StatusFailed, MarkerUnintelligible)
		return
	}
	e.completeLocked(index, script.StatusCompleted, text)
}

// completeLocked moves line index to a terminal status, records it in the
// history and decides what comes next.
func (e *Engine) completeLocked(index int, status script.Status, text string) {
	s := e.sess
	s.lines[index].Text = text
	if !e.markLocked(index, status) {
		return
	}
	line := s.lines[index]
	if err := s.history.Append(history.Entry{Speaker: line.Speaker, Text: line.Text, Sequence: index}); err != nil {
		e.logger.Error("history out of step with script", zap.Error(err))
	}
	if n := s.terminalCount(); n != s.history.Len() {
		e.logger.Error("history length differs from finished lines",
			zap.Int("history", s.history.Len()), zap.Int("finished", n))
	}

	if index == len(s.lines)-1 {
		s.endedAt = time.Now()
		e.setStateLocked(StateCompleted)
		e.logger.Info("session completed",
			zap.String("session_id", s.id),
			zap.Int("lines", len(s.lines)),
			zap.Bool("fallback", s.fallback))
		return
	}
	if e.settings.Get().Autoplay {
		e.dispatchLocked(index + 1)
		return
	}
	e.setStateLocked(StateReadyToAdvance)
}

func (e *Engine) checkUserTurnLocked(op string) error {
	s := e.sess
	if s == nil {
		return e.rejectLocked(op, -1, "no active session")
	}
	if s.state != StateUserTurnWaiting {
		return e.rejectLocked(op, s.current, "no user turn is waiting")
	}
	return nil
}

func (e *Engine) resetLocked() {
	e.epoch++
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.player.Cancel()
	e.releaseMicLocked()
	e.inflight = false
	if e.sess == nil {
		return
	}
	e.logger.Info("session reset", zap.String("session_id", e.sess.id), zap.String("state", string(e.sess.state)))
	e.sess = nil
	e.publishLocked(EventStateChanged, nil)
}

// releaseMicLocked detaches the microphone and stops the backend in a task,
// so recorder I/O never runs under e.mu.
func (e *Engine) releaseMicLocked() {
	if stop := e.mic.Detach(); stop != nil {
		e.goTask(stop)
	}
}

func (e *Engine) liveLocked(epoch uint64) bool {
	return e.sess != nil && e.epoch == epoch
}

func (e *Engine) setStateLocked(st State) {
	s := e.sess
	if s.state == st {
		return
	}
	e.logger.Debug("session transition",
		zap.String("from", string(s.state)),
		zap.String("to", string(st)),
		zap.Int("index", s.current))
	s.state = st
	e.publishLocked(EventStateChanged, nil)
}

// markLocked applies a forward status transition. A backward move is a bug
// and is refused.
func (e *Engine) markLocked(index int, status script.Status) bool {
	l := &e.sess.lines[index]
	if !l.Status.CanMoveTo(status) {
		e.logger.Error("illegal line transition",
			zap.Int("index", index),
			zap.String("from", string(l.Status)),
			zap.String("to", string(status)))
		return false
	}
	l.Status = status
	e.publishLocked(EventLineUpdated, nil)
	return true
}

func (e *Engine) noticeLocked(kind NoticeKind, index int, err error) {
	e.logger.Warn("session notice", zap.String("kind", string(kind)), zap.Int("index", index), zap.Error(err))
	e.publishLocked(EventNotice, &Notice{Kind: kind, Index: index, Message: err.Error(), Err: err})
}

func (e *Engine) rejectLocked(op string, index int, reason string) error {
	st := StateIdle
	if e.sess != nil {
		st = e.sess.state
	}
	err := &InvalidStateError{Op: op, Index: index, State: st, Reason: reason}
	e.logger.Error("invalid session operation", zap.Error(err))
	e.publishLocked(EventNotice, &Notice{Kind: NoticeInvalidState, Index: index, Message: err.Error(), Err: err})
	return err
}

func (e *Engine) publishLocked(kind EventKind, n *Notice) {
	if len(e.subs) == 0 {
		return
	}
	ev := Event{Kind: kind, Snapshot: e.snapshotLocked(), Notice: n}
	for _, sub := range e.subs {
		select {
		case sub.ch <- ev:
		default:
			sub.dropped++
			e.logger.Warn("subscriber too slow, dropping event",
				zap.String("kind", string(kind)), zap.Int("dropped", sub.dropped))
		}
	}
}

func (e *Engine) snapshotLocked() Snapshot {
	snap := Snapshot{CurrentIndex: -1, State: StateIdle, Settings: e.settings.Get()}
	s := e.sess
	if s == nil {
		return snap
	}
	snap.ID = s.id
	snap.Topic = s.topic
	snap.Lines = slices.Clone(s.lines)
	snap.CurrentIndex = s.current
	snap.State = s.state
	snap.FallbackUsed = s.fallback
	snap.Capturing = s.capturing
	snap.AwaitingRetry = s.awaitingRetry
	snap.StartedAt = s.startedAt
	snap.EndedAt = s.endedAt
	return snap
}

// assignVoices gives every AI speaker a stable voice: configured voices
// first, then the synthesizer palette in order of first appearance.
func (e *Engine) assignVoices(lines []script.Line) map[string]string {
	voices := make(map[string]string)
	palette := e.synth.Voices()
	next := 0
	for _, l := range lines {
		if l.IsUserTurn {
			continue
		}
		if _, ok := voices[l.Speaker]; ok {
			continue
		}
		if v, ok := e.cfg.Voices[l.Speaker]; ok {
			voices[l.Speaker] = v
			continue
		}
		if len(palette) > 0 {
			voices[l.Speaker] = palette[next%len(palette)]
			next++
		}
	}
	return voices
}

func (e *Engine) goTask(f func()) {
	e.tasks.Add(1)
	go func() {
		defer e.tasks.Done()
		f()
	}()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
