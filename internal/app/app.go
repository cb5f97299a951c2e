// Package app is the interactive terminal host of a practice session: a
// Bubble Tea model that shows the dialogue as it unfolds and maps keys to
// engine operations.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"go.uber.org/zap"

	"github.com/abhisek/lingo/internal/script"
	"github.com/abhisek/lingo/internal/session"
	"github.com/abhisek/lingo/internal/ui/theme"
)

// maxTranscript bounds the lines kept for display.
const maxTranscript = 500

// Archive keeps sessions between runs.
type Archive interface {
	// Save stores the engine's current session, if it has one.
	Save(ctx context.Context, engine *session.Engine)

	// PreviousContext describes the last saved session on topic, or "".
	PreviousContext(ctx context.Context, topic string) string
}

// Options configure a Model.
type Options struct {
	Topic    string
	Duration time.Duration

	// Styled colors the output.
	Styled bool
}

// Model drives one engine. Engine events arrive as messages, one at a
// time, so the transcript keeps their order.
type Model struct {
	engine  *session.Engine
	archive Archive
	logger  *zap.Logger
	opts    Options

	ctx         context.Context
	cancel      context.CancelFunc
	events      <-chan session.Event
	unsubscribe func()

	render     eventRenderer
	snap       session.Snapshot
	transcript []string
	input      textinput.Model
	typing     bool
	showHelp   bool
	width      int
	height     int

	quitting bool
	err      error
	summary  string
}

var _ tea.Model = (*Model)(nil)

// New subscribes to engine and returns a model ready to run. archive may
// be nil.
func New(engine *session.Engine, archive Archive, opts Options, logger *zap.Logger) *Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	events, unsubscribe := engine.Subscribe(256)
	ctx, cancel := context.WithCancel(context.Background())

	ti := textinput.New()
	ti.Placeholder = "Type your answer..."
	ti.CharLimit = 280

	return &Model{
		engine:      engine,
		archive:     archive,
		logger:      logger,
		opts:        opts,
		ctx:         ctx,
		cancel:      cancel,
		events:      events,
		unsubscribe: unsubscribe,
		render:      eventRenderer{styled: opts.Styled},
		snap:        engine.Snapshot(),
		input:       ti,
	}
}

// Close ends the subscription and cancels a pending script request.
func (m *Model) Close() {
	m.cancel()
	m.unsubscribe()
}

// Err returns the error that ended the session early, if any.
func (m *Model) Err() error { return m.err }

// Summary returns the closing line of a completed dialogue, or "".
func (m *Model) Summary() string { return m.summary }

// Quitting reports whether the model asked the program to exit.
func (m *Model) Quitting() bool { return m.quitting }

// Save stores the current session through the archive.
func (m *Model) Save() {
	if m.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m.archive.Save(ctx, m.engine)
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.waitForEvent(),
		m.initialize(),
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case engineEventMsg:
		return m.handleEvent(msg.Event)

	case eventsClosedMsg:
		return m, nil

	case initDoneMsg:
		return m.handleInit(msg)

	case commandDoneMsg:
		if msg.Err != nil {
			m.logger.Debug("command rejected", zap.String("command", msg.Op), zap.Error(msg.Err))
		}
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)
	}

	// Cursor blink and friends.
	if m.typing {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) waitForEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return engineEventMsg{Event: ev}
	}
}

// initialize requests a new dialogue, seeded with the last saved one on
// the same topic.
func (m *Model) initialize() tea.Cmd {
	ctx, archive, engine := m.ctx, m.archive, m.engine
	topic, duration := m.opts.Topic, m.opts.Duration
	return func() tea.Msg {
		var desc string
		if archive != nil {
			desc = archive.PreviousContext(ctx, topic)
		}
		return initDoneMsg{Err: engine.InitializeWithContext(ctx, topic, duration, desc)}
	}
}

func (m *Model) handleEvent(ev session.Event) (tea.Model, tea.Cmd) {
	m.snap = ev.Snapshot
	m.appendLines(m.render.render(ev)...)

	if ev.Kind == session.EventStateChanged && ev.Snapshot.State == session.StateCompleted && !m.quitting {
		m.summary = summarize(ev.Snapshot)
		m.appendLines(m.render.paint(theme.Title, m.summary))
		return m, m.quit()
	}
	return m, m.waitForEvent()
}

func (m *Model) handleInit(msg initDoneMsg) (tea.Model, tea.Cmd) {
	var genErr *session.ScriptGenerationError
	switch {
	case errors.As(msg.Err, &genErr):
		m.err = msg.Err
		return m, m.quit()
	case msg.Err != nil && !errors.Is(msg.Err, session.ErrSessionReset) && !errors.Is(msg.Err, context.Canceled):
		m.logger.Debug("initialize ended", zap.Error(msg.Err))
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, m.quit()
	}

	if m.typing {
		switch key {
		case "enter":
			m.submitTyped()
			return m, nil
		case "esc":
			m.stopTyping()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	snap := m.engine.Snapshot()
	var err error
	switch key {
	case "enter", "space":
		return m, m.primary(snap)
	case "t":
		m.typing = true
		m.input.Reset()
		return m, m.input.Focus()
	case "s":
		err = m.engine.OnUserTranscriptReady(snap.CurrentIndex, "")
	case "r":
		err = m.engine.RetryTranscription()
	case "m":
		m.engine.ToggleMute()
	case "a":
		m.engine.SetAutoplay(!snap.Settings.Autoplay)
	case "h":
		m.engine.SetHandsFree(!snap.Settings.HandsFree)
	case "n":
		m.Save()
		m.engine.Reset()
		return m, m.initialize()
	case "?":
		m.showHelp = !m.showHelp
	case "q", "esc":
		return m, m.quit()
	}
	if err != nil {
		m.logger.Debug("command rejected", zap.String("command", key), zap.Error(err))
	}
	return m, nil
}

// primary is the enter key: whatever moves the dialogue forward.
// Microphone calls can wait on the recorder, so they run as commands.
func (m *Model) primary(snap session.Snapshot) tea.Cmd {
	var err error
	switch {
	case snap.AwaitingRetry:
		err = m.engine.RetryTranscription()
	case snap.State == session.StateReadyToAdvance:
		err = m.engine.Advance(snap.CurrentIndex + 1)
	case snap.State == session.StateUserTurnWaiting && snap.Capturing:
		return m.engineCmd("stop_capture", m.engine.StopCapture)
	case snap.State == session.StateUserTurnWaiting:
		return m.engineCmd("start_capture", m.engine.StartCapture)
	case snap.State == session.StateIdle:
		return m.initialize()
	}
	if err != nil {
		m.logger.Debug("command rejected", zap.Error(err))
	}
	return nil
}

func (m *Model) engineCmd(op string, f func() error) tea.Cmd {
	return func() tea.Msg {
		return commandDoneMsg{Op: op, Err: f()}
	}
}

func (m *Model) submitTyped() {
	text := strings.TrimSpace(m.input.Value())
	m.stopTyping()
	if text == "" {
		return
	}
	snap := m.engine.Snapshot()
	if err := m.engine.OnUserTranscriptReady(snap.CurrentIndex, text); err != nil {
		m.logger.Debug("typed answer rejected", zap.Error(err))
	}
}

func (m *Model) stopTyping() {
	m.typing = false
	m.input.Blur()
	m.input.Reset()
}

// quit saves the session and ends the program. The pending script request,
// if any, is cancelled.
func (m *Model) quit() tea.Cmd {
	m.quitting = true
	m.Save()
	m.cancel()
	return tea.Quit
}

func (m *Model) appendLines(lines ...string) {
	m.transcript = append(m.transcript, lines...)
	if n := len(m.transcript) - maxTranscript; n > 0 {
		m.transcript = m.transcript[n:]
	}
}

func summarize(snap session.Snapshot) string {
	var spoken, missed int
	for _, l := range snap.Lines {
		if !l.IsUserTurn {
			continue
		}
		if l.Status == script.StatusCompleted {
			spoken++
		} else {
			missed++
		}
	}
	return fmt.Sprintf("Dialogue complete: %d of your turns answered, %d missed.", spoken, missed)
}
