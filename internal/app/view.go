package app

import (
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"

	"github.com/abhisek/lingo/internal/script"
	"github.com/abhisek/lingo/internal/session"
	"github.com/abhisek/lingo/internal/ui/theme"
)

var helpLines = []string{
	"  enter  next line, start or stop speaking, retry",
	"  t      type your answer instead of speaking",
	"  s      skip your turn",
	"  r      retry transcription",
	"  m      mute or unmute the AI voices",
	"  a      toggle autoplay",
	"  h      toggle hands-free",
	"  n      start a new dialogue on the same topic",
	"  q      quit",
}

func (m *Model) View() tea.View {
	v := tea.NewView(m.content())
	v.AltScreen = true
	return v
}

// content lays out the header, the tail of the transcript that fits the
// window, and the key hints.
func (m *Model) content() string {
	header := []string{
		m.render.paint(theme.Title, "Lingo · "+m.opts.Topic),
		m.render.paint(theme.Hint, settingsLine(m.snap)),
		"",
	}

	var footer []string
	if m.showHelp {
		footer = append(footer, "")
		for _, l := range helpLines {
			footer = append(footer, m.render.paint(theme.Hint, l))
		}
	}
	footer = append(footer, "")
	if m.typing {
		footer = append(footer, m.render.paint(theme.Prompt, "> ")+m.input.View())
	}
	footer = append(footer, m.render.paint(theme.Hint, m.keyHints()))

	body := m.transcript
	if m.height > 0 {
		room := max(m.height-len(header)-len(footer), 0)
		if len(body) > room {
			body = body[len(body)-room:]
		}
	}

	parts := make([]string, 0, len(header)+len(body)+len(footer))
	parts = append(parts, header...)
	parts = append(parts, body...)
	parts = append(parts, footer...)
	return strings.Join(parts, "\n")
}

// keyHints names the keys that make sense right now.
func (m *Model) keyHints() string {
	snap := m.snap
	var first string
	switch {
	case m.typing:
		return "enter send · esc cancel"
	case snap.AwaitingRetry:
		first = "enter retry · t type · s skip"
	case snap.State == session.StateUserTurnWaiting && snap.Capturing:
		first = "enter stop recording"
	case snap.State == session.StateUserTurnWaiting:
		first = "enter speak · t type · s skip"
	case snap.State == session.StateReadyToAdvance:
		first = "enter next line"
	case snap.State == session.StateIdle:
		first = "enter start"
	}
	rest := "m mute · n new · ? help · q quit"
	if first == "" {
		return rest
	}
	return first + " · " + rest
}

func settingsLine(snap session.Snapshot) string {
	s := snap.Settings
	return fmt.Sprintf("[autoplay %s, hands-free %s, muted %s]", onOff(s.Autoplay), onOff(s.HandsFree), onOff(s.Muted))
}

// eventRenderer turns engine events into transcript lines. It remembers
// just enough to avoid repeating itself.
type eventRenderer struct {
	styled    bool
	capturing bool
}

func (r *eventRenderer) paint(style lipgloss.Style, s string) string {
	return theme.Paint(r.styled, style, s)
}

func (r *eventRenderer) render(ev session.Event) []string {
	snap := ev.Snapshot
	switch ev.Kind {
	case session.EventNotice:
		return []string{r.paint(theme.Notice, renderNotice(ev.Notice))}

	case session.EventSettingsChanged:
		return []string{r.paint(theme.Hint, "  "+settingsLine(snap))}

	case session.EventStateChanged:
		r.capturing = false
		switch snap.State {
		case session.StateGenerating:
			return []string{r.paint(theme.Title, fmt.Sprintf("Preparing a dialogue about %q...", snap.Topic))}
		case session.StateUserTurnProcessing:
			return []string{r.paint(theme.Hint, "  transcribing...")}
		case session.StateReadyToAdvance:
			return []string{r.paint(theme.Hint, "  (enter for the next line)")}
		case session.StateFailed:
			return []string{r.paint(theme.Notice, "Could not prepare a dialogue.")}
		case session.StateIdle:
			return []string{"Session reset."}
		}

	case session.EventLineUpdated:
		line, ok := snap.Current()
		if !ok {
			return nil
		}
		if snap.Capturing != r.capturing {
			r.capturing = snap.Capturing
			if snap.Capturing {
				return []string{r.paint(theme.Recording, "  ● recording, enter to stop")}
			}
		}
		switch line.Status {
		case script.StatusPlaying:
			return []string{"  " + r.paint(theme.Speaker, line.Speaker+":") + " " + line.Text}
		case script.StatusWaiting:
			if snap.Capturing || snap.AwaitingRetry || snap.State == session.StateUserTurnProcessing {
				return nil
			}
			return []string{r.paint(theme.Prompt, fmt.Sprintf("> %s (%s):", line.Speaker, line.Text)) +
				r.paint(theme.Hint, " enter to speak, t to type, s to skip")}
		case script.StatusCompleted:
			if line.IsUserTurn {
				return []string{r.paint(theme.Said, "  You said: "+line.Text)}
			}
		case script.StatusFailed:
			if line.IsUserTurn {
				return []string{r.paint(theme.Hint, "  "+line.Text)}
			}
		}
	}
	return nil
}

func renderNotice(n *session.Notice) string {
	switch n.Kind {
	case session.NoticeFallbackScript:
		return "  ! Dialogue generation failed; using a practice script instead."
	case session.NoticeSynthesisSkipped:
		return "  ! Could not speak this line."
	case session.NoticeCaptureFailed:
		return "  ! Microphone problem: " + n.Message
	case session.NoticeTranscriptionFailed:
		return "  ! Could not transcribe your answer. r to retry, t to type it, s to skip."
	default:
		return "  ! " + n.Message
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
