package script

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrEmptyScript is returned when a provider yields no usable lines.
var ErrEmptyScript = errors.New("script has no lines")

// RawLine is a line as decoded from an external source, before the user
// turn flag has been made authoritative.
type RawLine struct {
	Speaker    string `json:"speaker"`
	Text       string `json:"text"`
	IsUserTurn *bool  `json:"is_user_turn"`
}

// Normalize converts raw lines into pending Lines. A line that omits the
// user turn flag is treated as an AI turn and a warning is logged; the
// speaker label is never used to guess.
func Normalize(raw []RawLine, logger *zap.Logger) ([]Line, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	lines := make([]Line, 0, len(raw))
	for i, r := range raw {
		text := strings.TrimSpace(r.Text)
		speaker := strings.TrimSpace(r.Speaker)
		isUser := false
		if r.IsUserTurn == nil {
			logger.Warn("script line missing is_user_turn, defaulting to AI turn",
				zap.Int("index", i), zap.String("speaker", speaker))
		} else {
			isUser = *r.IsUserTurn
		}
		if text == "" && !isUser {
			return nil, fmt.Errorf("line %d: AI line has no text", i)
		}
		if speaker == "" {
			if isUser {
				speaker = "You"
			} else {
				speaker = "Partner"
			}
		}
		lines = append(lines, Line{
			ID:         fmt.Sprintf("line-%d", i),
			Speaker:    speaker,
			Text:       text,
			IsUserTurn: isUser,
			Status:     StatusPending,
		})
	}
	if len(lines) == 0 {
		return nil, ErrEmptyScript
	}
	return lines, nil
}

// Validate checks lines returned by any provider and resets their status to
// pending. IDs are filled in where missing.
func Validate(lines []Line) ([]Line, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyScript
	}
	out := make([]Line, len(lines))
	seen := make(map[string]bool, len(lines))
	for i, l := range lines {
		if !l.IsUserTurn && strings.TrimSpace(l.Text) == "" {
			return nil, fmt.Errorf("line %d: AI line has no text", i)
		}
		if l.ID == "" || seen[l.ID] {
			l.ID = fmt.Sprintf("line-%d", i)
		}
		seen[l.ID] = true
		l.Status = StatusPending
		out[i] = l
	}
	return out, nil
}
