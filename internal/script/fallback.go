package script

import "fmt"

// Fallback returns the built-in practice script used when generation fails.
// The content is generic small talk framed around the topic so the session
// can still run; callers must flag that it was substituted.
func Fallback(topic string) []Line {
	if topic == "" {
		topic = "your day"
	}
	raw := []struct {
		speaker string
		text    string
		user    bool
	}{
		{"Partner", fmt.Sprintf("Hi there! Today let's talk about %s. Are you ready?", topic), false},
		{"You", "Yes, I'm ready. Let's start.", true},
		{"Partner", fmt.Sprintf("Great. What is the first thing that comes to mind about %s?", topic), false},
		{"You", "I think it is interesting because...", true},
		{"Partner", "That's a good point. Can you tell me a bit more?", false},
		{"You", "Sure. For example...", true},
		{"Partner", "Thanks for sharing. You did well today. See you next time!", false},
	}

	lines := make([]Line, len(raw))
	for i, r := range raw {
		lines[i] = Line{
			ID:         fmt.Sprintf("fallback-%d", i),
			Speaker:    r.speaker,
			Text:       r.text,
			IsUserTurn: r.user,
			Status:     StatusPending,
		}
	}
	return lines
}
