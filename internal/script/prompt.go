package script

import (
	"fmt"
	"strings"
	"time"
)

const systemPrompt = `You write short spoken practice dialogues for language learners. The learner plays one role and an AI partner plays the other. Lines must sound natural when read aloud.`

// turnsFor estimates how many turns fit in the requested duration.
func turnsFor(d time.Duration, cfg Config) int {
	if d <= 0 {
		return cfg.MinTurns
	}
	n := int(d / cfg.SecondsPerTurn)
	if n < cfg.MinTurns {
		n = cfg.MinTurns
	}
	if n > cfg.MaxTurns {
		n = cfg.MaxTurns
	}
	return n
}

func buildUserMessage(topic string, durationHint time.Duration, contextDescription string, cfg Config) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Topic: %s\n", topic))
	b.WriteString(fmt.Sprintf("Language: %s\n", cfg.Language))
	b.WriteString(fmt.Sprintf("Learner level: %s\n", cfg.Level))
	b.WriteString(fmt.Sprintf("Number of turns: %d\n", turnsFor(durationHint, cfg)))

	if c := strings.TrimSpace(contextDescription); c != "" {
		b.WriteString("\nEarlier conversation:\n")
		b.WriteString(c)
		b.WriteString("\n")
	}

	b.WriteString(`
Instructions:
1. Alternate between the AI partner and the learner. The first line is spoken by the AI partner.
2. Mark every learner line with is_user_turn=true and use the speaker label "You".
3. For learner lines, write a short example of what the learner could say. It is shown as a hint and replaced by what they actually say.
4. Keep each line under 25 words. Use vocabulary suited to the learner level.
5. End the conversation naturally with an AI line.
6. If an earlier conversation is given, continue it instead of repeating it.`)

	return b.String()
}
