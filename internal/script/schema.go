package script

import "github.com/abhisek/lingo/internal/llm"

// DialogueSchema defines the JSON schema for a generated practice dialogue.
var DialogueSchema = &llm.Schema{
	Name:        "practice-dialogue",
	Description: "A turn-based practice conversation between an AI partner and the learner",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{
				"type":        "string",
				"description": "Short title for the conversation (3-8 words)",
			},
			"lines": map[string]any{
				"type":        "array",
				"description": "Dialogue turns in speaking order",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"speaker": map[string]any{
							"type":        "string",
							"description": "Speaker label shown to the learner, e.g. Barista or You",
						},
						"text": map[string]any{
							"type":        "string",
							"description": "What the AI says, or for learner turns a short suggestion of what to say",
						},
						"is_user_turn": map[string]any{
							"type":        "boolean",
							"description": "True when the learner speaks this line",
						},
					},
					"required":             []any{"speaker", "text", "is_user_turn"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"title", "lines"},
		"additionalProperties": false,
	},
}
