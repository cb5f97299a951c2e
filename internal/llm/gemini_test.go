package llm

import (
	"context"
	"testing"
)

func TestNewGeminiProvider_DefaultModel(t *testing.T) {
	if _, err := NewGeminiProvider(context.Background(), GeminiConfig{}); err == nil {
		t.Fatal("expected error without API key")
	}
	p, err := NewGeminiProvider(context.Background(), GeminiConfig{APIKey: "k"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ModelID() != DefaultGeminiModel {
		t.Fatalf("expected %q, got %q", DefaultGeminiModel, p.ModelID())
	}
}

func TestGeminiSchema_Dialogue(t *testing.T) {
	def := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{"type": "string"},
			"register": map[string]any{
				"type": "string",
				"enum": []any{"formal", "informal", "neutral"},
			},
			"lines": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"speaker":      map[string]any{"type": "string"},
						"text":         map[string]any{"type": "string"},
						"is_user_turn": map[string]any{"type": "boolean"},
					},
					"required": []any{"speaker", "text", "is_user_turn"},
				},
			},
		},
		"required": []any{"title", "lines"},
	}

	schema := geminiSchema(def)

	if schema.Type != "OBJECT" {
		t.Fatalf("expected OBJECT type, got %s", schema.Type)
	}
	if len(schema.Properties) != 3 {
		t.Fatalf("expected 3 properties, got %d", len(schema.Properties))
	}
	if len(schema.Properties["register"].Enum) != 3 {
		t.Fatalf("expected 3 enum values, got %d", len(schema.Properties["register"].Enum))
	}
	lines := schema.Properties["lines"]
	if lines.Type != "ARRAY" || lines.Items == nil || lines.Items.Type != "OBJECT" {
		t.Fatalf("expected ARRAY of OBJECT for lines, got %+v", lines)
	}
	if lines.Items.Properties["is_user_turn"].Type != "BOOLEAN" {
		t.Fatalf("expected BOOLEAN turn flag, got %s", lines.Items.Properties["is_user_turn"].Type)
	}
	if len(lines.Items.Required) != 3 || len(schema.Required) != 2 {
		t.Fatalf("unexpected required lists: %v / %v", lines.Items.Required, schema.Required)
	}
}

func TestGeminiSchema_UnknownTypeAndStringLists(t *testing.T) {
	schema := geminiSchema(map[string]any{
		"type":     "null",
		"enum":     []string{"a", "b"},
		"required": []any{"x", 3},
	})
	if schema.Type != "STRING" {
		t.Fatalf("expected STRING fallback, got %s", schema.Type)
	}
	if len(schema.Enum) != 2 || len(schema.Required) != 1 {
		t.Fatalf("unexpected lists: %v / %v", schema.Enum, schema.Required)
	}
}
