package llm

import (
	"context"
	"encoding/json"
)

// Provider is the core abstraction for LLM interaction. The practice engine
// only ever asks for structured JSON: a dialogue script for a topic.
type Provider interface {
	// Generate sends a prompt to the LLM and returns a structured response.
	// When req.Schema is set the provider uses its native structured output
	// mechanism and the returned Content has been validated against it.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model identifier this provider is configured to use.
	ModelID() string
}

// Request describes what to send to the LLM.
type Request struct {
	// System sets the model's role, e.g. dialogue writer for a learner level.
	System string

	// Prompt is the single user turn: topic, length and prior context for
	// script generation.
	Prompt string

	// Schema is the JSON Schema the response must conform to. When nil the
	// response Content is raw text as json.RawMessage.
	Schema *Schema

	MaxTokens int

	// Temperature controls randomness, 0.0 - 1.0. Zero means provider default.
	Temperature float64
}

// Schema defines the JSON structure expected from the LLM.
type Schema struct {
	// Name identifies this schema (tool name for Anthropic, schema name for
	// OpenAI). Kebab-case, e.g. "practice-dialogue".
	Name string

	Description string

	// Definition is the JSON Schema document as a map.
	Definition map[string]any
}

// Response holds the LLM's output.
type Response struct {
	Content json.RawMessage
	Usage   Usage

	// Model is the model that actually served the request.
	Model string

	// StopReason is StopEnd for every response a provider returns;
	// truncation surfaces as ErrMaxTokensExceeded instead.
	StopReason string
}

// StopEnd is the normalized reason for a complete response.
const StopEnd = "end"

// finish turns the text a model produced into a Response. Truncated text
// is never usable as a script, and schema requests are validated.
func finish(req Request, text string, truncated bool, usage Usage, model string) (*Response, error) {
	content := json.RawMessage(stripCodeFence(text))
	if truncated {
		return nil, &ErrMaxTokensExceeded{Content: content}
	}
	if req.Schema != nil {
		if err := validateResponse(req.Schema, content); err != nil {
			return nil, err
		}
	}
	return &Response{Content: content, Usage: usage, Model: model, StopReason: StopEnd}, nil
}

// Usage tracks token consumption for a single request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
