package script

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/abhisek/lingo/internal/llm"
)

// LLMProvider generates dialogue scripts with an LLM.
type LLMProvider struct {
	provider llm.Provider
	config   Config
	logger   *zap.Logger
}

// NewLLMProvider creates a script provider backed by an LLM.
func NewLLMProvider(provider llm.Provider, cfg Config, logger *zap.Logger) *LLMProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMProvider{provider: provider, config: cfg, logger: logger}
}

type dialogueOutput struct {
	Title string    `json:"title"`
	Lines []RawLine `json:"lines"`
}

// Request generates a dialogue for topic.
func (p *LLMProvider) Request(ctx context.Context, topic string, durationHint time.Duration, contextDescription string) ([]Line, error) {
	ctx = llm.WithPurpose(ctx, llm.PurposeScript)
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	req := llm.Request{
		System:      systemPrompt,
		Prompt:      buildUserMessage(topic, durationHint, contextDescription, p.config),
		Schema:      DialogueSchema,
		MaxTokens:   p.config.MaxTokens,
		Temperature: p.config.Temperature,
	}

	resp, err := p.provider.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("dialogue generation: %w", err)
	}

	var out dialogueOutput
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("parse dialogue response: %w", err)
	}

	p.logger.Debug("dialogue generated",
		zap.String("topic", topic),
		zap.String("title", out.Title),
		zap.Int("lines", len(out.Lines)))

	return Normalize(out.Lines, p.logger)
}
