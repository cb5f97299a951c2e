package speech

import (
	"fmt"

	"go.uber.org/zap"
)

// NewSynthesizer builds the configured synthesizer wrapped with logging.
func NewSynthesizer(cfg Config, logger *zap.Logger, obs Observer) (Synthesizer, error) {
	var base Synthesizer
	switch cfg.TTSProvider {
	case "openai":
		s, err := NewOpenAISynthesizer(cfg.OpenAI)
		if err != nil {
			return nil, fmt.Errorf("initializing openai synthesizer: %w", err)
		}
		base = s
	case "polly":
		base = NewPollySynthesizer(cfg.Polly, nil)
	case "mock":
		base = NewMockSynthesizer()
	default:
		return nil, fmt.Errorf("unknown TTS provider: %q", cfg.TTSProvider)
	}
	return WithSynthLogging(base, cfg.Timeout, logger, obs), nil
}

// NewTranscriber builds the configured transcriber wrapped with logging.
func NewTranscriber(cfg Config, logger *zap.Logger, obs Observer) (Transcriber, error) {
	var base Transcriber
	switch cfg.STTProvider {
	case "openai":
		t, err := NewOpenAITranscriber(cfg.OpenAI)
		if err != nil {
			return nil, fmt.Errorf("initializing openai transcriber: %w", err)
		}
		base = t
	case "mock":
		base = NewMockTranscriber()
	default:
		return nil, fmt.Errorf("unknown STT provider: %q", cfg.STTProvider)
	}
	return WithTranscribeLogging(base, cfg.Timeout, logger, obs), nil
}
