package speech

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config selects and configures the speech providers.
type Config struct {
	// TTSProvider is "openai", "polly" or "mock".
	TTSProvider string

	// STTProvider is "openai" or "mock".
	STTProvider string

	OpenAI OpenAIConfig
	Polly  PollyConfig

	// Speed applies to every synthesized line.
	Speed float64

	// Timeout bounds a single synthesis or transcription call.
	Timeout time.Duration
}

// OpenAIConfig configures the OpenAI speech and Whisper endpoints.
type OpenAIConfig struct {
	APIKey   string
	BaseURL  string
	TTSModel string // Default: "tts-1"
	STTModel string // Default: "whisper-1"

	// Language is an ISO-639-1 hint for transcription, e.g. "es".
	Language string
}

// PollyConfig configures Amazon Polly.
type PollyConfig struct {
	Region string
	Engine string // "neural" or "standard"
}

// DefaultConfig returns mock providers so the engine runs without keys.
func DefaultConfig() Config {
	return Config{
		TTSProvider: "mock",
		STTProvider: "mock",
		OpenAI: OpenAIConfig{
			TTSModel: "tts-1",
			STTModel: "whisper-1",
		},
		Polly: PollyConfig{
			Region: "us-east-1",
			Engine: "neural",
		},
		Speed:   1.0,
		Timeout: 30 * time.Second,
	}
}

// ConfigFromEnv reads LINGO_TTS_PROVIDER, LINGO_STT_PROVIDER and the
// provider settings. An OpenAI key alone switches both providers to openai.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	key := firstNonEmpty(os.Getenv("LINGO_OPENAI_API_KEY"), os.Getenv("OPENAI_API_KEY"))
	if key != "" {
		cfg.OpenAI.APIKey = key
		cfg.TTSProvider = "openai"
		cfg.STTProvider = "openai"
	}
	if p := os.Getenv("LINGO_TTS_PROVIDER"); p != "" {
		cfg.TTSProvider = strings.ToLower(p)
	}
	if p := os.Getenv("LINGO_STT_PROVIDER"); p != "" {
		cfg.STTProvider = strings.ToLower(p)
	}
	if u := os.Getenv("LINGO_OPENAI_BASE_URL"); u != "" {
		cfg.OpenAI.BaseURL = u
	}
	if m := os.Getenv("LINGO_TTS_MODEL"); m != "" {
		cfg.OpenAI.TTSModel = m
	}
	if m := os.Getenv("LINGO_STT_MODEL"); m != "" {
		cfg.OpenAI.STTModel = m
	}
	cfg.OpenAI.Language = os.Getenv("LINGO_STT_LANGUAGE")

	cfg.Polly.Region = firstNonEmpty(os.Getenv("LINGO_POLLY_REGION"), os.Getenv("AWS_REGION"), cfg.Polly.Region)
	if e := os.Getenv("LINGO_POLLY_ENGINE"); e != "" {
		cfg.Polly.Engine = e
	}

	if v := os.Getenv("LINGO_SPEECH_SPEED"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Speed = f
		}
	}
	return cfg
}

// Validate checks provider names and required credentials.
func (c Config) Validate() error {
	switch c.TTSProvider {
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("LINGO_OPENAI_API_KEY is required for openai speech synthesis")
		}
	case "polly", "mock":
	default:
		return fmt.Errorf("unknown TTS provider: %q", c.TTSProvider)
	}

	switch c.STTProvider {
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("LINGO_OPENAI_API_KEY is required for openai transcription")
		}
	case "mock":
	default:
		return fmt.Errorf("unknown STT provider: %q", c.STTProvider)
	}

	if c.Speed < 0.25 || c.Speed > 4.0 {
		return fmt.Errorf("speech speed %.2f out of range [0.25, 4.0]", c.Speed)
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
