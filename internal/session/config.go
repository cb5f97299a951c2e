package session

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/abhisek/lingo/internal/script"
)

// Config holds engine tunables.
type Config struct {
	// GraceDelay is how long a skipped or muted AI line waits before the
	// engine moves on, standing in for the time it would take to hear it.
	GraceDelay time.Duration

	// Fallback builds the script used when generation fails. Nil means
	// strict mode: a generation failure ends the session in StateFailed.
	Fallback func(topic string) []script.Line

	// Voices maps a speaker label to a synthesizer voice ID. Speakers not
	// listed get voices from the synthesizer's palette in order of first
	// appearance.
	Voices map[string]string

	// Speed is passed to the synthesizer with every line.
	Speed float64
}

// DefaultConfig returns a config with the built-in fallback script.
func DefaultConfig() Config {
	return Config{
		GraceDelay: 1500 * time.Millisecond,
		Fallback:   script.Fallback,
		Speed:      1.0,
	}
}

// ConfigFromEnv reads LINGO_GRACE_DELAY, LINGO_SCRIPT_FALLBACK and
// LINGO_VOICES ("Speaker=voice,Speaker=voice").
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("LINGO_GRACE_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.GraceDelay = d
		}
	}
	if v := os.Getenv("LINGO_SCRIPT_FALLBACK"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil && !on {
			cfg.Fallback = nil
		}
	}
	if v := os.Getenv("LINGO_VOICES"); v != "" {
		cfg.Voices = parseVoices(v)
	}
	return cfg
}

// Validate checks ranges.
func (c Config) Validate() error {
	if c.GraceDelay < 0 {
		return fmt.Errorf("grace delay must not be negative, got %s", c.GraceDelay)
	}
	if c.Speed < 0 || c.Speed > 4.0 {
		return fmt.Errorf("speed %.2f out of range [0, 4.0]", c.Speed)
	}
	return nil
}

func parseVoices(s string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		speaker, voice, ok := strings.Cut(pair, "=")
		speaker, voice = strings.TrimSpace(speaker), strings.TrimSpace(voice)
		if !ok || speaker == "" || voice == "" {
			continue
		}
		out[speaker] = voice
	}
	return out
}
