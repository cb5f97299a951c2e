package script

import (
	"os"
	"time"
)

// Config controls dialogue generation.
type Config struct {
	// Language is the practice language, e.g. "English" or "Spanish".
	Language string

	// Level is the learner's CEFR level.
	Level string

	// SecondsPerTurn is the average spoken length of one turn, used to turn
	// a duration hint into a turn count.
	SecondsPerTurn time.Duration

	MinTurns int
	MaxTurns int

	MaxTokens   int
	Temperature float64

	// Timeout bounds one generation including retries. Zero means none.
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults for dialogue generation.
func DefaultConfig() Config {
	return Config{
		Language:       "English",
		Level:          "B1",
		SecondsPerTurn: 12 * time.Second,
		MinTurns:       4,
		MaxTurns:       30,
		MaxTokens:      2048,
		Temperature:    0.7,
		Timeout:        45 * time.Second,
	}
}

// ConfigFromEnv applies LINGO_LANGUAGE and LINGO_LEVEL to the defaults.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if l := os.Getenv("LINGO_LANGUAGE"); l != "" {
		cfg.Language = l
	}
	if l := os.Getenv("LINGO_LEVEL"); l != "" {
		cfg.Level = l
	}
	return cfg
}
