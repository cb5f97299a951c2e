package bridge

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config configures the websocket bridge.
type Config struct {
	Addr string

	// ReadLimit caps a single inbound frame.
	ReadLimit int64

	WriteTimeout time.Duration

	// CaptureStartTimeout bounds the wait for the browser to open its
	// microphone; CaptureStopTimeout the wait for the trailing audio.
	CaptureStartTimeout time.Duration
	CaptureStopTimeout  time.Duration

	// MaxCaptureBytes caps the audio kept for one user turn.
	MaxCaptureBytes int

	// DefaultDuration is used when a start command has no duration.
	DefaultDuration time.Duration

	// AllowedOrigins restricts websocket upgrades. Empty allows any origin.
	AllowedOrigins []string
}

// DefaultConfig returns the defaults used by `lingo serve`.
func DefaultConfig() Config {
	return Config{
		Addr:                ":8080",
		ReadLimit:           1 << 20,
		WriteTimeout:        5 * time.Second,
		CaptureStartTimeout: 10 * time.Second,
		CaptureStopTimeout:  5 * time.Second,
		MaxCaptureBytes:     10 << 20,
		DefaultDuration:     3 * time.Minute,
	}
}

// ConfigFromEnv reads LINGO_BRIDGE_ADDR and LINGO_BRIDGE_ORIGINS.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if a := os.Getenv("LINGO_BRIDGE_ADDR"); a != "" {
		cfg.Addr = a
	}
	if o := os.Getenv("LINGO_BRIDGE_ORIGINS"); o != "" {
		for _, origin := range strings.Split(o, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}
	return cfg
}

// Validate checks that every timeout and limit is usable.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("bridge address is required")
	}
	if c.ReadLimit <= 0 || c.MaxCaptureBytes <= 0 {
		return fmt.Errorf("bridge read limit and capture cap must be positive")
	}
	if c.WriteTimeout <= 0 || c.CaptureStartTimeout <= 0 || c.CaptureStopTimeout <= 0 {
		return fmt.Errorf("bridge timeouts must be positive")
	}
	return nil
}
