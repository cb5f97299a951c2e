// Package settings holds the practice playback preferences.
//
// The controller is a plain value holder. It has no side effects of its own:
// the session engine reads the current value each time it dispatches a line,
// so a change never interrupts a turn that is already running.
package settings

import (
	"os"
	"strconv"
	"sync"
)

// Settings are the user-facing practice toggles.
type Settings struct {
	// Autoplay advances to the next line as soon as the current one completes.
	Autoplay bool `json:"autoplay"`

	// HandsFree opens the microphone automatically when a user turn begins.
	HandsFree bool `json:"hands_free"`

	// Muted skips speech synthesis and playback for AI lines.
	Muted bool `json:"muted"`
}

// Default returns the settings a new learner starts with.
func Default() Settings {
	return Settings{Autoplay: true}
}

// FromEnv applies LINGO_AUTOPLAY, LINGO_HANDS_FREE and LINGO_MUTED to the
// defaults. Unparseable values are ignored.
func FromEnv() Settings {
	s := Default()
	envBool(&s.Autoplay, "LINGO_AUTOPLAY")
	envBool(&s.HandsFree, "LINGO_HANDS_FREE")
	envBool(&s.Muted, "LINGO_MUTED")
	return s
}

func envBool(dst *bool, key string) {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		*dst = v
	}
}

// Controller guards a Settings value for concurrent readers and writers.
type Controller struct {
	mu  sync.RWMutex
	cur Settings
}

// NewController creates a controller holding initial.
func NewController(initial Settings) *Controller {
	return &Controller{cur: initial}
}

// Get returns a copy of the current settings.
func (c *Controller) Get() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur
}

// SetAutoplay updates the autoplay flag.
func (c *Controller) SetAutoplay(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur.Autoplay = on
}

// SetHandsFree updates the hands-free flag.
func (c *Controller) SetHandsFree(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur.HandsFree = on
}

// ToggleMute flips the mute flag and returns the new value.
func (c *Controller) ToggleMute() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur.Muted = !c.cur.Muted
	return c.cur.Muted
}
