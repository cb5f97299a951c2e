package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	s := Default()
	assert.True(t, s.Autoplay)
	assert.False(t, s.HandsFree)
	assert.False(t, s.Muted)
}

func TestController(t *testing.T) {
	c := NewController(Default())

	c.SetAutoplay(false)
	c.SetHandsFree(true)
	assert.True(t, c.ToggleMute())
	assert.False(t, c.ToggleMute())
	assert.True(t, c.ToggleMute())

	assert.Equal(t, Settings{Autoplay: false, HandsFree: true, Muted: true}, c.Get())
}

func TestFromEnv(t *testing.T) {
	t.Setenv("LINGO_AUTOPLAY", "false")
	t.Setenv("LINGO_HANDS_FREE", "1")
	t.Setenv("LINGO_MUTED", "maybe")

	assert.Equal(t, Settings{Autoplay: false, HandsFree: true, Muted: false}, FromEnv())
}
