package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LINGO_GRACE_DELAY", "750ms")
	t.Setenv("LINGO_SCRIPT_FALLBACK", "false")
	t.Setenv("LINGO_VOICES", "Camarero=nova, Ana = shimmer,broken,=x")

	cfg := ConfigFromEnv()
	assert.Equal(t, 750*time.Millisecond, cfg.GraceDelay)
	assert.Nil(t, cfg.Fallback)
	assert.Equal(t, map[string]string{"Camarero": "nova", "Ana": "shimmer"}, cfg.Voices)
	require.NoError(t, cfg.Validate())
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("LINGO_GRACE_DELAY", "soon")
	t.Setenv("LINGO_SCRIPT_FALLBACK", "")
	t.Setenv("LINGO_VOICES", "")

	cfg := ConfigFromEnv()
	assert.Equal(t, DefaultConfig().GraceDelay, cfg.GraceDelay)
	assert.NotNil(t, cfg.Fallback)
	assert.Nil(t, cfg.Voices)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Speed = 5
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.GraceDelay = -1
	assert.Error(t, cfg.Validate())
}

func TestInvalidStateError_Message(t *testing.T) {
	err := &InvalidStateError{Op: "advance", Index: 3, State: StateAITurnPlaying, Reason: "line 2 is still playing"}
	assert.Equal(t, "advance line 3 rejected in state ai_turn_playing: line 2 is still playing", err.Error())

	err = &InvalidStateError{Op: "retry_transcription", Index: -1, State: StateIdle, Reason: "no transcription is awaiting retry"}
	assert.Equal(t, "retry_transcription rejected in state idle: no transcription is awaiting retry", err.Error())
}
