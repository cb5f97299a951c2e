package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitResult(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("playback result not delivered")
		return nil
	}
}

func TestController_PlayCompletes(t *testing.T) {
	p := NewMockPlayer()
	c := NewController(p)

	err := waitResult(t, c.Play(context.Background(), &Clip{Text: "hello"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, p.Played())
	assert.False(t, c.Playing())
}

func TestController_NewClipCancelsPrevious(t *testing.T) {
	p := NewMockPlayer()
	p.Hold = true
	c := NewController(p)

	first := c.Play(context.Background(), &Clip{Text: "one"})
	require.Eventually(t, func() bool { return p.Active() == 1 }, time.Second, 5*time.Millisecond)

	second := c.Play(context.Background(), &Clip{Text: "two"})
	assert.ErrorIs(t, waitResult(t, first), context.Canceled)

	require.Eventually(t, func() bool { return p.Active() == 1 }, time.Second, 5*time.Millisecond)
	p.Finish()
	require.NoError(t, waitResult(t, second))
	assert.Equal(t, []string{"one", "two"}, p.Played())
}

func TestController_NeverOverlaps(t *testing.T) {
	p := NewMockPlayer()
	p.Hold = true
	c := NewController(p)

	var results []<-chan error
	for i := 0; i < 5; i++ {
		results = append(results, c.Play(context.Background(), &Clip{Text: "x"}))
		assert.LessOrEqual(t, p.Active(), 1)
	}
	c.Cancel()
	for _, r := range results {
		waitResult(t, r)
	}
	assert.Equal(t, 0, p.Active())
}

func TestController_CancelIdle(t *testing.T) {
	c := NewController(NewMockPlayer())
	c.Cancel()
	c.Cancel()
	assert.False(t, c.Playing())
}

func TestController_PlayerError(t *testing.T) {
	p := NewMockPlayer()
	p.Err = errors.New("device unplugged")
	c := NewController(p)

	err := waitResult(t, c.Play(context.Background(), &Clip{Text: "x"}))
	assert.EqualError(t, err, "device unplugged")
}

func TestMicrophone_OpenClose(t *testing.T) {
	rec := NewMockRecorder([]byte("pcm"))
	m := NewMicrophone(rec)

	require.NoError(t, m.Open(context.Background()))
	assert.True(t, m.IsOpen())
	assert.ErrorIs(t, m.Open(context.Background()), ErrMicrophoneBusy)

	r, err := m.Close(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte("pcm"), r.Audio)
	assert.False(t, m.IsOpen())
	assert.Equal(t, 1, rec.Starts())
	assert.Equal(t, 1, rec.Stops())
}

func TestMicrophone_StartFailureLeavesClosed(t *testing.T) {
	rec := NewMockRecorder(nil)
	rec.StartErr = errors.New("permission denied")
	m := NewMicrophone(rec)

	err := m.Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.False(t, m.IsOpen())
}

func TestMicrophone_ReleaseIsIdempotent(t *testing.T) {
	rec := NewMockRecorder(nil)
	m := NewMicrophone(rec)

	m.Release()
	require.NoError(t, m.Open(context.Background()))
	m.Release()
	m.Release()

	assert.False(t, m.IsOpen())
	assert.False(t, rec.Open())
	assert.Equal(t, 1, rec.Stops())
}

// slowRecorder blocks in Start until told to proceed.
type slowRecorder struct {
	*MockRecorder
	proceed chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (s *slowRecorder) Start(ctx context.Context) error {
	s.once.Do(func() { close(s.entered) })
	<-s.proceed
	return s.MockRecorder.Start(ctx)
}

func TestMicrophone_ReleaseWhileOpening(t *testing.T) {
	rec := &slowRecorder{
		MockRecorder: NewMockRecorder(nil),
		proceed:      make(chan struct{}),
		entered:      make(chan struct{}),
	}
	m := NewMicrophone(rec)

	errc := make(chan error, 1)
	go func() { errc <- m.Open(context.Background()) }()

	<-rec.entered
	m.Release()
	close(rec.proceed)

	assert.ErrorIs(t, <-errc, ErrMicrophoneReleased)
	assert.False(t, m.IsOpen())
	assert.False(t, rec.Open())
	assert.Equal(t, 1, rec.Stops())
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.PlayCommand = []string{"aplay"}
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.RecordCommand = nil
	assert.Error(t, cfg.Validate())
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LINGO_PLAY_CMD", "mpv --really-quiet {file}")
	cfg := ConfigFromEnv()
	assert.Equal(t, []string{"mpv", "--really-quiet", "{file}"}, cfg.PlayCommand)

	name, args := expand(cfg.PlayCommand, "/tmp/a.mp3")
	assert.Equal(t, "mpv", name)
	assert.Equal(t, []string{"--really-quiet", "/tmp/a.mp3"}, args)
}

func TestMicrophone_ReleaseCancelsPendingStart(t *testing.T) {
	rec := NewMockRecorder(nil)
	release := rec.BlockStart()
	defer release()
	m := NewMicrophone(rec)

	errc := make(chan error, 1)
	go func() { errc <- m.Open(context.Background()) }()
	require.Eventually(t, func() bool { return rec.Starts() == 1 }, time.Second, time.Millisecond)

	m.Release()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrMicrophoneReleased)
	case <-time.After(time.Second):
		t.Fatal("Open still blocked after Release")
	}
	assert.False(t, m.IsOpen())
	assert.False(t, rec.Open())
	assert.Equal(t, 0, rec.Stops())
}

func TestMicrophone_OpenWaitsForDetachedCapture(t *testing.T) {
	rec := NewMockRecorder(nil)
	m := NewMicrophone(rec)
	require.NoError(t, m.Open(context.Background()))

	release := rec.BlockStop()
	defer release()
	stop := m.Detach()
	require.NotNil(t, stop)
	go stop()

	errc := make(chan error, 1)
	go func() { errc <- m.Open(context.Background()) }()
	select {
	case err := <-errc:
		t.Fatalf("Open returned %v before the detached capture stopped", err)
	case <-time.After(30 * time.Millisecond):
	}

	release()
	require.NoError(t, <-errc)
	assert.True(t, rec.Open())
	assert.Equal(t, 1, rec.Stops())
	assert.Equal(t, 2, rec.Starts())
}

func TestMicrophone_OpenGivesUpWaitingWithContext(t *testing.T) {
	rec := NewMockRecorder(nil)
	m := NewMicrophone(rec)
	require.NoError(t, m.Open(context.Background()))

	release := rec.BlockStop()
	defer release()
	go m.Detach()()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Open(ctx), context.DeadlineExceeded)
}

func TestMicrophone_DetachWhenClosed(t *testing.T) {
	m := NewMicrophone(NewMockRecorder(nil))
	assert.Nil(t, m.Detach())
}
