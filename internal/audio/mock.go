package audio

import (
	"context"
	"sync"
	"time"
)

// MockPlayer is a deterministic Player for tests. By default every clip
// finishes immediately; set Hold to make playback block until Finish or
// cancellation.
type MockPlayer struct {
	mu      sync.Mutex
	Hold    bool
	Err     error
	played  []string
	active  int
	release chan struct{}
}

// NewMockPlayer creates a player that completes every clip at once.
func NewMockPlayer() *MockPlayer {
	return &MockPlayer{release: make(chan struct{})}
}

// Play records the clip text and returns when done.
func (m *MockPlayer) Play(ctx context.Context, clip *Clip) error {
	m.mu.Lock()
	m.played = append(m.played, clip.Text)
	m.active++
	hold, err, release := m.Hold, m.Err, m.release
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.active--
		m.mu.Unlock()
	}()

	if hold {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-release:
		}
	}
	return err
}

// Finish releases every held playback.
func (m *MockPlayer) Finish() {
	m.mu.Lock()
	defer m.mu.Unlock()
	close(m.release)
	m.release = make(chan struct{})
}

// Played returns the texts of all clips passed to Play, in order.
func (m *MockPlayer) Played() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.played))
	copy(out, m.played)
	return out
}

// Active returns the number of Play calls that have not returned.
func (m *MockPlayer) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// MockRecorder is a deterministic Recorder for tests.
type MockRecorder struct {
	mu        sync.Mutex
	StartErr  error
	StopErr   error
	Audio     []byte
	open      bool
	starts    int
	stops     int
	startGate chan struct{}
	stopGate  chan struct{}
}

// NewMockRecorder creates a recorder that returns audio on every Stop.
func NewMockRecorder(audio []byte) *MockRecorder {
	return &MockRecorder{Audio: audio}
}

// BlockStart makes Start wait until the returned function is called or
// the Start context ends. The function may be called more than once.
func (m *MockRecorder) BlockStart() (release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gate := make(chan struct{})
	m.startGate = gate
	return m.opener(gate, &m.startGate)
}

// BlockStop makes Stop wait until the returned function is called.
func (m *MockRecorder) BlockStop() (release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	gate := make(chan struct{})
	m.stopGate = gate
	return m.opener(gate, &m.stopGate)
}

func (m *MockRecorder) opener(gate chan struct{}, slot *chan struct{}) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if *slot == gate {
				*slot = nil
			}
			m.mu.Unlock()
			close(gate)
		})
	}
}

// Start opens the fake microphone.
func (m *MockRecorder) Start(ctx context.Context) error {
	m.mu.Lock()
	m.starts++
	gate := m.startGate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StartErr != nil {
		return m.StartErr
	}
	m.open = true
	return nil
}

// Stop closes the fake microphone.
func (m *MockRecorder) Stop(ctx context.Context) (*Recording, error) {
	m.mu.Lock()
	gate := m.stopGate
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	m.open = false
	if m.StopErr != nil {
		return nil, m.StopErr
	}
	now := time.Now()
	return &Recording{StartedAt: now, StoppedAt: now, Audio: m.Audio, Format: "wav"}, nil
}

// Open reports whether Start was called without a matching Stop.
func (m *MockRecorder) Open() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

// Starts returns the number of Start calls.
func (m *MockRecorder) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Stops returns the number of Stop calls.
func (m *MockRecorder) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}
