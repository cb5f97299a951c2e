package speech

import (
	"context"
	"sync"
	"time"

	"github.com/abhisek/lingo/internal/audio"
)

// MockSynthesizer returns the text itself as clip data.
type MockSynthesizer struct {
	mu    sync.Mutex
	Err   error
	Delay time.Duration
	calls []string
	voice []Voice
}

// NewMockSynthesizer creates a synthesizer that always succeeds.
func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{}
}

func (m *MockSynthesizer) Name() string { return "mock" }

func (m *MockSynthesizer) Voices() []string { return []string{"mock-a", "mock-b"} }

func (m *MockSynthesizer) Synthesize(ctx context.Context, text string, voice Voice) (*audio.Clip, error) {
	m.mu.Lock()
	m.calls = append(m.calls, text)
	m.voice = append(m.voice, voice)
	err, delay := m.Err, m.Delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, err
	}
	return &audio.Clip{Text: text, Data: []byte(text), Format: "mp3"}, nil
}

// SetErr changes the error returned by later calls.
func (m *MockSynthesizer) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}

// Calls returns the texts synthesized so far.
func (m *MockSynthesizer) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// VoicesUsed returns the voice of every call, in order.
func (m *MockSynthesizer) VoicesUsed() []Voice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Voice(nil), m.voice...)
}

// MockResult is one canned transcription outcome.
type MockResult struct {
	Text string
	Err  error
}

// MockTranscriber returns canned results in FIFO order. Once the queue is
// empty it decodes the recording bytes as the transcript.
type MockTranscriber struct {
	mu      sync.Mutex
	results []MockResult
	calls   int
}

// NewMockTranscriber creates a transcriber with canned results.
func NewMockTranscriber(results ...MockResult) *MockTranscriber {
	return &MockTranscriber{results: results}
}

func (m *MockTranscriber) Name() string { return "mock" }

func (m *MockTranscriber) Transcribe(ctx context.Context, rec *audio.Recording) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(m.results) > 0 {
		r := m.results[0]
		m.results = m.results[1:]
		return r.Text, r.Err
	}
	if rec == nil {
		return "", nil
	}
	return string(rec.Audio), nil
}

// Push appends a canned result.
func (m *MockTranscriber) Push(r MockResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
}

// CallCount returns the number of Transcribe calls.
func (m *MockTranscriber) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
