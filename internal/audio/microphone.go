package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrMicrophoneBusy is returned when a capture is already open or opening.
var ErrMicrophoneBusy = errors.New("microphone is already in use")

// ErrMicrophoneReleased is returned by Open when Release was called while
// the backend was still starting.
var ErrMicrophoneReleased = errors.New("microphone released while opening")

type micState int

const (
	micClosed micState = iota
	micOpening
	micOpen
	micClosing
)

// Microphone makes a Recorder an exclusive resource. Every path that opens
// the backend has exactly one matching Stop: Close for a normal end of
// turn, Detach or Release for everything else.
//
// A capture that was detached but whose backend has not stopped yet does
// not make the microphone busy: Open waits for it to wind down instead.
type Microphone struct {
	rec Recorder

	mu          sync.Mutex
	state       micState
	released    bool               // Detach ran while opening
	cancelStart context.CancelFunc // aborts a pending Start
	idle        chan struct{}      // closed when the state returns to micClosed
}

// NewMicrophone wraps a recorder backend.
func NewMicrophone(rec Recorder) *Microphone {
	return &Microphone{rec: rec}
}

// Open starts a capture. ctx bounds both the wait for a detached capture
// to finish and the backend Start.
func (m *Microphone) Open(ctx context.Context) error {
	startCtx, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	err = m.rec.Start(startCtx)

	m.mu.Lock()
	m.cancelStart()
	m.cancelStart = nil
	if m.released {
		m.state = micClosing
		m.mu.Unlock()
		if err == nil {
			_, _ = m.rec.Stop(context.Background())
		}
		m.setClosed()
		return ErrMicrophoneReleased
	}
	if err != nil {
		m.closedLocked()
		m.mu.Unlock()
		return fmt.Errorf("start capture: %w", err)
	}
	m.state = micOpen
	m.mu.Unlock()
	return nil
}

// acquire moves the microphone to opening, waiting out a detached capture
// that is still stopping.
func (m *Microphone) acquire(ctx context.Context) (context.Context, error) {
	for {
		m.mu.Lock()
		if err := ctx.Err(); err != nil {
			m.mu.Unlock()
			return nil, err
		}
		switch {
		case m.state == micClosed:
			startCtx, cancel := context.WithCancel(ctx)
			m.state = micOpening
			m.released = false
			m.cancelStart = cancel
			m.idle = make(chan struct{})
			m.mu.Unlock()
			return startCtx, nil
		case m.state == micOpen, m.state == micOpening && !m.released:
			m.mu.Unlock()
			return nil, ErrMicrophoneBusy
		}
		idle := m.idle
		m.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close ends the capture and returns the sealed recording.
func (m *Microphone) Close(ctx context.Context) (*Recording, error) {
	m.mu.Lock()
	if m.state != micOpen {
		m.mu.Unlock()
		return nil, errors.New("microphone is not open")
	}
	m.state = micClosing
	m.mu.Unlock()
	defer m.setClosed()

	rec, err := m.rec.Stop(ctx)
	if err != nil {
		return nil, fmt.Errorf("stop capture: %w", err)
	}
	return rec, nil
}

// Detach abandons the current capture without waiting on the backend. A
// pending Start is cancelled and its Open returns ErrMicrophoneReleased.
// For an open capture Detach returns the function that stops the backend;
// the caller must run it, typically off any lock it holds. Otherwise the
// result is nil.
func (m *Microphone) Detach() (stop func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case micOpen:
		m.state = micClosing
		return func() {
			_, _ = m.rec.Stop(context.Background())
			m.setClosed()
		}
	case micOpening:
		m.released = true
		m.cancelStart()
	}
	return nil
}

// Release stops and discards any capture, blocking until an open backend
// has stopped. It is safe in every state.
func (m *Microphone) Release() {
	if stop := m.Detach(); stop != nil {
		stop()
	}
}

// IsOpen reports whether the backend is capturing or about to.
func (m *Microphone) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != micClosed
}

func (m *Microphone) setClosed() {
	m.mu.Lock()
	m.closedLocked()
	m.mu.Unlock()
}

func (m *Microphone) closedLocked() {
	m.state = micClosed
	m.released = false
	if m.idle != nil {
		close(m.idle)
		m.idle = nil
	}
}
