package audio

import (
	"context"
	"sync"
)

// Controller plays at most one clip at a time. Starting a new clip cancels
// the unfinished one and waits for it to wind down first.
type Controller struct {
	player Player

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	done   chan struct{} // closed when the current playback returns
}

// NewController wraps a playback backend.
func NewController(p Player) *Controller {
	return &Controller{player: p}
}

// Play starts clip and returns a channel that receives exactly one value
// when playback ends: nil on completion, otherwise the error (ctx errors
// included when cancelled).
func (c *Controller) Play(ctx context.Context, clip *Clip) <-chan error {
	result := make(chan error, 1)

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	prev := c.done
	pctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.seq++
	id := c.seq
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()

		if prev != nil {
			<-prev
		}

		var err error
		if pctx.Err() != nil {
			err = pctx.Err()
		} else {
			err = c.player.Play(pctx, clip)
			if err == nil && pctx.Err() != nil {
				err = pctx.Err()
			}
		}

		c.mu.Lock()
		if c.seq == id {
			c.cancel = nil
		}
		c.mu.Unlock()

		result <- err
	}()

	return result
}

// Cancel stops the current playback, if any. Safe to call at any time.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Playing reports whether a clip is currently playing.
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}
