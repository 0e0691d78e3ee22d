package board

import (
	"context"
	"time"

	clk "github.com/benbjohnson/clock"
)

// Vision reports what the camera sees. ok is false when no board was
// detected in the current frame.
type Vision interface {
	Detect() (obs Observation, ok bool)
}

// VisionFunc adapts a function to Vision
type VisionFunc func() (Observation, bool)

// Detect calls f
func (f VisionFunc) Detect() (Observation, bool) {
	return f()
}

// Feed hands observations from the vision goroutine to the game. It holds
// nothing: a publish only succeeds while the consumer is waiting, so the
// consumer always gets a fresh frame instead of a backlog.
type Feed struct {
	ch chan Observation
}

// NewFeed creates an empty feed
func NewFeed() *Feed {
	return &Feed{ch: make(chan Observation)}
}

// Publish offers obs to a waiting consumer and reports whether it was taken
func (f *Feed) Publish(obs Observation) bool {
	select {
	case f.ch <- obs:
		return true
	default:
		return false
	}
}

// Next waits for the next published observation
func (f *Feed) Next(ctx context.Context) (Observation, error) {
	select {
	case obs := <-f.ch:
		return obs, nil
	case <-ctx.Done():
		return Observation{}, ctx.Err()
	}
}

// RunFeed polls v and publishes every detection until ctx is done. interval
// paces the polling.
func RunFeed(ctx context.Context, v Vision, f *Feed, interval time.Duration, clock clk.Clock) error {
	if clock == nil {
		clock = clk.New()
	}
	for {
		if obs, ok := v.Detect(); ok {
			f.Publish(obs)
		}
		t := clock.Timer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
