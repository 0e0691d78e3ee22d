package board

import (
	"context"
	"testing"
	"time"

	clk "github.com/benbjohnson/clock"
	"go.viam.com/test"
)

func TestFeedPublish(t *testing.T) {
	f := NewFeed()
	obs := Standard().Observe()

	// Nobody is waiting
	test.That(t, f.Publish(obs), test.ShouldBeFalse)

	got := make(chan Observation)
	go func() {
		o, err := f.Next(context.Background())
		if err == nil {
			got <- o
		}
	}()
	for !f.Publish(obs) {
		time.Sleep(time.Millisecond)
	}
	test.That(t, <-got, test.ShouldResemble, obs)
}

func TestFeedNextCancelled(t *testing.T) {
	f := NewFeed()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Next(ctx)
	test.That(t, err, test.ShouldEqual, context.Canceled)
}

func TestRunFeed(t *testing.T) {
	mc := clk.NewMock()
	f := NewFeed()
	want := Standard().Observe()
	frames := 0
	v := VisionFunc(func() (Observation, bool) {
		frames++
		// the first frames have no board in view
		if frames < 3 {
			return Observation{}, false
		}
		return want, true
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- RunFeed(ctx, v, f, 50*time.Millisecond, mc) }()

	got := make(chan Observation, 1)
	go func() {
		o, err := f.Next(ctx)
		if err == nil {
			got <- o
		}
	}()

	var obs Observation
	for waiting := true; waiting; {
		select {
		case obs = <-got:
			waiting = false
		default:
			mc.Add(50 * time.Millisecond)
		}
	}
	test.That(t, obs, test.ShouldResemble, want)

	cancel()
	test.That(t, <-done, test.ShouldEqual, context.Canceled)
}
