package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"screen-select/src/geometry"
	"screen-select/src/screenshot"
)

type funcTarget struct {
	onSuccess func(screenshot.Capture) error
}

func (f funcTarget) OnSuccess(c screenshot.Capture) error { return f.onSuccess(c) }
func (funcTarget) OnFailure(error) error                  { return nil }

func TestPoolDeliversAndCallsBack(t *testing.T) {
	p := New(1)
	defer p.Close()

	var delivered geometry.Rect
	done := make(chan error, 1)
	target := funcTarget{onSuccess: func(c screenshot.Capture) error {
		delivered = c.Bounds
		return nil
	}}
	c := screenshot.Capture{Bounds: geometry.Rect{X: 1, Y: 2, W: 3, H: 4}}
	if !p.Submit(context.Background(), c, target, func(_ screenshot.Capture, err error) { done <- err }) {
		t.Fatal("Submit rejected on an idle pool")
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("callback never ran")
	}
	if delivered != c.Bounds {
		t.Errorf("delivered %+v", delivered)
	}
}

func TestPoolBackPressure(t *testing.T) {
	p := New(1)
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var wg sync.WaitGroup
	blocking := funcTarget{onSuccess: func(screenshot.Capture) error {
		started <- struct{}{}
		<-release
		return nil
	}}
	cb := func(screenshot.Capture, error) { wg.Done() }

	wg.Add(1)
	if !p.Submit(context.Background(), screenshot.Capture{}, blocking, cb) {
		t.Fatal("first submit rejected")
	}
	<-started
	wg.Add(1)
	if !p.Submit(context.Background(), screenshot.Capture{}, blocking, cb) {
		t.Fatal("second submit should fill the queue slot")
	}
	if p.Submit(context.Background(), screenshot.Capture{}, blocking, nil) {
		t.Error("third submit should be dropped while worker and queue are busy")
	}
	close(release)
	wg.Wait()
	p.Close()
}

func TestDeliverWithContextDeadline(t *testing.T) {
	slow := funcTarget{onSuccess: func(screenshot.Capture) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	}}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := deliverWithContext(ctx, screenshot.Capture{}, slow); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	boom := errors.New("disk full")
	failing := funcTarget{onSuccess: func(screenshot.Capture) error { return boom }}
	if err := deliverWithContext(context.Background(), screenshot.Capture{}, failing); !errors.Is(err, boom) {
		t.Errorf("expected target error, got %v", err)
	}
}
