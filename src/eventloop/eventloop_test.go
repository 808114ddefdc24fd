package eventloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"screen-select/src/config"
	"screen-select/src/geometry"
	"screen-select/src/screenshot"
	"screen-select/src/session"
)

type recordingTarget struct {
	mu        sync.Mutex
	delivered []screenshot.Capture
	failures  []error
	done      chan struct{}
}

func newRecordingTarget() *recordingTarget {
	return &recordingTarget{done: make(chan struct{}, 8)}
}

func (r *recordingTarget) OnSuccess(c screenshot.Capture) error {
	r.mu.Lock()
	r.delivered = append(r.delivered, c)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func (r *recordingTarget) OnFailure(err error) error {
	r.mu.Lock()
	r.failures = append(r.failures, err)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func runLoop(t *testing.T, l *Loop) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	return func() {
		stop()
		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Run returned %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Run did not stop")
		}
	}
}

func waitFor(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for target")
	}
}

func TestTriggerExportsCapture(t *testing.T) {
	want := screenshot.Capture{ScreenID: 2, Bounds: geometry.Rect{X: 10, Y: 20, W: 30, H: 40}, PNG: []byte("png")}
	target := newRecordingTarget()
	l := New(nil, func(context.Context) (screenshot.Capture, bool, error) { return want, true, nil }, target)
	stop := runLoop(t, l)
	defer stop()

	l.Trigger()
	waitFor(t, target.done)

	target.mu.Lock()
	defer target.mu.Unlock()
	if len(target.delivered) != 1 || target.delivered[0].Bounds != want.Bounds {
		t.Errorf("delivered %+v", target.delivered)
	}
}

func TestSelectionErrorReportsFailure(t *testing.T) {
	boom := errors.New("no displays")
	target := newRecordingTarget()
	l := New(nil, func(context.Context) (screenshot.Capture, bool, error) { return screenshot.Capture{}, false, boom }, target)
	stop := runLoop(t, l)
	defer stop()

	l.Trigger()
	waitFor(t, target.done)

	target.mu.Lock()
	defer target.mu.Unlock()
	if len(target.failures) != 1 || !errors.Is(target.failures[0], boom) {
		t.Errorf("failures %v", target.failures)
	}
}

func TestCancelledSelectionIsQuiet(t *testing.T) {
	target := newRecordingTarget()
	calls := make(chan struct{}, 1)
	l := New(nil, func(context.Context) (screenshot.Capture, bool, error) {
		calls <- struct{}{}
		return screenshot.Capture{}, false, nil
	}, target)
	stop := runLoop(t, l)

	l.Trigger()
	waitFor(t, calls)
	stop()

	if len(target.delivered) != 0 || len(target.failures) != 0 {
		t.Errorf("cancelled selection reached the target: %+v %v", target.delivered, target.failures)
	}
}

func TestRequestUsesOwnTargetAndReportsDone(t *testing.T) {
	want := screenshot.Capture{ScreenID: 1, Bounds: geometry.Rect{W: 5, H: 5}, PNG: []byte("png")}
	loopTarget := newRecordingTarget()
	reqTarget := newRecordingTarget()
	l := New(nil, func(context.Context) (screenshot.Capture, bool, error) { return want, true, nil }, loopTarget)
	stop := runLoop(t, l)
	defer stop()

	done := make(chan error, 1)
	l.Request(reqTarget, func(c screenshot.Capture, err error) { done <- err })
	waitFor(t, reqTarget.done)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("done err = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("done never called")
	}
	loopTarget.mu.Lock()
	defer loopTarget.mu.Unlock()
	if len(loopTarget.delivered) != 0 {
		t.Error("request target override ignored")
	}
}

func TestRequestCancelledReportsDone(t *testing.T) {
	l := New(nil, func(context.Context) (screenshot.Capture, bool, error) { return screenshot.Capture{}, false, nil }, newRecordingTarget())
	stop := runLoop(t, l)
	defer stop()

	done := make(chan error, 1)
	l.Request(nil, func(c screenshot.Capture, err error) { done <- err })
	select {
	case err := <-done:
		if !errors.Is(err, session.ErrSelectionCancelled) {
			t.Errorf("done err = %v, want ErrSelectionCancelled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("done never called")
	}
}

func TestRequestDuringSelectionIsBusy(t *testing.T) {
	want := screenshot.Capture{ScreenID: 0, Bounds: geometry.Rect{W: 8, H: 8}, PNG: []byte("png")}
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	target := newRecordingTarget()
	l := New(nil, func(context.Context) (screenshot.Capture, bool, error) {
		started <- struct{}{}
		<-release
		return want, true, nil
	}, target)
	stop := runLoop(t, l)
	defer stop()

	first := make(chan error, 1)
	l.Request(nil, func(c screenshot.Capture, err error) { first <- err })
	waitFor(t, started)

	// The overlay is still open: every further request is refused at once.
	for i := 0; i < 6; i++ {
		second := make(chan error, 1)
		l.Request(nil, func(c screenshot.Capture, err error) { second <- err })
		select {
		case err := <-second:
			if !errors.Is(err, ErrBusy) {
				t.Fatalf("request %d during selection: err = %v, want ErrBusy", i, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("request %d during selection was not answered", i)
		}
	}

	close(release)
	select {
	case err := <-first:
		if err != nil {
			t.Errorf("first request err = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("first request never finished")
	}
	target.mu.Lock()
	n := len(target.delivered)
	target.mu.Unlock()
	if n != 1 {
		t.Errorf("delivered %d captures, want 1", n)
	}

	// Idle again: the next request starts a selection.
	l.Request(nil, nil)
	waitFor(t, started)
}

func TestNewDeadline(t *testing.T) {
	if got := New(nil, nil, nil).Deadline(); got != time.Duration(config.DefaultExportDeadline)*time.Second {
		t.Errorf("default deadline %v", got)
	}
	if got := New(&config.Config{ExportDeadlineSec: 3}, nil, nil).Deadline(); got != 3*time.Second {
		t.Errorf("configured deadline %v", got)
	}
	if err := New(nil, nil, nil).Run(context.Background()); err == nil {
		t.Error("Run without collaborators should fail")
	}
}
