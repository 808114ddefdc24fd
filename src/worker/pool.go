package worker

import (
	"context"
	"runtime"
	"sync"

	"screen-select/src/screenshot"
	"screen-select/src/session"

	"github.com/kataras/golog"
)

// ResultCallback is invoked when an export finishes (from a worker goroutine).
// The event loop should pass a closure that posts back into the event loop safely.
type ResultCallback func(c screenshot.Capture, err error)

// Pool is a fixed-size export worker pool with a 1-slot input queue (strict back-pressure).
type Pool struct {
	jobs chan job
	wg   sync.WaitGroup
}

type job struct {
	ctx     context.Context
	capture screenshot.Capture
	target  session.ResultTarget
	cb      ResultCallback
}

// New creates a worker pool. Size defaults to NumCPU when size<=0. Queue is 1 slot.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	p := &Pool{jobs: make(chan job, 1)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				golog.Debugf("Worker: exporting %dx%d from screen %d", j.capture.Bounds.W, j.capture.Bounds.H, j.capture.ScreenID)
				err := deliverWithContext(j.ctx, j.capture, j.target)
				golog.Debugf("Worker: export finished, err=%v", err)
				if j.cb != nil {
					j.cb(j.capture, err)
				}
			}
		}()
	}
}

// Submit enqueues an export if the single-slot queue is free. Returns false if dropped.
func (p *Pool) Submit(ctx context.Context, c screenshot.Capture, target session.ResultTarget, cb ResultCallback) bool {
	select {
	case p.jobs <- job{ctx: ctx, capture: c, target: target, cb: cb}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}

// deliverWithContext runs target.OnSuccess but gives up waiting once ctx is done. The delivery
// itself keeps running in the background; file and clipboard writes cannot be interrupted.
func deliverWithContext(ctx context.Context, c screenshot.Capture, target session.ResultTarget) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); !ok {
		return target.OnSuccess(c)
	}
	resCh := make(chan error, 1)
	go func() {
		resCh <- target.OnSuccess(c)
	}()
	select {
	case err := <-resCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
