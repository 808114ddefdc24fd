package eventloop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"screen-select/src/config"
	"screen-select/src/hotkey"
	"screen-select/src/screenshot"
	"screen-select/src/session"
	"screen-select/src/tray"
	"screen-select/src/worker"

	"github.com/kataras/golog"
)

// ErrBusy is reported to a request that arrives while a selection or export is in flight.
var ErrBusy = errors.New("a selection is already in progress")

// DoneFunc receives the outcome of one requested selection. It runs on the loop goroutine.
type DoneFunc func(c screenshot.Capture, err error)

// Loop is the single-goroutine coordinator for resident mode: hotkey and tray triggers start a
// selection session on its own goroutine, finished selections come back here and go to the export
// pool, export results come back here too. The loop is busy from trigger to export result.
type Loop struct {
	capture        session.CaptureFunc
	target         session.ResultTarget
	pool           *worker.Pool
	busy           bool
	results        chan result
	selections     chan selection
	triggerCh      chan trigger
	defaultTooltip string
	deadline       time.Duration
}

type result struct {
	capture screenshot.Capture
	err     error
	cancel  context.CancelFunc
	target  session.ResultTarget
	done    DoneFunc
}

type trigger struct {
	target session.ResultTarget
	done   DoneFunc
}

type selection struct {
	trigger
	capture screenshot.Capture
	ok      bool
	err     error
}

// New creates a new event loop with defaults based on config.
// If cfg is nil or cfg.ExportDeadlineSec <= 0, a 10s export deadline is used.
func New(cfg *config.Config, capture session.CaptureFunc, target session.ResultTarget) *Loop {
	deadlineSec := config.DefaultExportDeadline
	if cfg != nil && cfg.ExportDeadlineSec > 0 {
		deadlineSec = cfg.ExportDeadlineSec
	}

	return &Loop{
		capture:        capture,
		target:         target,
		pool:           worker.New(1),
		results:        make(chan result, 1),
		selections:     make(chan selection, 1),
		triggerCh:      make(chan trigger, 4),
		defaultTooltip: "Screen Select",
		deadline:       time.Duration(deadlineSec) * time.Second,
	}
}

// SetDefaultTooltip optionally sets the tray tooltip base text.
func (l *Loop) SetDefaultTooltip(tt string) { l.defaultTooltip = tt }

func (l *Loop) setBusy(b bool) {
	l.busy = b
	if b {
		tray.UpdateTooltip("Screen Select: selecting...")
	} else {
		tray.UpdateTooltip(l.defaultTooltip)
	}
}

// Trigger asks the loop to start a selection. It never blocks; triggers beyond the queue are
// dropped.
func (l *Loop) Trigger() {
	l.Request(nil, nil)
}

// Request is Trigger with a per-request target, used for delegated invocations. A nil target
// means the loop's own; done, when set, is called exactly once with the outcome.
func (l *Loop) Request(target session.ResultTarget, done DoneFunc) {
	select {
	case l.triggerCh <- trigger{target: target, done: done}:
	default:
		golog.Debugf("Trigger: queue full, dropping")
		if done != nil {
			done(screenshot.Capture{}, ErrBusy)
		}
	}
}

// StartHotkey registers a global hotkey that triggers the loop.
func (l *Loop) StartHotkey(combo string) (func(), error) {
	if combo == "" {
		return func() {}, nil
	}
	return hotkey.Listen(combo, l.Trigger)
}

// Run processes triggers and export results until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if l.capture == nil || l.target == nil {
		return errors.New("event loop needs a capture function and a target")
	}
	defer l.pool.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-l.triggerCh:
			l.handleTrigger(ctx, t)
		case sel := <-l.selections:
			l.handleSelection(ctx, sel)
		case res := <-l.results:
			l.handleResult(res)
		}
	}
}

func (l *Loop) handleTrigger(ctx context.Context, t trigger) {
	if l.busy {
		golog.Infof("handleTrigger: busy, skipping")
		t.finish(screenshot.Capture{}, ErrBusy)
		return
	}

	l.setBusy(true)
	go func() {
		c, ok, err := l.capture(ctx)
		l.selections <- selection{trigger: t, capture: c, ok: ok, err: err}
	}()
}

func (l *Loop) handleSelection(ctx context.Context, sel selection) {
	target := sel.target
	if target == nil {
		target = l.target
	}

	if sel.err != nil {
		golog.Errorf("handleSelection: selection error: %v", sel.err)
		_ = target.OnFailure(sel.err)
		l.setBusy(false)
		tray.UpdateTooltip(fmt.Sprintf("%s (last selection failed)", l.defaultTooltip))
		sel.finish(screenshot.Capture{}, sel.err)
		return
	}
	if !sel.ok {
		golog.Infof("handleSelection: selection cancelled")
		l.setBusy(false)
		sel.finish(screenshot.Capture{}, session.ErrSelectionCancelled)
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, l.deadline)
	tray.UpdateTooltip("Screen Select: exporting...")
	submitted := l.pool.Submit(jobCtx, sel.capture, target, func(c screenshot.Capture, err error) {
		l.results <- result{capture: c, err: err, cancel: cancel, target: target, done: sel.done}
	})
	if !submitted {
		cancel()
		l.setBusy(false)
		golog.Infof("handleSelection: export queue full, dropping capture")
		sel.finish(screenshot.Capture{}, ErrBusy)
	}
}

func (t trigger) finish(c screenshot.Capture, err error) {
	if t.done != nil {
		t.done(c, err)
	}
}

func (l *Loop) handleResult(res result) {
	defer func() {
		l.setBusy(false)
		if res.cancel != nil {
			res.cancel()
		}
		if res.done != nil {
			res.done(res.capture, res.err)
		}
	}()

	if res.err != nil {
		golog.Errorf("handleResult: export failed: %v", res.err)
		if res.target != nil {
			_ = res.target.OnFailure(res.err)
		}
		return
	}
	golog.Infof("handleResult: exported %s", session.FileName(res.capture))
}

// Deadline returns the configured export deadline for this loop.
func (l *Loop) Deadline() time.Duration { return l.deadline }
