// Package session runs a multi-monitor selection: one overlay per monitor on a shared event loop,
// folded into a single authoritative region when the loop ends.
package session

import (
	"context"
	"errors"
	"fmt"

	"screen-select/src/geometry"
	"screen-select/src/overlay"
	"screen-select/src/toolkit"
	"screen-select/src/topology"

	"github.com/google/uuid"
	"github.com/kataras/golog"
)

// ErrSetup wraps every failure that prevents a session from starting: buffer allocation, window
// creation, event loop initialization.
var ErrSetup = errors.New("selection setup failed")

// ErrSelectionCancelled is what callers that need an error report for a cancelled session.
var ErrSelectionCancelled = errors.New("selection cancelled")

// NoActiveMonitor is the active-monitor index while no overlay has focus.
const NoActiveMonitor = -1

// Result is the selection in the winning monitor's real space. X1/Y1 is the top-left corner and
// X2/Y2 the bottom-right one; the box is never smaller than 1x1.
type Result struct {
	ScreenID    uint32
	X1          int
	Y1          int
	X2          int
	Y2          int
	ScaleFactor float32
}

// Rect is the selection as a monitor-relative real-space rectangle.
func (r Result) Rect() geometry.Rect {
	return geometry.RectToXYWH(r.X1, r.Y1, r.X2, r.Y2)
}

// RunSelectionSession shows an overlay on every screen and blocks until the user confirms,
// cancels or moves focus away from all overlays. The bool is false when the session ended without
// a selection. Only setup and event loop failures are errors.
func RunSelectionSession(ctx context.Context, driver toolkit.Driver, screens []topology.ScreenDescriptor, focal float32) (Result, bool, error) {
	res, _, ok, err := run(ctx, driver, screens, focal, overlay.DefaultStyle())
	return res, ok, err
}

type session struct {
	id          string
	controllers []*overlay.Controller
	byWindow    map[int]int
	active      int
}

type outcome int

const (
	outcomeRunning outcome = iota
	outcomeConfirmed
	outcomeCancelled
)

func run(ctx context.Context, driver toolkit.Driver, screens []topology.ScreenDescriptor, focal float32, style overlay.Style) (Result, topology.ScreenDescriptor, bool, error) {
	if len(screens) == 0 {
		return Result{}, topology.ScreenDescriptor{}, false, fmt.Errorf("%w: %w", ErrSetup, topology.ErrNoDisplays)
	}

	s := &session{
		id:       uuid.NewString(),
		byWindow: make(map[int]int, len(screens)),
		active:   NoActiveMonitor,
	}
	golog.Infof("SESSION %s: starting on %d screens, focal scale %v", s.id, len(screens), focal)

	for i, screen := range screens {
		c, err := overlay.New(driver, screen, focal, style)
		if err != nil {
			s.closeAll()
			return Result{}, topology.ScreenDescriptor{}, false, fmt.Errorf("%w: %w", ErrSetup, err)
		}
		s.controllers = append(s.controllers, c)
		s.byWindow[c.WindowID()] = i
	}
	defer s.closeAll()

	for _, c := range s.controllers {
		if err := c.Show(); err != nil {
			return Result{}, topology.ScreenDescriptor{}, false, fmt.Errorf("%w: %w", ErrSetup, err)
		}
	}

	state := outcomeRunning
	for state == outcomeRunning {
		events, err := driver.Wait(ctx)
		if err != nil {
			return Result{}, topology.ScreenDescriptor{}, false, fmt.Errorf("event loop failed: %w", err)
		}
		state = s.pass(events)
	}

	if state == outcomeCancelled {
		golog.Infof("SESSION %s: cancelled", s.id)
		return Result{}, topology.ScreenDescriptor{}, false, nil
	}

	res, screen, ok := s.resolve()
	if !ok {
		golog.Infof("SESSION %s: confirmed without a selection", s.id)
		return Result{}, topology.ScreenDescriptor{}, false, nil
	}
	golog.Infof("SESSION %s: screen %d (%d,%d)-(%d,%d) scale %v",
		s.id, res.ScreenID, res.X1, res.Y1, res.X2, res.Y2, res.ScaleFactor)
	return res, screen, true, nil
}

// pass dispatches one batch of events. Confirm and cancel end the session right after the event
// that raised them. A pass that saw an unfocus and leaves no overlay active cancels the session.
func (s *session) pass(events []toolkit.Event) outcome {
	sawUnfocus := false
	for _, ev := range events {
		i, ok := s.byWindow[ev.Window]
		if !ok {
			golog.Debugf("SESSION %s: %v for unknown window %d", s.id, ev.Kind, ev.Window)
			continue
		}
		switch s.controllers[i].Handle(ev) {
		case overlay.SignalFocused:
			s.active = i
		case overlay.SignalUnfocused:
			sawUnfocus = true
			if s.active == i {
				s.active = NoActiveMonitor
			}
		case overlay.SignalConfirm:
			return outcomeConfirmed
		case overlay.SignalCancel:
			return outcomeCancelled
		}
	}
	if sawUnfocus && s.active == NoActiveMonitor {
		golog.Debugf("SESSION %s: every overlay lost focus", s.id)
		return outcomeCancelled
	}
	return outcomeRunning
}

// resolve picks the last complete selection in screen order.
func (s *session) resolve() (Result, topology.ScreenDescriptor, bool) {
	found := -1
	for i, c := range s.controllers {
		if c.Selection().Complete() {
			found = i
		}
	}
	if found < 0 {
		return Result{}, topology.ScreenDescriptor{}, false
	}

	c := s.controllers[found]
	sel := c.Selection()
	screen := c.Screen()
	r := geometry.RectToXYWH(sel.Start.X, sel.Start.Y, sel.End.X, sel.End.Y)
	return Result{
		ScreenID:    screen.ID,
		X1:          r.X,
		Y1:          r.Y,
		X2:          r.X + r.W,
		Y2:          r.Y + r.H,
		ScaleFactor: screen.ScaleFactor,
	}, screen, true
}

func (s *session) closeAll() {
	for _, c := range s.controllers {
		if err := c.Close(); err != nil {
			golog.Debugf("SESSION %s: close screen %d: %v", s.id, c.Screen().Num, err)
		}
	}
	s.controllers = nil
}
