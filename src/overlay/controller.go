// Package overlay implements the per-monitor selection overlay: one window covering one monitor,
// the drag state machine behind it and the mask drawn into its off-screen buffer.
package overlay

import (
	"fmt"
	"image/color"

	"screen-select/src/geometry"
	"screen-select/src/toolkit"
	"screen-select/src/topology"

	"github.com/kataras/golog"
)

// Style controls how an overlay is painted and where its control group goes.
type Style struct {
	Background color.RGBA
	Mask       color.RGBA
	ButtonSize int
	ButtonGap  int
}

// DefaultStyle is a white canvas with a black mask under a 30% opaque window, and a pair of
// 30px buttons 10px apart.
func DefaultStyle() Style {
	return Style{
		Background: color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		Mask:       color.RGBA{A: 0xff},
		ButtonSize: 30,
		ButtonGap:  10,
	}
}

// Controller owns one overlay window and the selection made on it.
type Controller struct {
	screen topology.ScreenDescriptor
	focal  float32
	rate   float32
	style  Style

	win toolkit.Window
	buf *Buffer

	state   State
	sel     Selection
	current geometry.Point
}

// New allocates the off-screen buffer and creates the window for screen. Nothing is shown until
// Show is called.
func New(driver toolkit.Driver, screen topology.ScreenDescriptor, focal float32, style Style) (*Controller, error) {
	r := screen.RealRect
	buf, err := NewBuffer(r.W, r.H)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate buffer for screen %d: %w", screen.Num, err)
	}
	buf.Fill(style.Background)

	title := fmt.Sprintf("screen-select %d", screen.Num)
	win, err := driver.CreateWindow(toolkit.OverlayOptions(title, r, screen.Num, screen.ScaleFactor))
	if err != nil {
		return nil, fmt.Errorf("failed to create window for screen %d: %w", screen.Num, err)
	}

	c := &Controller{
		screen: screen,
		focal:  focal,
		rate:   geometry.EventRate(focal, screen.ScaleFactor),
		style:  style,
		win:    win,
		buf:    buf,
	}
	golog.Debugf("OVERLAY: window %d on screen num=%d id=%d rate=%v", win.ID(), screen.Num, screen.ID, c.rate)
	return c, nil
}

// Screen is the descriptor the controller was built for.
func (c *Controller) Screen() topology.ScreenDescriptor { return c.screen }

// WindowID is the id events for this controller carry.
func (c *Controller) WindowID() int { return c.win.ID() }

func (c *Controller) State() State { return c.state }

func (c *Controller) Selection() Selection { return c.sel }

// Show presents the empty canvas and maps the window.
func (c *Controller) Show() error {
	if err := c.win.Present(c.buf.Frame()); err != nil {
		return fmt.Errorf("failed to draw screen %d: %w", c.screen.Num, err)
	}
	if err := c.win.PlaceControls(geometry.Rect{}, false); err != nil {
		return fmt.Errorf("failed to hide controls on screen %d: %w", c.screen.Num, err)
	}
	return c.win.Show()
}

// Close destroys the window.
func (c *Controller) Close() error { return c.win.Close() }

// Handle applies one event addressed to this controller's window and reports what the session
// needs to know about it.
func (c *Controller) Handle(ev toolkit.Event) Signal {
	switch ev.Kind {
	case toolkit.EventPush:
		if ev.Button != toolkit.ButtonPrimary {
			return SignalNone
		}
		c.sel.Start = c.toReal(ev.Point)
		c.sel.HasStart = true
		c.sel.End = geometry.Point{}
		c.sel.HasEnd = false
		c.current = c.sel.Start
		c.state = StateDragging
		c.hideControls()
		c.redraw()
		golog.Debugf("OVERLAY: screen %d push at %v", c.screen.Num, c.sel.Start)

	case toolkit.EventDrag:
		if c.state != StateDragging {
			return SignalNone
		}
		c.current = c.toReal(ev.Point)
		c.redraw()

	case toolkit.EventRelease:
		if ev.Button != toolkit.ButtonPrimary || !c.sel.HasStart || c.state != StateDragging {
			return SignalNone
		}
		c.sel.End = c.toReal(ev.Point)
		c.sel.HasEnd = true
		c.current = c.sel.End
		c.state = StateCompleted
		c.redraw()
		c.showControls()
		golog.Debugf("OVERLAY: screen %d selection %v -> %v", c.screen.Num, c.sel.Start, c.sel.End)

	case toolkit.EventUnfocus:
		c.reset()
		return SignalUnfocused

	case toolkit.EventFocus:
		return SignalFocused

	case toolkit.EventKeyDown:
		switch ev.Key {
		case toolkit.KeyEscape:
			c.reset()
			return SignalCancel
		case toolkit.KeyEnter, toolkit.KeyKPEnter:
			return SignalConfirm
		}

	case toolkit.EventCancelClick, toolkit.EventClose:
		c.reset()
		return SignalCancel

	case toolkit.EventConfirmClick:
		return SignalConfirm
	}
	return SignalNone
}

// toReal moves an event point into this monitor's real space and keeps it on the monitor.
func (c *Controller) toReal(p geometry.Point) geometry.Point {
	return geometry.ClampPoint(geometry.ScalePoint(p, c.rate), c.screen.RealRect.W, c.screen.RealRect.H)
}

func (c *Controller) reset() {
	c.sel.Reset()
	c.current = geometry.Point{}
	c.state = StateIdle
	c.hideControls()
	c.redraw()
}

// redraw repaints the buffer from scratch and blits it. Draw failures are logged, the selection
// itself is unaffected.
func (c *Controller) redraw() {
	c.buf.Fill(c.style.Background)
	if c.sel.HasStart {
		xmin, ymin, xmax, ymax := geometry.BoundingBox(c.sel.Start, c.current)
		c.buf.FillRect(geometry.Rect{X: xmin, Y: ymin, W: xmax - xmin, H: ymax - ymin}, c.style.Mask)
	}
	if err := c.win.Present(c.buf.Frame()); err != nil {
		golog.Errorf("OVERLAY: screen %d present failed: %v", c.screen.Num, err)
	}
}

func (c *Controller) showControls() {
	_, _, xmax, ymax := geometry.BoundingBox(c.sel.Start, c.sel.End)
	r := ControlsRect(xmax, ymax, c.screen.RealRect.W, c.screen.RealRect.H, c.style)
	if err := c.win.PlaceControls(r, true); err != nil {
		golog.Errorf("OVERLAY: screen %d place controls failed: %v", c.screen.Num, err)
	}
}

func (c *Controller) hideControls() {
	if err := c.win.PlaceControls(geometry.Rect{}, false); err != nil {
		golog.Errorf("OVERLAY: screen %d hide controls failed: %v", c.screen.Num, err)
	}
}

// ControlsRect places the confirm/cancel group under the selection box's bottom-right corner
// (xmax, ymax), right-aligned with it. When that would leave a w x h monitor the group moves
// inside the box.
func ControlsRect(xmax, ymax, w, h int, st Style) geometry.Rect {
	gw := 2*st.ButtonSize + st.ButtonGap
	gh := st.ButtonSize

	x := xmax - gw
	y := ymax + st.ButtonGap
	if y+gh > h {
		y = ymax - st.ButtonGap - gh
	}
	if x+gw > w {
		x = w - gw
	}
	x = max(x, 0)
	y = max(y, 0)
	return geometry.Rect{X: x, Y: y, W: gw, H: gh}
}
