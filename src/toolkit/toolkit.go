// Package toolkit is the contract between the selection engine and the window system: window
// creation, the off-screen blit, the confirm/cancel control group and a batched event stream.
package toolkit

import (
	"context"
	"errors"
	"fmt"
	"image"

	"screen-select/src/geometry"
)

// ErrUnsupported is returned by NewNative on platforms without a native overlay driver.
var ErrUnsupported = errors.New("overlay windows are not supported on this platform")

// EventKind tags an Event.
type EventKind int

const (
	EventPush EventKind = iota
	EventDrag
	EventRelease
	EventFocus
	EventUnfocus
	EventKeyDown
	EventClose
	EventConfirmClick
	EventCancelClick
)

func (k EventKind) String() string {
	switch k {
	case EventPush:
		return "push"
	case EventDrag:
		return "drag"
	case EventRelease:
		return "release"
	case EventFocus:
		return "focus"
	case EventUnfocus:
		return "unfocus"
	case EventKeyDown:
		return "keydown"
	case EventClose:
		return "close"
	case EventConfirmClick:
		return "confirm"
	case EventCancelClick:
		return "cancel"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Button identifies a pointer button.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonSecondary
	ButtonMiddle
)

// Key identifies the keys the overlays react to.
type Key int

const (
	KeyOther Key = iota
	KeyEscape
	KeyEnter
	KeyKPEnter
)

// Event is one input event addressed to a window. Point is window-local event space and only
// meaningful for pointer events; Button for push/release; Key for keydown.
type Event struct {
	Kind   EventKind
	Window int
	Point  geometry.Point
	Button Button
	Key    Key
}

// WindowOptions describes an overlay window.
type WindowOptions struct {
	Title string
	// Rect is the window's placement in real space.
	Rect geometry.Rect
	// ScreenNum pins the window to a monitor ordinal; absolute placement alone is not enough
	// when ordinals and coordinate origins disagree.
	ScreenNum   int
	ScaleFactor float32
	Borderless  bool
	AlwaysOnTop bool
	SkipTaskbar bool
	Resizable   bool
	// Opacity of the window, 0 to 1.
	Opacity float32
}

// OverlayOptions returns the option set every selection overlay uses.
func OverlayOptions(title string, rect geometry.Rect, screenNum int, scale float32) WindowOptions {
	return WindowOptions{
		Title:       title,
		Rect:        rect,
		ScreenNum:   screenNum,
		ScaleFactor: scale,
		Borderless:  true,
		AlwaysOnTop: true,
		SkipTaskbar: true,
		Resizable:   false,
		Opacity:     0.3,
	}
}

// Window is one toolkit window.
type Window interface {
	// ID is the value carried in Event.Window for events addressed to this window.
	ID() int
	Show() error
	// Present blits a finished off-screen frame to the window.
	Present(frame *image.RGBA) error
	// PlaceControls moves the confirm/cancel group to r (window-local real space) and shows or
	// hides it.
	PlaceControls(r geometry.Rect, visible bool) error
	Close() error
}

// Driver creates windows and runs the shared event loop.
type Driver interface {
	CreateWindow(opts WindowOptions) (Window, error)
	// Wait blocks until at least one event is pending and returns every pending event. One call
	// is one pass of the event loop.
	Wait(ctx context.Context) ([]Event, error)
	Close() error
}

// placedOn locates landed, the monitor a window actually ended up on, among monitors in ordinal
// order. It returns that ordinal (-1 when landed is not listed) and whether it is want.
func placedOn[M comparable](monitors []M, landed M, want int) (int, bool) {
	for i, m := range monitors {
		if m == landed {
			return i, i == want
		}
	}
	return -1, false
}
