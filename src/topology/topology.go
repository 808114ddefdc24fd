// Package topology builds the per-monitor descriptors a selection session works with.
package topology

import (
	"errors"
	"fmt"

	"screen-select/src/geometry"

	"github.com/kataras/golog"
)

// UnknownScreenID is assigned when a monitor cannot be matched to a capture-service display.
// It collides with a real display whose id is 1; see DESIGN.md.
const UnknownScreenID uint32 = 1

// ErrNoDisplays is returned when the enumerator reports no monitors.
var ErrNoDisplays = errors.New("no displays detected")

// ScreenDescriptor describes one monitor for the lifetime of a session.
type ScreenDescriptor struct {
	Primary bool
	// ID is the capture service's identity for the display.
	ID uint32
	// Num is the window system's ordinal for the monitor, a different namespace from ID.
	Num         int
	ScaleFactor float32
	// RealRect is the monitor in the window system's placement coordinates.
	RealRect geometry.Rect
}

// OriginRect is RealRect normalized to scale factor 1. It is always derived, never stored.
func (s ScreenDescriptor) OriginRect() geometry.Rect {
	return s.RealRect.Scale(s.ScaleFactor)
}

// Display is one monitor as reported by the window system.
type Display struct {
	Num         int
	RealRect    geometry.Rect
	ScaleFactor float32
}

// DisplayEnumerator is the window system's view of the monitors.
type DisplayEnumerator interface {
	Displays() ([]Display, error)
	// Cursor returns the global pointer position in origin space (physical pixels). Real rectangles
	// of monitors with different scale factors overlap, so a real-space pointer is ambiguous.
	Cursor() (geometry.Point, error)
}

// DisplayDirectory maps an origin-space point to the capture service's display.
type DisplayDirectory interface {
	Lookup(p geometry.Point) (id uint32, primary bool, ok bool)
}

// Enumerate queries the enumerator once and resolves each monitor's capture identity by looking
// up its center point in origin space. Unmatched monitors get UnknownScreenID.
func Enumerate(displays DisplayEnumerator, dir DisplayDirectory) ([]ScreenDescriptor, error) {
	list, err := displays.Displays()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate displays: %w", err)
	}
	if len(list) == 0 {
		return nil, ErrNoDisplays
	}

	screens := make([]ScreenDescriptor, 0, len(list))
	for _, d := range list {
		sf := d.ScaleFactor
		if sf <= 0 {
			golog.Warnf("TOPOLOGY: screen %d reported scale %v, using 1.0", d.Num, sf)
			sf = 1.0
		}
		s := ScreenDescriptor{
			Num:         d.Num,
			ScaleFactor: sf,
			RealRect:    d.RealRect,
		}

		center := geometry.ScalePoint(d.RealRect.Center(), sf)
		if id, primary, ok := dir.Lookup(center); ok {
			s.ID = id
			s.Primary = primary
		} else {
			golog.Warnf("TOPOLOGY: no capture display at origin point %v for screen %d, falling back to id %d",
				center, d.Num, UnknownScreenID)
			s.ID = UnknownScreenID
		}

		golog.Debugf("TOPOLOGY: screen num=%d id=%d primary=%v scale=%v real=%+v origin=%+v",
			s.Num, s.ID, s.Primary, s.ScaleFactor, s.RealRect, s.OriginRect())
		screens = append(screens, s)
	}
	return screens, nil
}

// ScreenForOriginPoint returns the first screen whose origin rectangle contains p.
func ScreenForOriginPoint(screens []ScreenDescriptor, p geometry.Point) (ScreenDescriptor, bool) {
	for _, s := range screens {
		if s.OriginRect().Contains(p) {
			return s, true
		}
	}
	return ScreenDescriptor{}, false
}

// FocalScale resolves the session's focal scale factor: an explicit positive value wins, then the
// scale of the monitor under the pointer, then 1.0.
func FocalScale(screens []ScreenDescriptor, displays DisplayEnumerator, explicit float32) float32 {
	if explicit > 0 {
		return explicit
	}
	if displays == nil {
		return 1.0
	}
	p, err := displays.Cursor()
	if err != nil {
		golog.Debugf("TOPOLOGY: cursor position unavailable: %v", err)
		return 1.0
	}
	if s, ok := ScreenForOriginPoint(screens, p); ok {
		return s.ScaleFactor
	}
	golog.Debugf("TOPOLOGY: cursor %v outside every screen, focal scale 1.0", p)
	return 1.0
}

// Bounds is the union of all real rectangles, the extent a full-desktop overlay must cover.
func Bounds(screens []ScreenDescriptor) geometry.Rect {
	rects := make([]geometry.Rect, len(screens))
	for i, s := range screens {
		rects[i] = s.RealRect
	}
	return geometry.UnionRect(rects)
}

// Find returns the screen with capture id, if any.
func Find(screens []ScreenDescriptor, id uint32) (ScreenDescriptor, bool) {
	for _, s := range screens {
		if s.ID == id {
			return s, true
		}
	}
	return ScreenDescriptor{}, false
}
