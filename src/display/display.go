// Package display enumerates monitors for the selection engine. On Windows it asks the window
// system directly (per-monitor DPI included); elsewhere it falls back to the capture service's
// display list at scale factor 1.
package display

import (
	"errors"

	"screen-select/src/geometry"
	"screen-select/src/topology"
)

// ErrCursorUnavailable is returned when the platform cannot report the pointer position.
var ErrCursorUnavailable = errors.New("cursor position unavailable")

// monitor is a physical monitor before conversion to real space.
type monitor struct {
	physical geometry.Rect
	dpi      uint32
}

const baseDPI = 96

// toDisplays converts physical monitors into real-space displays: the real rectangle is the
// physical one divided by the monitor's scale factor.
func toDisplays(monitors []monitor) []topology.Display {
	out := make([]topology.Display, 0, len(monitors))
	for i, m := range monitors {
		sf := float32(1.0)
		if m.dpi > 0 {
			sf = float32(m.dpi) / baseDPI
		}
		out = append(out, topology.Display{
			Num:         i,
			RealRect:    m.physical.Scale(1 / sf),
			ScaleFactor: sf,
		})
	}
	return out
}
