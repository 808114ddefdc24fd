//go:build !windows

package display

import (
	"fmt"

	"screen-select/src/geometry"
	"screen-select/src/topology"

	"github.com/kbinani/screenshot"
)

// Enumerator lists displays through kbinani/screenshot. It has no DPI information, so every
// display reports scale factor 1 and real space equals origin space.
type Enumerator struct{}

// New returns the platform enumerator.
func New() topology.DisplayEnumerator { return Enumerator{} }

// EnableDPIAwareness is a no-op outside Windows.
func EnableDPIAwareness() {}

// Displays lists the active displays in capture order.
func (Enumerator) Displays() ([]topology.Display, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, fmt.Errorf("no active displays found")
	}
	monitors := make([]monitor, 0, n)
	for i := 0; i < n; i++ {
		b := screenshot.GetDisplayBounds(i)
		monitors = append(monitors, monitor{
			physical: geometry.Rect{X: b.Min.X, Y: b.Min.Y, W: b.Dx(), H: b.Dy()},
			dpi:      baseDPI,
		})
	}
	return toDisplays(monitors), nil
}

// Cursor is not available through the capture backend.
func (Enumerator) Cursor() (geometry.Point, error) {
	return geometry.Point{}, ErrCursorUnavailable
}
