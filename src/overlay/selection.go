package overlay

import "screen-select/src/geometry"

// Selection is one window's pair of corners in that monitor's real space.
type Selection struct {
	Start    geometry.Point
	End      geometry.Point
	HasStart bool
	HasEnd   bool
}

// Complete reports whether both corners are recorded.
func (s Selection) Complete() bool { return s.HasStart && s.HasEnd }

// Reset forgets both corners.
func (s *Selection) Reset() { *s = Selection{} }

// State is the controller's drag state.
type State int

const (
	StateIdle State = iota
	StateDragging
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDragging:
		return "dragging"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Signal is what a controller reports to the session after handling an event.
type Signal int

const (
	SignalNone Signal = iota
	SignalFocused
	SignalUnfocused
	SignalConfirm
	SignalCancel
)

func (s Signal) String() string {
	switch s {
	case SignalNone:
		return "none"
	case SignalFocused:
		return "focused"
	case SignalUnfocused:
		return "unfocused"
	case SignalConfirm:
		return "confirm"
	case SignalCancel:
		return "cancel"
	default:
		return "unknown"
	}
}
