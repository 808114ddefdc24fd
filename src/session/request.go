package session

import (
	"context"
	"errors"
	"fmt"

	"screen-select/src/geometry"
	"screen-select/src/overlay"
	"screen-select/src/screenshot"
	"screen-select/src/toolkit"
	"screen-select/src/topology"
)

// DriverFactory opens the toolkit driver for a session with the given focal scale.
type DriverFactory func(focal float32) (toolkit.Driver, error)

// Capturer crops an absolute origin-space rectangle out of display id.
type Capturer interface {
	CaptureRect(id uint32, r geometry.Rect) (screenshot.Capture, error)
}

// Options wires a session to its collaborators.
type Options struct {
	Displays  topology.DisplayEnumerator
	Directory topology.DisplayDirectory
	NewDriver DriverFactory
	// FocalScale overrides pointer-based detection when positive.
	FocalScale float32
	// Style overrides overlay.DefaultStyle.
	Style *overlay.Style
}

// RequestBounding enumerates the screens, resolves the focal scale, opens a driver and runs one
// session.
func RequestBounding(ctx context.Context, opts Options) (Result, bool, error) {
	res, _, ok, err := request(ctx, opts)
	return res, ok, err
}

// RequestCapture runs a session and crops the selected region out of the display it was made on.
// The capture's Bounds are absolute origin-space coordinates.
func RequestCapture(ctx context.Context, opts Options, capturer Capturer) (screenshot.Capture, bool, error) {
	if capturer == nil {
		return screenshot.Capture{}, false, errors.New("capturer is required")
	}
	res, screen, ok, err := request(ctx, opts)
	if err != nil || !ok {
		return screenshot.Capture{}, false, err
	}

	origin := screen.OriginRect()
	area := screenshot.SelectionArea(res.X1, res.Y1, res.X2, res.Y2, res.ScaleFactor).Translate(origin.X, origin.Y)
	c, err := capturer.CaptureRect(res.ScreenID, area)
	if err != nil {
		return screenshot.Capture{}, false, fmt.Errorf("failed to capture selection: %w", err)
	}
	c.ScaleFactor = res.ScaleFactor
	return c, true, nil
}

func request(ctx context.Context, opts Options) (Result, topology.ScreenDescriptor, bool, error) {
	if opts.Displays == nil || opts.Directory == nil || opts.NewDriver == nil {
		return Result{}, topology.ScreenDescriptor{}, false, fmt.Errorf("%w: displays, directory and driver factory are required", ErrSetup)
	}
	screens, err := topology.Enumerate(opts.Displays, opts.Directory)
	if err != nil {
		return Result{}, topology.ScreenDescriptor{}, false, fmt.Errorf("%w: %w", ErrSetup, err)
	}
	focal := topology.FocalScale(screens, opts.Displays, opts.FocalScale)

	driver, err := opts.NewDriver(focal)
	if err != nil {
		return Result{}, topology.ScreenDescriptor{}, false, fmt.Errorf("%w: %w", ErrSetup, err)
	}
	defer driver.Close()

	style := overlay.DefaultStyle()
	if opts.Style != nil {
		style = *opts.Style
	}
	return run(ctx, driver, screens, focal, style)
}
