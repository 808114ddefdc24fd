package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"screen-select/src/clipboard"
	"screen-select/src/screenshot"

	"github.com/kataras/golog"
)

// CaptureFunc produces one capture; false means the user cancelled.
type CaptureFunc func(ctx context.Context) (screenshot.Capture, bool, error)

// ResultTarget receives the outcome of Execute.
type ResultTarget interface {
	OnSuccess(c screenshot.Capture) error
	OnFailure(err error) error
}

// ExecuteOptions configures Execute.
type ExecuteOptions struct {
	Capture CaptureFunc
	Target  ResultTarget
}

// Execute captures a selection and hands it to the target. Cancellation is reported to the target
// and returned as ErrSelectionCancelled.
func Execute(ctx context.Context, opts ExecuteOptions) (screenshot.Capture, error) {
	if opts.Capture == nil {
		return screenshot.Capture{}, errors.New("Capture is required")
	}
	if opts.Target == nil {
		return screenshot.Capture{}, errors.New("Target is required")
	}

	c, ok, err := opts.Capture(ctx)
	if err != nil {
		_ = opts.Target.OnFailure(err)
		return screenshot.Capture{}, err
	}
	if !ok {
		_ = opts.Target.OnFailure(ErrSelectionCancelled)
		return screenshot.Capture{}, ErrSelectionCancelled
	}

	if err := opts.Target.OnSuccess(c); err != nil {
		_ = opts.Target.OnFailure(err)
		return screenshot.Capture{}, err
	}
	return c, nil
}

// FileName is the export name for c: capture_{x}_{y}_{w}x{h}.png.
func FileName(c screenshot.Capture) string {
	return fmt.Sprintf("capture_%d_%d_%dx%d.png", c.Bounds.X, c.Bounds.Y, c.Bounds.W, c.Bounds.H)
}

// FileTarget saves captures as PNG files in Dir and, when Report is set, prints each path to it.
type FileTarget struct {
	Dir    string
	Report io.Writer
}

func (t FileTarget) OnSuccess(c screenshot.Capture) error {
	if len(c.PNG) == 0 {
		return errors.New("capture has no image data")
	}
	dir := t.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, FileName(c))
	if err := os.WriteFile(path, c.PNG, 0o644); err != nil {
		return fmt.Errorf("failed to save capture: %w", err)
	}
	golog.Infof("EXPORT: saved %s", path)
	if t.Report != nil {
		_, _ = fmt.Fprintln(t.Report, path)
	}
	return nil
}

func (FileTarget) OnFailure(err error) error { return nil }

// ClipboardTarget copies captures to the clipboard.
type ClipboardTarget struct{}

func (ClipboardTarget) OnSuccess(c screenshot.Capture) error {
	if err := clipboard.WriteImage(c.PNG); err != nil {
		return fmt.Errorf("clipboard error: %w", err)
	}
	return nil
}

func (ClipboardTarget) OnFailure(err error) error { return nil }

// StdoutTarget streams the PNG bytes, for piping into other tools.
type StdoutTarget struct {
	Writer io.Writer
}

func (t StdoutTarget) OnSuccess(c screenshot.Capture) error {
	w := t.Writer
	if w == nil {
		w = os.Stdout
	}
	_, err := w.Write(c.PNG)
	return err
}

func (t StdoutTarget) OnFailure(err error) error { return nil }

// MultiTarget delivers to every target in order and stops at the first failure.
type MultiTarget []ResultTarget

func (m MultiTarget) OnSuccess(c screenshot.Capture) error {
	for _, t := range m {
		if err := t.OnSuccess(c); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiTarget) OnFailure(err error) error {
	var errs []error
	for _, t := range m {
		if e := t.OnFailure(err); e != nil {
			errs = append(errs, e)
		}
	}
	return errors.Join(errs...)
}
