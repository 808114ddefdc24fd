package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"

	"screen-select/src/geometry"
	"screen-select/src/screenshot"
	"screen-select/src/toolkit"
	"screen-select/src/toolkit/scripted"
	"screen-select/src/topology"
)

type fakeDisplays struct {
	list   []topology.Display
	cursor geometry.Point
}

func (f fakeDisplays) Displays() ([]topology.Display, error) { return f.list, nil }
func (f fakeDisplays) Cursor() (geometry.Point, error)       { return f.cursor, nil }

// fakeBackend serves fixed origin-space display bounds and records captures.
type fakeBackend struct {
	bounds   []image.Rectangle
	captured []image.Rectangle
}

func (b *fakeBackend) NumActiveDisplays() int                 { return len(b.bounds) }
func (b *fakeBackend) GetDisplayBounds(i int) image.Rectangle { return b.bounds[i] }
func (b *fakeBackend) CaptureRect(r image.Rectangle) (*image.RGBA, error) {
	b.captured = append(b.captured, r)
	return image.NewRGBA(r), nil
}

// A 1920x1080 primary at scale 1 and a 1920x1080 panel at scale 2 to its right.
func mixedDPI() (fakeDisplays, *fakeBackend) {
	displays := fakeDisplays{list: []topology.Display{
		{Num: 0, RealRect: geometry.Rect{X: 0, Y: 0, W: 1920, H: 1080}, ScaleFactor: 1},
		{Num: 1, RealRect: geometry.Rect{X: 1920, Y: 0, W: 960, H: 540}, ScaleFactor: 2},
	}, cursor: geometry.Point{X: 4000, Y: 20}}
	backend := &fakeBackend{bounds: []image.Rectangle{
		image.Rect(0, 0, 1920, 1080),
		image.Rect(3840, 0, 5760, 1080),
	}}
	return displays, backend
}

func TestRequestCaptureCropsInOriginSpace(t *testing.T) {
	displays, backend := mixedDPI()
	svc := screenshot.NewWithBackend(backend)
	driver := mustScript(t, `
passes:
  - [{window: 1, event: focus}]
  - [{window: 1, event: push, x: 10, y: 20}, {window: 1, event: release, x: 110, y: 70}]
  - [{window: 1, event: key, key: enter}]
`)
	var gotFocal float32
	opts := Options{
		Displays:  displays,
		Directory: svc,
		NewDriver: func(focal float32) (toolkit.Driver, error) {
			gotFocal = focal
			return driver, nil
		},
	}

	c, ok, err := RequestCapture(context.Background(), opts, svc)
	if err != nil || !ok {
		t.Fatalf("RequestCapture = %v, %v", ok, err)
	}
	if gotFocal != 2 {
		t.Errorf("focal scale = %v, want the scale under the pointer (2)", gotFocal)
	}
	want := geometry.Rect{X: 3860, Y: 40, W: 200, H: 100}
	if c.Bounds != want || c.ScreenID != 1 || c.ScaleFactor != 2 {
		t.Errorf("capture = id %d scale %v bounds %+v, want id 1 scale 2 bounds %+v", c.ScreenID, c.ScaleFactor, c.Bounds, want)
	}
	if len(backend.captured) != 1 || backend.captured[0] != image.Rect(3860, 40, 4060, 140) {
		t.Errorf("backend captured %v", backend.captured)
	}
	if len(c.PNG) == 0 {
		t.Error("capture has no PNG data")
	}
}

func TestRequestBoundingCancelled(t *testing.T) {
	displays, backend := mixedDPI()
	driver := mustScript(t, `passes: [[{window: 0, event: key, key: escape}]]`)
	opts := Options{
		Displays:   displays,
		Directory:  screenshot.NewWithBackend(backend),
		NewDriver:  func(float32) (toolkit.Driver, error) { return driver, nil },
		FocalScale: 1.25,
	}
	if _, ok, err := RequestBounding(context.Background(), opts); ok || err != nil {
		t.Errorf("expected cancellation, got ok=%v err=%v", ok, err)
	}
	if _, err := driver.Wait(context.Background()); err == nil {
		t.Error("driver should be closed after the session")
	}
}

func TestRequestSetupFailures(t *testing.T) {
	displays, backend := mixedDPI()
	boom := errors.New("no window system")
	tests := []struct {
		name string
		opts Options
	}{
		{"missing collaborators", Options{}},
		{"no displays", Options{
			Displays:  fakeDisplays{},
			Directory: screenshot.NewWithBackend(backend),
			NewDriver: func(float32) (toolkit.Driver, error) { return scripted.New(scripted.Script{}) },
		}},
		{"driver failure", Options{
			Displays:  displays,
			Directory: screenshot.NewWithBackend(backend),
			NewDriver: func(float32) (toolkit.Driver, error) { return nil, boom },
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := RequestBounding(context.Background(), tt.opts); !errors.Is(err, ErrSetup) {
				t.Errorf("expected ErrSetup, got %v", err)
			}
		})
	}
	if _, _, err := RequestCapture(context.Background(), Options{}, nil); err == nil {
		t.Error("expected error without capturer")
	}
}

type recordingTarget struct {
	got      []screenshot.Capture
	failures []error
	err      error
}

func (r *recordingTarget) OnSuccess(c screenshot.Capture) error {
	r.got = append(r.got, c)
	return r.err
}

func (r *recordingTarget) OnFailure(err error) error {
	r.failures = append(r.failures, err)
	return nil
}

func TestExecute(t *testing.T) {
	capture := screenshot.Capture{Bounds: geometry.Rect{X: 1, Y: 2, W: 3, H: 4}, PNG: []byte("png")}
	tests := []struct {
		name      string
		fn        CaptureFunc
		targetErr error
		wantErr   error
		delivered int
	}{
		{"success", func(context.Context) (screenshot.Capture, bool, error) { return capture, true, nil }, nil, nil, 1},
		{"cancelled", func(context.Context) (screenshot.Capture, bool, error) { return screenshot.Capture{}, false, nil }, nil, ErrSelectionCancelled, 0},
		{"setup error", func(context.Context) (screenshot.Capture, bool, error) { return screenshot.Capture{}, false, ErrSetup }, nil, ErrSetup, 0},
		{"delivery error", func(context.Context) (screenshot.Capture, bool, error) { return capture, true, nil }, os.ErrPermission, os.ErrPermission, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := &recordingTarget{err: tt.targetErr}
			_, err := Execute(context.Background(), ExecuteOptions{Capture: tt.fn, Target: target})
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if len(target.got) != tt.delivered {
				t.Errorf("delivered %d captures, want %d", len(target.got), tt.delivered)
			}
			if tt.wantErr != nil && len(target.failures) != 1 {
				t.Errorf("expected one failure report, got %v", target.failures)
			}
		})
	}
	if _, err := Execute(context.Background(), ExecuteOptions{}); err == nil {
		t.Error("expected error for missing capture func")
	}
}

func TestFileTarget(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	var report bytes.Buffer
	c := screenshot.Capture{Bounds: geometry.Rect{X: -10, Y: 20, W: 300, H: 150}, PNG: []byte("\x89PNG")}

	if err := (FileTarget{Dir: dir, Report: &report}).OnSuccess(c); err != nil {
		t.Fatalf("OnSuccess: %v", err)
	}
	path := filepath.Join(dir, "capture_-10_20_300x150.png")
	data, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(data, c.PNG) {
		t.Errorf("saved file = %q, %v", data, err)
	}
	if got := report.String(); got != path+"\n" {
		t.Errorf("report = %q", got)
	}
	if err := (FileTarget{Dir: dir}).OnSuccess(screenshot.Capture{}); err == nil {
		t.Error("expected error for empty capture")
	}
}

func TestStdoutAndMultiTarget(t *testing.T) {
	var out bytes.Buffer
	rec := &recordingTarget{}
	m := MultiTarget{StdoutTarget{Writer: &out}, rec}
	c := screenshot.Capture{PNG: []byte("abc")}
	if err := m.OnSuccess(c); err != nil {
		t.Fatal(err)
	}
	if out.String() != "abc" || len(rec.got) != 1 {
		t.Errorf("stdout %q, recorded %d", out.String(), len(rec.got))
	}

	failing := &recordingTarget{err: errors.New("full")}
	after := &recordingTarget{}
	if err := (MultiTarget{failing, after}).OnSuccess(c); err == nil || len(after.got) != 0 {
		t.Errorf("MultiTarget should stop at first failure: err=%v after=%d", err, len(after.got))
	}
	if err := m.OnFailure(ErrSelectionCancelled); err != nil || len(rec.failures) != 1 {
		t.Errorf("OnFailure = %v, recorded %v", err, rec.failures)
	}
}
