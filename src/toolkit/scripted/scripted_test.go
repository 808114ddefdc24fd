package scripted

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"screen-select/src/geometry"
	"screen-select/src/toolkit"
)

const sample = `
passes:
  - [{window: 1, event: focus}]
  - - {window: 1, event: push, x: 10, y: 20}
    - {window: 1, event: drag, x: 15, y: 25}
    - {window: 1, event: release, x: 30, y: 40, button: left}
  - [{window: 0, event: key, key: Escape}]
`

func TestParseAndReplay(t *testing.T) {
	d, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if d.Remaining() != 3 {
		t.Fatalf("expected 3 passes, got %d", d.Remaining())
	}

	ctx := context.Background()
	first, err := d.Wait(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 1 || first[0].Kind != toolkit.EventFocus || first[0].Window != 1 {
		t.Errorf("unexpected first pass %+v", first)
	}

	second, _ := d.Wait(ctx)
	if len(second) != 3 {
		t.Fatalf("expected 3 events, got %d", len(second))
	}
	if second[0].Point != (geometry.Point{X: 10, Y: 20}) || second[0].Button != toolkit.ButtonPrimary {
		t.Errorf("unexpected push %+v", second[0])
	}
	if second[2].Kind != toolkit.EventRelease || second[2].Point != (geometry.Point{X: 30, Y: 40}) {
		t.Errorf("unexpected release %+v", second[2])
	}

	third, _ := d.Wait(ctx)
	if third[0].Key != toolkit.KeyEscape {
		t.Errorf("expected escape, got %+v", third[0])
	}

	if _, err := d.Wait(ctx); !errors.Is(err, ErrScriptExhausted) {
		t.Errorf("expected ErrScriptExhausted, got %v", err)
	}
}

func TestParseRejectsBadSteps(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown event", "passes: [[{window: 0, event: scroll}]]"},
		{"unknown button", "passes: [[{window: 0, event: push, button: fourth}]]"},
		{"negative window", "passes: [[{window: -1, event: focus}]]"},
		{"not yaml", "passes: [[{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Remaining() != 3 {
		t.Errorf("expected 3 passes, got %d", d.Remaining())
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWindowsAndFailures(t *testing.T) {
	d, _ := New(Script{})
	d.FailCreateWindow(1)

	w0, err := d.CreateWindow(toolkit.OverlayOptions("a", geometry.Rect{W: 10, H: 10}, 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.CreateWindow(toolkit.WindowOptions{}); err == nil {
		t.Fatal("expected injected failure")
	}
	w1, err := d.CreateWindow(toolkit.WindowOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if w0.ID() != 0 || w1.ID() != 1 {
		t.Errorf("ids = %d, %d", w0.ID(), w1.ID())
	}
	if len(d.Windows()) != 2 || !d.Windows()[0].Options.AlwaysOnTop {
		t.Errorf("unexpected windows %+v", d.Windows())
	}

	_ = w0.Close()
	if err := w0.Present(nil); err == nil {
		t.Error("present on closed window should fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
