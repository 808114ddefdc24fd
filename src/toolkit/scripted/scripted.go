// Package scripted is a headless toolkit driver that replays input from a YAML script. Each entry
// of passes is the batch one Driver.Wait call returns; windows are addressed by creation order.
//
//	passes:
//	  - [{window: 0, event: focus}]
//	  - [{window: 0, event: push, x: 100, y: 100}, {window: 0, event: release, x: 300, y: 250}]
//	  - [{window: 0, event: key, key: enter}]
package scripted

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"strings"

	"screen-select/src/geometry"
	"screen-select/src/toolkit"

	"gopkg.in/yaml.v3"
)

// ErrScriptExhausted is returned by Wait once every pass has been delivered.
var ErrScriptExhausted = errors.New("event script exhausted")

// Script is the YAML document.
type Script struct {
	Passes [][]Step `yaml:"passes"`
}

// Step is one scripted event. X and Y are window-local event space.
type Step struct {
	Window int    `yaml:"window"`
	Event  string `yaml:"event"`
	X      int    `yaml:"x,omitempty"`
	Y      int    `yaml:"y,omitempty"`
	Button string `yaml:"button,omitempty"`
	Key    string `yaml:"key,omitempty"`
}

var eventKinds = map[string]toolkit.EventKind{
	"push":    toolkit.EventPush,
	"drag":    toolkit.EventDrag,
	"release": toolkit.EventRelease,
	"focus":   toolkit.EventFocus,
	"unfocus": toolkit.EventUnfocus,
	"key":     toolkit.EventKeyDown,
	"close":   toolkit.EventClose,
	"confirm": toolkit.EventConfirmClick,
	"cancel":  toolkit.EventCancelClick,
}

var buttons = map[string]toolkit.Button{
	"":          toolkit.ButtonPrimary,
	"primary":   toolkit.ButtonPrimary,
	"left":      toolkit.ButtonPrimary,
	"secondary": toolkit.ButtonSecondary,
	"right":     toolkit.ButtonSecondary,
	"middle":    toolkit.ButtonMiddle,
}

var keys = map[string]toolkit.Key{
	"escape":   toolkit.KeyEscape,
	"esc":      toolkit.KeyEscape,
	"enter":    toolkit.KeyEnter,
	"return":   toolkit.KeyEnter,
	"kp_enter": toolkit.KeyKPEnter,
}

// Load reads a script file.
func Load(path string) (*Driver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML script.
func Parse(data []byte) (*Driver, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	return New(s)
}

// New validates s and returns a driver that will replay it.
func New(s Script) (*Driver, error) {
	passes := make([][]toolkit.Event, 0, len(s.Passes))
	for i, steps := range s.Passes {
		batch := make([]toolkit.Event, 0, len(steps))
		for j, st := range steps {
			ev, err := st.event()
			if err != nil {
				return nil, fmt.Errorf("pass %d step %d: %w", i, j, err)
			}
			batch = append(batch, ev)
		}
		passes = append(passes, batch)
	}
	return &Driver{passes: passes, failCreate: -1}, nil
}

func (st Step) event() (toolkit.Event, error) {
	kind, ok := eventKinds[strings.ToLower(st.Event)]
	if !ok {
		return toolkit.Event{}, fmt.Errorf("unknown event %q", st.Event)
	}
	if st.Window < 0 {
		return toolkit.Event{}, fmt.Errorf("negative window %d", st.Window)
	}
	ev := toolkit.Event{Kind: kind, Window: st.Window, Point: geometry.Point{X: st.X, Y: st.Y}}
	if kind == toolkit.EventPush || kind == toolkit.EventRelease {
		b, ok := buttons[strings.ToLower(st.Button)]
		if !ok {
			return toolkit.Event{}, fmt.Errorf("unknown button %q", st.Button)
		}
		ev.Button = b
	}
	if kind == toolkit.EventKeyDown {
		ev.Key = keys[strings.ToLower(st.Key)]
	}
	return ev, nil
}

// Driver replays a script. It is not safe for concurrent use, like the event loop it stands in for.
type Driver struct {
	passes     [][]toolkit.Event
	next       int
	windows    []*Window
	failCreate int
	closed     bool
}

// FailCreateWindow makes the n-th CreateWindow call (zero based) fail.
func (d *Driver) FailCreateWindow(n int) { d.failCreate = n }

// CreateWindow records a window. Its id is its creation index.
func (d *Driver) CreateWindow(opts toolkit.WindowOptions) (toolkit.Window, error) {
	if d.closed {
		return nil, errors.New("driver closed")
	}
	id := len(d.windows)
	if id == d.failCreate {
		d.failCreate = -1
		return nil, fmt.Errorf("scripted failure creating window %d", id)
	}
	w := &Window{id: id, Options: opts}
	d.windows = append(d.windows, w)
	return w, nil
}

// Wait returns the next pass.
func (d *Driver) Wait(ctx context.Context) ([]toolkit.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.closed {
		return nil, errors.New("driver closed")
	}
	if d.next >= len(d.passes) {
		return nil, ErrScriptExhausted
	}
	batch := d.passes[d.next]
	d.next++
	return batch, nil
}

func (d *Driver) Close() error {
	d.closed = true
	return nil
}

// Windows returns every window created so far, in creation order.
func (d *Driver) Windows() []*Window { return d.windows }

// Remaining is the number of passes not yet delivered.
func (d *Driver) Remaining() int { return len(d.passes) - d.next }

// Window records what the engine did to it.
type Window struct {
	id      int
	Options toolkit.WindowOptions

	Shown           bool
	Closed          bool
	Frames          int
	LastFrame       *image.RGBA
	Controls        geometry.Rect
	ControlsVisible bool
}

func (w *Window) ID() int { return w.id }

func (w *Window) Show() error {
	if w.Closed {
		return errors.New("window closed")
	}
	w.Shown = true
	return nil
}

func (w *Window) Present(frame *image.RGBA) error {
	if w.Closed {
		return errors.New("window closed")
	}
	w.Frames++
	w.LastFrame = frame
	return nil
}

func (w *Window) PlaceControls(r geometry.Rect, visible bool) error {
	w.Controls = r
	w.ControlsVisible = visible
	return nil
}

func (w *Window) Close() error {
	w.Closed = true
	w.Shown = false
	return nil
}
