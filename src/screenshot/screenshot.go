package screenshot

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"

	"screen-select/src/geometry"

	"github.com/kataras/golog"
	"github.com/kbinani/screenshot"
)

// ErrDisplayNotFound is returned when a capture targets an unknown display id.
var ErrDisplayNotFound = errors.New("display not found")

// Capture is one captured image together with where it came from. Bounds are in origin space.
type Capture struct {
	ScreenID    uint32
	ScaleFactor float32
	Bounds      geometry.Rect
	Image       *image.RGBA
	PNG         []byte
}

// DisplayInfo is the capture service's view of one display.
type DisplayInfo struct {
	ID      uint32
	Primary bool
	Bounds  geometry.Rect
}

// Backend is the raw capture primitive set. The default is kbinani/screenshot.
type Backend interface {
	NumActiveDisplays() int
	GetDisplayBounds(i int) image.Rectangle
	CaptureRect(r image.Rectangle) (*image.RGBA, error)
}

type kbinaniBackend struct{}

func (kbinaniBackend) NumActiveDisplays() int                 { return screenshot.NumActiveDisplays() }
func (kbinaniBackend) GetDisplayBounds(i int) image.Rectangle { return screenshot.GetDisplayBounds(i) }
func (kbinaniBackend) CaptureRect(r image.Rectangle) (*image.RGBA, error) {
	return screenshot.CaptureRect(r)
}

// Service answers display lookups and captures in origin space.
type Service struct {
	backend Backend
}

// New returns a Service backed by kbinani/screenshot.
func New() *Service {
	return &Service{backend: kbinaniBackend{}}
}

// NewWithBackend returns a Service over an explicit backend.
func NewWithBackend(b Backend) *Service {
	return &Service{backend: b}
}

// Displays lists the active displays. The id is the backend's display index; the primary display
// is the one anchored at the origin.
func (s *Service) Displays() []DisplayInfo {
	n := s.backend.NumActiveDisplays()
	out := make([]DisplayInfo, 0, n)
	for i := 0; i < n; i++ {
		b := s.backend.GetDisplayBounds(i)
		out = append(out, DisplayInfo{
			ID:      uint32(i),
			Primary: b.Min == image.Point{},
			Bounds:  fromImageRect(b),
		})
	}
	return out
}

// Lookup finds the display containing p (origin space).
func (s *Service) Lookup(p geometry.Point) (uint32, bool, bool) {
	for _, d := range s.Displays() {
		if d.Bounds.Contains(p) {
			return d.ID, d.Primary, true
		}
	}
	return 0, false, false
}

// VirtualBounds is the union of every display, the full virtual desktop.
func (s *Service) VirtualBounds() (geometry.Rect, error) {
	displays := s.Displays()
	if len(displays) == 0 {
		return geometry.Rect{}, fmt.Errorf("no active displays found")
	}
	rects := make([]geometry.Rect, len(displays))
	for i, d := range displays {
		rects[i] = d.Bounds
	}
	return geometry.UnionRect(rects), nil
}

// CaptureAll captures every display separately.
func (s *Service) CaptureAll() ([]Capture, error) {
	displays := s.Displays()
	if len(displays) == 0 {
		return nil, fmt.Errorf("no active displays found")
	}
	out := make([]Capture, 0, len(displays))
	for _, d := range displays {
		c, err := s.CaptureRect(d.ID, d.Bounds)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// CaptureByID captures one whole display.
func (s *Service) CaptureByID(id uint32) (Capture, error) {
	d, err := s.display(id)
	if err != nil {
		return Capture{}, err
	}
	return s.CaptureRect(d.ID, d.Bounds)
}

// CaptureArea captures a region of display id. x and y are relative to that display; the region
// is clipped to the display.
func (s *Service) CaptureArea(id uint32, x, y, w, h int) (Capture, error) {
	d, err := s.display(id)
	if err != nil {
		return Capture{}, err
	}
	area := clip(geometry.Rect{X: d.Bounds.X + x, Y: d.Bounds.Y + y, W: w, H: h}, d.Bounds)
	if area.Empty() {
		return Capture{}, fmt.Errorf("invalid region dimensions: x=%d y=%d width=%d height=%d", x, y, w, h)
	}
	return s.CaptureRect(d.ID, area)
}

// CaptureRect captures an absolute origin-space rectangle and encodes it as PNG.
func (s *Service) CaptureRect(id uint32, r geometry.Rect) (Capture, error) {
	if r.Empty() {
		return Capture{}, fmt.Errorf("invalid region dimensions: width=%d, height=%d", r.W, r.H)
	}
	img, err := s.backend.CaptureRect(toImageRect(r))
	if err != nil {
		return Capture{}, fmt.Errorf("failed to capture region: %w", err)
	}
	data, err := EncodePNG(img)
	if err != nil {
		return Capture{}, err
	}
	golog.Debugf("CAPTURE: display %d rect %+v -> %d bytes", id, r, len(data))
	return Capture{ScreenID: id, ScaleFactor: 1, Bounds: r, Image: img, PNG: data}, nil
}

// SelectionArea converts two real-space corners of a selection on a monitor with scale factor sf
// into a monitor-relative origin-space rectangle.
func SelectionArea(x1, y1, x2, y2 int, sf float32) geometry.Rect {
	p1 := geometry.ScalePoint(geometry.Point{X: x1, Y: y1}, sf)
	p2 := geometry.ScalePoint(geometry.Point{X: x2, Y: y2}, sf)
	return geometry.RectToXYWH(p1.X, p1.Y, p2.X, p2.Y)
}

// EncodePNG encodes img as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image as PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *Service) display(id uint32) (DisplayInfo, error) {
	for _, d := range s.Displays() {
		if d.ID == id {
			return d, nil
		}
	}
	return DisplayInfo{}, fmt.Errorf("%w: %d", ErrDisplayNotFound, id)
}

func clip(r, bounds geometry.Rect) geometry.Rect {
	x1, y1 := max(r.X, bounds.X), max(r.Y, bounds.Y)
	x2, y2 := min(r.X+r.W, bounds.X+bounds.W), min(r.Y+r.H, bounds.Y+bounds.H)
	return geometry.Rect{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

func fromImageRect(r image.Rectangle) geometry.Rect {
	return geometry.Rect{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

func toImageRect(r geometry.Rect) image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}
