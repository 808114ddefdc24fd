package toolkit

import (
	"image"
	"image/color"
	"testing"

	"screen-select/src/geometry"
)

func TestOverlayOptions(t *testing.T) {
	o := OverlayOptions("x", geometry.Rect{X: -1920, W: 1920, H: 1080}, 1, 1.25)
	if !o.Borderless || !o.AlwaysOnTop || !o.SkipTaskbar || o.Resizable {
		t.Errorf("unexpected flags %+v", o)
	}
	if o.ScreenNum != 1 || o.ScaleFactor != 1.25 || o.Opacity <= 0 || o.Opacity >= 1 {
		t.Errorf("unexpected options %+v", o)
	}
}

func TestEventKindString(t *testing.T) {
	if EventUnfocus.String() != "unfocus" || EventKind(99).String() != "event(99)" {
		t.Errorf("unexpected names %q %q", EventUnfocus, EventKind(99))
	}
}

func TestRescale(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 2))
	red := color.RGBA{R: 0xff, A: 0xff}
	src.SetRGBA(0, 0, red)

	if got := Rescale(src, 4, 2); got != src {
		t.Error("same-size rescale should return the frame itself")
	}
	got := Rescale(src, 8, 4)
	if got.Bounds() != image.Rect(0, 0, 8, 4) {
		t.Fatalf("bounds = %v", got.Bounds())
	}
	if got.RGBAAt(1, 1) != red || got.RGBAAt(2, 0) == red {
		t.Errorf("nearest neighbour scaling wrong: %v %v", got.RGBAAt(1, 1), got.RGBAAt(2, 0))
	}
}

func TestFillBGRA(t *testing.T) {
	size := image.Pt(4, 3)
	pix := make([]byte, size.X*size.Y*4)
	fillBGRA(pix, size, image.Rect(2, 1, 10, 10), color.RGBA{R: 1, G: 2, B: 3, A: 4})

	at := func(x, y int) []byte { i := (y*size.X + x) * 4; return pix[i : i+4] }
	if got := at(3, 2); got[0] != 3 || got[1] != 2 || got[2] != 1 || got[3] != 4 {
		t.Errorf("pixel (3,2) = %v", got)
	}
	if got := at(1, 1); got[3] != 0 {
		t.Errorf("pixel (1,1) should be untouched, got %v", got)
	}
	fillBGRA(pix, size, image.Rect(-5, -5, -1, -1), color.RGBA{A: 1})
}

func TestPlacedOn(t *testing.T) {
	monitors := []uintptr{0x10, 0x20, 0x30}
	tests := []struct {
		landed  uintptr
		want    int
		ordinal int
		ok      bool
	}{
		{0x10, 0, 0, true},
		{0x30, 2, 2, true},
		{0x20, 0, 1, false},
		{0x99, 1, -1, false},
		{0x10, 5, 0, false},
	}
	for _, tt := range tests {
		ordinal, ok := placedOn(monitors, tt.landed, tt.want)
		if ordinal != tt.ordinal || ok != tt.ok {
			t.Errorf("placedOn(%#x, want %d) = %d, %v; want %d, %v", tt.landed, tt.want, ordinal, ok, tt.ordinal, tt.ok)
		}
	}
	if ordinal, ok := placedOn(nil, uintptr(0x10), 0); ordinal != -1 || ok {
		t.Errorf("placedOn with no monitors = %d, %v", ordinal, ok)
	}
}
