package overlay

import (
	"fmt"
	"image"
	"image/color"

	"screen-select/src/geometry"

	"golang.org/x/image/draw"
)

// maxBufferPixels bounds a single off-screen buffer (16k x 16k).
const maxBufferPixels = 1 << 28

// Buffer is the off-screen surface a controller draws into before blitting to its window.
type Buffer struct {
	img *image.RGBA
}

// NewBuffer allocates a w x h buffer.
func NewBuffer(w, h int) (*Buffer, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid buffer size %dx%d", w, h)
	}
	if w*h > maxBufferPixels {
		return nil, fmt.Errorf("buffer %dx%d exceeds %d pixels", w, h, maxBufferPixels)
	}
	return &Buffer{img: image.NewRGBA(image.Rect(0, 0, w, h))}, nil
}

// Fill paints the whole buffer.
func (b *Buffer) Fill(c color.RGBA) {
	draw.Draw(b.img, b.img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// FillRect paints r, clipped to the buffer.
func (b *Buffer) FillRect(r geometry.Rect, c color.RGBA) {
	rect := image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H).Intersect(b.img.Bounds())
	if rect.Empty() {
		return
	}
	draw.Draw(b.img, rect, image.NewUniform(c), image.Point{}, draw.Src)
}

// Frame is the buffer's backing image.
func (b *Buffer) Frame() *image.RGBA { return b.img }
