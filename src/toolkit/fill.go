package toolkit

import (
	"image"
	"image/color"
)

// fillBGRA paints r, clipped to size, into a tightly packed BGRA buffer.
func fillBGRA(pix []byte, size image.Point, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(image.Rectangle{Max: size})
	if r.Empty() {
		return
	}
	stride := size.X * 4
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := pix[y*stride : (y+1)*stride]
		for x := r.Min.X; x < r.Max.X; x++ {
			i := x * 4
			row[i], row[i+1], row[i+2], row[i+3] = c.B, c.G, c.R, c.A
		}
	}
}
