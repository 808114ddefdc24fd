package toolkit

import (
	"image"

	"golang.org/x/image/draw"
)

// Rescale returns frame stretched to w x h. Frames already at that size are returned as is.
// Monitors with a scale factor other than 1 have more physical pixels than the real-space frame,
// so the driver stretches before blitting.
func Rescale(frame *image.RGBA, w, h int) *image.RGBA {
	b := frame.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return frame
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), frame, b, draw.Src, nil)
	return dst
}
