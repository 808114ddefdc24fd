// Package geometry holds the coordinate math shared by the selection engine.
//
// Three spaces are involved: event space (what the window system reports for a pointer event),
// real space (a monitor's own window-placement coordinates, already DPI scaled) and origin space
// (real space multiplied by the monitor's scale factor, the capture service's addressing).
// All float to int conversions truncate toward zero.
package geometry

import "math"

// Point is a position in one of the coordinate spaces.
type Point struct {
	X int
	Y int
}

// Rect is an x/y/width/height rectangle.
type Rect struct {
	X int
	Y int
	W int
	H int
}

// ScalePoint multiplies both components by rate, truncating toward zero.
// A rate of exactly 1 returns p untouched.
func ScalePoint(p Point, rate float32) Point {
	if rate == 1.0 {
		return p
	}
	return Point{
		X: int(float32(p.X) * rate),
		Y: int(float32(p.Y) * rate),
	}
}

// EventRate is the factor that moves a pointer coordinate reported in focal-scaled event space
// into the real space of a monitor with scale factor target.
func EventRate(focal, target float32) float32 {
	if focal <= 0 || target <= 0 || focal == target {
		return 1.0
	}
	return focal / target
}

// ClampPoint keeps p inside [0,w]x[0,h].
func ClampPoint(p Point, w, h int) Point {
	return Point{X: clamp(p.X, 0, w), Y: clamp(p.Y, 0, h)}
}

// BoundingBox returns the componentwise min/max of two corners.
func BoundingBox(p1, p2 Point) (xmin, ymin, xmax, ymax int) {
	return min(p1.X, p2.X), min(p1.Y, p2.Y), max(p1.X, p2.X), max(p1.Y, p2.Y)
}

// RectToXYWH converts two corners into a rectangle. Width and height are never below 1, so a
// click without drag yields a 1x1 region.
func RectToXYWH(x1, y1, x2, y2 int) Rect {
	return Rect{
		X: min(x1, x2),
		Y: min(y1, y2),
		W: max(abs(x2-x1), 1),
		H: max(abs(y2-y1), 1),
	}
}

// UnionRect returns the smallest rectangle covering all rects. Monitors placed left of or above
// the primary have negative origins, so the fold starts from MaxInt/MinInt rather than zero.
func UnionRect(rects []Rect) Rect {
	if len(rects) == 0 {
		return Rect{}
	}
	xl, yl := math.MaxInt, math.MaxInt
	xh, yh := math.MinInt, math.MinInt
	for _, r := range rects {
		xl = min(xl, r.X)
		yl = min(yl, r.Y)
		xh = max(xh, r.X+r.W)
		yh = max(yh, r.Y+r.H)
	}
	return Rect{X: xl, Y: yl, W: xh - xl, H: yh - yl}
}

// Contains reports whether p lies inside r. The right and bottom edges are exclusive.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.W && p.Y >= r.Y && p.Y < r.Y+r.H
}

// Center returns the midpoint of r.
func (r Rect) Center() Point {
	return Point{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Scale multiplies every component by rate with the same truncation as ScalePoint.
func (r Rect) Scale(rate float32) Rect {
	if rate == 1.0 {
		return r
	}
	return Rect{
		X: int(float32(r.X) * rate),
		Y: int(float32(r.Y) * rate),
		W: int(float32(r.W) * rate),
		H: int(float32(r.H) * rate),
	}
}

// Translate shifts r by (dx, dy).
func (r Rect) Translate(dx, dy int) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, W: r.W, H: r.H}
}

// Empty reports whether r covers no pixels.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

func clamp(v, low, high int) int {
	return min(high, max(low, v))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
