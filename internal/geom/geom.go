// Package geom provides the planar geometry used by the map editor: distances,
// polyline lengths, centroids, and the snapping helpers used while placing
// elements interactively. All functions are pure.
package geom

import "math"

// Point is a 2-D coordinate with an optional height.
type Point struct {
	X float64  `json:"x"`
	Y float64  `json:"y"`
	Z *float64 `json:"z,omitempty"`
}

// Segment is a straight line between two points.
type Segment struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// Pt is shorthand for a point without height.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Float returns a pointer to v, for optional coordinates.
func Float(v float64) *float64 {
	return &v
}

// Distance returns the planar distance between a and b. Height is ignored.
func Distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// PolylineLength sums the 3-D distance between consecutive points. A missing
// height counts as zero.
func PolylineLength(pts []Point) float64 {
	if len(pts) < 2 {
		return 0
	}
	var length float64
	for i := 0; i < len(pts)-1; i++ {
		dx := pts[i+1].X - pts[i].X
		dy := pts[i+1].Y - pts[i].Y
		dz := zOrZero(pts[i+1].Z) - zOrZero(pts[i].Z)
		length += math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	return length
}

// Centroid returns the arithmetic mean of pts. The height mean only covers
// points that define a height; it is nil when none do. An empty input yields
// the origin.
func Centroid(pts []Point) Point {
	if len(pts) == 0 {
		return Point{}
	}
	var sumX, sumY, sumZ float64
	zCount := 0
	for _, p := range pts {
		sumX += p.X
		sumY += p.Y
		if p.Z != nil {
			sumZ += *p.Z
			zCount++
		}
	}
	c := Point{X: sumX / float64(len(pts)), Y: sumY / float64(len(pts))}
	if zCount > 0 {
		c.Z = Float(sumZ / float64(zCount))
	}
	return c
}

// Translate offsets p by (dx, dy). Height is untouched.
func Translate(p Point, dx, dy float64) Point {
	p.X += dx
	p.Y += dy
	return p
}

func zOrZero(z *float64) float64 {
	if z == nil {
		return 0
	}
	return *z
}
