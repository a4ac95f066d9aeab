package geom

import "math"

// DefaultThreshold is the snapping distance used when none is configured.
const DefaultThreshold = 10.0

// Options selects which snapping passes Snap applies.
type Options struct {
	Grid     bool    `json:"grid" yaml:"grid"`
	GridSize float64 `json:"gridSize" yaml:"grid_size"`

	ToPoint        bool    `json:"toPoint" yaml:"to_point"`
	Points         []Point `json:"-" yaml:"-"`
	PointThreshold float64 `json:"pointThreshold" yaml:"point_threshold"`

	ToLine        bool      `json:"toLine" yaml:"to_line"`
	Lines         []Segment `json:"-" yaml:"-"`
	LineThreshold float64   `json:"lineThreshold" yaml:"line_threshold"`
}

// SnapToGrid rounds x and y to the nearest multiple of size. A non-positive
// size leaves p unchanged.
func SnapToGrid(p Point, size float64) Point {
	if size <= 0 {
		return p
	}
	return Point{
		X: math.Round(p.X/size) * size,
		Y: math.Round(p.Y/size) * size,
		Z: p.Z,
	}
}

// SnapToPoint returns the target nearest to p if it lies strictly within
// threshold, otherwise p. The first of several equidistant targets wins.
func SnapToPoint(p Point, targets []Point, threshold float64) Point {
	best := -1
	minDist := math.Inf(1)
	for i, t := range targets {
		d := Distance(p, t)
		if d < threshold && d < minDist {
			minDist = d
			best = i
		}
	}
	if best < 0 {
		return p
	}
	return targets[best]
}

// SnapToLine projects p onto every segment and returns the closest projection
// strictly within threshold, otherwise p.
func SnapToLine(p Point, lines []Segment, threshold float64) Point {
	var snapped *Point
	minDist := math.Inf(1)
	for _, l := range lines {
		c := ClosestOnSegment(p, l)
		d := Distance(p, c)
		if d < threshold && d < minDist {
			minDist = d
			snapped = &c
		}
	}
	if snapped == nil {
		return p
	}
	return *snapped
}

// ClosestOnSegment returns the point of s nearest to p. Projections outside
// the segment are clamped to its endpoints; a degenerate segment yields its
// start.
func ClosestOnSegment(p Point, s Segment) Point {
	cx := s.End.X - s.Start.X
	cy := s.End.Y - s.Start.Y
	lenSq := cx*cx + cy*cy

	param := -1.0
	if lenSq != 0 {
		param = ((p.X-s.Start.X)*cx + (p.Y-s.Start.Y)*cy) / lenSq
	}

	switch {
	case param < 0:
		return s.Start
	case param > 1:
		return s.End
	}

	out := Point{X: s.Start.X + param*cx, Y: s.Start.Y + param*cy, Z: s.Start.Z}
	if s.Start.Z != nil && s.End.Z != nil {
		out.Z = Float(*s.Start.Z + param*(*s.End.Z-*s.Start.Z))
	}
	return out
}

// Snap applies grid, point and line snapping in that order, each only when
// enabled by opts.
func Snap(p Point, opts Options) Point {
	out := p
	if opts.Grid && opts.GridSize > 0 {
		out = SnapToGrid(out, opts.GridSize)
	}
	if opts.ToPoint && len(opts.Points) > 0 {
		out = SnapToPoint(out, opts.Points, orDefault(opts.PointThreshold))
	}
	if opts.ToLine && len(opts.Lines) > 0 {
		out = SnapToLine(out, opts.Lines, orDefault(opts.LineThreshold))
	}
	return out
}

func orDefault(threshold float64) float64 {
	if threshold <= 0 {
		return DefaultThreshold
	}
	return threshold
}
