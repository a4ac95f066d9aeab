package mapdoc

import "github.com/starford/mapforge/internal/geom"

// SnapTargets returns the point positions and path segments of the document,
// leaving out the element exclude.
func (e *Editor) SnapTargets(exclude string) ([]geom.Point, []geom.Segment) {
	points := make([]geom.Point, 0, len(e.points.items))
	for _, p := range e.points.items {
		if p.ID != exclude {
			points = append(points, p.Coord())
		}
	}
	var lines []geom.Segment
	for _, p := range e.paths.items {
		if p.ID == exclude {
			continue
		}
		cps := p.Geometry.ControlPoints
		for i := 1; i < len(cps); i++ {
			lines = append(lines, geom.Segment{Start: cps[i-1].Coord(), End: cps[i].Coord()})
		}
	}
	return points, lines
}

// Snap applies opts to p. Enabled point and line snapping without explicit
// targets use the document's points and path segments.
func (e *Editor) Snap(p geom.Point, opts geom.Options) geom.Point {
	if (opts.ToPoint && opts.Points == nil) || (opts.ToLine && opts.Lines == nil) {
		points, lines := e.SnapTargets("")
		if opts.Points == nil {
			opts.Points = points
		}
		if opts.Lines == nil {
			opts.Lines = lines
		}
	}
	return geom.Snap(p, opts)
}
