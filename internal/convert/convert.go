// Package convert maps editor elements to the plain records of the fleet
// control service and back. Editor-only data (layers, geometry, presentation)
// is dropped on the way out and synthesized with defaults on the way in.
package convert

import (
	"github.com/starford/mapforge/internal/geom"
	"github.com/starford/mapforge/internal/mapdoc"
	"github.com/starford/mapforge/internal/models"
)

func PointToRecord(p mapdoc.Point) models.PointRecord {
	return models.PointRecord{
		ID:          models.FlexID(p.ID),
		Name:        p.Name,
		Code:        p.Code,
		X:           geom.Float(p.X),
		Y:           geom.Float(p.Y),
		Z:           copyFloat(p.Z),
		Type:        p.Type,
		Description: p.Description,
		Status:      p.Status,
	}
}

// PointFromRecord builds an editor point on layerID. Missing coordinates
// become zero.
func PointFromRecord(rec models.PointRecord, layerID string) mapdoc.Point {
	return mapdoc.Point{
		ID:          rec.ID.String(),
		LayerID:     layerID,
		Name:        rec.Name,
		Code:        rec.Code,
		X:           deref(rec.X),
		Y:           deref(rec.Y),
		Z:           copyFloat(rec.Z),
		Type:        rec.Type,
		Description: rec.Description,
		Status:      rec.Status,
		EditorProps: mapdoc.DefaultPointProps(),
		CreatedAt:   rec.CreateTime,
		UpdatedAt:   rec.CreateTime,
	}
}

// PathToRecord takes the end point references from the first and last
// control point and the length from the 3-D polyline.
func PathToRecord(p mapdoc.Path) models.PathRecord {
	rec := models.PathRecord{
		ID:           models.FlexID(p.ID),
		Name:         p.Name,
		Code:         p.Code,
		StartPointID: p.StartPointID,
		EndPointID:   p.EndPointID,
		Length:       geom.Float(geom.PolylineLength(p.Polyline())),
		Type:         p.Type,
		Description:  p.Description,
		Status:       p.Status,
	}
	if cps := p.Geometry.ControlPoints; len(cps) > 0 {
		rec.StartPointID = models.FlexID(cps[0].ID)
		rec.EndPointID = models.FlexID(cps[len(cps)-1].ID)
	}
	return rec
}

// PathFromRecord builds an editor path on layerID. Without control points
// the path is the default segment between its end point references.
func PathFromRecord(rec models.PathRecord, layerID string, controlPoints []mapdoc.Vertex) mapdoc.Path {
	g := mapdoc.DefaultPathGeometry(rec.StartPointID, rec.EndPointID)
	if controlPoints != nil {
		g.ControlPoints = append([]mapdoc.Vertex(nil), controlPoints...)
	}
	return mapdoc.Path{
		ID:           rec.ID.String(),
		LayerID:      layerID,
		Name:         rec.Name,
		Code:         rec.Code,
		StartPointID: rec.StartPointID,
		EndPointID:   rec.EndPointID,
		Length:       copyFloat(rec.Length),
		Type:         rec.Type,
		Description:  rec.Description,
		Status:       rec.Status,
		Geometry:     g,
		EditorProps:  mapdoc.DefaultPathProps(),
		CreatedAt:    rec.CreateTime,
		UpdatedAt:    rec.CreateTime,
	}
}

// LocationToRecord stores the vertex centroid as the location center.
func LocationToRecord(l mapdoc.Location) models.LocationRecord {
	c := geom.Centroid(l.Polygon())
	return models.LocationRecord{
		ID:             models.FlexID(l.ID),
		Name:           l.Name,
		Code:           l.Code,
		LocationTypeID: l.LocationTypeID,
		X:              geom.Float(c.X),
		Y:              geom.Float(c.Y),
		Z:              c.Z,
		BlockID:        l.BlockID,
		Description:    l.Description,
		Status:         l.Status,
	}
}

// LocationFromRecord builds an editor location on layerID. Without vertices
// the location is a square around the record's center.
func LocationFromRecord(rec models.LocationRecord, layerID string, vertices []mapdoc.Vertex) mapdoc.Location {
	id := rec.ID.String()
	g := mapdoc.DefaultLocationGeometry(id, geom.Point{X: deref(rec.X), Y: deref(rec.Y), Z: copyFloat(rec.Z)})
	if vertices != nil {
		g.Vertices = append([]mapdoc.Vertex(nil), vertices...)
	}
	return mapdoc.Location{
		ID:             id,
		LayerID:        layerID,
		Name:           rec.Name,
		Code:           rec.Code,
		LocationTypeID: rec.LocationTypeID,
		X:              copyFloat(rec.X),
		Y:              copyFloat(rec.Y),
		Z:              copyFloat(rec.Z),
		BlockID:        rec.BlockID,
		Description:    rec.Description,
		Status:         rec.Status,
		Geometry:       g,
		EditorProps:    mapdoc.DefaultLocationProps(),
		CreatedAt:      rec.CreateTime,
		UpdatedAt:      rec.CreateTime,
	}
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	return geom.Float(*f)
}
