package convert

import (
	"github.com/starford/mapforge/internal/mapdoc"
	"github.com/starford/mapforge/internal/models"
)

// RecordSet is the service view of a whole map.
type RecordSet struct {
	MapID     string                  `json:"mapId"`
	Points    []models.PointRecord    `json:"points"`
	Paths     []models.PathRecord     `json:"paths"`
	Locations []models.LocationRecord `json:"locations"`
}

func each[S, T any](in []S, fn func(S) T) []T {
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}

func PointsToRecords(ps []mapdoc.Point) []models.PointRecord { return each(ps, PointToRecord) }

func PathsToRecords(ps []mapdoc.Path) []models.PathRecord { return each(ps, PathToRecord) }

func LocationsToRecords(ls []mapdoc.Location) []models.LocationRecord {
	return each(ls, LocationToRecord)
}

func PointsFromRecords(recs []models.PointRecord, layerID string) []mapdoc.Point {
	return each(recs, func(r models.PointRecord) mapdoc.Point { return PointFromRecord(r, layerID) })
}

// PathsFromRecords builds paths on layerID. Each path runs between its end
// points when both appear in points, else it gets the default segment.
func PathsFromRecords(recs []models.PathRecord, layerID string, points []mapdoc.Point) []mapdoc.Path {
	byID := make(map[string]mapdoc.Point, len(points))
	for _, p := range points {
		byID[p.ID] = p
	}
	return each(recs, func(r models.PathRecord) mapdoc.Path {
		start, okStart := byID[r.StartPointID.String()]
		end, okEnd := byID[r.EndPointID.String()]
		if !okStart || !okEnd {
			return PathFromRecord(r, layerID, nil)
		}
		return PathFromRecord(r, layerID, []mapdoc.Vertex{
			{ID: start.ID, X: start.X, Y: start.Y, Z: copyFloat(start.Z)},
			{ID: end.ID, X: end.X, Y: end.Y, Z: copyFloat(end.Z)},
		})
	})
}

func LocationsFromRecords(recs []models.LocationRecord, layerID string) []mapdoc.Location {
	return each(recs, func(r models.LocationRecord) mapdoc.Location { return LocationFromRecord(r, layerID, nil) })
}

// Records exports every element of doc as service records.
func Records(doc *mapdoc.Document) RecordSet {
	return RecordSet{
		MapID:     doc.MapInfo.ID.String(),
		Points:    PointsToRecords(doc.Elements.Points),
		Paths:     PathsToRecords(doc.Elements.Paths),
		Locations: LocationsToRecords(doc.Elements.Locations),
	}
}

// Elements imports a record set onto a single layer.
func Elements(set RecordSet, layerID string) mapdoc.Elements {
	points := PointsFromRecords(set.Points, layerID)
	return mapdoc.Elements{
		Points:    points,
		Paths:     PathsFromRecords(set.Paths, layerID, points),
		Locations: LocationsFromRecords(set.Locations, layerID),
	}
}
