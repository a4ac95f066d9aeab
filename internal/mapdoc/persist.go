package mapdoc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/mapforge/internal/apperr"
	"github.com/starford/mapforge/internal/geom"
	"github.com/starford/mapforge/internal/models"
)

// Persistence loads and stores serialized map documents.
type Persistence interface {
	// Load returns the stored data for mapID. A missing map is reported
	// with an error wrapping apperr.ErrNotFound.
	Load(ctx context.Context, mapID string) ([]byte, error)
	Save(ctx context.Context, mapID string, data []byte) error
}

// LoadMap fetches and normalizes the map, replacing the editor state. The
// history and selection start empty and the document is clean.
func (e *Editor) LoadMap(ctx context.Context, mapID string) (*Document, error) {
	if e.persist == nil {
		return nil, fmt.Errorf("mapdoc: load %s: %w", mapID, ErrNoPersistence)
	}
	e.loading = true
	defer func() { e.loading = false }()

	data, err := e.persist.Load(ctx, mapID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("mapdoc: load %s: %w", mapID, ErrMapNotFound)
		}
		return nil, fmt.Errorf("mapdoc: load %s: %w", mapID, err)
	}
	doc, err := Normalize(data, mapID, e.now())
	if err != nil {
		return nil, fmt.Errorf("mapdoc: load %s: %w", mapID, err)
	}
	e.install(mapID, doc)
	e.logger.Info("map loaded",
		slog.String("map_id", mapID),
		slog.Int("layers", len(e.layers)),
		slog.Int("points", len(e.points.items)),
		slog.Int("paths", len(e.paths.items)),
		slog.Int("locations", len(e.locations.items)),
	)
	return e.Document(), nil
}

// Assign installs doc as the document for mapID, as if it had been loaded.
func (e *Editor) Assign(mapID string, doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("mapdoc: assign %s: %w", mapID, err)
	}
	norm, err := Normalize(data, mapID, e.now())
	if err != nil {
		return fmt.Errorf("mapdoc: assign %s: %w", mapID, err)
	}
	e.install(mapID, norm)
	return nil
}

// SaveSnapshot is a serialized document ready for upload.
type SaveSnapshot struct {
	MapID    string
	Version  string
	Document *Document
	Data     []byte
	Revision uint64
}

// PrepareSave refreshes derived fields, stamps the document and serializes
// it. The editor reports Loading until FinishSave is called.
func (e *Editor) PrepareSave() (*SaveSnapshot, error) {
	if e.mapID == "" || e.header == nil {
		return nil, fmt.Errorf("mapdoc: save: %w", ErrNoDocument)
	}
	e.refreshDerived()

	info := &e.header.MapInfo
	info.Scale = e.canvas.Scale
	info.OffsetX = e.canvas.OffsetX
	info.OffsetY = e.canvas.OffsetY
	info.Width = e.canvas.Width
	info.Height = e.canvas.Height
	if info.ID == "" {
		info.ID = models.FlexID(e.mapID)
	}
	if info.Name == "" {
		info.Name = "Map_" + e.mapID
	}
	e.header.Metadata.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	doc := e.Document()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mapdoc: encode %s: %w", e.mapID, err)
	}
	e.loading = true
	return &SaveSnapshot{
		MapID:    e.mapID,
		Version:  info.Version,
		Document: doc,
		Data:     data,
		Revision: e.revision,
	}, nil
}

// FinishSave ends a save started by PrepareSave. On success the document is
// marked clean, unless it changed after the snapshot was taken.
func (e *Editor) FinishSave(rev uint64, err error) {
	e.loading = false
	if err == nil && rev == e.revision {
		e.dirty = false
	}
}

// SaveMap writes the document through the persistence backend.
func (e *Editor) SaveMap(ctx context.Context) (*Document, error) {
	if e.persist == nil {
		return nil, fmt.Errorf("mapdoc: save: %w", ErrNoPersistence)
	}
	snap, err := e.PrepareSave()
	if err != nil {
		return nil, err
	}
	err = e.persist.Save(ctx, snap.MapID, snap.Data)
	e.FinishSave(snap.Revision, err)
	if err != nil {
		return nil, fmt.Errorf("mapdoc: save %s: %w", snap.MapID, err)
	}
	e.logger.Info("map saved", slog.String("map_id", snap.MapID), slog.Int("bytes", len(snap.Data)))
	return snap.Document, nil
}

// refreshDerived recomputes path lengths and location centers.
func (e *Editor) refreshDerived() {
	for i := range e.paths.items {
		p := &e.paths.items[i]
		if len(p.Geometry.ControlPoints) < 2 {
			continue
		}
		p.Length = geom.Float(geom.PolylineLength(p.Polyline()))
	}
	for i := range e.locations.items {
		l := &e.locations.items[i]
		if len(l.Geometry.Vertices) == 0 {
			continue
		}
		c := geom.Centroid(l.Polygon())
		l.X, l.Y, l.Z = geom.Float(c.X), geom.Float(c.Y), c.Z
	}
}
