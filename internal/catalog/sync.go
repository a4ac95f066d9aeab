package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/mapforge/internal/checksum"
	"github.com/starford/mapforge/internal/mapdoc"
	"github.com/starford/mapforge/internal/models"
	"github.com/starford/mapforge/internal/storage"
)

// Summarize normalizes a stored document and describes it for the catalog.
func Summarize(id string, data []byte, updatedAt time.Time) (models.MapSummary, error) {
	doc, err := mapdoc.Normalize(data, id, updatedAt)
	if err != nil {
		return models.MapSummary{}, err
	}
	return models.MapSummary{
		ID:          id,
		Name:        doc.MapInfo.Name,
		Version:     doc.MapInfo.Version,
		Description: doc.MapInfo.Description,
		Checksum:    checksum.Sum(data),
		Layers:      len(doc.Layers),
		Points:      len(doc.Elements.Points),
		Paths:       len(doc.Elements.Paths),
		Locations:   len(doc.Elements.Locations),
		UpdatedAt:   updatedAt,
	}, nil
}

// Sync walks the store and brings the catalog up to date:
//   - new/changed documents are summarized and upserted
//   - documents removed from the store are deleted from the catalog
func Sync(ctx context.Context, db Catalog, store storage.Provider, logger *slog.Logger) error {
	files, err := store.List(ctx)
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums(ctx)
	if err != nil {
		return err
	}

	stored := make(map[string]struct{}, len(files))
	for _, f := range files {
		stored[f.ID] = struct{}{}

		if checksums[f.ID] == f.Checksum {
			continue
		}
		if err := catalogFile(ctx, db, store, f); err != nil {
			logger.Warn("sync: catalog failed", slog.String("map_id", f.ID), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: cataloged", slog.String("map_id", f.ID))
		}
	}

	// Remove stale entries.
	for id := range checksums {
		if _, ok := stored[id]; !ok {
			if err := db.Delete(ctx, id); err != nil {
				logger.Warn("sync: delete failed", slog.String("map_id", id), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("map_id", id))
			}
		}
	}

	return nil
}

// catalogFile reads one stored document and upserts its summary.
func catalogFile(ctx context.Context, db Catalog, store storage.Provider, f models.MapFile) error {
	data, err := store.Load(ctx, f.ID)
	if err != nil {
		return err
	}
	s, err := Summarize(f.ID, data, f.UpdatedAt)
	if err != nil {
		return err
	}
	return db.Upsert(ctx, s)
}
