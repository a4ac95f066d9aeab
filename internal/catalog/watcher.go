package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/mapforge/internal/models"
	"github.com/starford/mapforge/internal/storage"
)

// Event kinds reported to an EventCallback.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// EventCallback is called after a watcher-driven catalog change.
// kind is one of EventCreated, EventUpdated, EventDeleted.
type EventCallback func(kind string, mapID string)

// reconcileDelay debounces the pass that follows a rename.
const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the map directory and processes
// document change events until ctx is cancelled. It calls cb (if non-nil)
// after each catalog mutation. Writes that leave a document's checksum
// unchanged are ignored.
//
// Rename events trigger a reconciliation pass that removes stale catalog
// entries whose files no longer exist.
func Watch(ctx context.Context, db Catalog, store *storage.FS, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(store.Root()); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", store.Root()))

	notify := func(kind, id string) {
		if cb != nil {
			cb(kind, id)
		}
	}

	// reconcileTimer is used to debounce rename reconciliation.
	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			reconcile(ctx, db, store, logger, notify)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			id, isDoc := store.MapID(ev.Name)
			if !isDoc {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				kind, changed, err := refresh(ctx, db, store, id)
				if err != nil {
					logger.Warn("watcher: catalog failed", slog.String("map_id", id), slog.String("error", err.Error()))
					continue
				}
				if !changed {
					continue
				}
				logger.Debug("watcher: cataloged", slog.String("map_id", id), slog.String("op", kind))
				notify(kind, id)

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				// fsnotify fires Rename on the OLD path only. The new
				// path arrives as a separate Create event.
				if err := db.Delete(ctx, id); err != nil {
					logger.Warn("watcher: delete failed", slog.String("map_id", id), slog.String("error", err.Error()))
					continue
				}
				logger.Debug("watcher: deleted", slog.String("map_id", id))
				notify(EventDeleted, id)
				if ev.Op&fsnotify.Rename != 0 {
					scheduleReconcile()
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// refresh re-catalogs one document. It reports whether the checksum changed
// and whether the map was new.
func refresh(ctx context.Context, db Catalog, store *storage.FS, id string) (string, bool, error) {
	f, err := store.Stat(id)
	if err != nil {
		return "", false, err
	}
	kind := EventCreated
	if prev, err := db.Get(ctx, id); err == nil {
		if prev.Checksum == f.Checksum {
			return "", false, nil
		}
		kind = EventUpdated
	}
	if err := catalogFile(ctx, db, store, f); err != nil {
		return "", false, err
	}
	return kind, true, nil
}

// reconcile removes catalog entries without a stored document and catalogs
// stored documents that are missing or stale.
func reconcile(ctx context.Context, db Catalog, store storage.Provider, logger *slog.Logger, notify func(kind, id string)) {
	checksums, err := db.AllChecksums(ctx)
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}

	files, err := store.List(ctx)
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	stored := make(map[string]models.MapFile, len(files))
	for _, f := range files {
		stored[f.ID] = f
	}

	for id := range checksums {
		if _, ok := stored[id]; !ok {
			if delErr := db.Delete(ctx, id); delErr == nil {
				logger.Debug("reconcile: removed stale", slog.String("map_id", id))
				notify(EventDeleted, id)
			}
		}
	}

	for id, f := range stored {
		prev, known := checksums[id]
		if prev == f.Checksum {
			continue
		}
		if err := catalogFile(ctx, db, store, f); err == nil {
			kind := EventCreated
			if known {
				kind = EventUpdated
			}
			logger.Debug("reconcile: cataloged", slog.String("map_id", id))
			notify(kind, id)
		}
	}
}
