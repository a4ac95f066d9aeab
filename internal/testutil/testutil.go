// Package testutil provides shared test helpers for setting up map stores and catalogs.
package testutil

import (
	"os"
	"testing"

	"github.com/starford/mapforge/internal/catalog"
	"github.com/starford/mapforge/internal/storage"
)

// MapJSON is a small stored map in the editor's canonical shape.
const MapJSON = `{
  "mapInfo": {"id": "demo", "name": "Demo yard", "version": "1.0", "width": 1920, "height": 1080, "scale": 1, "offsetX": 0, "offsetY": 0},
  "layerGroups": [{"id": "g1", "name": "Default layer group", "visible": true}],
  "layers": [{"id": "l1", "name": "Default layer", "type": "point", "visible": true, "locked": false, "zIndex": 0, "opacity": 1, "layerGroupId": "g1", "elementIds": ["p1", "p2"]}],
  "elements": {
    "points": [
      {"id": "p1", "layerId": "l1", "name": "Point-0001", "x": 0, "y": 0, "type": "Halt point", "status": "active"},
      {"id": "p2", "layerId": "l1", "name": "Point-0002", "x": 30, "y": 40, "type": "Halt point", "status": "active"}
    ],
    "paths": [],
    "locations": []
  },
  "metadata": {"createdAt": "2026-01-01T00:00:00Z", "updatedAt": "2026-01-01T00:00:00Z"}
}`

// TestDB creates a temporary SQLite catalog that is automatically cleaned up.
func TestDB(t *testing.T) *catalog.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "mapforge-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := catalog.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStore creates a temporary map directory with a file-system store.
func TestStore(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}
