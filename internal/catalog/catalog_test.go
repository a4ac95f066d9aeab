package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/mapforge/internal/apperr"
	"github.com/starford/mapforge/internal/models"
	"github.com/starford/mapforge/internal/storage"
)

const sampleMap = `{
  "mapInfo": {"id": "yard", "name": "Yard", "version": "2.1", "width": 800, "height": 600},
  "layers": [{"id": "l1", "name": "Default layer", "elementIds": ["p1"]}],
  "elements": {
    "points": [{"id": "p1", "layerId": "l1", "name": "Point-0001", "x": 1, "y": 2}],
    "paths": [],
    "locations": []
  }
}`

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "mapforge-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func summary(id, name, cs string) models.MapSummary {
	return models.MapSummary{ID: id, Name: name, Version: "1.0", Checksum: cs, UpdatedAt: time.Now()}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM maps`).Scan(&count); err != nil {
		t.Fatalf("maps table missing: %v", err)
	}
}

func TestUpsertAndGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	s := summary("m1", "North yard", "abc")
	s.Points = 3
	if err := db.Upsert(ctx, s); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := db.Get(ctx, "m1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "North yard" || got.Points != 3 || got.Checksum != "abc" {
		t.Errorf("unexpected summary: %+v", got)
	}

	s.Name = "South yard"
	s.Checksum = "def"
	if err := db.Upsert(ctx, s); err != nil {
		t.Fatalf("Upsert again: %v", err)
	}
	got, _ = db.Get(ctx, "m1")
	if got.Name != "South yard" || got.Checksum != "def" {
		t.Errorf("upsert did not replace: %+v", got)
	}
}

func TestGetMissing(t *testing.T) {
	db := testDB(t)
	_, err := db.Get(context.Background(), "nope")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.Upsert(ctx, summary("m1", "A", "x"))

	if err := db.Delete(ctx, "m1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := db.Get(ctx, "m1"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected deleted map to be gone, got %v", err)
	}
	if err := db.Delete(ctx, "m1"); err != nil {
		t.Fatalf("Delete of unknown id should succeed: %v", err)
	}
}

func TestListSearchAndPaging(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.Upsert(ctx, summary("a", "Charlie", "1"))
	_ = db.Upsert(ctx, summary("b", "alpha", "2"))
	_ = db.Upsert(ctx, summary("c", "Bravo_1", "3"))

	all, total, err := db.List(ctx, "", 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 || len(all) != 3 {
		t.Fatalf("expected 3 maps, got %d (total %d)", len(all), total)
	}
	if all[0].Name != "alpha" || all[1].Name != "Bravo_1" || all[2].Name != "Charlie" {
		t.Errorf("unexpected order: %v, %v, %v", all[0].Name, all[1].Name, all[2].Name)
	}

	page, total, _ := db.List(ctx, "", 1, 1)
	if total != 3 || len(page) != 1 || page[0].Name != "Bravo_1" {
		t.Errorf("unexpected page: %+v (total %d)", page, total)
	}

	hits, total, _ := db.List(ctx, "_", 0, 0)
	if total != 1 || len(hits) != 1 || hits[0].ID != "c" {
		t.Errorf("underscore should match literally, got %+v", hits)
	}

	none, total, _ := db.List(ctx, "zzz", 0, 0)
	if total != 0 || none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil result, got %#v", none)
	}
}

func TestSummarize(t *testing.T) {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s, err := Summarize("yard", []byte(sampleMap), at)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if s.Name != "Yard" || s.Version != "2.1" {
		t.Errorf("unexpected header: %+v", s)
	}
	if s.Layers != 1 || s.Points != 1 || s.Paths != 0 || s.Locations != 0 {
		t.Errorf("unexpected counts: %+v", s)
	}
	if s.Checksum == "" || !s.UpdatedAt.Equal(at) {
		t.Errorf("missing checksum or timestamp: %+v", s)
	}

	if _, err := Summarize("bad", []byte("not json"), at); err == nil {
		t.Error("expected error for malformed document")
	}
}

func TestSyncAddsUpdatesAndRemoves(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	db := testDB(t)
	ctx := context.Background()
	logger := quietLogger()

	_ = os.WriteFile(filepath.Join(dir, "yard.json"), []byte(sampleMap), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{"), 0o644)
	_ = db.Upsert(ctx, summary("gone", "Gone", "zzz"))

	if err := Sync(ctx, db, store, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	got, err := db.Get(ctx, "yard")
	if err != nil {
		t.Fatalf("yard not cataloged: %v", err)
	}
	if got.Name != "Yard" || got.Points != 1 {
		t.Errorf("unexpected summary: %+v", got)
	}
	if _, err := db.Get(ctx, "gone"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("stale entry not removed: %v", err)
	}
	if _, err := db.Get(ctx, "broken"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("malformed map should be skipped: %v", err)
	}

	updated := `{"mapInfo": {"name": "Yard v2"}, "layers": [], "elements": {"points": [], "paths": [], "locations": []}}`
	_ = os.WriteFile(filepath.Join(dir, "yard.json"), []byte(updated), 0o644)
	if err := Sync(ctx, db, store, logger); err != nil {
		t.Fatalf("Sync again: %v", err)
	}
	got, _ = db.Get(ctx, "yard")
	if got.Name != "Yard v2" || got.Points != 0 {
		t.Errorf("changed map not re-cataloged: %+v", got)
	}
}
