package catalog

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/mapforge/internal/storage"
)

// watcherTestEnv sets up a map dir, storage, and DB for watcher tests.
func watcherTestEnv(t *testing.T) (string, *storage.FS, *DB) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store, testDB(t)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func has(db *DB, id string) bool {
	_, err := db.Get(context.Background(), id)
	return err == nil
}

func TestWatcher_NewFileCataloged(t *testing.T) {
	_, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string

	go Watch(ctx, db, store, quietLogger(), func(kind, id string) {
		mu.Lock()
		events = append(events, kind+":"+id)
		mu.Unlock()
	})

	time.Sleep(100 * time.Millisecond)

	if err := store.Save(ctx, "yard", []byte(sampleMap)); err != nil {
		t.Fatal(err)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return has(db, "yard")
	}, "new map not cataloged by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:yard" {
				return true
			}
		}
		return false
	}, "expected created:yard callback")
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir, store, db := watcherTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go Watch(ctx, db, store, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(sampleMap), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "yard.json"), []byte(sampleMap), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return has(db, "yard")
	}, "map not cataloged")
	if has(db, "notes") {
		t.Error("non-map file should not be cataloged")
	}
}

func TestWatcher_DeleteRemovesFromCatalog(t *testing.T) {
	dir, store, db := watcherTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = os.WriteFile(filepath.Join(dir, "del.json"), []byte(sampleMap), 0o644)
	_ = Sync(ctx, db, store, quietLogger())
	if !has(db, "del") {
		t.Fatal("precondition: map should be cataloged")
	}

	go Watch(ctx, db, store, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(dir, "del.json"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !has(db, "del")
	}, "deleted map still in catalog")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	dir, store, db := watcherTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_ = os.WriteFile(filepath.Join(dir, "old.json"), []byte(sampleMap), 0o644)
	_ = Sync(ctx, db, store, quietLogger())

	go Watch(ctx, db, store, quietLogger(), nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(dir, "old.json"), filepath.Join(dir, "renamed.json"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !has(db, "old") && has(db, "renamed")
	}, "rename reconciliation failed: old id should be removed and new id cataloged")
}
