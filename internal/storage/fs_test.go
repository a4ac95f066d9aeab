package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/mapforge/internal/apperr"
	"github.com/starford/mapforge/internal/checksum"
)

func tempStore(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestSaveAndLoad(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	content := []byte(`{"mapInfo":{"name":"a"}}`)
	if err := s.Save(ctx, "m1", content); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx, "m1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "m1.json")); err != nil {
		t.Errorf("expected m1.json on disk: %v", err)
	}
}

func TestLoadMissingIsNotFound(t *testing.T) {
	s := tempStore(t)
	_, err := s.Load(context.Background(), "nope")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	_ = s.Save(ctx, "del", []byte("{}"))
	if err := s.Delete(ctx, "del"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load(ctx, "del"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	if err := s.Delete(ctx, "del"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	_ = s.Save(ctx, "b", []byte(`{"b":1}`))
	_ = s.Save(ctx, "a", []byte(`{"a":1}`))
	_ = os.WriteFile(filepath.Join(s.Root(), "readme.txt"), []byte("not a map"), 0o644)
	_ = os.Mkdir(filepath.Join(s.Root(), "sub.json"), 0o755)

	items, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].ID != "a" || items[1].ID != "b" {
		t.Errorf("order = %s, %s", items[0].ID, items[1].ID)
	}
	if items[0].Checksum != checksum.Sum([]byte(`{"a":1}`)) {
		t.Errorf("checksum mismatch for a")
	}
}

func TestInvalidIDsRejected(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	cases := []string{
		"../../etc/passwd",
		"../outside",
		"/etc/shadow",
		"a/b",
		"",
		".hidden",
	}
	for _, id := range cases {
		if _, err := s.Load(ctx, id); !errors.Is(err, apperr.ErrInvalid) {
			t.Errorf("Load(%q) err = %v, want ErrInvalid", id, err)
		}
		if err := s.Save(ctx, id, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", id)
		}
	}
}

func TestMapIDFromPath(t *testing.T) {
	s := tempStore(t)
	if id, ok := s.MapID(filepath.Join(s.Root(), "m-7.json")); !ok || id != "m-7" {
		t.Errorf("MapID = %q, %v", id, ok)
	}
	for _, p := range []string{
		filepath.Join(s.Root(), "notes.txt"),
		filepath.Join(s.Root(), "sub", "m.json"),
		filepath.Join(s.Root(), ".mapforge-tmp-123"),
	} {
		if _, ok := s.MapID(p); ok {
			t.Errorf("MapID(%q) should not match", p)
		}
	}
}

func TestAtomicWriteNoCorruption(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	_ = s.Save(ctx, "atomic", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Save(ctx, "atomic", updated); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, _ := s.Load(ctx, "atomic")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	// Confirm no leftover temp files.
	matches, _ := filepath.Glob(filepath.Join(s.root, ".mapforge-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestCancelledContext(t *testing.T) {
	s := tempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Save(ctx, "m", []byte("{}")); !errors.Is(err, context.Canceled) {
		t.Errorf("Save err = %v, want context.Canceled", err)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "mapforge-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
