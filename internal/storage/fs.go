package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/starford/mapforge/internal/apperr"
	"github.com/starford/mapforge/internal/checksum"
	"github.com/starford/mapforge/internal/models"
)

// Ext is the file extension of stored documents.
const Ext = ".json"

var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// FS implements Provider backed by the local file system. Each map lives in
// <root>/<mapID>.json.
type FS struct {
	root string // absolute path to the map directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute map directory.
func (f *FS) Root() string { return f.root }

// MapID returns the map id stored at path, if path names a document file
// directly inside the root.
func (f *FS) MapID(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil || filepath.Dir(abs) != f.root {
		return "", false
	}
	name := filepath.Base(abs)
	if !strings.HasSuffix(name, Ext) {
		return "", false
	}
	id := strings.TrimSuffix(name, Ext)
	if !validID.MatchString(id) {
		return "", false
	}
	return id, true
}

// safePath maps a map id to its file and rejects ids that could escape the
// root.
func (f *FS) safePath(mapID string) (string, error) {
	if !validID.MatchString(mapID) || strings.Contains(mapID, "..") {
		return "", fmt.Errorf("storage: invalid map id %q: %w", mapID, apperr.ErrInvalid)
	}
	abs := filepath.Join(f.root, mapID+Ext)
	if filepath.Dir(abs) != f.root {
		return "", fmt.Errorf("storage: map id escapes root: %q: %w", mapID, apperr.ErrInvalid)
	}
	return abs, nil
}

// List returns metadata for every stored document, ordered by id.
func (f *FS) List(ctx context.Context) ([]models.MapFile, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	var out []models.MapFile
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() {
			continue
		}
		id, ok := f.MapID(filepath.Join(f.root, e.Name()))
		if !ok {
			continue
		}
		mf, err := f.stat(id)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("storage: list: %w", err)
		}
		out = append(out, mf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Stat describes one stored document.
func (f *FS) Stat(mapID string) (models.MapFile, error) {
	if _, err := f.safePath(mapID); err != nil {
		return models.MapFile{}, err
	}
	mf, err := f.stat(mapID)
	if errors.Is(err, fs.ErrNotExist) {
		return models.MapFile{}, fmt.Errorf("storage: stat %s: %w", mapID, apperr.ErrNotFound)
	}
	return mf, err
}

func (f *FS) stat(mapID string) (models.MapFile, error) {
	p := filepath.Join(f.root, mapID+Ext)
	info, err := os.Stat(p)
	if err != nil {
		return models.MapFile{}, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return models.MapFile{}, err
	}
	return models.MapFile{ID: mapID, Checksum: checksum.Sum(data), UpdatedAt: info.ModTime()}, nil
}

// Load returns the raw document bytes.
func (f *FS) Load(ctx context.Context, mapID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	abs, err := f.safePath(mapID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("storage: read %s: %w", mapID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", mapID, err)
	}
	return data, nil
}

// Save atomically writes content: tmp file → fsync → rename.
func (f *FS) Save(ctx context.Context, mapID string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	abs, err := f.safePath(mapID)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, ".mapforge-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes a stored document.
func (f *FS) Delete(ctx context.Context, mapID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	abs, err := f.safePath(mapID)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("storage: delete %s: %w", mapID, apperr.ErrNotFound)
		}
		return fmt.Errorf("storage: delete %s: %w", mapID, err)
	}
	return nil
}
