// Package storage keeps map documents as JSON files in a local directory.
package storage

import (
	"context"

	"github.com/starford/mapforge/internal/models"
)

// Provider stores serialized map documents keyed by map id. It satisfies
// mapdoc.Persistence.
type Provider interface {
	// Load returns the document for mapID, or an error wrapping
	// apperr.ErrNotFound.
	Load(ctx context.Context, mapID string) ([]byte, error)
	// Save atomically replaces the document for mapID.
	Save(ctx context.Context, mapID string, data []byte) error
	// Delete removes the document for mapID.
	Delete(ctx context.Context, mapID string) error
	// List describes every stored document.
	List(ctx context.Context) ([]models.MapFile, error)
}
