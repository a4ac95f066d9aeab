package mapdoc

import (
	"fmt"

	"github.com/starford/mapforge/internal/apperr"
)

var (
	ErrNoDocument        = fmt.Errorf("no map is loaded: %w", apperr.ErrInvalid)
	ErrInvalidDocument   = fmt.Errorf("map data has an unrecognized shape: %w", apperr.ErrInvalid)
	ErrMapNotFound       = fmt.Errorf("map data does not exist: %w", apperr.ErrNotFound)
	ErrLayerNotFound     = fmt.Errorf("layer not found: %w", apperr.ErrNotFound)
	ErrLayerGroupInUse   = fmt.Errorf("layer group still has layers: %w", apperr.ErrConflict)
	ErrDuplicateID       = fmt.Errorf("element id already exists: %w", apperr.ErrAlreadyExists)
	ErrElementNotFound   = fmt.Errorf("element not found: %w", apperr.ErrNotFound)
	ErrInvalidCommand    = fmt.Errorf("malformed command: %w", apperr.ErrInvalid)
	ErrNoPersistence     = fmt.Errorf("no persistence configured: %w", apperr.ErrInvalid)
	ErrProtectedProperty = fmt.Errorf("property cannot be changed: %w", apperr.ErrInvalid)
)
