package api

import (
	"encoding/json"

	"github.com/starford/mapforge/internal/geom"
	"github.com/starford/mapforge/internal/mapdoc"
	"github.com/starford/mapforge/internal/models"
)

// MapListResponse wraps paginated catalog listings.
type MapListResponse struct {
	Maps  []models.MapSummary `json:"maps" validate:"required"`
	Total int                 `json:"total" example:"42" validate:"required"`
}

// EditorState is the full state of an open map.
type EditorState struct {
	MapID          string                `json:"mapId" example:"42"`
	Document       *mapdoc.Document      `json:"document"`
	Selection      mapdoc.Selection      `json:"selection"`
	ActiveLayerID  string                `json:"activeLayerId"`
	Tool           mapdoc.ToolMode       `json:"tool" example:"select"`
	PointType      string                `json:"pointType"`
	ConnectionType mapdoc.ConnectionType `json:"connectionType"`
	Canvas         mapdoc.CanvasState    `json:"canvas"`
	Dirty          bool                  `json:"dirty"`
	Loading        bool                  `json:"loading"`
	CanUndo        bool                  `json:"canUndo"`
	CanRedo        bool                  `json:"canRedo"`
}

func stateOf(ed *mapdoc.Editor) EditorState {
	return EditorState{
		MapID:          ed.MapID(),
		Document:       ed.Document(),
		Selection:      ed.Selection(),
		ActiveLayerID:  ed.ActiveLayerID(),
		Tool:           ed.Tool(),
		PointType:      ed.PointType(),
		ConnectionType: ed.PathConnectionType(),
		Canvas:         ed.Canvas(),
		Dirty:          ed.Dirty(),
		Loading:        ed.Loading(),
		CanUndo:        ed.CanUndo(),
		CanRedo:        ed.CanRedo(),
	}
}

// UpdatePropertyRequest sets one dotted property of an element.
type UpdatePropertyRequest struct {
	Property string          `json:"property" example:"editorProps.color" validate:"required"`
	Value    json.RawMessage `json:"value"`
}

// MoveRequest moves an element to To. From defaults to the element's
// current position.
type MoveRequest struct {
	From *geom.Point `json:"from,omitempty"`
	To   *geom.Point `json:"to" validate:"required"`
}

// SelectRequest selects one element.
type SelectRequest struct {
	ID    string             `json:"id" validate:"required"`
	Kind  mapdoc.ElementKind `json:"kind" example:"point" validate:"required"`
	Multi bool               `json:"multi"`
}

// ToolRequest changes any of the tool settings.
type ToolRequest struct {
	Tool           *mapdoc.ToolMode       `json:"tool,omitempty"`
	PointType      *string                `json:"pointType,omitempty"`
	ConnectionType *mapdoc.ConnectionType `json:"connectionType,omitempty"`
}

// ToolResponse reports the tool settings.
type ToolResponse struct {
	Tool           mapdoc.ToolMode       `json:"tool"`
	PointType      string                `json:"pointType"`
	ConnectionType mapdoc.ConnectionType `json:"connectionType"`
}

// ActiveLayerRequest names the layer to activate.
type ActiveLayerRequest struct {
	ID string `json:"id" validate:"required"`
}

// SnapRequest snaps Point. Options replace the configured defaults when set.
type SnapRequest struct {
	Point   geom.Point    `json:"point" validate:"required"`
	Options *geom.Options `json:"options,omitempty"`
}

// OKResponse reports whether an undo or redo took effect.
type OKResponse struct {
	OK bool `json:"ok"`
}
