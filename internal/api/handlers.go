package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mapforge/internal/catalog"
	"github.com/starford/mapforge/internal/convert"
	"github.com/starford/mapforge/internal/mapdoc"
	"github.com/starford/mapforge/internal/models"
	"github.com/starford/mapforge/internal/workspace"
)

// Handler holds API route handlers.
type Handler struct {
	ws      *workspace.Workspace
	catalog catalog.Catalog
}

// NewHandler creates a new Handler. cat may be nil, in which case the map
// listing is empty.
func NewHandler(ws *workspace.Workspace, cat catalog.Catalog) *Handler {
	return &Handler{ws: ws, catalog: cat}
}

func mapID(r *http.Request) string { return chi.URLParam(r, "id") }

// state replies with the editor state of the map named in the URL.
func (h *Handler) state(w http.ResponseWriter, r *http.Request, status int) {
	var st EditorState
	err := h.ws.View(mapID(r), func(ed *mapdoc.Editor) error {
		st = stateOf(ed)
		return nil
	})
	if err != nil {
		writeError(w, "get map", err)
		return
	}
	writeJSON(w, status, st)
}

// ListMaps handles GET /api/maps.
//
//	@Summary		List and search stored maps
//	@Tags			maps
//	@Produce		json
//	@Param			q		query		string	false	"Substring of the map id or name"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	MapListResponse
//	@Security		BearerAuth
//	@Router			/maps [get]
func (h *Handler) ListMaps(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	if h.catalog == nil {
		writeJSON(w, http.StatusOK, MapListResponse{Maps: []models.MapSummary{}})
		return
	}
	maps, total, err := h.catalog.List(r.Context(), q.Get("q"), limit, offset)
	if err != nil {
		writeError(w, "list maps", err)
		return
	}
	writeJSON(w, http.StatusOK, MapListResponse{Maps: maps, Total: total})
}

// OpenMap handles POST /api/maps/{id}/open.
//
//	@Summary		Load a map into the editing workspace
//	@Tags			maps
//	@Produce		json
//	@Param			id	path		string	true	"Map id"
//	@Success		200	{object}	EditorState
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/maps/{id}/open [post]
func (h *Handler) OpenMap(w http.ResponseWriter, r *http.Request) {
	if _, err := h.ws.Open(r.Context(), mapID(r)); err != nil {
		writeError(w, "open map", err)
		return
	}
	h.state(w, r, http.StatusOK)
}

// GetMap handles GET /api/maps/{id}.
//
//	@Summary		Get the editor state of an open map
//	@Tags			maps
//	@Produce		json
//	@Param			id	path		string	true	"Map id"
//	@Success		200	{object}	EditorState
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/maps/{id} [get]
func (h *Handler) GetMap(w http.ResponseWriter, r *http.Request) {
	h.state(w, r, http.StatusOK)
}

// CloseMap handles DELETE /api/maps/{id}. Unsaved edits are discarded.
func (h *Handler) CloseMap(w http.ResponseWriter, r *http.Request) {
	if err := h.ws.Close(mapID(r)); err != nil {
		writeError(w, "close map", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SaveMap handles POST /api/maps/{id}/save.
//
//	@Summary		Persist an open map
//	@Tags			maps
//	@Produce		json
//	@Param			id	path		string	true	"Map id"
//	@Success		200	{object}	EditorState
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/maps/{id}/save [post]
func (h *Handler) SaveMap(w http.ResponseWriter, r *http.Request) {
	if _, err := h.ws.Save(r.Context(), mapID(r)); err != nil {
		writeError(w, "save map", err)
		return
	}
	h.state(w, r, http.StatusOK)
}

// UpdateMapInfo handles PATCH /api/maps/{id}/info.
func (h *Handler) UpdateMapInfo(w http.ResponseWriter, r *http.Request) {
	var patch mapdoc.Patch
	if !decodeBody(w, r, &patch) {
		return
	}
	var info mapdoc.MapInfo
	err := h.ws.Edit(mapID(r), func(ed *mapdoc.Editor) error {
		if err := ed.UpdateMapInfo(patch); err != nil {
			return err
		}
		info = ed.MapInfo()
		return nil
	})
	if err != nil {
		writeError(w, "update map info", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Undo handles POST /api/maps/{id}/undo.
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, (*mapdoc.Editor).Undo)
}

// Redo handles POST /api/maps/{id}/redo.
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, (*mapdoc.Editor).Redo)
}

func (h *Handler) step(w http.ResponseWriter, r *http.Request, fn func(*mapdoc.Editor) bool) {
	var ok bool
	err := h.ws.Edit(mapID(r), func(ed *mapdoc.Editor) error {
		ok = fn(ed)
		return nil
	})
	if err != nil {
		writeError(w, "history", err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: ok})
}

// Select handles POST /api/maps/{id}/selection.
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	var req SelectRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var sel mapdoc.Selection
	err := h.ws.Edit(mapID(r), func(ed *mapdoc.Editor) error {
		if err := ed.SelectElement(req.ID, req.Kind, req.Multi); err != nil {
			return err
		}
		sel = ed.Selection()
		return nil
	})
	if err != nil {
		writeError(w, "select", err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

// ClearSelection handles DELETE /api/maps/{id}/selection.
func (h *Handler) ClearSelection(w http.ResponseWriter, r *http.Request) {
	err := h.ws.Edit(mapID(r), func(ed *mapdoc.Editor) error {
		ed.ClearSelection()
		return nil
	})
	if err != nil {
		writeError(w, "clear selection", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetTool handles PUT /api/maps/{id}/tool.
func (h *Handler) SetTool(w http.ResponseWriter, r *http.Request) {
	var req ToolRequest
	if !decodeBody(w, r, &req) {
		return
	}
	var resp ToolResponse
	err := h.ws.Edit(mapID(r), func(ed *mapdoc.Editor) error {
		if req.Tool != nil {
			if err := ed.SetTool(*req.Tool); err != nil {
				return err
			}
		}
		if req.PointType != nil {
			ed.SetPointType(*req.PointType)
		}
		if req.ConnectionType != nil {
			if err := ed.SetPathConnectionType(*req.ConnectionType); err != nil {
				return err
			}
		}
		resp = ToolResponse{Tool: ed.Tool(), PointType: ed.PointType(), ConnectionType: ed.PathConnectionType()}
		return nil
	})
	if err != nil {
		writeError(w, "set tool", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateCanvas handles PATCH /api/maps/{id}/canvas.
func (h *Handler) UpdateCanvas(w http.ResponseWriter, r *http.Request) {
	var patch mapdoc.Patch
	if !decodeBody(w, r, &patch) {
		return
	}
	var canvas mapdoc.CanvasState
	err := h.ws.Edit(mapID(r), func(ed *mapdoc.Editor) error {
		if err := ed.UpdateCanvas(patch); err != nil {
			return err
		}
		canvas = ed.Canvas()
		return nil
	})
	if err != nil {
		writeError(w, "update canvas", err)
		return
	}
	writeJSON(w, http.StatusOK, canvas)
}

// Snap handles POST /api/maps/{id}/snap.
func (h *Handler) Snap(w http.ResponseWriter, r *http.Request) {
	var req SnapRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := h.ws.Snap(mapID(r), req.Point, req.Options)
	if err != nil {
		writeError(w, "snap", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"point": p})
}

// Records handles GET /api/maps/{id}/records: the document as fleet control
// records.
func (h *Handler) Records(w http.ResponseWriter, r *http.Request) {
	var set convert.RecordSet
	err := h.ws.View(mapID(r), func(ed *mapdoc.Editor) error {
		set = convert.Records(ed.Document())
		return nil
	})
	if err != nil {
		writeError(w, "records", err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}
