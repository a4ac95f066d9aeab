package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mapforge/internal/apperr"
	"github.com/starford/mapforge/internal/mapdoc"
)

// kinds maps collection names in URLs to element kinds.
var kinds = map[string]mapdoc.ElementKind{
	"points":    mapdoc.KindPoint,
	"paths":     mapdoc.KindPath,
	"locations": mapdoc.KindLocation,
}

func elementKind(r *http.Request) (mapdoc.ElementKind, error) {
	k, ok := kinds[chi.URLParam(r, "kind")]
	if !ok {
		return "", fmt.Errorf("unknown element collection %q: %w", chi.URLParam(r, "kind"), apperr.ErrNotFound)
	}
	return k, nil
}

// decodeElement decodes a request body into the element type of kind.
func decodeElement(kind mapdoc.ElementKind, body json.RawMessage) (any, error) {
	var (
		v   any
		err error
	)
	switch kind {
	case mapdoc.KindPoint:
		var p mapdoc.Point
		err = json.Unmarshal(body, &p)
		v = p
	case mapdoc.KindPath:
		var p mapdoc.Path
		err = json.Unmarshal(body, &p)
		v = p
	case mapdoc.KindLocation:
		var l mapdoc.Location
		err = json.Unmarshal(body, &l)
		v = l
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %v: %w", kind, err, apperr.ErrInvalid)
	}
	return v, nil
}

// lookup returns a copy of the element of kind with id.
func lookup(ed *mapdoc.Editor, kind mapdoc.ElementKind, id string) (any, error) {
	var (
		v  any
		ok bool
	)
	switch kind {
	case mapdoc.KindPoint:
		v, ok = ed.Point(id)
	case mapdoc.KindPath:
		v, ok = ed.Path(id)
	case mapdoc.KindLocation:
		v, ok = ed.Location(id)
	}
	if !ok {
		return nil, fmt.Errorf("%s %q: %w", kind, id, mapdoc.ErrElementNotFound)
	}
	return v, nil
}

// elementCommand executes the command built by build and replies with the
// element it touched.
func (h *Handler) elementCommand(w http.ResponseWriter, r *http.Request, op string, status int, build func(*mapdoc.Editor, mapdoc.ElementKind) (*mapdoc.Command, error)) {
	kind, err := elementKind(r)
	if err != nil {
		writeError(w, op, err)
		return
	}
	var out any
	err = h.ws.Edit(mapID(r), func(ed *mapdoc.Editor) error {
		cmd, err := build(ed, kind)
		if err != nil {
			return err
		}
		if err := ed.Execute(cmd); err != nil {
			return err
		}
		out, err = lookup(ed, kind, cmd.ElementID)
		return err
	})
	if err != nil {
		writeError(w, op, err)
		return
	}
	writeJSON(w, status, out)
}

// AddElement handles POST /api/maps/{id}/{kind}.
//
//	@Summary		Add a point, path or location
//	@Tags			elements
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string	true	"Map id"
//	@Param			kind	path		string	true	"Element collection"	Enums(points, paths, locations)
//	@Success		201		{object}	object
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/maps/{id}/{kind} [post]
func (h *Handler) AddElement(w http.ResponseWriter, r *http.Request) {
	var body json.RawMessage
	if !decodeBody(w, r, &body) {
		return
	}
	h.elementCommand(w, r, "add element", http.StatusCreated, func(_ *mapdoc.Editor, kind mapdoc.ElementKind) (*mapdoc.Command, error) {
		el, err := decodeElement(kind, body)
		if err != nil {
			return nil, err
		}
		return mapdoc.NewAddCommand(kind, el)
	})
}

// UpdateElement handles PATCH /api/maps/{id}/{kind}/{eid}.
func (h *Handler) UpdateElement(w http.ResponseWriter, r *http.Request) {
	var req UpdatePropertyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "eid")
	h.elementCommand(w, r, "update element", http.StatusOK, func(ed *mapdoc.Editor, kind mapdoc.ElementKind) (*mapdoc.Command, error) {
		var value any
		if len(req.Value) > 0 {
			value = req.Value
		}
		return ed.UpdatePropertyCommand(kind, id, req.Property, value)
	})
}

// MoveElement handles POST /api/maps/{id}/{kind}/{eid}/move.
func (h *Handler) MoveElement(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.To == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("to is required"))
		return
	}
	id := chi.URLParam(r, "eid")
	h.elementCommand(w, r, "move element", http.StatusOK, func(ed *mapdoc.Editor, kind mapdoc.ElementKind) (*mapdoc.Command, error) {
		if req.From == nil {
			return ed.MoveCommand(kind, id, *req.To)
		}
		if _, err := lookup(ed, kind, id); err != nil {
			return nil, err
		}
		return mapdoc.NewMoveCommand(kind, id, *req.From, *req.To)
	})
}

// DeleteElement handles DELETE /api/maps/{id}/{kind}/{eid}.
func (h *Handler) DeleteElement(w http.ResponseWriter, r *http.Request) {
	kind, err := elementKind(r)
	if err != nil {
		writeError(w, "delete element", err)
		return
	}
	id := chi.URLParam(r, "eid")
	err = h.ws.Edit(mapID(r), func(ed *mapdoc.Editor) error {
		cmd, err := ed.DeleteCommand(kind, id)
		if err != nil {
			return err
		}
		return ed.Execute(cmd)
	})
	if err != nil {
		writeError(w, "delete element", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
