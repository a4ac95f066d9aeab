package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mapforge/internal/mapdoc"
)

// errGroupNotFound is reported for unknown layer group ids.
var errGroupNotFound = fmt.Errorf("layer group: %w", mapdoc.ErrElementNotFound)

func findGroup(ed *mapdoc.Editor, id string) (mapdoc.LayerGroup, error) {
	for _, g := range ed.LayerGroups() {
		if g.ID == id {
			return g, nil
		}
	}
	return mapdoc.LayerGroup{}, fmt.Errorf("%q: %w", id, errGroupNotFound)
}

func findLayer(ed *mapdoc.Editor, id string) (mapdoc.Layer, error) {
	l, ok := ed.Layer(id)
	if !ok {
		return mapdoc.Layer{}, fmt.Errorf("%q: %w", id, mapdoc.ErrLayerNotFound)
	}
	return l, nil
}

// AddLayer handles POST /api/maps/{id}/layers.
func (h *Handler) AddLayer(w http.ResponseWriter, r *http.Request) {
	var req mapdoc.Layer
	if !decodeBody(w, r, &req) {
		return
	}
	var out mapdoc.Layer
	err := h.ws.Edit(mapID(r), func(ed *mapdoc.Editor) error {
		l, err := ed.AddLayer(req)
		out = l
		return err
	})
	if err != nil {
		writeError(w, "add layer", err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// UpdateLayer handles PATCH /api/maps/{id}/layers/{lid}.
func (h *Handler) UpdateLayer(w http.ResponseWriter, r *http.Request) {
	var patch mapdoc.Patch
	if !decodeBody(w, r, &patch) {
		return
	}
	lid := chi.URLParam(r, "lid")
	var out mapdoc.Layer
	err := h.ws.Edit(mapID(r), func(ed *mapdoc.Editor) error {
		if _, err := findLayer(ed, lid); err != nil {
			return err
		}
		if err := ed.UpdateLayer(lid, patch); err != nil {
			return err
		}
		out, _ = ed.Layer(lid)
		return nil
	})
	if err != nil {
		writeError(w, "update layer", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// DeleteLayer handles DELETE /api/maps/{id}/layers/{lid}. The layer's
// elements are deleted with it.
func (h *Handler) DeleteLayer(w http.ResponseWriter, r *http.Request) {
	lid := chi.URLParam(r, "lid")
	err := h.ws.Edit(mapID(r), func(ed *mapdoc.Editor) error {
		if _, err := findLayer(ed, lid); err != nil {
			return err
		}
		ed.DeleteLayer(lid)
		return nil
	})
	if err != nil {
		writeError(w, "delete layer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetActiveLayer handles PUT /api/maps/{id}/layers/active.
func (h *Handler) SetActiveLayer(w http.ResponseWriter, r *http.Request) {
	var req ActiveLayerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	err := h.ws.Edit(mapID(r), func(ed *mapdoc.Editor) error {
		if _, err := findLayer(ed, req.ID); err != nil {
			return err
		}
		ed.SetActiveLayer(req.ID)
		return nil
	})
	if err != nil {
		writeError(w, "set active layer", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"activeLayerId": req.ID})
}

// AddLayerGroup handles POST /api/maps/{id}/layer-groups.
func (h *Handler) AddLayerGroup(w http.ResponseWriter, r *http.Request) {
	var req mapdoc.LayerGroup
	if !decodeBody(w, r, &req) {
		return
	}
	var out mapdoc.LayerGroup
	err := h.ws.Edit(mapID(r), func(ed *mapdoc.Editor) error {
		g, err := ed.AddLayerGroup(req)
		out = g
		return err
	})
	if err != nil {
		writeError(w, "add layer group", err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// UpdateLayerGroup handles PATCH /api/maps/{id}/layer-groups/{gid}.
func (h *Handler) UpdateLayerGroup(w http.ResponseWriter, r *http.Request) {
	var patch mapdoc.Patch
	if !decodeBody(w, r, &patch) {
		return
	}
	gid := chi.URLParam(r, "gid")
	var out mapdoc.LayerGroup
	err := h.ws.Edit(mapID(r), func(ed *mapdoc.Editor) error {
		if _, err := findGroup(ed, gid); err != nil {
			return err
		}
		if err := ed.UpdateLayerGroup(gid, patch); err != nil {
			return err
		}
		var err error
		out, err = findGroup(ed, gid)
		return err
	})
	if err != nil {
		writeError(w, "update layer group", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// DeleteLayerGroup handles DELETE /api/maps/{id}/layer-groups/{gid}. It
// answers 409 while layers still belong to the group.
func (h *Handler) DeleteLayerGroup(w http.ResponseWriter, r *http.Request) {
	gid := chi.URLParam(r, "gid")
	err := h.ws.Edit(mapID(r), func(ed *mapdoc.Editor) error {
		if _, err := findGroup(ed, gid); err != nil {
			return err
		}
		return ed.DeleteLayerGroup(gid)
	})
	if err != nil {
		writeError(w, "delete layer group", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
