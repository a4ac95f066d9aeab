package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mapforge/internal/catalog"
	"github.com/starford/mapforge/internal/workspace"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(ws *workspace.Workspace, cat catalog.Catalog, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(ws, cat)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Catalog.
	r.Get("/maps", h.ListMaps)

	r.Route("/maps/{id}", func(r chi.Router) {
		// Session.
		r.Get("/", h.GetMap)
		r.Delete("/", h.CloseMap)
		r.Post("/open", h.OpenMap)
		r.Post("/save", h.SaveMap)
		r.Patch("/info", h.UpdateMapInfo)

		// History.
		r.Post("/undo", h.Undo)
		r.Post("/redo", h.Redo)

		// Layers.
		r.Post("/layers", h.AddLayer)
		r.Put("/layers/active", h.SetActiveLayer)
		r.Patch("/layers/{lid}", h.UpdateLayer)
		r.Delete("/layers/{lid}", h.DeleteLayer)
		r.Post("/layer-groups", h.AddLayerGroup)
		r.Patch("/layer-groups/{gid}", h.UpdateLayerGroup)
		r.Delete("/layer-groups/{gid}", h.DeleteLayerGroup)

		// Editing state.
		r.Post("/selection", h.Select)
		r.Delete("/selection", h.ClearSelection)
		r.Put("/tool", h.SetTool)
		r.Patch("/canvas", h.UpdateCanvas)
		r.Post("/snap", h.Snap)
		r.Get("/records", h.Records)

		// Elements.
		r.Post("/{kind}", h.AddElement)
		r.Patch("/{kind}/{eid}", h.UpdateElement)
		r.Delete("/{kind}/{eid}", h.DeleteElement)
		r.Post("/{kind}/{eid}/move", h.MoveElement)
	})

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
