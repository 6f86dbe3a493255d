package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ehwaz/internal/models"
	"github.com/starford/ehwaz/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, engine Engine, counts func() (map[models.SyncStatus]int, error),
	authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, engine, counts)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/{id}", h.GetNote)
	r.Put("/notes/{id}", h.UpdateNote)

	// Sync operations.
	r.Post("/sync", h.Sync)
	r.Post("/sync/push", h.Push)
	r.Post("/sync/pull", h.Pull)
	r.Get("/sync/status", h.Status)

	// SSE event stream (protected by the same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
