package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ehwaz/internal/apperr"
	"github.com/starford/ehwaz/internal/models"
	"github.com/starford/ehwaz/internal/noteservice"
)

// Engine is the slice of the sync orchestrator the API drives.
type Engine interface {
	Sync(ctx context.Context)
	Push(ctx context.Context) error
	Pull(ctx context.Context) error
	QueueDepth() int
	Configured() bool
	Online() bool
}

// Handler holds API route handlers.
type Handler struct {
	svc    *noteservice.Service
	engine Engine
	counts func() (map[models.SyncStatus]int, error)
}

// NewHandler creates a new Handler. counts supplies per-status note totals
// for the status endpoint.
func NewHandler(svc *noteservice.Service, engine Engine, counts func() (map[models.SyncStatus]int, error)) *Handler {
	return &Handler{svc: svc, engine: engine, counts: counts}
}

// ListNotes handles GET /api/notes with optional status filter and search.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var notes []models.Note
	var err error
	if search := q.Get("q"); search != "" {
		limit, _ := strconv.Atoi(q.Get("limit"))
		notes, err = h.svc.Search(r.Context(), search, limit)
	} else {
		notes, err = h.svc.ListNotes(r.Context(), models.SyncStatus(q.Get("status")))
	}
	if err != nil {
		slog.Error("list notes failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	if notes == nil {
		notes = []models.Note{}
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// GetNote handles GET /api/notes/{id}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	note, err := h.svc.GetNote(r.Context(), id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("get note failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Title == "" && req.Content == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title or content is required"))
		return
	}
	note, err := h.svc.CreateNote(r.Context(), req)
	if err != nil {
		slog.Error("create note failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/{id}.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req NoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	note, err := h.svc.UpdateNote(r.Context(), id, req)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
		} else {
			slog.Error("update note failed", slog.String("id", id), slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// Sync handles POST /api/sync: fire-and-forget bidirectional sync.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	// Detached from the request context: the pass outlives the response.
	go h.engine.Sync(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sync started"})
}

// Push handles POST /api/sync/push: the strict user-triggered push. Unlike
// the silent degradation elsewhere, a missing remote target is surfaced.
func (h *Handler) Push(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Push(r.Context()); err != nil {
		if errors.Is(err, apperr.ErrNotConfigured) {
			writeJSON(w, http.StatusPreconditionFailed, errorBody("remote repository not configured"))
			return
		}
		slog.Error("push failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "push completed"})
}

// Pull handles POST /api/sync/pull. Pull failures stay quiet at the API
// level; per-note outcomes are the observable signal.
func (h *Handler) Pull(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Pull(r.Context()); err != nil {
		slog.Warn("pull failed", slog.String("error", err.Error()))
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "pull completed"})
}

// Status handles GET /api/sync/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	counts, err := h.counts()
	if err != nil {
		slog.Error("status counts failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	byStatus := make(map[string]int, len(counts))
	for s, n := range counts {
		byStatus[string(s)] = n
	}
	writeJSON(w, http.StatusOK, SyncStatusResponse{
		QueueDepth: h.engine.QueueDepth(),
		Configured: h.engine.Configured(),
		Online:     h.engine.Online(),
		Notes:      byStatus,
	})
}
