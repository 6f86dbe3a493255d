package api

import (
	"github.com/starford/ehwaz/internal/models"
	"github.com/starford/ehwaz/internal/noteservice"
)

// NoteRequest is the request body for creating or updating a note.
type NoteRequest = noteservice.Input

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []models.Note `json:"notes"`
	Total int           `json:"total"`
}

// SyncStatusResponse reports the engine's observable state: queue depth and
// per-status note counts are the only failure signals the engine exposes.
type SyncStatusResponse struct {
	QueueDepth int            `json:"queue_depth"`
	Configured bool           `json:"configured"`
	Online     bool           `json:"online"`
	Notes      map[string]int `json:"notes"`
}
