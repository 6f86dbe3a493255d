// Package noteservice is the application service shared by the REST API,
// the MCP server, and the inbox importer: it creates and updates local notes
// and hands them to the sync engine.
package noteservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/starford/ehwaz/internal/codec"
	"github.com/starford/ehwaz/internal/models"
	"github.com/starford/ehwaz/internal/store"
)

// Committer is the slice of the sync engine the service needs.
type Committer interface {
	Commit(ctx context.Context, note *models.Note) error
}

// Input carries the caller-editable note fields.
type Input struct {
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Content  string   `json:"content"`
	URL      string   `json:"url"`
	Tags     []string `json:"tags"`
	Category string   `json:"category"`
}

// Service coordinates the local store and the sync engine.
type Service struct {
	store  store.Store
	engine Committer
	logger *slog.Logger
}

// NewService creates a note service.
func NewService(st store.Store, engine Committer, logger *slog.Logger) *Service {
	return &Service{store: st, engine: engine, logger: logger}
}

// CreateNote persists a new note and commits it to the sync engine. The
// engine never fails a commit: offline or unconfigured states queue the note
// instead.
func (s *Service) CreateNote(ctx context.Context, in Input) (*models.Note, error) {
	now := time.Now().UTC().Truncate(time.Second)
	n := &models.Note{
		ID:           uuid.NewString(),
		Title:        in.Title,
		Summary:      in.Summary,
		Content:      in.Content,
		URL:          in.URL,
		Tags:         in.Tags,
		Category:     in.Category,
		DateCreated:  now,
		DateModified: now,
		SyncStatus:   models.StatusUnsynced,
	}
	if err := s.store.Save(n); err != nil {
		return nil, fmt.Errorf("noteservice: create: %w", err)
	}
	if err := s.engine.Commit(ctx, n); err != nil {
		s.logger.Warn("noteservice: commit failed",
			slog.String("note_id", n.ID), slog.String("error", err.Error()))
	}
	return s.store.Get(n.ID)
}

// UpdateNote replaces the editable fields of an existing note and re-commits
// it. The id and creation date never change.
func (s *Service) UpdateNote(ctx context.Context, id string, in Input) (*models.Note, error) {
	n, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	n.Title = in.Title
	n.Summary = in.Summary
	n.Content = in.Content
	n.URL = in.URL
	n.Tags = in.Tags
	n.Category = in.Category
	n.DateModified = time.Now().UTC().Truncate(time.Second)
	if err := s.store.Update(n); err != nil {
		return nil, fmt.Errorf("noteservice: update: %w", err)
	}
	if err := s.engine.Commit(ctx, n); err != nil {
		s.logger.Warn("noteservice: commit failed",
			slog.String("note_id", n.ID), slog.String("error", err.Error()))
	}
	return s.store.Get(id)
}

// GetNote returns one note by id.
func (s *Service) GetNote(_ context.Context, id string) (*models.Note, error) {
	return s.store.Get(id)
}

// ListNotes returns all notes, optionally filtered by sync status.
func (s *Service) ListNotes(_ context.Context, status models.SyncStatus) ([]models.Note, error) {
	if status != "" {
		if !status.Valid() {
			return nil, fmt.Errorf("noteservice: unknown status %q", status)
		}
		return s.store.ListByStatus(status)
	}
	return s.store.FetchAll()
}

// Search returns notes matching the query.
func (s *Service) Search(_ context.Context, query string, limit int) ([]models.Note, error) {
	return s.store.Search(query, limit)
}

// ImportDocument decodes a dropped-in Markdown document, saves it as a local
// note, and commits it. Decoding never fails; malformed documents degrade to
// a best-effort note.
func (s *Service) ImportDocument(ctx context.Context, data []byte, filename string) (*models.Note, error) {
	n := codec.Decode(data, filename)
	n.SyncStatus = models.StatusUnsynced
	if err := s.store.Save(n); err != nil {
		return nil, fmt.Errorf("noteservice: import: %w", err)
	}
	if err := s.engine.Commit(ctx, n); err != nil {
		s.logger.Warn("noteservice: commit failed",
			slog.String("note_id", n.ID), slog.String("error", err.Error()))
	}
	return n, nil
}
