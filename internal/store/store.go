// Package store provides the SQLite-backed local note store and the durable
// commit-queue journal.
package store

import "github.com/starford/ehwaz/internal/models"

// Store is the local note repository consumed by the sync engine and the
// serving surfaces. Consumers should depend on this interface rather than
// the concrete *DB type to facilitate testing with fakes.
type Store interface {
	// FetchAll returns every stored note.
	FetchAll() ([]models.Note, error)
	// Get returns one note by id, or apperr.ErrNotFound.
	Get(id string) (*models.Note, error)
	// Save inserts or replaces a note by id.
	Save(n *models.Note) error
	// Update replaces an existing note; apperr.ErrNotFound if absent.
	Update(n *models.Note) error
	// SetSyncStatus updates only the sync status of a note.
	SetSyncStatus(id string, status models.SyncStatus) error
	// SetSyncResult updates sync status together with the document
	// fingerprint recorded after a confirmed remote write.
	SetSyncResult(id string, status models.SyncStatus, fingerprint string) error
	// ListByStatus returns notes with the given sync status.
	ListByStatus(status models.SyncStatus) ([]models.Note, error)
	// CountByStatus returns the number of notes per sync status.
	CountByStatus() (map[models.SyncStatus]int, error)
	// Search returns notes whose title or content matches the query.
	Search(query string, limit int) ([]models.Note, error)
	// Close releases the underlying database.
	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
