// Package models defines the domain types for Ehwaz.
package models

import "time"

// SyncStatus describes where a note stands relative to the remote repository.
// It is mutated only by the sync engine, never by editing surfaces.
type SyncStatus string

const (
	// StatusUnsynced marks a note that has never been handed to the engine.
	StatusUnsynced SyncStatus = "unsynced"
	// StatusPending marks a note queued for push or blocked on missing
	// configuration / connectivity.
	StatusPending SyncStatus = "pending"
	// StatusSynced marks a note immediately after a confirmed remote write.
	StatusSynced SyncStatus = "synced"
	// StatusError marks a note whose queued commit exhausted its retries.
	// Error notes are never retried automatically; a fresh Commit resubmits.
	StatusError SyncStatus = "error"
)

// Valid reports whether s is one of the known statuses.
func (s SyncStatus) Valid() bool {
	switch s {
	case StatusUnsynced, StatusPending, StatusSynced, StatusError:
		return true
	}
	return false
}

// Note represents a locally stored note. The sync engine reads it, encodes it
// into a Markdown document, and annotates SyncStatus and Fingerprint.
type Note struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Summary      string     `json:"summary,omitempty"`
	Content      string     `json:"content"`
	URL          string     `json:"url,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	Category     string     `json:"category,omitempty"`
	DateCreated  time.Time  `json:"date_created"`
	DateModified time.Time  `json:"date_modified"`
	SyncStatus   SyncStatus `json:"sync_status"`

	// Fingerprint is the SHA-256 of the last encoded document confirmed on
	// the remote (set on successful push and on pull). It lets Pull skip
	// saving documents that have not changed since the last pass.
	Fingerprint string `json:"-"`
}

// PendingCommit is one queued "note needs to be pushed" work item. Note is a
// snapshot taken at enqueue time: later edits require a re-enqueue, the
// queued snapshot is never mutated in place.
type PendingCommit struct {
	ID          string    `json:"id"`
	NoteID      string    `json:"note_id"`
	Note        Note      `json:"note"`
	DateCreated time.Time `json:"date_created"`
	RetryCount  int       `json:"retry_count"`
}
