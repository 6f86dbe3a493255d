package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/ehwaz/internal/models"
)

// The pending_commits table backs the commit queue's durability: entries are
// written through on enqueue and removed on success or drop, so queued
// commits survive a process restart.

// Append journals a new queue entry.
func (db *DB) Append(pc models.PendingCommit) error {
	snapshot, err := json.Marshal(pc.Note)
	if err != nil {
		return fmt.Errorf("store: marshal commit snapshot: %w", err)
	}
	_, err = db.conn.Exec(`
		INSERT OR REPLACE INTO pending_commits (id, note_id, note, date_created, retry_count)
		VALUES (?, ?, ?, ?, ?)
	`, pc.ID, pc.NoteID, string(snapshot), pc.DateCreated.UTC(), pc.RetryCount)
	if err != nil {
		return fmt.Errorf("store: append commit: %w", err)
	}
	return nil
}

// Remove deletes a journalled entry after it succeeded or was dropped.
func (db *DB) Remove(id string) error {
	if _, err := db.conn.Exec(`DELETE FROM pending_commits WHERE id = ?`, id); err != nil {
		return fmt.Errorf("store: remove commit: %w", err)
	}
	return nil
}

// UpdateRetry records an incremented retry count for a requeued entry.
func (db *DB) UpdateRetry(id string, retryCount int) error {
	if _, err := db.conn.Exec(`UPDATE pending_commits SET retry_count = ? WHERE id = ?`,
		retryCount, id); err != nil {
		return fmt.Errorf("store: update retry: %w", err)
	}
	return nil
}

// LoadAll returns every journalled entry in FIFO order.
func (db *DB) LoadAll() ([]models.PendingCommit, error) {
	rows, err := db.conn.Query(`
		SELECT id, note_id, note, date_created, retry_count
		FROM pending_commits ORDER BY date_created`)
	if err != nil {
		return nil, fmt.Errorf("store: load commits: %w", err)
	}
	defer rows.Close()

	var out []models.PendingCommit
	for rows.Next() {
		var pc models.PendingCommit
		var snapshot string
		var created time.Time
		if err := rows.Scan(&pc.ID, &pc.NoteID, &snapshot, &created, &pc.RetryCount); err != nil {
			return nil, fmt.Errorf("store: scan commit: %w", err)
		}
		if err := json.Unmarshal([]byte(snapshot), &pc.Note); err != nil {
			// A corrupt snapshot is skipped rather than failing the load.
			continue
		}
		pc.DateCreated = created.UTC()
		out = append(out, pc)
	}
	return out, rows.Err()
}
