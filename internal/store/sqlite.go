package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/ehwaz/internal/apperr"
	"github.com/starford/ehwaz/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS notes (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	summary       TEXT NOT NULL DEFAULT '',
	content       TEXT NOT NULL DEFAULT '',
	url           TEXT NOT NULL DEFAULT '',
	tags          TEXT NOT NULL DEFAULT '[]',
	category      TEXT NOT NULL DEFAULT '',
	date_created  DATETIME NOT NULL,
	date_modified DATETIME NOT NULL,
	sync_status   TEXT NOT NULL DEFAULT 'unsynced',
	fingerprint   TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_notes_status ON notes(sync_status);
CREATE INDEX IF NOT EXISTS idx_notes_category ON notes(category);

CREATE TABLE IF NOT EXISTS pending_commits (
	id           TEXT PRIMARY KEY,
	note_id      TEXT NOT NULL,
	note         TEXT NOT NULL,
	date_created DATETIME NOT NULL,
	retry_count  INTEGER NOT NULL DEFAULT 0
);
`

// DB wraps a sql.DB with note store and queue journal operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

const noteColumns = `id, title, summary, content, url, tags, category,
	date_created, date_modified, sync_status, fingerprint`

// FetchAll returns every stored note ordered by creation time.
func (db *DB) FetchAll() ([]models.Note, error) {
	return db.queryNotes(`SELECT `+noteColumns+` FROM notes ORDER BY date_created`, nil)
}

// Get returns one note by id.
func (db *DB) Get(id string) (*models.Note, error) {
	row := db.conn.QueryRow(`SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get note: %w", err)
	}
	return n, nil
}

// Save inserts or replaces a note by id.
func (db *DB) Save(n *models.Note) error {
	tagsJSON, _ := json.Marshal(nonNil(n.Tags))
	_, err := db.conn.Exec(`
		INSERT INTO notes (`+noteColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title         = excluded.title,
			summary       = excluded.summary,
			content       = excluded.content,
			url           = excluded.url,
			tags          = excluded.tags,
			category      = excluded.category,
			date_created  = excluded.date_created,
			date_modified = excluded.date_modified,
			sync_status   = excluded.sync_status,
			fingerprint   = excluded.fingerprint
	`, n.ID, n.Title, n.Summary, n.Content, n.URL, string(tagsJSON), n.Category,
		n.DateCreated.UTC(), n.DateModified.UTC(), string(statusOrDefault(n.SyncStatus)), n.Fingerprint)
	if err != nil {
		return fmt.Errorf("store: save note: %w", err)
	}
	return nil
}

// Update replaces an existing note.
func (db *DB) Update(n *models.Note) error {
	tagsJSON, _ := json.Marshal(nonNil(n.Tags))
	res, err := db.conn.Exec(`
		UPDATE notes SET
			title = ?, summary = ?, content = ?, url = ?, tags = ?, category = ?,
			date_created = ?, date_modified = ?, sync_status = ?, fingerprint = ?
		WHERE id = ?
	`, n.Title, n.Summary, n.Content, n.URL, string(tagsJSON), n.Category,
		n.DateCreated.UTC(), n.DateModified.UTC(), string(statusOrDefault(n.SyncStatus)), n.Fingerprint, n.ID)
	if err != nil {
		return fmt.Errorf("store: update note: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// SetSyncStatus updates only the sync status of a note.
func (db *DB) SetSyncStatus(id string, status models.SyncStatus) error {
	_, err := db.conn.Exec(`UPDATE notes SET sync_status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("store: set sync status: %w", err)
	}
	return nil
}

// SetSyncResult updates sync status and fingerprint in one statement.
func (db *DB) SetSyncResult(id string, status models.SyncStatus, fingerprint string) error {
	_, err := db.conn.Exec(`UPDATE notes SET sync_status = ?, fingerprint = ? WHERE id = ?`,
		string(status), fingerprint, id)
	if err != nil {
		return fmt.Errorf("store: set sync result: %w", err)
	}
	return nil
}

// ListByStatus returns notes with the given sync status.
func (db *DB) ListByStatus(status models.SyncStatus) ([]models.Note, error) {
	return db.queryNotes(`SELECT `+noteColumns+` FROM notes WHERE sync_status = ? ORDER BY date_created`,
		[]any{string(status)})
}

// CountByStatus returns the number of notes per sync status.
func (db *DB) CountByStatus() (map[models.SyncStatus]int, error) {
	rows, err := db.conn.Query(`SELECT sync_status, COUNT(*) FROM notes GROUP BY sync_status`)
	if err != nil {
		return nil, fmt.Errorf("store: count by status: %w", err)
	}
	defer rows.Close()

	out := make(map[models.SyncStatus]int)
	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[models.SyncStatus(s)] = n
	}
	return out, rows.Err()
}

// Search returns notes whose title or content matches the query (LIKE).
func (db *DB) Search(query string, limit int) ([]models.Note, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + query + "%"
	return db.queryNotes(`
		SELECT `+noteColumns+` FROM notes
		WHERE title LIKE ? OR content LIKE ?
		ORDER BY date_modified DESC LIMIT ?`,
		[]any{pattern, pattern, limit})
}

func (db *DB) queryNotes(q string, args []any) ([]models.Note, error) {
	rows, err := db.conn.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query notes: %w", err)
	}
	defer rows.Close()

	var out []models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan note: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(r rowScanner) (*models.Note, error) {
	var n models.Note
	var tagsJSON, status string
	var created, modified time.Time
	if err := r.Scan(&n.ID, &n.Title, &n.Summary, &n.Content, &n.URL, &tagsJSON,
		&n.Category, &created, &modified, &status, &n.Fingerprint); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(tagsJSON), &n.Tags)
	n.DateCreated = created.UTC()
	n.DateModified = modified.UTC()
	n.SyncStatus = models.SyncStatus(status)
	return &n, nil
}

func statusOrDefault(s models.SyncStatus) models.SyncStatus {
	if !s.Valid() {
		return models.StatusUnsynced
	}
	return s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
