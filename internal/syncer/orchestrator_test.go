package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/ehwaz/internal/apperr"
	"github.com/starford/ehwaz/internal/checksum"
	"github.com/starford/ehwaz/internal/codec"
	"github.com/starford/ehwaz/internal/models"
	"github.com/starford/ehwaz/internal/queue"
	"github.com/starford/ehwaz/internal/remote"
	"github.com/starford/ehwaz/internal/store"
)

type staticCreds string

func (c staticCreds) HasAuthentication() bool { return c != "" }
func (c staticCreds) AuthHeader() (string, bool) {
	if c == "" {
		return "", false
	}
	return "Bearer " + string(c), true
}

// fakeContent is an in-memory ContentStore with per-path error injection.
type fakeContent struct {
	mu       sync.Mutex
	files    map[string][]byte
	writeErr map[string]error
	readErr  map[string]error
	listErr  map[string]error
	writes   int
	reads    int
}

func newFakeContent() *fakeContent {
	return &fakeContent{
		files:    make(map[string][]byte),
		writeErr: make(map[string]error),
		readErr:  make(map[string]error),
		listErr:  make(map[string]error),
	}
}

func (f *fakeContent) ReadFile(_ context.Context, _ remote.Target, path string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if err := f.readErr[path]; err != nil {
		return nil, "", err
	}
	data, ok := f.files[path]
	if !ok {
		return nil, "", apperr.ErrNotFound
	}
	return data, "sha-" + path, nil
}

func (f *fakeContent) WriteFile(_ context.Context, _ remote.Target, path string, content []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if err := f.writeErr[path]; err != nil {
		return err
	}
	f.files[path] = content
	return nil
}

func (f *fakeContent) ListFiles(_ context.Context, _ remote.Target, path string) ([]remote.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listErr[path]; err != nil {
		return nil, err
	}
	prefix := path + "/"
	seen := make(map[string]bool)
	var out []remote.Entry
	for p := range f.files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			if !seen[rest[:i]] {
				seen[rest[:i]] = true
				out = append(out, remote.Entry{Name: rest[:i], Kind: remote.KindDirectory})
			}
		} else {
			out = append(out, remote.Entry{Name: rest, Kind: remote.KindFile})
		}
	}
	return out, nil
}

func (f *fakeContent) EnsureRepo(context.Context, remote.Target) error { return nil }

func (f *fakeContent) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

// eventLog is a recording EventSink.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (e *eventLog) Publish(event string, _ map[string]string) {
	e.mu.Lock()
	e.events = append(e.events, event)
	e.mu.Unlock()
}

func (e *eventLog) count(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ev := range e.events {
		if ev == event {
			n++
		}
	}
	return n
}

type env struct {
	db      *store.DB
	queue   *queue.Queue
	content *fakeContent
	events  *eventLog
	orch    *Orchestrator
	online  bool
	mu      sync.Mutex
}

func (e *env) setOnline(v bool) {
	e.mu.Lock()
	e.online = v
	e.mu.Unlock()
}

func (e *env) isOnline() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.online
}

func testEnv(t *testing.T, target remote.Target, creds staticCreds) *env {
	t.Helper()
	db, err := store.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := queue.New(db, logger)
	t.Cleanup(q.Close)

	e := &env{
		db:      db,
		queue:   q,
		content: newFakeContent(),
		events:  &eventLog{},
		online:  true,
	}
	e.orch = New(db, q, e.content, creds,
		TargetFunc(func() remote.Target { return target }),
		e.isOnline, e.events, logger)
	return e
}

func savedNote(t *testing.T, db *store.DB, id, title string) *models.Note {
	t.Helper()
	n := &models.Note{
		ID:           id,
		Title:        title,
		Content:      "content of " + title,
		DateCreated:  time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC),
		DateModified: time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC),
		SyncStatus:   models.StatusUnsynced,
	}
	if err := db.Save(n); err != nil {
		t.Fatal(err)
	}
	return n
}

var configured = remote.Target{Owner: "alice", Repo: "notes", Branch: "main"}

func TestCommitUnconfiguredQueues(t *testing.T) {
	e := testEnv(t, remote.Target{}, "tok")
	n := savedNote(t, e.db, "7f3c2a19-0001", "Offline Note")

	if err := e.orch.Commit(context.Background(), n); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if e.queue.Len() != 1 {
		t.Errorf("queue depth = %d, want 1", e.queue.Len())
	}
	if e.content.writeCount() != 0 {
		t.Error("unconfigured commit must not touch the remote")
	}
	got, _ := e.db.Get(n.ID)
	if got.SyncStatus != models.StatusPending {
		t.Errorf("status = %q, want pending", got.SyncStatus)
	}
	if e.events.count("note.pending") != 1 {
		t.Errorf("pending events = %d", e.events.count("note.pending"))
	}
}

func TestCommitOfflineQueues(t *testing.T) {
	e := testEnv(t, configured, "tok")
	e.setOnline(false)
	n := savedNote(t, e.db, "7f3c2a19-0001", "Offline Note")

	if err := e.orch.Commit(context.Background(), n); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if e.queue.Len() != 1 || e.content.writeCount() != 0 {
		t.Errorf("queue = %d, writes = %d", e.queue.Len(), e.content.writeCount())
	}
}

func TestCommitWithoutCredentialsQueues(t *testing.T) {
	e := testEnv(t, configured, "")
	n := savedNote(t, e.db, "7f3c2a19-0001", "No Creds")

	if err := e.orch.Commit(context.Background(), n); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if e.queue.Len() != 1 || e.content.writeCount() != 0 {
		t.Errorf("queue = %d, writes = %d", e.queue.Len(), e.content.writeCount())
	}
}

func TestCommitPushesAndRecordsFingerprint(t *testing.T) {
	e := testEnv(t, configured, "tok")
	n := savedNote(t, e.db, "7f3c2a19-0001", "My Note")

	if err := e.orch.Commit(context.Background(), n); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	wantPath := "notes/general/2025-02-03-7f3c2a19-my-note.md"
	doc, ok := e.content.files[wantPath]
	if !ok {
		t.Fatalf("no file at %s, files: %v", wantPath, e.content.files)
	}

	got, _ := e.db.Get(n.ID)
	if got.SyncStatus != models.StatusSynced {
		t.Errorf("status = %q, want synced", got.SyncStatus)
	}
	if got.Fingerprint != checksum.Sum(doc) {
		t.Errorf("fingerprint = %q, want %q", got.Fingerprint, checksum.Sum(doc))
	}
	if e.events.count("note.synced") != 1 {
		t.Errorf("synced events = %d", e.events.count("note.synced"))
	}
}

func TestCommitWriteFailureDegradesToQueue(t *testing.T) {
	e := testEnv(t, configured, "tok")
	n := savedNote(t, e.db, "7f3c2a19-0001", "Doomed")
	e.content.writeErr["notes/general/2025-02-03-7f3c2a19-doomed.md"] = errors.New("boom")

	if err := e.orch.Commit(context.Background(), n); err != nil {
		t.Fatalf("Commit must not surface push failures, got %v", err)
	}
	if e.queue.Len() != 1 {
		t.Errorf("queue depth = %d, want 1", e.queue.Len())
	}
	got, _ := e.db.Get(n.ID)
	if got.SyncStatus != models.StatusPending {
		t.Errorf("status = %q, want pending", got.SyncStatus)
	}
}

func TestSyncDrainsQueueWhenBackOnline(t *testing.T) {
	e := testEnv(t, configured, "tok")
	e.setOnline(false)
	n := savedNote(t, e.db, "7f3c2a19-0001", "Deferred")
	if err := e.orch.Commit(context.Background(), n); err != nil {
		t.Fatal(err)
	}

	e.setOnline(true)
	e.orch.Sync(context.Background())

	if e.queue.Len() != 0 {
		t.Errorf("queue depth = %d, want 0 after drain", e.queue.Len())
	}
	got, _ := e.db.Get(n.ID)
	if got.SyncStatus != models.StatusSynced {
		t.Errorf("status = %q, want synced", got.SyncStatus)
	}
	if e.events.count("sync.started") != 1 || e.events.count("sync.finished") != 1 {
		t.Errorf("events = %v", e.events.events)
	}
}

func TestSyncWhileOfflineAccumulates(t *testing.T) {
	e := testEnv(t, configured, "tok")
	e.setOnline(false)
	n := savedNote(t, e.db, "7f3c2a19-0001", "Stuck")
	if err := e.orch.Commit(context.Background(), n); err != nil {
		t.Fatal(err)
	}

	e.orch.Sync(context.Background())

	if e.queue.Len() != 1 {
		t.Errorf("queue depth = %d, want 1 (no progress offline)", e.queue.Len())
	}
	if e.content.writeCount() != 0 {
		t.Error("offline sync must not write")
	}
}

func TestPullSavesRemoteNotes(t *testing.T) {
	e := testEnv(t, configured, "tok")

	doc, _ := codec.Encode(&models.Note{
		ID:           "aaaa1111-0000",
		Title:        "Remote One",
		Content:      "pulled content",
		Category:     "tutorial",
		DateCreated:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		DateModified: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	e.content.files["notes/tutorials/2025-01-01-aaaa1111-remote-one.md"] = doc
	e.content.files["notes/tutorials/ignore.txt"] = []byte("not markdown")

	if err := e.orch.Pull(context.Background()); err != nil {
		t.Fatalf("Pull: %v", err)
	}

	got, err := e.db.Get("aaaa1111-0000")
	if err != nil {
		t.Fatalf("pulled note missing: %v", err)
	}
	if got.SyncStatus != models.StatusSynced {
		t.Errorf("status = %q, want synced", got.SyncStatus)
	}
	if got.Fingerprint != checksum.Sum(doc) {
		t.Errorf("fingerprint = %q", got.Fingerprint)
	}
	if got.Content != "pulled content" {
		t.Errorf("content = %q", got.Content)
	}
}

func TestPullFlatLayout(t *testing.T) {
	e := testEnv(t, configured, "tok")
	doc, _ := codec.Encode(&models.Note{
		ID:          "bbbb2222-0000",
		Title:       "Flat",
		Content:     "flat layout",
		DateCreated: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	e.content.files["notes/flat.md"] = doc

	if err := e.orch.Pull(context.Background()); err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if _, err := e.db.Get("bbbb2222-0000"); err != nil {
		t.Errorf("flat note not pulled: %v", err)
	}
}

func TestPullSkipsUnchangedByFingerprint(t *testing.T) {
	e := testEnv(t, configured, "tok")
	doc, _ := codec.Encode(&models.Note{
		ID:          "cccc3333-0000",
		Title:       "Stable",
		Content:     "unchanged",
		DateCreated: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	e.content.files["notes/general/stable.md"] = doc

	if err := e.orch.Pull(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := e.orch.Pull(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := e.events.count("note.pulled"); got != 1 {
		t.Errorf("pulled events = %d, want 1 (second pass skipped)", got)
	}
}

func TestPullIsolatesPerFileFailures(t *testing.T) {
	e := testEnv(t, configured, "tok")
	good, _ := codec.Encode(&models.Note{
		ID:          "dddd4444-0000",
		Title:       "Good",
		Content:     "fine",
		DateCreated: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	e.content.files["notes/general/good.md"] = good
	e.content.files["notes/general/bad.md"] = []byte("whatever")
	e.content.readErr["notes/general/bad.md"] = errors.New("read exploded")
	e.content.files["notes/broken/x.md"] = []byte("x")
	e.content.listErr["notes/broken"] = errors.New("list exploded")

	if err := e.orch.Pull(context.Background()); err != nil {
		t.Fatalf("Pull must continue past per-file failures: %v", err)
	}
	if _, err := e.db.Get("dddd4444-0000"); err != nil {
		t.Errorf("good note not pulled: %v", err)
	}
}

func TestPullStopsOnAuthReadFailure(t *testing.T) {
	e := testEnv(t, configured, "tok")
	e.content.files["notes/general/locked.md"] = []byte("x")
	e.content.readErr["notes/general/locked.md"] = fmt.Errorf("remote: read: %w", apperr.ErrAuthentication)

	err := e.orch.Pull(context.Background())
	if !errors.Is(err, apperr.ErrAuthentication) {
		t.Errorf("err = %v, want ErrAuthentication", err)
	}
}

func TestPullStopsOnAuthListFailure(t *testing.T) {
	e := testEnv(t, configured, "tok")
	e.content.files["notes/general/x.md"] = []byte("x")
	e.content.listErr["notes/general"] = &apperr.APIError{StatusCode: 403, Detail: "forbidden"}

	err := e.orch.Pull(context.Background())
	if !apperr.IsAuth(err) {
		t.Errorf("err = %v, want authentication failure", err)
	}
}

func TestPullUnconfiguredIsNoop(t *testing.T) {
	e := testEnv(t, remote.Target{}, "tok")
	if err := e.orch.Pull(context.Background()); err != nil {
		t.Fatalf("Pull: %v", err)
	}
}

func TestPushUnconfigured(t *testing.T) {
	e := testEnv(t, remote.Target{}, "tok")
	if err := e.orch.Push(context.Background()); !errors.Is(err, apperr.ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestPushRetriesPendingNotes(t *testing.T) {
	e := testEnv(t, configured, "tok")
	n := savedNote(t, e.db, "7f3c2a19-0001", "Left Behind")
	if err := e.db.SetSyncStatus(n.ID, models.StatusPending); err != nil {
		t.Fatal(err)
	}

	if err := e.orch.Push(context.Background()); err != nil {
		t.Fatalf("Push: %v", err)
	}
	got, _ := e.db.Get(n.ID)
	if got.SyncStatus != models.StatusSynced {
		t.Errorf("status = %q, want synced", got.SyncStatus)
	}
	if e.content.writeCount() != 1 {
		t.Errorf("writes = %d, want 1", e.content.writeCount())
	}
}

func TestInvalidateConfigPicksUpNewTarget(t *testing.T) {
	var mu sync.Mutex
	current := remote.Target{}

	db, err := store.Open(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	q := queue.New(db, logger)
	t.Cleanup(q.Close)

	orch := New(db, q, newFakeContent(), staticCreds("tok"),
		TargetFunc(func() remote.Target {
			mu.Lock()
			defer mu.Unlock()
			return current
		}), nil, nil, logger)

	if orch.Configured() {
		t.Fatal("should start unconfigured")
	}

	mu.Lock()
	current = configured
	mu.Unlock()

	// Still cached.
	if orch.Configured() {
		t.Fatal("target change must not apply before invalidation")
	}
	orch.InvalidateConfig()
	if !orch.Configured() {
		t.Error("invalidation must pick up the new target")
	}
}
