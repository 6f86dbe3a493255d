// Package syncer coordinates push, pull, and bidirectional sync between the
// local note store and the remote content repository.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/starford/ehwaz/internal/apperr"
	"github.com/starford/ehwaz/internal/checksum"
	"github.com/starford/ehwaz/internal/codec"
	"github.com/starford/ehwaz/internal/models"
	"github.com/starford/ehwaz/internal/naming"
	"github.com/starford/ehwaz/internal/queue"
	"github.com/starford/ehwaz/internal/remote"
	"github.com/starford/ehwaz/internal/store"
)

const notesRoot = "notes"

// ContentStore is the remote surface the orchestrator drives.
type ContentStore interface {
	ReadFile(ctx context.Context, t remote.Target, path string) ([]byte, string, error)
	WriteFile(ctx context.Context, t remote.Target, path string, content []byte, message string) error
	ListFiles(ctx context.Context, t remote.Target, path string) ([]remote.Entry, error)
	EnsureRepo(ctx context.Context, t remote.Target) error
}

// TargetSource supplies the current remote repository coordinates. The
// orchestrator caches the snapshot; callers changing settings must invoke
// InvalidateConfig or syncing continues against the stale target.
type TargetSource interface {
	RemoteTarget() remote.Target
}

// TargetFunc adapts a function to TargetSource.
type TargetFunc func() remote.Target

func (f TargetFunc) RemoteTarget() remote.Target { return f() }

// OnlineFunc reports network reachability.
type OnlineFunc func() bool

// EventSink receives sync telemetry. Implementations must not block.
type EventSink interface {
	Publish(event string, data map[string]string)
}

// Orchestrator owns the sync state machine. All public operations first
// resolve the cached remote target; unconfigured or unauthenticated states
// degrade silently (enqueue + pending) instead of failing.
type Orchestrator struct {
	store   store.Store
	queue   *queue.Queue
	remote  ContentStore
	creds   remote.CredentialSource
	targets TargetSource
	online  OnlineFunc
	events  EventSink
	logger  *slog.Logger

	mu     sync.Mutex
	cached *remote.Target
}

// New creates an orchestrator. online and events may be nil.
func New(st store.Store, q *queue.Queue, rc ContentStore, creds remote.CredentialSource,
	targets TargetSource, online OnlineFunc, events EventSink, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:   st,
		queue:   q,
		remote:  rc,
		creds:   creds,
		targets: targets,
		online:  online,
		events:  events,
		logger:  logger,
	}
}

// InvalidateConfig discards the cached remote target so the next operation
// re-reads the current settings.
func (o *Orchestrator) InvalidateConfig() {
	o.mu.Lock()
	o.cached = nil
	o.mu.Unlock()
	o.logger.Debug("syncer: config cache invalidated")
}

// target resolves (and caches) the remote coordinates. ok is false when
// owner or repo is empty.
func (o *Orchestrator) target() (remote.Target, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cached == nil {
		t := o.targets.RemoteTarget()
		if t.Branch == "" {
			t.Branch = "main"
		}
		o.cached = &t
	}
	t := *o.cached
	return t, t.Owner != "" && t.Repo != ""
}

// Configured reports whether a remote target is set.
func (o *Orchestrator) Configured() bool {
	_, ok := o.target()
	return ok
}

// Online reports network reachability as seen by the engine.
func (o *Orchestrator) Online() bool {
	return o.online == nil || o.online()
}

// QueueDepth returns the current commit queue depth.
func (o *Orchestrator) QueueDepth() int {
	return o.queue.Len()
}

// canReachRemote gates every remote-touching pass: target set, credentials
// present, network reachable.
func (o *Orchestrator) canReachRemote() (remote.Target, bool) {
	t, ok := o.target()
	if !ok || !o.creds.HasAuthentication() || !o.Online() {
		return t, false
	}
	return t, true
}

// Commit pushes one note to the remote, or queues it when the engine cannot
// make progress. It never surfaces an error for offline/unconfigured states:
// those are normal operating conditions, and every push failure is redirected
// into the retry queue.
func (o *Orchestrator) Commit(ctx context.Context, note *models.Note) error {
	t, ok := o.canReachRemote()
	if !ok {
		o.deferCommit(*note)
		return nil
	}

	if err := o.pushNote(ctx, t, *note); err != nil {
		o.logger.Warn("syncer: commit failed, queueing for retry",
			slog.String("note_id", note.ID), slog.String("error", err.Error()))
		o.deferCommit(*note)
		return nil
	}
	return nil
}

// deferCommit enqueues a snapshot and marks the note pending.
func (o *Orchestrator) deferCommit(note models.Note) {
	o.queue.Enqueue(note)
	if err := o.store.SetSyncStatus(note.ID, models.StatusPending); err != nil {
		o.logger.Warn("syncer: mark pending failed",
			slog.String("note_id", note.ID), slog.String("error", err.Error()))
	}
	o.publish("note.pending", map[string]string{"note_id": note.ID})
}

// pushNote encodes and writes a single note, then records the result.
func (o *Orchestrator) pushNote(ctx context.Context, t remote.Target, note models.Note) error {
	doc, err := codec.Encode(&note)
	if err != nil {
		return fmt.Errorf("syncer: %w: %v", apperr.ErrEncoding, err)
	}
	path := naming.FilePath(&note)

	// Best effort: an already-initialised repository is the expected case.
	if err := o.remote.EnsureRepo(ctx, t); err != nil {
		o.logger.Debug("syncer: ensure repo", slog.String("error", err.Error()))
	}

	message := "Update note: " + note.Title
	if err := o.remote.WriteFile(ctx, t, path, doc, message); err != nil {
		return err
	}

	if err := o.store.SetSyncResult(note.ID, models.StatusSynced, checksum.Sum(doc)); err != nil {
		o.logger.Warn("syncer: record sync result failed",
			slog.String("note_id", note.ID), slog.String("error", err.Error()))
	}
	o.publish("note.synced", map[string]string{"note_id": note.ID, "path": path})
	o.logger.Info("syncer: pushed",
		slog.String("note_id", note.ID),
		slog.String("path", path),
		slog.String("doc", checksum.Short(doc)))
	return nil
}

// drainQueue processes queued commits when the preconditions hold. When they
// do not, the call is a deliberate no-op: items accumulate rather than fail
// loudly while the engine is known to be unable to make progress.
func (o *Orchestrator) drainQueue(ctx context.Context) {
	t, ok := o.canReachRemote()
	if !ok {
		return
	}
	if o.queue.Len() == 0 {
		return
	}

	if err := o.remote.EnsureRepo(ctx, t); err != nil {
		o.logger.Debug("syncer: ensure repo", slog.String("error", err.Error()))
	}

	err := o.queue.Drain(ctx,
		func(ctx context.Context, pc models.PendingCommit) error {
			return o.pushNote(ctx, t, pc.Note)
		},
		func(pc models.PendingCommit) {
			if err := o.store.SetSyncStatus(pc.NoteID, models.StatusError); err != nil {
				o.logger.Warn("syncer: mark error failed",
					slog.String("note_id", pc.NoteID), slog.String("error", err.Error()))
			}
			o.publish("note.error", map[string]string{"note_id": pc.NoteID})
		})
	if err != nil {
		o.logger.Warn("syncer: drain interrupted", slog.String("error", err.Error()))
	}
}

// Pull reconciles remote state into the local store. Category directories
// under notes/ are enumerated (a repository whose notes/ holds files directly
// is treated as one flat directory); a missing directory means "no notes in
// that category yet" and is skipped. One bad file never aborts the pull, but
// a rejected credential does.
func (o *Orchestrator) Pull(ctx context.Context) error {
	t, ok := o.target()
	if !ok {
		return nil
	}

	entries, err := o.remote.ListFiles(ctx, t, notesRoot)
	if err != nil {
		return fmt.Errorf("syncer: list %s: %w", notesRoot, err)
	}

	var dirs []string
	var flatFiles []string
	for _, e := range entries {
		switch e.Kind {
		case remote.KindDirectory:
			dirs = append(dirs, e.Name)
		case remote.KindFile:
			flatFiles = append(flatFiles, e.Name)
		}
	}

	if len(dirs) == 0 && len(flatFiles) > 0 {
		return o.pullDir(ctx, t, notesRoot, flatFiles)
	}

	for _, dir := range dirs {
		dirPath := notesRoot + "/" + dir
		files, err := o.remote.ListFiles(ctx, t, dirPath)
		if err != nil {
			if apperr.IsAuth(err) {
				return fmt.Errorf("syncer: list %s: %w", dirPath, err)
			}
			o.logger.Warn("syncer: list category failed",
				slog.String("dir", dirPath), slog.String("error", err.Error()))
			continue
		}
		names := make([]string, 0, len(files))
		for _, f := range files {
			if f.Kind == remote.KindFile {
				names = append(names, f.Name)
			}
		}
		if err := o.pullDir(ctx, t, dirPath, names); err != nil {
			return err
		}
	}
	return nil
}

// pullDir reads, decodes, and saves every Markdown file in one directory.
// Authentication failures abort the pull; any other per-file error is logged
// and skipped.
func (o *Orchestrator) pullDir(ctx context.Context, t remote.Target, dir string, names []string) error {
	for _, name := range names {
		if !strings.HasSuffix(name, ".md") {
			continue
		}
		path := dir + "/" + name
		if err := o.pullFile(ctx, t, path); err != nil {
			if apperr.IsAuth(err) {
				return fmt.Errorf("syncer: pull %s: %w", path, err)
			}
			o.logger.Warn("syncer: pull file skipped",
				slog.String("path", path), slog.String("error", err.Error()))
		}
	}
	return nil
}

func (o *Orchestrator) pullFile(ctx context.Context, t remote.Target, path string) error {
	data, _, err := o.remote.ReadFile(ctx, t, path)
	if err != nil {
		return err
	}

	fp := checksum.Sum(data)
	note := codec.Decode(data, path)

	if existing, err := o.store.Get(note.ID); err == nil && existing.Fingerprint == fp {
		return nil // unchanged since the last pass
	}

	note.SyncStatus = models.StatusSynced
	note.Fingerprint = fp
	if err := o.store.Save(note); err != nil {
		return err
	}
	o.publish("note.pulled", map[string]string{"note_id": note.ID, "path": path})
	return nil
}

// Sync drains the commit queue, then pulls. Fire-and-forget: all pull errors
// are suppressed here; observability happens through note statuses, queue
// depth, and the event stream.
func (o *Orchestrator) Sync(ctx context.Context) {
	o.publish("sync.started", nil)
	o.drainQueue(ctx)
	if err := o.Pull(ctx); err != nil {
		o.logger.Warn("syncer: pull failed", slog.String("error", err.Error()))
	}
	o.publish("sync.finished", map[string]string{
		"queue_depth": fmt.Sprintf("%d", o.queue.Len()),
	})
}

// Push is the strict, user-triggered variant: it requires configuration,
// drains the queue, and re-attempts a commit for every note still marked
// pending, continuing past individual failures.
func (o *Orchestrator) Push(ctx context.Context) error {
	if _, ok := o.target(); !ok {
		return apperr.ErrNotConfigured
	}

	o.drainQueue(ctx)

	pending, err := o.store.ListByStatus(models.StatusPending)
	if err != nil {
		return fmt.Errorf("syncer: list pending: %w", err)
	}
	for i := range pending {
		note := pending[i]
		if err := o.Commit(ctx, &note); err != nil {
			o.logger.Warn("syncer: push commit failed",
				slog.String("note_id", note.ID), slog.String("error", err.Error()))
		}
	}
	return nil
}

func (o *Orchestrator) publish(event string, data map[string]string) {
	if o.events == nil {
		return
	}
	o.events.Publish(event, data)
}
