// Package queue implements the ordered commit queue: a durable buffer of
// "note needs to be pushed" work items with a bounded retry policy.
//
// Concurrency model: a single internal run loop (goroutine) owns the buffer.
// Public methods communicate with this loop through channels, so no two
// callers ever interleave their mutation of the buffer.
package queue

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/starford/ehwaz/internal/models"
)

const (
	// maxRetries is the fixed retry cap: an item whose push fails this many
	// times is dropped and its note flagged as error.
	maxRetries = 3
	// interItemDelay paces sequential pushes so each note lands as its own
	// discrete remote commit and the API is never hammered.
	interItemDelay = 100 * time.Millisecond
)

// Journal persists queue entries so pending commits survive a restart.
// Journal failures are logged and swallowed: durability is best-effort and
// never blocks the queue.
type Journal interface {
	Append(pc models.PendingCommit) error
	Remove(id string) error
	UpdateRetry(id string, retryCount int) error
	LoadAll() ([]models.PendingCommit, error)
}

// PushFunc attempts to push one queued commit to the remote.
type PushFunc func(ctx context.Context, pc models.PendingCommit) error

// DropFunc is invoked when an item exceeds the retry cap and is dropped.
type DropFunc func(pc models.PendingCommit)

// Queue is the commit queue actor.
type Queue struct {
	journal Journal
	logger  *slog.Logger

	enqueueCh chan models.PendingCommit
	requeueCh chan models.PendingCommit
	takeCh    chan chan []models.PendingCommit
	lenCh     chan chan int

	drainMu sync.Mutex
	limiter *rate.Limiter

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// New creates a commit queue. journal may be nil for a purely in-memory
// queue (tests).
func New(journal Journal, logger *slog.Logger) *Queue {
	q := &Queue{
		journal:   journal,
		logger:    logger,
		// Unbuffered: a send returns only once the actor has absorbed the
		// item, so a later Len sees every prior mutation.
		enqueueCh: make(chan models.PendingCommit),
		requeueCh: make(chan models.PendingCommit),
		takeCh:    make(chan chan []models.PendingCommit),
		lenCh:     make(chan chan int),
		limiter:   rate.NewLimiter(rate.Every(interItemDelay), 1),
		stopCh:    make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.stopped)

	var buf []models.PendingCommit

	for {
		select {
		case <-q.stopCh:
			return

		case pc := <-q.enqueueCh:
			buf = append(buf, pc)

		case pc := <-q.requeueCh:
			buf = append(buf, pc)

		case resp := <-q.takeCh:
			// Take-all-then-clear: items enqueued during a drain land in a
			// fresh buffer and are not processed in the same pass.
			snapshot := buf
			buf = nil
			resp <- snapshot

		case resp := <-q.lenCh:
			resp <- len(buf)
		}
	}
}

// Close stops the queue actor. Queued items remain in the journal.
func (q *Queue) Close() {
	if q.closed.CompareAndSwap(false, true) {
		close(q.stopCh)
	}
	<-q.stopped
}

// Load restores journalled entries into the buffer. Called once at startup.
func (q *Queue) Load() error {
	if q.journal == nil {
		return nil
	}
	entries, err := q.journal.LoadAll()
	if err != nil {
		return err
	}
	for _, pc := range entries {
		q.send(pc)
	}
	return nil
}

// Enqueue appends a fresh entry snapshotting the note. It never fails and
// never deduplicates: multiple edits before a successful push mean multiple
// snapshots, and processing order decides the final remote content.
func (q *Queue) Enqueue(note models.Note) {
	pc := models.PendingCommit{
		ID:          uuid.NewString(),
		NoteID:      note.ID,
		Note:        note,
		DateCreated: time.Now().UTC(),
	}
	if q.journal != nil {
		if err := q.journal.Append(pc); err != nil {
			q.logger.Warn("queue: journal append failed",
				slog.String("note_id", note.ID), slog.String("error", err.Error()))
		}
	}
	q.send(pc)
}

func (q *Queue) send(pc models.PendingCommit) {
	select {
	case q.enqueueCh <- pc:
	case <-q.stopped:
	}
}

// Len returns the current queue depth, for observability only.
func (q *Queue) Len() int {
	if q.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case q.lenCh <- resp:
	case <-q.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-q.stopped:
		return 0
	}
}

// Drain snapshots the buffer and processes every item strictly sequentially,
// one in-flight push at a time, pacing between items. A transient failure
// re-appends the item with an incremented retry count; an item that reaches
// the cap is removed and reported through onDrop. Drain passes never
// interleave.
func (q *Queue) Drain(ctx context.Context, push PushFunc, onDrop DropFunc) error {
	q.drainMu.Lock()
	defer q.drainMu.Unlock()

	batch := q.takeAll()
	for i, pc := range batch {
		if err := q.limiter.Wait(ctx); err != nil {
			// Interrupted: put this and the remaining items back untouched.
			for _, rest := range batch[i:] {
				q.requeue(rest)
			}
			return err
		}

		err := push(ctx, pc)
		if err == nil {
			q.journalRemove(pc)
			continue
		}

		pc.RetryCount++
		if pc.RetryCount >= maxRetries {
			q.logger.Warn("queue: retry cap exceeded, dropping",
				slog.String("note_id", pc.NoteID),
				slog.Int("retries", pc.RetryCount),
				slog.String("error", err.Error()))
			q.journalRemove(pc)
			if onDrop != nil {
				onDrop(pc)
			}
			continue
		}

		q.logger.Debug("queue: push failed, requeueing",
			slog.String("note_id", pc.NoteID),
			slog.Int("retries", pc.RetryCount),
			slog.String("error", err.Error()))
		if q.journal != nil {
			if jerr := q.journal.UpdateRetry(pc.ID, pc.RetryCount); jerr != nil {
				q.logger.Warn("queue: journal update failed",
					slog.String("id", pc.ID), slog.String("error", jerr.Error()))
			}
		}
		q.requeue(pc)
	}
	return nil
}

func (q *Queue) takeAll() []models.PendingCommit {
	resp := make(chan []models.PendingCommit, 1)
	select {
	case q.takeCh <- resp:
	case <-q.stopped:
		return nil
	}
	select {
	case batch := <-resp:
		return batch
	case <-q.stopped:
		return nil
	}
}

func (q *Queue) requeue(pc models.PendingCommit) {
	select {
	case q.requeueCh <- pc:
	case <-q.stopped:
	}
}

func (q *Queue) journalRemove(pc models.PendingCommit) {
	if q.journal == nil {
		return
	}
	if err := q.journal.Remove(pc.ID); err != nil {
		q.logger.Warn("queue: journal remove failed",
			slog.String("id", pc.ID), slog.String("error", err.Error()))
	}
}
