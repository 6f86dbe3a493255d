// Package inbox imports Markdown documents dropped into a local directory:
// each file is decoded, saved as a note, committed to the sync engine, and
// moved into the imported/ subdirectory.
package inbox

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/ehwaz/internal/models"
	"github.com/starford/ehwaz/internal/storage"
)

const (
	importedDir = "imported"
	// settleDelay debounces write bursts: editors and copies fire several
	// events before a file is complete.
	settleDelay = 200 * time.Millisecond
)

// Importer is the slice of the note service the inbox needs.
type Importer interface {
	ImportDocument(ctx context.Context, data []byte, filename string) (*models.Note, error)
}

// Watch sweeps the inbox once, then processes file events until ctx is
// cancelled. A file that fails to import stays in place and is retried on
// the next event or restart; the watcher itself never stops on a bad file.
func Watch(ctx context.Context, dir *storage.Dir, imp Importer, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir.Root()); err != nil {
		return err
	}

	logger.Info("inbox: started", slog.String("root", dir.Root()))
	sweep(ctx, dir, imp, logger)

	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	scheduleSweep := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(settleDelay)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(settleDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("inbox: stopped")
			return nil

		case <-settleCh:
			sweep(ctx, dir, imp, logger)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			// Only .md files directly in the inbox root.
			if !strings.HasSuffix(ev.Name, ".md") || filepath.Dir(ev.Name) != dir.Root() {
				continue
			}
			scheduleSweep()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// sweep imports every .md file currently in the inbox root.
func sweep(ctx context.Context, dir *storage.Dir, imp Importer, logger *slog.Logger) {
	files, err := dir.List()
	if err != nil {
		logger.Warn("inbox: list failed", slog.String("error", err.Error()))
		return
	}
	for _, f := range files {
		if err := importOne(ctx, dir, imp, f.Name, logger); err != nil {
			logger.Warn("inbox: import failed",
				slog.String("file", f.Name), slog.String("error", err.Error()))
		}
	}
}

func importOne(ctx context.Context, dir *storage.Dir, imp Importer, name string, logger *slog.Logger) error {
	data, err := dir.Read(name)
	if err != nil {
		return err
	}
	n, err := imp.ImportDocument(ctx, data, name)
	if err != nil {
		return err
	}
	if err := dir.Move(name, importedDir); err != nil {
		return err
	}
	logger.Debug("inbox: imported", slog.String("file", name), slog.String("note_id", n.ID))
	return nil
}
