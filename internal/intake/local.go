package intake

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// LocalConfig configures a watched directory.
type LocalConfig struct {
	Path         string
	Recursive    bool
	ScanExisting bool // enqueue files already present when the watch starts
}

// LocalSource turns file-creation events under a directory into queued items.
// JSON records written beside the scans are not queued.
type LocalSource struct {
	cfg LocalConfig
}

// NewLocalSource creates a source for cfg.Path.
func NewLocalSource(cfg LocalConfig) *LocalSource {
	return &LocalSource{cfg: cfg}
}

// Run watches until ctx is canceled.
func (s *LocalSource) Run(ctx context.Context, sink Sink) error {
	st, err := os.Stat(s.cfg.Path)
	if err != nil {
		return fmt.Errorf("watch path: %w", err)
	}
	if !st.IsDir() {
		return fmt.Errorf("watch path %s is not a directory", s.cfg.Path)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = w.Close() }()

	if err := s.watchTree(w, s.cfg.Path); err != nil {
		return err
	}
	slog.Info("Watching directory", "path", s.cfg.Path, "recursive", s.cfg.Recursive)

	if s.cfg.ScanExisting {
		n := s.enqueueTree(s.cfg.Path, sink)
		slog.Info("Queued existing files", "path", s.cfg.Path, "count", n)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) {
				continue
			}
			s.created(w, ev.Name, sink)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("File watcher error", "error", err)
		}
	}
}

func (s *LocalSource) created(w *fsnotify.Watcher, path string, sink Sink) {
	st, err := os.Stat(path)
	if err != nil {
		// Gone again before we looked.
		slog.Debug("Created file vanished", "path", path, "error", err)
		return
	}
	if !st.IsDir() {
		if IsRecord(path) {
			slog.Debug("Ignoring record", "path", path)
			return
		}
		sink.EnqueueItem(Item{Path: path})
		return
	}
	if !s.cfg.Recursive {
		return
	}
	if err := s.watchTree(w, path); err != nil {
		slog.Warn("Failed to watch new directory", "path", path, "error", err)
		return
	}
	// Files may have landed before the watch was added.
	s.enqueueTree(path, sink)
}

func (s *LocalSource) watchTree(w *fsnotify.Watcher, root string) error {
	if !s.cfg.Recursive {
		if err := w.Add(root); err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (s *LocalSource) enqueueTree(root string, sink Sink) int {
	n := 0
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("Skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			if path != root && !s.cfg.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if IsRecord(path) {
			return nil
		}
		sink.EnqueueItem(Item{Path: path})
		n++
		return nil
	})
	return n
}
