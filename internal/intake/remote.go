package intake

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"time"

	"github.com/MeKo-Tech/formflow/internal/common"
	"github.com/MeKo-Tech/formflow/internal/pipeline"
)

// RemoteEntry is one listing entry.
type RemoteEntry struct {
	Name string
	Dir  bool
	Size int64
}

// RemoteStore is the remote directory tree files are fetched from and
// records are uploaded to. Paths use forward slashes.
type RemoteStore interface {
	List(ctx context.Context, dir string) ([]RemoteEntry, error)
	Download(ctx context.Context, remotePath string, w io.Writer) error
	Delete(ctx context.Context, remotePath string) error
	Upload(ctx context.Context, remotePath string, r io.Reader) error
	MakeDir(ctx context.Context, remotePath string) error
}

// RemoteConfig configures remote intake.
type RemoteConfig struct {
	WatchedDir   string
	TempDir      string // records are uploaded to <TempDir>/<parent folder>/<base>.json
	DownloadDir  string
	PollInterval time.Duration
}

// DefaultRemoteConfig polls every second.
func DefaultRemoteConfig() RemoteConfig {
	return RemoteConfig{
		WatchedDir:   "/",
		TempDir:      "Temp",
		DownloadDir:  "fetched",
		PollInterval: time.Second,
	}
}

// RemoteSource polls a RemoteStore, downloads new files, removes them from
// the remote side and queues the local copies.
type RemoteSource struct {
	store  RemoteStore
	cfg    RemoteConfig
	accept func(string) bool

	fetched map[string]struct{}
}

// NewRemoteSource creates a source. Only files accepted by accept are
// touched; nil uses IsAccepted.
func NewRemoteSource(store RemoteStore, cfg RemoteConfig, accept func(string) bool) *RemoteSource {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if accept == nil {
		accept = IsAccepted
	}
	return &RemoteSource{store: store, cfg: cfg, accept: accept, fetched: make(map[string]struct{})}
}

// Run polls until ctx is canceled. Remote failures are logged and the next
// poll tries again.
func (s *RemoteSource) Run(ctx context.Context, sink Sink) error {
	slog.Info("Polling remote directory", "dir", s.cfg.WatchedDir, "interval", s.cfg.PollInterval)
	t := time.NewTicker(s.cfg.PollInterval)
	defer t.Stop()
	for {
		if _, err := s.Poll(ctx, sink); err != nil && ctx.Err() == nil {
			slog.Error("Remote poll failed", "dir", s.cfg.WatchedDir, "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}

// Poll lists the watched tree once and fetches every new file. It returns
// how many files were queued. Sinks implementing Announcer see each file
// discovered and then downloaded once the local copy is written.
func (s *RemoteSource) Poll(ctx context.Context, sink Sink) (int, error) {
	files, err := s.listTree(ctx, s.cfg.WatchedDir, "")
	if err != nil {
		return 0, common.NewError(common.ErrorRemoteIO, "list", s.cfg.WatchedDir, err)
	}

	ann, _ := sink.(Announcer)
	announce := func(st State, local, rel string) {
		if ann != nil {
			ann.Announce(Event{State: st, Path: local, Origin: rel})
		}
	}

	n := 0
	for _, rel := range files {
		if ctx.Err() != nil {
			break
		}
		if _, done := s.fetched[rel]; done || !s.accept(rel) {
			continue
		}
		remote := path.Join(s.cfg.WatchedDir, rel)
		local := filepath.Join(s.cfg.DownloadDir, filepath.FromSlash(rel))
		announce(StateDiscovered, local, rel)
		if err := s.download(ctx, remote, local); err != nil {
			slog.Error("Error downloading file", "remote", remote, "error", err)
			continue
		}
		s.fetched[rel] = struct{}{}
		if err := s.store.Delete(ctx, remote); err != nil {
			slog.Error("Error deleting remote file", "remote", remote, "error", err)
		}
		announce(StateDownloaded, local, rel)
		sink.EnqueueItem(Item{Path: local, Origin: rel, Remote: true, announced: ann != nil})
		n++
	}
	return n, nil
}

// listTree returns file paths relative to the watched dir, sorted per level
// with files before subdirectories.
func (s *RemoteSource) listTree(ctx context.Context, dir, rel string) ([]string, error) {
	entries, err := s.store.List(ctx, dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	var files, dirs []string
	for _, e := range entries {
		if e.Name == "." || e.Name == ".." || e.Name == "" {
			continue
		}
		if e.Dir {
			dirs = append(dirs, e.Name)
		} else {
			files = append(files, path.Join(rel, e.Name))
		}
	}
	for _, d := range dirs {
		sub, err := s.listTree(ctx, path.Join(dir, d), path.Join(rel, d))
		if err != nil {
			slog.Warn("Error listing remote folder", "dir", path.Join(dir, d), "error", err)
			continue
		}
		files = append(files, sub...)
	}
	return files, nil
}

func (s *RemoteSource) download(ctx context.Context, remote, local string) error {
	if err := os.MkdirAll(filepath.Dir(local), 0o750); err != nil {
		return err
	}
	f, err := os.Create(local) //nolint:gosec // G304: local path mirrors the remote tree under the download dir
	if err != nil {
		return err
	}
	err = s.store.Download(ctx, remote, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(local)
		return err
	}
	return nil
}

// Uploader mirrors written records of remote items back to the remote
// side.
type Uploader struct {
	store   RemoteStore
	tempDir string
	records *RecordWriter
}

// NewUploader uploads records produced by records into tempDir.
func NewUploader(store RemoteStore, tempDir string, records *RecordWriter) *Uploader {
	return &Uploader{store: store, tempDir: tempDir, records: records}
}

// RemotePathFor returns <tempDir>/<parent folder of local>/<base>.json.
func (u *Uploader) RemotePathFor(local string) string {
	parent := filepath.Base(filepath.Dir(local))
	return path.Join(u.tempDir, parent, filepath.Base(u.records.PathFor(local)))
}

// Handle implements Handler. Local items are ignored.
func (u *Uploader) Handle(ctx context.Context, item Item, out *pipeline.Outcome) error {
	if !item.Remote {
		return nil
	}
	dest := u.RemotePathFor(item.Path)
	if err := u.store.MakeDir(ctx, path.Dir(dest)); err != nil {
		// Usually the folder exists already.
		slog.Debug("Creating remote folder failed", "dir", path.Dir(dest), "error", err)
	}

	record := u.records.PathFor(item.Path)
	f, err := os.Open(record) //nolint:gosec // G304: record path is derived from the processed file
	if err != nil {
		return common.NewError(common.ErrorRemoteIO, "upload", item.Path, fmt.Errorf("open record: %w", err))
	}
	defer func() { _ = f.Close() }()

	if err := u.store.Upload(ctx, dest, f); err != nil {
		return common.NewError(common.ErrorRemoteIO, "upload", item.Path, err)
	}
	slog.Info("Uploaded record", "job_id", out.JobID, "remote", dest)
	return nil
}
