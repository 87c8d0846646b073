// Package intake discovers scanned forms, feeds them one at a time through
// the processing pipeline and dispatches the results.
package intake

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/formflow/internal/common"
	"github.com/MeKo-Tech/formflow/internal/pdf"
	"github.com/MeKo-Tech/formflow/internal/pipeline"
	"github.com/MeKo-Tech/formflow/internal/utils"
)

// Processor runs the per-file pipeline.
type Processor interface {
	Process(ctx context.Context, path string) (*pipeline.Outcome, error)
}

// Item is one discovered file.
type Item struct {
	Path   string // local file handed to the processor
	Origin string // remote path the file was fetched from
	Remote bool

	announced bool // source already reported discovery
}

// Key identifies the item for de-duplication.
func (i Item) Key() string {
	if i.Remote && i.Origin != "" {
		return "remote:" + i.Origin
	}
	return i.Path
}

// Sink accepts discovered files.
type Sink interface {
	EnqueueItem(item Item)
}

// Announcer is implemented by sinks that report state events raised by a
// source before the item is queued, such as the download of a remote file.
type Announcer interface {
	Announce(e Event)
}

// Handler acts on a successfully processed file. Errors coded
// SUBMISSION_ERROR or REMOTE_IO_ERROR are logged and do not fail the file.
type Handler interface {
	Handle(ctx context.Context, item Item, out *pipeline.Outcome) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, item Item, out *pipeline.Outcome) error

func (f HandlerFunc) Handle(ctx context.Context, item Item, out *pipeline.Outcome) error {
	return f(ctx, item, out)
}

// Config bounds retries.
type Config struct {
	LocalAttempts  int
	RemoteAttempts int
	RetryDelay     time.Duration
}

// DefaultConfig allows three attempts for local files and one for remote
// ones, one second apart.
func DefaultConfig() Config {
	return Config{LocalAttempts: 3, RemoteAttempts: 1, RetryDelay: time.Second}
}

func (c Config) attempts(item Item) int {
	n := c.LocalAttempts
	if item.Remote {
		n = c.RemoteAttempts
	}
	return max(n, 1)
}

// Stats counts finished files.
type Stats struct {
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Skipped   int64 `json:"skipped"`
	Pending   int   `json:"pending"`
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStore replaces the in-memory de-duplication store.
func WithStore(s Store) Option { return func(o *Orchestrator) { o.store = s } }

// WithHandlers appends post-processing handlers, run in order.
func WithHandlers(h ...Handler) Option {
	return func(o *Orchestrator) { o.handlers = append(o.handlers, h...) }
}

// WithObserver subscribes obs from the start.
func WithObserver(obs Observer) Option { return func(o *Orchestrator) { o.obs.add(obs) } }

// WithSleep replaces the retry delay function.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

// WithFilter replaces the check for processable files.
func WithFilter(accept func(path string) bool) Option {
	return func(o *Orchestrator) { o.accept = accept }
}

// IsAccepted reports whether path looks like a scan: a supported image or a PDF.
func IsAccepted(path string) bool {
	return utils.IsSupportedImage(path) || pdf.IsPDF(path)
}

// ExtensionFilter accepts paths with one of exts (case-insensitive, with
// or without the leading dot). An empty list falls back to IsAccepted.
func ExtensionFilter(exts []string) func(string) bool {
	if len(exts) == 0 {
		return IsAccepted
	}
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = struct{}{}
	}
	return func(path string) bool {
		_, ok := set[strings.ToLower(filepath.Ext(path))]
		return ok
	}
}

// Orchestrator queues discovered files and processes them strictly one at a
// time in arrival order.
type Orchestrator struct {
	cfg      Config
	proc     Processor
	store    Store
	handlers []Handler
	obs      observers
	sleep    func(ctx context.Context, d time.Duration) error
	accept   func(path string) bool

	mu    sync.Mutex
	queue []Item
	wake  chan struct{}

	// gate admits one file into the pipeline at a time.
	gate sync.Mutex

	succeeded atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
}

// NewOrchestrator creates an orchestrator around proc.
func NewOrchestrator(cfg Config, proc Processor, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:    cfg,
		proc:   proc,
		store:  NewMemoryStore(),
		sleep:  sleepContext,
		accept: IsAccepted,
		wake:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Subscribe adds an observer.
func (o *Orchestrator) Subscribe(obs Observer) { o.obs.add(obs) }

// Enqueue queues a local file.
func (o *Orchestrator) Enqueue(path string) { o.EnqueueItem(Item{Path: path}) }

// EnqueueItem queues item unless it is not a processable file.
func (o *Orchestrator) EnqueueItem(item Item) {
	if !item.announced {
		o.obs.emit(Event{State: StateDiscovered, Path: item.Path, Origin: item.Origin})
	}
	if !o.accept(item.Path) {
		slog.Debug("Skipping non-image file", "path", item.Path)
		o.skipped.Add(1)
		o.obs.emit(Event{State: StateSkippedNonImage, Path: item.Path, Origin: item.Origin})
		return
	}

	o.mu.Lock()
	o.queue = append(o.queue, item)
	o.mu.Unlock()
	o.obs.emit(Event{State: StateQueued, Path: item.Path, Origin: item.Origin})

	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// Announce implements Announcer.
func (o *Orchestrator) Announce(e Event) { o.obs.emit(e) }

// Pending returns the number of queued files.
func (o *Orchestrator) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// Stats returns counters of finished files.
func (o *Orchestrator) Stats() Stats {
	return Stats{
		Succeeded: o.succeeded.Load(),
		Failed:    o.failed.Load(),
		Skipped:   o.skipped.Load(),
		Pending:   o.Pending(),
	}
}

// Run drains the queue whenever files arrive until ctx is canceled. A file
// already in the pipeline when ctx ends is finished first; files still
// queued are left alone.
func (o *Orchestrator) Run(ctx context.Context) error {
	slog.Info("Intake worker started")
	for {
		o.Drain(ctx)
		select {
		case <-ctx.Done():
			slog.Info("Intake worker stopping", "pending", o.Pending())
			return nil
		case <-o.wake:
		}
	}
}

// Drain processes queued files until the queue is empty or ctx is canceled,
// and returns how many it took.
func (o *Orchestrator) Drain(ctx context.Context) int {
	n := 0
	for ctx.Err() == nil {
		item, ok := o.pop()
		if !ok {
			break
		}
		o.process(context.WithoutCancel(ctx), item)
		n++
	}
	return n
}

func (o *Orchestrator) pop() (Item, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.queue) == 0 {
		return Item{}, false
	}
	item := o.queue[0]
	o.queue[0] = Item{}
	o.queue = o.queue[1:]
	return item, true
}

func (o *Orchestrator) process(ctx context.Context, item Item) {
	o.gate.Lock()
	defer o.gate.Unlock()

	log := slog.With("path", item.Path)
	if item.Origin != "" {
		log = log.With("origin", item.Origin)
	}

	key := item.Key()
	seen, err := o.store.Seen(ctx, key)
	if err != nil {
		log.Warn("De-duplication lookup failed, processing anyway", "error", err)
	}
	if seen {
		log.Info("Skipping already processed file")
		o.skipped.Add(1)
		o.obs.emit(Event{State: StateSkippedDuplicate, Path: item.Path, Origin: item.Origin})
		return
	}
	if err := o.store.Mark(ctx, key); err != nil {
		log.Warn("Failed to record processed file", "error", err)
	}

	start := time.Now()
	attempts := o.cfg.attempts(item)
	for attempt := 1; ; attempt++ {
		o.obs.emit(Event{State: StateProcessing, Path: item.Path, Origin: item.Origin, Attempt: attempt})

		out, err := o.proc.Process(ctx, item.Path)
		if err == nil {
			err = o.finish(ctx, item, out, log)
		}
		if err == nil {
			o.succeeded.Add(1)
			o.obs.emit(Event{
				State: StateSucceeded, Path: item.Path, Origin: item.Origin, JobID: out.JobID,
				Attempt: attempt, Template: filepath.Base(out.Template), Duration: time.Since(start),
			})
			return
		}

		if common.IsRetryable(err) && attempt < attempts {
			log.Warn("Processing failed, retrying", "attempt", attempt, "max_attempts", attempts,
				"delay", o.cfg.RetryDelay, "error", err)
			if serr := o.sleep(ctx, o.cfg.RetryDelay); serr == nil {
				continue
			}
		}

		log.Error("Processing failed", "attempt", attempt, "code", string(common.CodeOf(err)), "error", err)
		o.failed.Add(1)
		o.obs.emit(Event{
			State: StateFailed, Path: item.Path, Origin: item.Origin, Attempt: attempt,
			Code: string(common.CodeOf(err)), Error: err.Error(), Duration: time.Since(start),
		})
		return
	}
}

func (o *Orchestrator) finish(ctx context.Context, item Item, out *pipeline.Outcome, log *slog.Logger) error {
	if out == nil {
		return common.NewError(common.ErrorInternal, "process", item.Path, fmt.Errorf("processor returned no outcome"))
	}
	for _, h := range o.handlers {
		err := h.Handle(ctx, item, out)
		if err == nil {
			continue
		}
		switch common.CodeOf(err) {
		case common.ErrorSubmission, common.ErrorRemoteIO:
			log.Warn("Post-processing step failed, file stays processed", "job_id", out.JobID, "error", err)
		default:
			return err
		}
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
