package intake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MeKo-Tech/formflow/internal/common"
	"github.com/MeKo-Tech/formflow/internal/extract"
	"github.com/MeKo-Tech/formflow/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProcessor answers from a script of errors, then succeeds.
type stubProcessor struct {
	mu      sync.Mutex
	errs    []error
	calls   []string
	delay   time.Duration
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (p *stubProcessor) Process(_ context.Context, path string) (*pipeline.Outcome, error) {
	n := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		m := p.maxSeen.Load()
		if n <= m || p.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, path)
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	fields := extract.NewResult()
	fields.Set("Reservation Number", "12345")
	return &pipeline.Outcome{JobID: "job-" + path, Path: path, Template: "/forms/intake.png", Matched: true, Fields: fields}, nil
}

func (p *stubProcessor) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnEvent(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) States(path string) []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []State
	for _, e := range r.events {
		if e.Path == path {
			out = append(out, e.State)
		}
	}
	return out
}

func (r *recorder) Last(path string) Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Path == path {
			return r.events[i]
		}
	}
	return Event{}
}

type sleepRecorder struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (s *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, d)
	return nil
}

func readErr() error {
	return common.NewError(common.ErrorImageRead, "load", "", errors.New("file is locked"))
}

func newTestOrchestrator(proc Processor, opts ...Option) (*Orchestrator, *recorder, *sleepRecorder) {
	rec := &recorder{}
	sl := &sleepRecorder{}
	opts = append([]Option{WithObserver(rec), WithSleep(sl.Sleep)}, opts...)
	return NewOrchestrator(DefaultConfig(), proc, opts...), rec, sl
}

func TestOrchestrator_SucceedsAndEmitsLifecycle(t *testing.T) {
	proc := &stubProcessor{}
	o, rec, sl := newTestOrchestrator(proc)

	o.Enqueue("scan.png")
	assert.Equal(t, 1, o.Pending())
	assert.Equal(t, 1, o.Drain(context.Background()))

	assert.Equal(t, []State{StateDiscovered, StateQueued, StateProcessing, StateSucceeded}, rec.States("scan.png"))
	last := rec.Last("scan.png")
	assert.Equal(t, "job-scan.png", last.JobID)
	assert.Equal(t, "intake.png", last.Template)
	assert.Equal(t, 1, last.Attempt)
	assert.False(t, last.Time.IsZero())
	assert.Empty(t, sl.calls)
	assert.Equal(t, Stats{Succeeded: 1}, o.Stats())
}

func TestOrchestrator_RetriesTransientFailures(t *testing.T) {
	proc := &stubProcessor{errs: []error{readErr(), readErr()}}
	o, rec, sl := newTestOrchestrator(proc)

	o.Enqueue("scan.png")
	o.Drain(context.Background())

	assert.Len(t, proc.Calls(), 3)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, sl.calls)
	assert.Equal(t, StateSucceeded, rec.Last("scan.png").State)
	assert.Equal(t, 3, rec.Last("scan.png").Attempt)
	assert.Equal(t, int64(1), o.Stats().Succeeded)
}

func TestOrchestrator_GivesUpAfterLastAttempt(t *testing.T) {
	proc := &stubProcessor{errs: []error{readErr(), readErr(), readErr(), nil}}
	o, rec, sl := newTestOrchestrator(proc)

	o.Enqueue("scan.png")
	o.Drain(context.Background())

	assert.Len(t, proc.Calls(), 3)
	assert.Len(t, sl.calls, 2)
	last := rec.Last("scan.png")
	assert.Equal(t, StateFailed, last.State)
	assert.Equal(t, string(common.ErrorImageRead), last.Code)
	assert.Contains(t, last.Error, "file is locked")
	assert.Equal(t, int64(1), o.Stats().Failed)
}

func TestOrchestrator_PermanentFailureIsNotRetried(t *testing.T) {
	proc := &stubProcessor{errs: []error{common.NewError(common.ErrorInvalidImage, "load", "scan.png", errors.New("empty"))}}
	o, rec, sl := newTestOrchestrator(proc)

	o.Enqueue("scan.png")
	o.Drain(context.Background())

	assert.Len(t, proc.Calls(), 1)
	assert.Empty(t, sl.calls)
	assert.Equal(t, string(common.ErrorInvalidImage), rec.Last("scan.png").Code)
}

func TestOrchestrator_RemoteItemsGetOneAttempt(t *testing.T) {
	proc := &stubProcessor{errs: []error{readErr()}}
	o, rec, sl := newTestOrchestrator(proc)

	o.EnqueueItem(Item{Path: "fetched/a/scan.png", Origin: "a/scan.png", Remote: true})
	o.Drain(context.Background())

	assert.Len(t, proc.Calls(), 1)
	assert.Empty(t, sl.calls)
	last := rec.Last("fetched/a/scan.png")
	assert.Equal(t, StateFailed, last.State)
	assert.Equal(t, "a/scan.png", last.Origin)
}

func TestOrchestrator_ConfigurableAttempts(t *testing.T) {
	proc := &stubProcessor{errs: []error{readErr(), readErr()}}
	rec := &recorder{}
	sl := &sleepRecorder{}
	cfg := Config{LocalAttempts: 1, RemoteAttempts: 3, RetryDelay: 10 * time.Millisecond}
	o := NewOrchestrator(cfg, proc, WithObserver(rec), WithSleep(sl.Sleep))

	o.EnqueueItem(Item{Path: "r.png", Origin: "r.png", Remote: true})
	o.Drain(context.Background())

	assert.Len(t, proc.Calls(), 3)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 10 * time.Millisecond}, sl.calls)
	assert.Equal(t, StateSucceeded, rec.Last("r.png").State)
}

func TestOrchestrator_SkipsDuplicates(t *testing.T) {
	proc := &stubProcessor{}
	o, rec, _ := newTestOrchestrator(proc)

	o.Enqueue("scan.png")
	o.Enqueue("scan.png")
	o.Drain(context.Background())
	o.Enqueue("scan.png")
	o.Drain(context.Background())

	assert.Equal(t, []string{"scan.png"}, proc.Calls())
	assert.Equal(t, StateSkippedDuplicate, rec.Last("scan.png").State)
	assert.Equal(t, Stats{Succeeded: 1, Skipped: 2}, o.Stats())
}

func TestOrchestrator_FailedFilesAreNotRetakenOnRediscovery(t *testing.T) {
	proc := &stubProcessor{errs: []error{common.NewError(common.ErrorInvalidImage, "load", "", errors.New("bad"))}}
	o, rec, _ := newTestOrchestrator(proc)

	o.Enqueue("scan.png")
	o.Drain(context.Background())
	o.Enqueue("scan.png")
	o.Drain(context.Background())

	assert.Len(t, proc.Calls(), 1)
	assert.Equal(t, StateSkippedDuplicate, rec.Last("scan.png").State)
}

func TestOrchestrator_SkipsNonImages(t *testing.T) {
	proc := &stubProcessor{}
	o, rec, _ := newTestOrchestrator(proc)

	for _, p := range []string{"notes.txt", "scan.json", "README"} {
		o.Enqueue(p)
		assert.Equal(t, []State{StateDiscovered, StateSkippedNonImage}, rec.States(p), p)
	}
	o.Enqueue("form.pdf")
	o.Enqueue("form.BMP")

	assert.Equal(t, 2, o.Pending())
	assert.Equal(t, 2, o.Drain(context.Background()))
	assert.Equal(t, []string{"form.pdf", "form.BMP"}, proc.Calls())
	assert.Equal(t, int64(3), o.Stats().Skipped)
}

func TestOrchestrator_WithFilter(t *testing.T) {
	proc := &stubProcessor{}
	o, _, _ := newTestOrchestrator(proc, WithFilter(ExtensionFilter([]string{"bmp"})))

	o.Enqueue("a.png")
	o.Enqueue("b.bmp")
	o.Drain(context.Background())

	assert.Equal(t, []string{"b.bmp"}, proc.Calls())
}

func TestOrchestrator_HandlersRunInOrder(t *testing.T) {
	var order []string
	h := func(name string) Handler {
		return HandlerFunc(func(_ context.Context, item Item, out *pipeline.Outcome) error {
			order = append(order, name+":"+item.Path+":"+out.Fields.Value("Reservation Number"))
			return nil
		})
	}
	o, _, _ := newTestOrchestrator(&stubProcessor{}, WithHandlers(h("record"), h("submit")))

	o.Enqueue("scan.png")
	o.Drain(context.Background())

	assert.Equal(t, []string{"record:scan.png:12345", "submit:scan.png:12345"}, order)
}

func TestOrchestrator_HandlerErrors(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		state State
	}{
		{"submission failure keeps file processed", common.NewError(common.ErrorSubmission, "submit", "", errors.New("502")), StateSucceeded},
		{"upload failure keeps file processed", common.NewError(common.ErrorRemoteIO, "upload", "", errors.New("reset")), StateSucceeded},
		{"bad date fails file", common.NewError(common.ErrorDateFormat, "submit", "", errors.New("31/31/2020")), StateFailed},
		{"missing field fails file", common.NewError(common.ErrorFieldMissing, "submit", "", errors.New("MRN")), StateFailed},
		{"uncoded error fails file", errors.New("disk full"), StateFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ran := false
			after := HandlerFunc(func(context.Context, Item, *pipeline.Outcome) error {
				ran = true
				return nil
			})
			fail := HandlerFunc(func(context.Context, Item, *pipeline.Outcome) error { return tt.err })
			proc := &stubProcessor{}
			o, rec, _ := newTestOrchestrator(proc, WithHandlers(fail, after))

			o.Enqueue("scan.png")
			o.Drain(context.Background())

			assert.Equal(t, tt.state, rec.Last("scan.png").State)
			assert.Equal(t, tt.state == StateSucceeded, ran)
			assert.Len(t, proc.Calls(), 1)
		})
	}
}

type nilProcessor struct{}

func (nilProcessor) Process(context.Context, string) (*pipeline.Outcome, error) { return nil, nil }

func TestOrchestrator_NilOutcomeIsInternalError(t *testing.T) {
	o, rec, _ := newTestOrchestrator(nilProcessor{})
	o.Enqueue("scan.png")
	o.Drain(context.Background())
	assert.Equal(t, string(common.ErrorInternal), rec.Last("scan.png").Code)
}

type brokenStore struct{ marks int }

func (b *brokenStore) Seen(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}

func (b *brokenStore) Mark(context.Context, string) error {
	b.marks++
	return errors.New("connection refused")
}

func (b *brokenStore) Close() error { return nil }

func TestOrchestrator_StoreErrorsDoNotBlockProcessing(t *testing.T) {
	store := &brokenStore{}
	proc := &stubProcessor{}
	o, rec, _ := newTestOrchestrator(proc, WithStore(store))

	o.Enqueue("scan.png")
	o.Drain(context.Background())

	assert.Equal(t, StateSucceeded, rec.Last("scan.png").State)
	assert.Equal(t, 1, store.marks)
}

func TestOrchestrator_ProcessesOneAtATime(t *testing.T) {
	proc := &stubProcessor{delay: 2 * time.Millisecond}
	o, _, _ := newTestOrchestrator(proc)

	const n = 24
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Enqueue(fmt.Sprintf("scan-%02d.png", i))
		}()
	}
	wg.Wait()

	// Two concurrent drains still share the single processing slot.
	var dw sync.WaitGroup
	for range 2 {
		dw.Add(1)
		go func() {
			defer dw.Done()
			o.Drain(context.Background())
		}()
	}
	dw.Wait()

	assert.Len(t, proc.Calls(), n)
	assert.Equal(t, int32(1), proc.maxSeen.Load())
	assert.Equal(t, int64(n), o.Stats().Succeeded)
}

func TestOrchestrator_KeepsArrivalOrder(t *testing.T) {
	proc := &stubProcessor{}
	o, _, _ := newTestOrchestrator(proc)
	for _, p := range []string{"c.png", "a.png", "b.png"} {
		o.Enqueue(p)
	}
	o.Drain(context.Background())
	assert.Equal(t, []string{"c.png", "a.png", "b.png"}, proc.Calls())
}

func TestOrchestrator_Run(t *testing.T) {
	proc := &stubProcessor{}
	o, _, _ := newTestOrchestrator(proc)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	o.Enqueue("a.png")
	o.Enqueue("b.png")
	require.Eventually(t, func() bool { return o.Stats().Succeeded == 2 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestOrchestrator_DrainStopsWhenCanceled(t *testing.T) {
	proc := &stubProcessor{}
	o, _, _ := newTestOrchestrator(proc)
	o.Enqueue("a.png")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Zero(t, o.Drain(ctx))
	assert.Equal(t, 1, o.Pending())
}

func TestOrchestrator_RetrySleepCanceled(t *testing.T) {
	proc := &stubProcessor{errs: []error{readErr()}}
	rec := &recorder{}
	canceled := func(context.Context, time.Duration) error { return context.Canceled }
	o := NewOrchestrator(DefaultConfig(), proc, WithObserver(rec), WithSleep(canceled))

	o.Enqueue("scan.png")
	o.Drain(context.Background())

	assert.Len(t, proc.Calls(), 1)
	assert.Equal(t, StateFailed, rec.Last("scan.png").State)
}

func TestItem_Key(t *testing.T) {
	assert.Equal(t, "in/a.png", Item{Path: "in/a.png"}.Key())
	assert.Equal(t, "remote:x/a.png", Item{Path: "fetched/x/a.png", Origin: "x/a.png", Remote: true}.Key())
	assert.Equal(t, "fetched/a.png", Item{Path: "fetched/a.png", Remote: true}.Key())
}

func TestExtensionFilter(t *testing.T) {
	f := ExtensionFilter([]string{".BMP", "tif", " "})
	assert.True(t, f("a.bmp"))
	assert.True(t, f("a.TIF"))
	assert.False(t, f("a.png"))
	assert.False(t, f("a"))

	def := ExtensionFilter(nil)
	assert.True(t, def("a.png"))
	assert.True(t, def("a.pdf"))
	assert.False(t, def("a.json"))
}

func TestState_Terminal(t *testing.T) {
	assert.False(t, StateQueued.Terminal())
	assert.False(t, StateProcessing.Terminal())
	assert.True(t, StateSucceeded.Terminal())
	assert.True(t, StateSkippedNonImage.Terminal())
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}
