package intake

import (
	"log/slog"
	"sync"
	"time"
)

// State is a step in the life of one discovered file.
type State string

const (
	StateDiscovered       State = "discovered"
	StateDownloaded       State = "downloaded"
	StateQueued           State = "queued"
	StateProcessing       State = "processing"
	StateSucceeded        State = "succeeded"
	StateFailed           State = "failed"
	StateSkippedDuplicate State = "skipped_duplicate"
	StateSkippedNonImage  State = "skipped_non_image"
)

// Terminal reports whether no further event follows for the file.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateSkippedDuplicate, StateSkippedNonImage:
		return true
	}
	return false
}

// Event describes a state change of one file.
type Event struct {
	State    State         `json:"state"`
	Path     string        `json:"path"`
	Origin   string        `json:"origin,omitempty"`
	JobID    string        `json:"job_id,omitempty"`
	Attempt  int           `json:"attempt,omitempty"`
	Template string        `json:"template,omitempty"`
	Code     string        `json:"code,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty"`
	Time     time.Time     `json:"time"`
}

// Observer receives orchestrator events. OnEvent is called from the
// processing flow and must not block.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnEvent(e Event) { f(e) }

type observers struct {
	mu   sync.RWMutex
	list []Observer
}

func (o *observers) add(obs Observer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.list = append(o.list, obs)
}

func (o *observers) emit(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	slog.Debug("Intake event", "state", string(e.State), "path", e.Path, "job_id", e.JobID)

	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, obs := range o.list {
		obs.OnEvent(e)
	}
}
