package common

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Timer measures one named stage.
type Timer struct {
	start    time.Time
	name     string
	duration time.Duration
}

// NewNamedTimer starts a timer for the given stage.
func NewNamedTimer(name string) *Timer {
	return &Timer{name: name, start: time.Now()}
}

// Stop records and returns the elapsed duration.
func (t *Timer) Stop() time.Duration {
	t.duration = time.Since(t.start)
	return t.duration
}

// Duration is only valid after Stop.
func (t *Timer) Duration() time.Duration {
	return t.duration
}

func (t *Timer) Name() string {
	return t.name
}

func (t *Timer) String() string {
	if t.name != "" {
		return fmt.Sprintf("%s: %v", t.name, t.duration)
	}
	return t.duration.String()
}

// StageTimings collects stage durations for one processed file, in the order
// stages finished.
type StageTimings struct {
	mu     sync.Mutex
	order  []string
	values map[string]time.Duration
}

// Track starts a stage and returns a function that records it when called.
func (s *StageTimings) Track(stage string) func() time.Duration {
	t := NewNamedTimer(stage)
	return func() time.Duration {
		d := t.Stop()
		s.Add(stage, d)
		return d
	}
}

// Add accumulates d onto stage.
func (s *StageTimings) Add(stage string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]time.Duration)
	}
	if _, ok := s.values[stage]; !ok {
		s.order = append(s.order, stage)
	}
	s.values[stage] += d
}

// Get returns the recorded duration of stage.
func (s *StageTimings) Get(stage string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.values[stage]
	return d, ok
}

// Millis returns all stages in milliseconds, suitable for structured logs.
func (s *StageTimings) Millis() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.values))
	for k, v := range s.values {
		out[k] = v.Milliseconds()
	}
	return out
}

func (s *StageTimings) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	parts := make([]string, 0, len(s.order))
	for _, k := range s.order {
		parts = append(parts, fmt.Sprintf("%s=%v", k, s.values[k]))
	}
	return strings.Join(parts, " ")
}
