// Package matcher identifies which reference template a corrected page shows
// by counting feature descriptor matches.
package matcher

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/MeKo-Tech/formflow/internal/utils"
)

// Features is a set of descriptors computed by a Backend.
type Features interface {
	Len() int
	Close() error
}

// Backend computes descriptors and decides which template descriptors have
// an acceptable counterpart in a target.
type Backend interface {
	Name() string
	Describe(img *image.Gray) (Features, error)
	// Accepted returns how many descriptors of template are matched in target.
	Accepted(template, target Features) (int, error)
}

// Score is the outcome for one candidate template.
type Score struct {
	Template    string
	Descriptors int
	Accepted    int
	Percentage  float64
	Err         error
}

// Result is the outcome of Match.
type Result struct {
	TemplatePath string // best candidate, empty when nothing reached the threshold
	Percentage   float64
	Found        bool
	Scores       []Score
}

type cachedFeatures struct {
	modTime  time.Time
	size     int64
	features Features
}

// Matcher ranks candidate templates against a target image. Template
// descriptors are cached per path and recomputed when the file changes.
type Matcher struct {
	backend Backend

	mu    sync.Mutex
	cache map[string]cachedFeatures
}

// New creates a Matcher using backend.
func New(backend Backend) *Matcher {
	return &Matcher{backend: backend, cache: make(map[string]cachedFeatures)}
}

// Backend returns the backend name.
func (m *Matcher) Backend() string { return m.backend.Name() }

// Match scores every candidate as accepted/template descriptors x 100 and
// returns the best one if it reaches threshold (0-100). Candidates that fail
// to load are skipped. Finding no template is not an error.
func (m *Matcher) Match(ctx context.Context, img image.Image, threshold float64, candidates []string) (Result, error) {
	if img == nil || img.Bounds().Empty() {
		return Result{}, fmt.Errorf("matcher: empty target image")
	}
	target, err := m.backend.Describe(utils.ToGray(img))
	if err != nil {
		return Result{}, fmt.Errorf("describe target: %w", err)
	}
	defer func() { _ = target.Close() }()

	res := Result{Scores: make([]Score, 0, len(candidates))}
	best := -1
	bestPct := 0.0
	for _, path := range candidates {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		score := m.score(path, target)
		res.Scores = append(res.Scores, score)
		if score.Err != nil {
			slog.Warn("Skipping template", "template", path, "error", score.Err)
			continue
		}
		slog.Debug("Template score", "template", path, "percentage", score.Percentage,
			"accepted", score.Accepted, "descriptors", score.Descriptors)
		if score.Percentage > bestPct {
			best, bestPct = len(res.Scores)-1, score.Percentage
		}
	}

	if best >= 0 && bestPct >= threshold {
		res.TemplatePath = res.Scores[best].Template
		res.Percentage = bestPct
		res.Found = true
	} else if best >= 0 {
		res.Percentage = bestPct
	}
	return res, nil
}

func (m *Matcher) score(path string, target Features) Score {
	s := Score{Template: path}
	tmpl, err := m.templateFeatures(path)
	if err != nil {
		s.Err = err
		return s
	}
	s.Descriptors = tmpl.Len()
	if s.Descriptors == 0 || target.Len() == 0 {
		return s
	}
	accepted, err := m.backend.Accepted(tmpl, target)
	if err != nil {
		s.Err = err
		return s
	}
	s.Accepted = accepted
	s.Percentage = float64(accepted) / float64(s.Descriptors) * 100
	return s
}

func (m *Matcher) templateFeatures(path string) (Features, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.cache[path]; ok && c.modTime.Equal(info.ModTime()) && c.size == info.Size() {
		return c.features, nil
	}

	img, _, err := utils.LoadImage(path)
	if err != nil {
		return nil, err
	}
	f, err := m.backend.Describe(utils.ToGray(img))
	if err != nil {
		return nil, fmt.Errorf("describe template: %w", err)
	}
	if old, ok := m.cache[path]; ok {
		_ = old.features.Close()
	}
	m.cache[path] = cachedFeatures{modTime: info.ModTime(), size: info.Size(), features: f}
	return f, nil
}

// Close releases cached template descriptors.
func (m *Matcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, c := range m.cache {
		_ = c.features.Close()
		delete(m.cache, k)
	}
	return nil
}
