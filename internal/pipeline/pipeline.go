// Package pipeline turns one scanned form into extracted field values:
// load, correct, match, extract and, when the claim field stays empty,
// whole-page fallback extraction.
package pipeline

import (
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/MeKo-Tech/formflow/internal/extract"
	"github.com/MeKo-Tech/formflow/internal/forms"
	"github.com/MeKo-Tech/formflow/internal/matcher"
	"github.com/MeKo-Tech/formflow/internal/ocr"
	"github.com/MeKo-Tech/formflow/internal/pdf"
	"github.com/MeKo-Tech/formflow/internal/rectify"
	"github.com/MeKo-Tech/formflow/internal/utils"
)

// DefaultClaimField is the field whose absence after zone extraction
// triggers whole-page extraction.
const DefaultClaimField = "Reservation Number"

// Config holds configuration for single-file processing.
type Config struct {
	TemplatesDir string
	Threshold    float64 // minimum match percentage, 0-100
	ClaimField   string
	// CanvasFromTemplate re-warps the source onto the matched reference
	// image's size when no explicit canvas is configured.
	CanvasFromTemplate bool
	Rectify            rectify.Config
	Extract            extract.Options
}

// DefaultConfig returns the defaults used by the intake service.
func DefaultConfig() Config {
	return Config{
		TemplatesDir:       "templates",
		Threshold:          5,
		ClaimField:         DefaultClaimField,
		CanvasFromTemplate: true,
		Rectify:            rectify.DefaultConfig(),
		Extract:            extract.DefaultOptions(),
	}
}

// Loader reads a source file into an image.
type Loader func(path string) (image.Image, error)

// LoadSource reads an image file, or the first page image of a PDF.
func LoadSource(path string) (image.Image, error) {
	if pdf.IsPDF(path) {
		return pdf.FirstPageImage(path)
	}
	img, _, err := utils.LoadImage(path)
	return img, err
}

// Deps are the collaborators a Processor cannot build from Config alone.
type Deps struct {
	Engine  ocr.Engine
	Backend matcher.Backend // nil selects the pure-Go ORB backend
	Loader  Loader          // nil selects LoadSource
}

// Processor runs the per-file pipeline. It holds one matcher cache and one
// extractor and expects a single caller at a time.
type Processor struct {
	cfg       Config
	corrector *rectify.Corrector
	matcher   *matcher.Matcher
	library   *forms.Library
	extractor *extract.Extractor
	load      Loader
}

// New validates cfg and assembles a Processor.
func New(cfg Config, deps Deps) (*Processor, error) {
	if deps.Engine == nil {
		return nil, errors.New("pipeline: OCR engine is required")
	}
	if cfg.Threshold < 0 || cfg.Threshold > 100 {
		return nil, fmt.Errorf("pipeline: threshold %.2f out of range [0,100]", cfg.Threshold)
	}
	if cfg.TemplatesDir == "" {
		return nil, errors.New("pipeline: templates directory is required")
	}
	if st, err := os.Stat(cfg.TemplatesDir); err != nil {
		return nil, fmt.Errorf("pipeline: templates directory: %w", err)
	} else if !st.IsDir() {
		return nil, fmt.Errorf("pipeline: templates path %s is not a directory", cfg.TemplatesDir)
	}
	if cfg.ClaimField == "" {
		cfg.ClaimField = DefaultClaimField
	}

	backend := deps.Backend
	if backend == nil {
		backend = matcher.NewORB(matcher.DefaultORBOptions())
	}
	load := deps.Loader
	if load == nil {
		load = LoadSource
	}

	return &Processor{
		cfg:       cfg,
		corrector: rectify.New(cfg.Rectify),
		matcher:   matcher.New(backend),
		library:   forms.NewLibrary(cfg.TemplatesDir),
		extractor: extract.New(deps.Engine, cfg.Extract),
		load:      load,
	}, nil
}

// Config returns the processor configuration.
func (p *Processor) Config() Config { return p.cfg }

// Library returns the template library.
func (p *Processor) Library() *forms.Library { return p.library }

// Close releases cached template features.
func (p *Processor) Close() error {
	return p.matcher.Close()
}

// Builder constructs a Processor with fluent configuration.
type Builder struct {
	cfg  Config
	deps Deps
}

// NewBuilder creates a builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithTemplatesDir sets the template library directory.
func (b *Builder) WithTemplatesDir(dir string) *Builder {
	if dir != "" {
		b.cfg.TemplatesDir = dir
	}
	return b
}

// WithThreshold sets the minimum match percentage.
func (b *Builder) WithThreshold(pct float64) *Builder {
	b.cfg.Threshold = pct
	return b
}

// WithClaimField sets the field that decides whether fallback extraction runs.
func (b *Builder) WithClaimField(field string) *Builder {
	if field != "" {
		b.cfg.ClaimField = field
	}
	return b
}

// WithCanvas fixes the corrected canvas size. Zero keeps the automatic size.
func (b *Builder) WithCanvas(width, height int) *Builder {
	b.cfg.Rectify.Width = width
	b.cfg.Rectify.Height = height
	return b
}

// WithDebugDir makes the corrector dump its mask and overlay images.
func (b *Builder) WithDebugDir(dir string) *Builder {
	b.cfg.Rectify.DebugDir = dir
	return b
}

// WithEqualize toggles histogram equalization of zone crops.
func (b *Builder) WithEqualize(on bool) *Builder {
	b.cfg.Extract.Equalize = on
	return b
}

// WithEngine sets the OCR engine.
func (b *Builder) WithEngine(engine ocr.Engine) *Builder {
	b.deps.Engine = engine
	return b
}

// WithBackend sets the feature matching backend.
func (b *Builder) WithBackend(backend matcher.Backend) *Builder {
	b.deps.Backend = backend
	return b
}

// WithLoader replaces the source loader.
func (b *Builder) WithLoader(load Loader) *Builder {
	b.deps.Loader = load
	return b
}

// Build validates the configuration and creates the Processor.
func (b *Builder) Build() (*Processor, error) {
	return New(b.cfg, b.deps)
}
