package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/formflow/internal/common"
	"github.com/MeKo-Tech/formflow/internal/extract"
	"github.com/MeKo-Tech/formflow/internal/forms"
	"github.com/MeKo-Tech/formflow/internal/matcher"
	"github.com/MeKo-Tech/formflow/internal/pdf"
	"github.com/MeKo-Tech/formflow/internal/rectify"
	"github.com/MeKo-Tech/formflow/internal/utils"
	"github.com/google/uuid"
)

// Stage names used in timings and logs.
const (
	StageLoad     = "load"
	StageCorrect  = "correct"
	StageMatch    = "match"
	StageExtract  = "extract"
	StageFallback = "fallback"
)

// Outcome is everything learned about one source file.
type Outcome struct {
	JobID       string          `json:"job_id"`
	Path        string          `json:"path"`
	Template    string          `json:"template,omitempty"`
	Percentage  float64         `json:"match_percentage"`
	Matched     bool            `json:"matched"`
	Corrected   bool            `json:"corrected"`
	Orientation string          `json:"orientation,omitempty"`
	Mirrored    bool            `json:"mirrored,omitempty"`
	Fallback    bool            `json:"fallback"`
	Fields      *extract.Result `json:"fields"`

	Scores  []matcher.Score      `json:"-"`
	Image   image.Image          `json:"-"` // the image fields were read from
	Timings *common.StageTimings `json:"-"`
}

// Process runs the whole pipeline on path. A page whose outline cannot be
// found is processed uncorrected, and finding no template is a normal
// outcome with whatever fallback extraction yields. Errors are
// *common.ProcessingError values.
func (p *Processor) Process(ctx context.Context, path string) (*Outcome, error) {
	out := &Outcome{
		JobID:   uuid.NewString(),
		Path:    path,
		Timings: &common.StageTimings{},
	}
	log := slog.With("job_id", out.JobID, "path", path)

	done := out.Timings.Track(StageLoad)
	src, err := p.loadSource(path)
	done()
	if err != nil {
		return nil, err
	}

	done = out.Timings.Track(StageCorrect)
	working := src
	corrected, err := p.corrector.Correct(src)
	switch {
	case err == nil:
		working = corrected.Image
		out.Corrected = true
		out.Orientation = corrected.Orientation.String()
		out.Mirrored = corrected.Mirrored
	case rectify.IsGeometryError(err):
		log.Warn("Page could not be corrected, continuing uncorrected", "error", err)
	default:
		done()
		return nil, common.NewError(common.ErrorInvalidImage, StageCorrect, path, err)
	}
	done()

	done = out.Timings.Track(StageMatch)
	match, err := p.Match(ctx, working)
	done()
	if err != nil {
		return nil, err
	}
	out.Scores = match.Scores
	out.Percentage = match.Percentage

	var form *forms.Form
	if match.Found {
		out.Matched = true
		out.Template = match.TemplatePath
		log.Info("Template matched", "template", filepath.Base(match.TemplatePath),
			"percentage", fmt.Sprintf("%.2f", match.Percentage))

		form, err = p.library.Load(match.TemplatePath)
		if err != nil {
			return nil, common.NewError(common.ErrorSchemaNotFound, StageMatch, path, err)
		}
		if out.Corrected && p.cfg.CanvasFromTemplate && p.cfg.Rectify.Width == 0 && p.cfg.Rectify.Height == 0 {
			working = p.rewarpToTemplate(src, working, match.TemplatePath, log)
		}
	} else {
		log.Info("No template match found", "best_percentage", fmt.Sprintf("%.2f", match.Percentage))
	}

	done = out.Timings.Track(StageExtract)
	fields, err := p.extractor.ExtractZones(ctx, working, form)
	done()
	if err != nil {
		return nil, withPath(err, path)
	}

	if fields.Value(p.cfg.ClaimField) == "" {
		log.Debug("Claim field empty, running whole-page extraction", "field", p.cfg.ClaimField)
		done = out.Timings.Track(StageFallback)
		fields, err = p.extractor.ExtractPage(ctx, working, form)
		done()
		if err != nil {
			return nil, withPath(err, path)
		}
		out.Fallback = true
	}

	out.Fields = fields
	out.Image = working
	log.Info("File processed",
		"template", filepath.Base(out.Template),
		"fields", fields.Len(),
		"fallback", out.Fallback,
		"timings_ms", out.Timings.Millis())
	return out, nil
}

// Correct rectifies img with the configured corrector.
func (p *Processor) Correct(img image.Image) (*rectify.Result, error) {
	return p.corrector.Correct(img)
}

// Match scores img against every reference image in the library.
func (p *Processor) Match(ctx context.Context, img image.Image) (matcher.Result, error) {
	templates, err := p.library.Templates()
	if err != nil {
		return matcher.Result{}, common.NewError(common.ErrorSchemaNotFound, StageMatch, "", err)
	}
	res, err := p.matcher.Match(ctx, img, p.cfg.Threshold, templates)
	if err != nil {
		if ctx.Err() != nil {
			return matcher.Result{}, err
		}
		return matcher.Result{}, common.NewError(common.ErrorInvalidImage, StageMatch, "", err)
	}
	return res, nil
}

func (p *Processor) loadSource(path string) (image.Image, error) {
	img, err := p.load(path)
	if err != nil {
		if errors.Is(err, utils.ErrUnsupportedFormat) || errors.Is(err, pdf.ErrNoPageImage) {
			return nil, common.NewError(common.ErrorInvalidImage, StageLoad, path, err)
		}
		return nil, common.NewError(common.ErrorImageRead, StageLoad, path, err)
	}
	if img == nil || img.Bounds().Dx() <= 0 || img.Bounds().Dy() <= 0 {
		return nil, common.NewError(common.ErrorInvalidImage, StageLoad, path, errors.New("image has no pixels"))
	}
	return img, nil
}

// rewarpToTemplate corrects src again onto the reference image's canvas.
// Any failure keeps the current working image.
func (p *Processor) rewarpToTemplate(src, working image.Image, templatePath string, log *slog.Logger) image.Image {
	size, err := imageSize(templatePath)
	if err != nil {
		log.Warn("Could not read template size", "template", templatePath, "error", err)
		return working
	}
	if size == working.Bounds().Size() {
		return working
	}
	res, err := p.corrector.CorrectTo(src, size)
	if err != nil {
		log.Warn("Re-warp to template canvas failed", "template", templatePath, "error", err)
		return working
	}
	return res.Image
}

func imageSize(path string) (image.Point, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the template library
	if err != nil {
		return image.Point{}, err
	}
	defer func() { _ = f.Close() }()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return image.Point{}, err
	}
	return image.Pt(cfg.Width, cfg.Height), nil
}

func withPath(err error, path string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pe *common.ProcessingError
	if errors.As(err, &pe) {
		if pe.Path == "" {
			pe.Path = path
		}
		return pe
	}
	return common.NewError(common.ErrorInternal, StageExtract, path, err)
}
