// Package extract reads field values from a corrected form image using the
// zones of its template schema.
package extract

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/formflow/internal/common"
	"github.com/MeKo-Tech/formflow/internal/forms"
	"github.com/MeKo-Tech/formflow/internal/ocr"
	"github.com/MeKo-Tech/formflow/internal/utils"
)

// Options tune zone extraction.
type Options struct {
	Clean    ocr.CleanOptions
	Equalize bool // equalize the histogram of each crop before OCR
}

// DefaultOptions returns the options used by the intake service.
func DefaultOptions() Options {
	return Options{Clean: ocr.DefaultCleanOptions()}
}

// Extractor runs zone-targeted and whole-page OCR. It is meant to be driven
// by one processing flow at a time, like the engine it wraps.
type Extractor struct {
	engine   ocr.Engine
	opts     Options
	patterns patternCache
}

// New creates an Extractor.
func New(engine ocr.Engine, opts Options) *Extractor {
	return &Extractor{engine: engine, opts: opts}
}

// ExtractZones OCRs every zone of form and returns the values keyed by
// IndexingField. A nil form yields an empty result.
//
// Zones are visited in schema order and each one rescales the working image
// to its reference size before cropping; later zones see the image left by
// earlier ones.
func (e *Extractor) ExtractZones(ctx context.Context, img image.Image, form *forms.Form) (*Result, error) {
	if err := checkImage(img); err != nil {
		return nil, err
	}
	result := NewResult()
	if form == nil {
		return result, nil
	}

	working := img
	for _, page := range form.TemplateImages {
		for _, zone := range page.Zones {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			key := zone.IndexingField
			if key == "" {
				key = zone.Name
			}

			if !zone.HasReferenceSize() {
				slog.Debug("Skipping zone without reference size", "field", key)
				continue
			}
			b := working.Bounds()
			scaled, err := utils.ScaleImage(working,
				zone.ActualWidth/float64(b.Dx()), zone.ActualHeight/float64(b.Dy()))
			if err != nil {
				slog.Warn("Skipping zone, rescale failed", "field", key, "error", err)
				continue
			}
			working = scaled

			rect := zone.Rect().Add(working.Bounds().Min)
			if rect.Dx() <= 0 || rect.Dy() <= 0 {
				slog.Warn("Skipping zone with empty rectangle", "field", key)
				continue
			}
			crop := utils.CropImageRect(working, rect)
			if crop == nil || crop.Bounds().Empty() {
				slog.Warn("Skipping zone outside the image", "field", key, "rect", rect.String())
				continue
			}
			if e.opts.Equalize {
				crop = utils.EqualizeHistogram(crop)
			}

			text, err := e.recognize(ctx, crop, zone.WhiteList)
			if err != nil {
				return nil, common.NewError(common.ErrorOCREngine, "ocr", "",
					fmt.Errorf("zone %s: %w", describeZone(key, zone.Name), err))
			}
			slog.Debug("OCR result for zone", "field", key, "text", text)

			result.Set(key, e.patterns.fieldValue(text, zone.Regex, zone.IndexingField))
		}
	}
	return result, nil
}

// ExtractPage OCRs the whole image once and looks up every zone field as
// "<IndexingField><rest of line>". Values are keyed by the zone Name, not its
// IndexingField; zones whose field is not found are left out.
func (e *Extractor) ExtractPage(ctx context.Context, img image.Image, form *forms.Form) (*Result, error) {
	if err := checkImage(img); err != nil {
		return nil, err
	}
	result := NewResult()
	if form == nil {
		return result, nil
	}

	text, err := e.recognize(ctx, img, "")
	if err != nil {
		return nil, common.NewError(common.ErrorOCREngine, "ocr", "", fmt.Errorf("full page: %w", err))
	}
	slog.Debug("OCR result for page", "chars", len(text))

	for _, zone := range form.Zones() {
		if zone.IndexingField == "" {
			continue
		}
		key := zone.Name
		if key == "" {
			key = zone.IndexingField
		}
		if v, ok := e.patterns.lineValue(text, zone.IndexingField); ok {
			result.Set(key, v)
		}
	}
	return result, nil
}

func (e *Extractor) recognize(ctx context.Context, img image.Image, whitelist string) (string, error) {
	if e.engine == nil {
		return "", errors.New("no OCR engine configured")
	}
	text, err := e.engine.Recognize(ctx, img, whitelist)
	if err != nil {
		return "", err
	}
	return ocr.CleanText(text, e.opts.Clean), nil
}

func checkImage(img image.Image) error {
	if img == nil {
		return common.NewError(common.ErrorInvalidImage, "extract", "", errors.New("image is nil"))
	}
	if img.Bounds().Empty() {
		return common.NewError(common.ErrorInvalidImage, "extract", "", errors.New("image is empty"))
	}
	return nil
}
