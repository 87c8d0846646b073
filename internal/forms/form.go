// Package forms defines the template schema: a Form made of reference pages
// (TemplateImages), each carrying the Zones to extract.
//
// Schemas are authored offline next to their reference image and are read-only
// once loaded.
package forms

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// Zone is a named rectangular extraction region in a reference image.
type Zone struct {
	X      float64 `json:"X" yaml:"X"`
	Y      float64 `json:"Y" yaml:"Y"`
	Width  float64 `json:"Width" yaml:"Width"`
	Height float64 `json:"Height" yaml:"Height"`
	// ActualWidth and ActualHeight are the size of the reference image the
	// zone was drawn on.
	ActualWidth   float64 `json:"ActualWidth" yaml:"ActualWidth"`
	ActualHeight  float64 `json:"ActualHeight" yaml:"ActualHeight"`
	ImageFileName string  `json:"ImageFileName,omitempty" yaml:"ImageFileName,omitempty"`
	Name          string  `json:"Name" yaml:"Name"`
	IndexingField string  `json:"IndexingField" yaml:"IndexingField"`
	Regex         string  `json:"Regex,omitempty" yaml:"Regex,omitempty"`
	Type          string  `json:"Type,omitempty" yaml:"Type,omitempty"`
	WhiteList     string  `json:"WhiteList,omitempty" yaml:"WhiteList,omitempty"`
	IsDuplicated  bool    `json:"IsDuplicated,omitempty" yaml:"IsDuplicated,omitempty"`
}

// HasReferenceSize reports whether the zone carries a usable reference size.
// Zones without one are skipped during extraction.
func (z Zone) HasReferenceSize() bool {
	return z.ActualWidth > 0 && z.ActualHeight > 0
}

// Rect returns the zone rectangle in whole pixels. Fractional coordinates
// are truncated.
func (z Zone) Rect() image.Rectangle {
	x, y := int(math.Trunc(z.X)), int(math.Trunc(z.Y))
	return image.Rect(x, y, x+int(math.Trunc(z.Width)), y+int(math.Trunc(z.Height)))
}

// TemplateImage is one reference page of a form.
type TemplateImage struct {
	Index         int    `json:"Index" yaml:"Index"`
	ImageFileName string `json:"ImageFileName" yaml:"ImageFileName"`
	Zones         []Zone `json:"SerializableRect" yaml:"SerializableRect"`
}

// Form is the schema of one form type.
type Form struct {
	Count          int             `json:"Count" yaml:"Count"`
	IsDuplicated   bool            `json:"IsDuplicated" yaml:"IsDuplicated"`
	TemplateImages []TemplateImage `json:"TemplateImages" yaml:"TemplateImages"`
}

// Zones flattens the zones of every page in schema order.
func (f *Form) Zones() []Zone {
	if f == nil {
		return nil
	}
	var out []Zone
	for _, ti := range f.TemplateImages {
		out = append(out, ti.Zones...)
	}
	return out
}

// ErrInvalidSchema is returned for schema files that parse but cannot drive extraction.
var ErrInvalidSchema = errors.New("invalid template schema")

// Validate checks the fields extraction depends on.
func (f *Form) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil form", ErrInvalidSchema)
	}
	if len(f.TemplateImages) == 0 {
		return fmt.Errorf("%w: no template images", ErrInvalidSchema)
	}
	for i, ti := range f.TemplateImages {
		for j, z := range ti.Zones {
			if z.IndexingField == "" && z.Name == "" {
				return fmt.Errorf("%w: template image %d zone %d has neither IndexingField nor Name", ErrInvalidSchema, i, j)
			}
			if z.Width < 0 || z.Height < 0 {
				return fmt.Errorf("%w: zone %q has negative size", ErrInvalidSchema, z.IndexingField)
			}
		}
	}
	return nil
}
