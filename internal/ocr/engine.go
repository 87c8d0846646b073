// Package ocr defines the OCR engine contract used by zone extraction and
// the text cleanup applied to every recognition result.
package ocr

import (
	"context"
	"errors"
	"image"
	"strings"
)

// Engine recognizes text in an image.
//
// whitelist restricts the accepted characters; an empty whitelist clears any
// restriction left by a previous call. Implementations may keep state between
// calls and are not required to be safe for concurrent use.
type Engine interface {
	Recognize(ctx context.Context, img image.Image, whitelist string) (string, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, img image.Image, whitelist string) (string, error)

func (f EngineFunc) Recognize(ctx context.Context, img image.Image, whitelist string) (string, error) {
	return f(ctx, img, whitelist)
}

// ErrEngineClosed is returned by engines used after Close.
var ErrEngineClosed = errors.New("ocr engine closed")

// ParseLanguages splits a Tesseract language string such as "ara+eng".
func ParseLanguages(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "+") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
