// Package mock provides scripted OCR engines for tests.
package mock

import (
	"context"
	"image"
	"sync"
)

// Call records one Recognize invocation.
type Call struct {
	Whitelist string
	Size      image.Point
}

// Engine returns scripted text. Responses are consumed in call order; once
// exhausted, Default is returned. Err, when set, fails every call.
type Engine struct {
	mu        sync.Mutex
	Responses []string
	Default   string
	Err       error
	calls     []Call
}

// NewEngine returns an engine that answers with responses in order.
func NewEngine(responses ...string) *Engine {
	return &Engine{Responses: responses}
}

// Recognize implements ocr.Engine.
func (e *Engine) Recognize(ctx context.Context, img image.Image, whitelist string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	c := Call{Whitelist: whitelist}
	if img != nil {
		c.Size = img.Bounds().Size()
	}
	e.calls = append(e.calls, c)

	if e.Err != nil {
		return "", e.Err
	}
	if len(e.Responses) > 0 {
		text := e.Responses[0]
		e.Responses = e.Responses[1:]
		return text, nil
	}
	return e.Default, nil
}

// Calls returns a copy of the recorded calls.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}
