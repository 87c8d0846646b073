// Package tesseract implements ocr.Engine with Tesseract through gosseract.
package tesseract

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/MeKo-Tech/formflow/internal/ocr"
	"github.com/MeKo-Tech/formflow/internal/utils"
	"github.com/otiai10/gosseract/v2"
)

// Config selects languages and tessdata for the engine.
type Config struct {
	Languages []string // e.g. ["ara", "eng"]
	DataPath  string   // tessdata prefix; empty uses the system default
	PageMode  int      // page segmentation mode; 0 keeps Tesseract's default
}

// Engine wraps a single gosseract client. The whitelist is reapplied on
// every call, so a zone never inherits the restriction of the previous one.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
	cfg    Config
}

// New creates a Tesseract engine.
func New(cfg Config) (*Engine, error) {
	client := gosseract.NewClient()
	if len(cfg.Languages) > 0 {
		if err := client.SetLanguage(cfg.Languages...); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set languages %v: %w", cfg.Languages, err)
		}
	}
	if cfg.DataPath != "" {
		if err := client.SetTessdataPrefix(cfg.DataPath); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if cfg.PageMode > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(cfg.PageMode)); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set page segmentation mode: %w", err)
		}
	}
	slog.Debug("Tesseract engine ready", "version", gosseract.Version(), "languages", cfg.Languages)
	return &Engine{client: client, cfg: cfg}, nil
}

// Recognize implements ocr.Engine.
func (e *Engine) Recognize(ctx context.Context, img image.Image, whitelist string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := utils.EncodePNG(img)
	if err != nil {
		return "", fmt.Errorf("encode image for ocr: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return "", ocr.ErrEngineClosed
	}
	if err := e.client.SetVariable("tessedit_char_whitelist", whitelist); err != nil {
		return "", fmt.Errorf("set whitelist: %w", err)
	}
	if err := e.client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return text, nil
}

// Close releases the Tesseract client.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}
