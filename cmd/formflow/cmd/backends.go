package cmd

import (
	"github.com/MeKo-Tech/formflow/internal/config"
	"github.com/MeKo-Tech/formflow/internal/matcher"
	"github.com/MeKo-Tech/formflow/internal/ocr"
	"github.com/MeKo-Tech/formflow/internal/ocr/tesseract"
)

func newTesseractEngine(cfg *config.Config) (ocr.Engine, func(), error) {
	engine, err := tesseract.New(tesseract.Config{
		Languages: cfg.Languages(),
		DataPath:  cfg.OCR.DataPath,
		PageMode:  cfg.OCR.PageMode,
	})
	if err != nil {
		return nil, nil, err
	}
	return engine, func() { _ = engine.Close() }, nil
}

func newORBBackend(cfg *config.Config) *matcher.ORB {
	opts := matcher.DefaultORBOptions()
	opts.Features = cfg.Templates.Features
	opts.MaxDistance = cfg.Templates.MaxDistance
	return matcher.NewORB(opts)
}
