package support

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/formflow/internal/forms"
	"github.com/MeKo-Tech/formflow/internal/testutil"
	"github.com/cucumber/godog"
)

// RegisterImageSteps registers steps that create templates and scans.
func (tc *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a template library in "([^"]*)"$`, tc.aTemplateLibraryIn)
	sc.Step(`^a photographed scan "([^"]*)"$`, tc.aPhotographedScan)
	sc.Step(`^the image "([^"]*)" should be (\d+)x(\d+)$`, tc.theImageShouldBe)
}

// aTemplateLibraryIn writes one form template with a reservation number zone.
func (tc *TestContext) aTemplateLibraryIn(dir string) error {
	dir = tc.path(dir)
	if err := savePNG(filepath.Join(dir, "intake.png"), testutil.GenerateFormImage(1, 240, 320)); err != nil {
		return err
	}
	form := forms.Form{
		Count: 1,
		TemplateImages: []forms.TemplateImage{{
			Index:         0,
			ImageFileName: "intake.png",
			Zones: []forms.Zone{{
				X: 10, Y: 10, Width: 120, Height: 30,
				ActualWidth: 240, ActualHeight: 320,
				Name: "Reservation", IndexingField: "Reservation Number",
			}},
		}},
	}
	data, err := json.MarshalIndent(form, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "intake.json"), data, 0o600)
}

// aPhotographedScan writes a page lying slightly inside a darker background.
func (tc *TestContext) aPhotographedScan(name string) error {
	page := testutil.GeneratePage(testutil.PageConfig{
		Width: 240, Height: 320,
		Corners: [4]testutil.Point{{X: 30, Y: 30}, {X: 210, Y: 30}, {X: 210, Y: 290}, {X: 30, Y: 290}},
		Marker:  true,
	})
	return savePNG(tc.path(name), page)
}

func (tc *TestContext) theImageShouldBe(name string, width, height int) error {
	f, err := os.Open(tc.path(name))
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	if cfg.Width != width || cfg.Height != height {
		return fmt.Errorf("%s is %dx%d, want %dx%d", name, cfg.Width, cfg.Height, width, height)
	}
	return nil
}

func savePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	f, err := os.Create(path) //nolint:gosec // G304: scenario paths
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
