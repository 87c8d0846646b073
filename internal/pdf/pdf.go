// Package pdf turns scanned PDF submissions into page images for the form
// pipeline.
package pdf

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/formflow/internal/utils"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// ErrNoPageImage is returned when a page carries no embedded raster image.
var ErrNoPageImage = errors.New("no embedded image on page")

// IsPDF reports whether path has a .pdf extension.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// FirstPageImage returns the scan of page 1.
func FirstPageImage(path string) (image.Image, error) {
	return PageImage(path, 1)
}

// PageImage returns the largest embedded image of the given 1-based page.
// Scanners embed one full-page image per page; smaller images such as logos
// are ignored.
func PageImage(path string, page int) (image.Image, error) {
	if page < 1 {
		return nil, fmt.Errorf("invalid page number %d", page)
	}
	tempDir, err := os.MkdirTemp("", "formflow-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	if err := api.ExtractImagesFile(path, tempDir, []string{strconv.Itoa(page)}, nil); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	images, err := collectExtractedImages(tempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted images: %w", err)
	}
	img := largest(images[page])
	if img == nil {
		return nil, fmt.Errorf("%w: %s page %d", ErrNoPageImage, path, page)
	}
	slog.Debug("Extracted PDF page image", "path", path, "page", page,
		"candidates", len(images[page]), "size", img.Bounds().Size().String())
	return img, nil
}

func largest(imgs []image.Image) image.Image {
	var best image.Image
	bestArea := 0
	for _, img := range imgs {
		b := img.Bounds()
		if a := b.Dx() * b.Dy(); a > bestArea {
			best, bestArea = img, a
		}
	}
	return best
}

// collectExtractedImages groups the images pdfcpu wrote to dir by page.
// Unreadable files and names outside the pdfcpu scheme are skipped.
func collectExtractedImages(dir string) (map[int][]image.Image, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	result := make(map[int][]image.Image)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		page, ok := pageFromFilename(e.Name())
		if !ok {
			continue
		}
		img, err := decodeFile(filepath.Join(dir, e.Name()))
		if err != nil {
			slog.Debug("Skipping unreadable PDF image", "file", e.Name(), "error", err)
			continue
		}
		result[page] = append(result[page], img)
	}
	return result, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // G304: file inside our own temp directory
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	img, _, err := utils.DecodeImage(f)
	return img, err
}

// pageFromFilename parses the page number out of pdfcpu output names. Both
// "page_3_image_1.png" and "<stem>_3_Im0.png" are understood.
func pageFromFilename(name string) (int, bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	parts := strings.Split(stem, "_")
	if len(parts) < 2 {
		return 0, false
	}
	if parts[0] == "page" {
		n, err := strconv.Atoi(parts[1])
		return n, err == nil && n > 0
	}
	// Fall back to the last purely numeric part before the image id.
	for i := len(parts) - 2; i >= 0; i-- {
		if n, err := strconv.Atoi(parts[i]); err == nil && n > 0 {
			return n, true
		}
	}
	return 0, false
}
