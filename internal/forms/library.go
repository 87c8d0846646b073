package forms

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MeKo-Tech/formflow/internal/utils"
	"gopkg.in/yaml.v3"
)

// ErrTemplateSchemaNotFound is returned when a reference image has no schema file.
var ErrTemplateSchemaNotFound = errors.New("template schema not found")

// schemaExtensions are tried in order when resolving a template's schema.
var schemaExtensions = []string{".json", ".yaml", ".yml"}

// Library is a directory of reference images with schema files of the same
// base name beside them.
type Library struct {
	dir string
}

// NewLibrary creates a Library rooted at dir.
func NewLibrary(dir string) *Library {
	return &Library{dir: dir}
}

// Dir returns the library directory.
func (l *Library) Dir() string { return l.dir }

// Templates lists the reference images in the library, sorted by path.
func (l *Library) Templates() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read template directory %s: %w", l.dir, err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !utils.IsSupportedImage(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(l.dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// SchemaPath returns the primary schema path for a reference image:
// <library dir>/<base name>.json.
func (l *Library) SchemaPath(templatePath string) string {
	return filepath.Join(l.dir, baseName(templatePath)+".json")
}

// Load reads and parses the schema belonging to templatePath.
func (l *Library) Load(templatePath string) (*Form, error) {
	base := baseName(templatePath)
	for _, ext := range schemaExtensions {
		path := filepath.Join(l.dir, base+ext)
		data, err := os.ReadFile(path) //nolint:gosec // G304: path is built from the template library
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", path, err)
		}
		form, err := Parse(data, ext)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", path, err)
		}
		slog.Debug("Loaded template schema", "template", templatePath, "schema", path,
			"pages", len(form.TemplateImages), "zones", len(form.Zones()))
		return form, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrTemplateSchemaNotFound, l.SchemaPath(templatePath))
}

// Parse decodes a schema document. ext selects the format (".json", ".yaml" or ".yml").
func Parse(data []byte, ext string) (*Form, error) {
	var form Form
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &form); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &form); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSchema, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown schema format %q", ErrInvalidSchema, ext)
	}
	if err := form.Validate(); err != nil {
		return nil, err
	}
	return &form, nil
}

func baseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
