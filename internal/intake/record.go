package intake

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/formflow/internal/common"
	"github.com/MeKo-Tech/formflow/internal/extract"
	"github.com/MeKo-Tech/formflow/internal/pipeline"
)

// RecordWriter stores the extracted fields of a file as <base>.json, next
// to the source or in OutputDir when set.
type RecordWriter struct {
	OutputDir string
}

// NewRecordWriter creates a writer. An empty dir writes beside each source.
func NewRecordWriter(outputDir string) *RecordWriter {
	return &RecordWriter{OutputDir: outputDir}
}

// IsRecord reports whether path is a JSON record rather than a scan.
func IsRecord(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// PathFor returns where the record of source is written.
func (w *RecordWriter) PathFor(source string) string {
	name := filepath.Base(source)
	base := strings.TrimSuffix(name, filepath.Ext(name))
	dir := w.OutputDir
	if dir == "" {
		dir = filepath.Dir(source)
	}
	return filepath.Join(dir, base+".json")
}

// Write encodes fields and returns the record path.
func (w *RecordWriter) Write(source string, fields *extract.Result) (string, error) {
	if fields == nil {
		fields = extract.NewResult()
	}
	data, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	path := w.PathFor(source)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("create record dir: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return "", fmt.Errorf("write record: %w", err)
	}
	return path, nil
}

// Handle implements Handler.
func (w *RecordWriter) Handle(_ context.Context, item Item, out *pipeline.Outcome) error {
	path, err := w.Write(item.Path, out.Fields)
	if err != nil {
		return common.NewError(common.ErrorInternal, "record", item.Path, err)
	}
	slog.Info("Record written", "job_id", out.JobID, "path", item.Path, "record", path)
	return nil
}
