package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ProgressCallback receives per-file progress when several files are
// processed in one run.
type ProgressCallback interface {
	OnStart(total int)
	OnFile(current, total int, path string, err error)
	OnComplete(succeeded, failed int)
}

// NoOpProgressCallback ignores all progress.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)                     {}
func (NoOpProgressCallback) OnFile(int, int, string, error) {}
func (NoOpProgressCallback) OnComplete(int, int)             {}

// ConsoleProgressCallback prints one line per file.
type ConsoleProgressCallback struct {
	mu     sync.Mutex
	writer io.Writer
	prefix string
	start  time.Time
}

// NewConsoleProgressCallback writes to writer, or stderr when nil.
func NewConsoleProgressCallback(writer io.Writer, prefix string) *ConsoleProgressCallback {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleProgressCallback{writer: writer, prefix: prefix}
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = time.Now()
	_, _ = fmt.Fprintf(c.writer, "%s0/%d\n", c.prefix, total)
}

func (c *ConsoleProgressCallback) OnFile(current, total int, path string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := "ok"
	if err != nil {
		status = "failed: " + err.Error()
	}
	pct := 0.0
	if total > 0 {
		pct = float64(current) / float64(total) * 100
	}
	_, _ = fmt.Fprintf(c.writer, "%s%d/%d (%.1f%%) %s %s\n", c.prefix, current, total, pct, filepath.Base(path), status)
}

func (c *ConsoleProgressCallback) OnComplete(succeeded, failed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.writer, "%sCompleted in %v: %d succeeded, %d failed\n",
		c.prefix, time.Since(c.start).Round(time.Millisecond), succeeded, failed)
}

// LogProgressCallback reports progress through slog.
type LogProgressCallback struct {
	logger *slog.Logger
	start  time.Time
}

// NewLogProgressCallback uses logger, or the default logger when nil.
func NewLogProgressCallback(logger *slog.Logger) *LogProgressCallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProgressCallback{logger: logger}
}

func (l *LogProgressCallback) OnStart(total int) {
	l.start = time.Now()
	l.logger.Info("Starting processing", "total", total)
}

func (l *LogProgressCallback) OnFile(current, total int, path string, err error) {
	if err != nil {
		l.logger.Error("File failed", "current", current, "total", total, "path", path, "error", err)
		return
	}
	l.logger.Info("File done", "current", current, "total", total, "path", path)
}

func (l *LogProgressCallback) OnComplete(succeeded, failed int) {
	l.logger.Info("Processing completed", "succeeded", succeeded, "failed", failed,
		"elapsed", time.Since(l.start).Round(time.Millisecond))
}
