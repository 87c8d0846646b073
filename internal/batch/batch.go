// Package batch runs the form pipeline once over a set of files, the
// one-shot counterpart of the intake orchestrator.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/formflow/internal/common"
	"github.com/MeKo-Tech/formflow/internal/intake"
	"github.com/MeKo-Tech/formflow/internal/pipeline"
)

// Runner processes files one after another and hands every outcome to Emit.
type Runner struct {
	Processor intake.Processor
	Handlers  []intake.Handler
	Progress  pipeline.ProgressCallback
	// Emit receives each successful outcome after the handlers ran.
	Emit func(*pipeline.Outcome) error
}

// Failure records a file that could not be processed.
type Failure struct {
	Path string
	Code common.ErrorCode
	Err  error
}

// Summary describes a finished run.
type Summary struct {
	Total     int
	Succeeded int
	Failures  []Failure
	Duration  time.Duration
}

// Err summarizes the failures, nil when every file succeeded.
func (s *Summary) Err() error {
	if len(s.Failures) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d files failed", len(s.Failures), s.Total)
}

// Run processes files in order. A canceled ctx stops before the next file.
func (r *Runner) Run(ctx context.Context, files []string) *Summary {
	progress := r.Progress
	if progress == nil {
		progress = pipeline.NoOpProgressCallback{}
	}
	start := time.Now()
	sum := &Summary{Total: len(files)}

	progress.OnStart(len(files))
	for i, path := range files {
		if ctx.Err() != nil {
			sum.Failures = append(sum.Failures, Failure{Path: path, Code: common.CodeOf(ctx.Err()), Err: ctx.Err()})
			continue
		}
		err := r.processOne(ctx, path)
		if err != nil {
			sum.Failures = append(sum.Failures, Failure{Path: path, Code: common.CodeOf(err), Err: err})
		} else {
			sum.Succeeded++
		}
		progress.OnFile(i+1, len(files), path, err)
	}
	sum.Duration = time.Since(start)
	progress.OnComplete(sum.Succeeded, len(sum.Failures))
	return sum
}

func (r *Runner) processOne(ctx context.Context, path string) error {
	out, err := r.Processor.Process(ctx, path)
	if err != nil {
		slog.Error("Processing failed", "path", path, "code", common.CodeOf(err), "error", err)
		return err
	}
	item := intake.Item{Path: path}
	for _, h := range r.Handlers {
		if err := h.Handle(ctx, item, out); err != nil {
			slog.Error("Post-processing failed", "job_id", out.JobID, "path", path, "error", err)
			return err
		}
	}
	if r.Emit != nil {
		return r.Emit(out)
	}
	return nil
}
