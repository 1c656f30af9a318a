package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dgallion1/recap/internal/llm"
	"github.com/dgallion1/recap/internal/output"
	"github.com/dgallion1/recap/internal/parser"
	"github.com/dgallion1/recap/internal/summarize"
)

// Worker processes a single summarization job.
type Worker struct {
	llm       llm.Completer
	prompts   summarize.Prompts
	log       *slog.Logger
	parseOpts parser.Options

	// outDir, when set, also persists artifacts under outDir/<job id>.
	outDir string
	// backoff overrides the retry wait. Nil uses the default.
	backoff func(attempt int) time.Duration
}

func NewWorker(c llm.Completer, prompts summarize.Prompts, log *slog.Logger, parseOpts parser.Options, outDir string) *Worker {
	return &Worker{
		llm:       c,
		prompts:   prompts,
		log:       log,
		parseOpts: parseOpts,
		outDir:    outDir,
	}
}

// Process runs the full summarization pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	text, err := parser.Extract(job.FileData(), job.Filename, w.parseOpts)
	job.SetFileData(nil)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	job.SetContentHash(ContentHashHex([]byte(text)))

	// Phase 2: Summarize and reduce
	runner := NewRunner(w.llm, job.Run(), w.prompts, log)
	runner.Observer = job
	runner.Backoff = w.backoff

	res, runErr := runner.Run(ctx, summarize.Document{Name: filepath.Base(job.Filename), Text: text})
	for _, warning := range res.Plan.Warnings {
		job.AddWarning(warning)
	}
	job.SetArtifacts(res.Plan.Artifacts)

	// Phase 3: Persist
	if w.outDir != "" && len(res.Plan.Artifacts) > 0 {
		paths, err := output.Write(filepath.Join(w.outDir, job.ID), res.Plan)
		if err != nil {
			log.Error("write artifacts failed", "error", err)
			job.AddError(fmt.Sprintf("write: %s", err))
		} else {
			log.Info("artifacts written", "paths", paths)
		}
	}

	switch {
	case runErr == nil:
		job.SetStatus(StatusCompleted, "done")
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		log.Warn("job interrupted", "error", runErr)
		job.AddError(runErr.Error())
		job.SetStatus(statusAfterFailure(res), "interrupted")
	default:
		log.Error("summarization failed", "error", runErr)
		job.AddError(runErr.Error())
		job.SetStatus(statusAfterFailure(res), "summarizing")
	}
}

// statusAfterFailure is partial when a failed run still produced something
// worth downloading.
func statusAfterFailure(res *Result) JobStatus {
	if len(res.Plan.Artifacts) > 0 {
		return StatusPartial
	}
	return StatusFailed
}
