package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dgallion1/recap/internal/chunker"
	"github.com/dgallion1/recap/internal/config"
	"github.com/dgallion1/recap/internal/llm"
	"github.com/dgallion1/recap/internal/output"
	"github.com/dgallion1/recap/internal/summarize"
)

// ErrEmptyDocument is returned for documents with no extractable text.
var ErrEmptyDocument = errors.New("document has no text")

// Runner executes one summarization run: chunk, summarize, reduce, and
// decide which artifacts to persist.
type Runner struct {
	llm     llm.Completer
	cfg     config.RunConfig
	prompts summarize.Prompts
	log     *slog.Logger

	// Observer receives progress for every level. Optional.
	Observer summarize.Observer
	// Backoff overrides the retry wait. Optional.
	Backoff func(attempt int) time.Duration
}

func NewRunner(c llm.Completer, cfg config.RunConfig, prompts summarize.Prompts, log *slog.Logger) *Runner {
	return &Runner{llm: c, cfg: cfg, prompts: prompts, log: log}
}

// Result is the outcome of a run. Plan is always set, even on failure, and
// holds whatever artifacts are still valid to persist.
type Result struct {
	Plan      output.Plan
	Reduction *summarize.Reduction
	Chunks    int
	Elapsed   time.Duration
}

// Run summarizes doc. On failure the returned Result still carries the
// partial plan (the kept chunk summaries, if any) alongside the error.
func (r *Runner) Run(ctx context.Context, doc summarize.Document) (*Result, error) {
	start := time.Now()
	log := r.log.With("file", doc.Name)
	docTokens := doc.Tokens()

	log.Info("configuration",
		"summary_level", r.cfg.Detail,
		"context", r.cfg.ContextWindow,
		"keep", r.cfg.KeepIntermediate,
		"base_url", r.cfg.BaseURL,
		"model", r.cfg.Model,
		"concurrency", r.cfg.Concurrency,
	)

	res := &Result{}
	in := output.Input{Source: doc.Name, Detail: r.cfg.Detail, Keep: r.cfg.KeepIntermediate}
	finish := func(err error) (*Result, error) {
		res.Plan = output.Assemble(in)
		if res.Reduction != nil {
			res.Plan.Warnings = slices.Concat(res.Reduction.Warnings, res.Plan.Warnings)
		}
		for _, w := range res.Plan.Warnings {
			log.Warn(w)
		}
		res.Elapsed = time.Since(start)
		return res, err
	}

	chunks := chunker.Split(doc.Text, r.cfg.ChunkBudget())
	res.Chunks = len(chunks)
	if len(chunks) == 0 {
		return finish(fmt.Errorf("%s: %w", doc.Name, ErrEmptyDocument))
	}
	if len(chunks) == 1 {
		log.Info("strategy: single pass", "tokens", docTokens)
	} else {
		log.Info("strategy: chunking required", "tokens", docTokens, "chunk_budget", r.cfg.ChunkBudget(), "chunks", len(chunks))
	}

	s := summarize.NewChunkSummarizer(r.llm, r.cfg, r.prompts, log)
	if r.Observer != nil {
		s.Observer = r.Observer
	}
	if r.Backoff != nil {
		s.Backoff = r.Backoff
	}
	reducer := summarize.NewReducer(s, r.cfg, r.prompts, log)

	level0, err := s.Summarize(ctx, chunks, reducer.ChunkStage())
	in.ChunkSummaries = level0
	if err != nil {
		return finish(fmt.Errorf("summarize chunks: %w", err))
	}
	log.Info("all chunks processed", "summaries", len(level0), "chunks", len(chunks))

	red, err := reducer.Reduce(ctx, doc, level0)
	res.Reduction = red
	if err != nil {
		var ce *summarize.ConvergenceError
		if errors.As(err, &ce) {
			log.Warn("partial summary discarded", "levels", ce.Levels, "tokens", ce.Tokens, "reason", ce.Reason)
			log.Debug("partial summary", "text", ce.Partial)
		}
		return finish(fmt.Errorf("reduce: %w", err))
	}
	in.Full = red.Full
	in.Compressed = red.Compressed

	res, err = finish(nil)
	for _, a := range res.Plan.Artifacts {
		log.Info("summary ready", "artifact", a.Name, "words", a.Words)
	}
	log.Info("summarization finished", "levels", len(red.Levels), "elapsed", res.Elapsed.Round(time.Millisecond))
	return res, err
}
