package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/recap/internal/chunker"
	"github.com/dgallion1/recap/internal/config"
	"github.com/dgallion1/recap/internal/llm"
)

// Stage describes one summarization pass over a set of chunks.
type Stage struct {
	Level       int
	Instruction string
	MaxTokens   int
	Temperature float32
}

// ChunkSummarizer summarizes chunks concurrently, one completion per chunk,
// and returns the summaries in chunk order.
type ChunkSummarizer struct {
	llm         llm.Completer
	prompts     Prompts
	log         *slog.Logger
	concurrency int
	maxRetries  int

	// Observer is notified of progress. Optional.
	Observer Observer
	// Backoff is the wait before retry n. Defaults to Backoff.
	Backoff func(attempt int) time.Duration
}

func NewChunkSummarizer(c llm.Completer, cfg config.RunConfig, prompts Prompts, log *slog.Logger) *ChunkSummarizer {
	return &ChunkSummarizer{
		llm:         c,
		prompts:     prompts,
		log:         log,
		concurrency: max(cfg.Concurrency, 1),
		maxRetries:  max(cfg.MaxRetries, 0),
		Observer:    nopObserver{},
		Backoff:     Backoff,
	}
}

// Summarize produces one ChunkSummary per chunk that succeeds, ordered by
// chunk index. Failed chunks are logged and skipped. If every chunk fails
// the error is an *AllChunksFailedError. If ctx is cancelled no further
// calls are issued and the summaries gathered so far are returned with the
// context error.
func (s *ChunkSummarizer) Summarize(ctx context.Context, chunks []chunker.Chunk, stage Stage) ([]ChunkSummary, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	obs := s.observer()
	obs.LevelStarted(stage.Level, len(chunks))

	results := make([]string, len(chunks))
	failures := make([]*ChunkError, len(chunks))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, c := range chunks {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			text, err := s.complete(ctx, llm.Request{
				System:      s.prompts.system(stage.Instruction),
				User:        c.Text,
				MaxTokens:   stage.MaxTokens,
				Temperature: stage.Temperature,
			}, "level", stage.Level, "chunk", c.Index)
			if err != nil {
				failures[i] = &ChunkError{Level: stage.Level, Ordinal: c.Index, Err: err}
				if ctx.Err() == nil {
					s.log.Warn("chunk summarization failed, skipping", "level", stage.Level, "chunk", c.Index, "error", err)
				}
			} else {
				results[i] = text
			}
			obs.ChunkDone(stage.Level, c.Index, err)
			return nil
		})
	}
	g.Wait()

	var summaries []ChunkSummary
	var failed []*ChunkError
	for i, c := range chunks {
		switch {
		case results[i] != "":
			summaries = append(summaries, ChunkSummary{Index: c.Index, Text: results[i]})
		case failures[i] != nil:
			failed = append(failed, failures[i])
		}
	}

	if err := ctx.Err(); err != nil {
		return summaries, fmt.Errorf("level %d interrupted after %d of %d chunks: %w", stage.Level, len(summaries), len(chunks), err)
	}
	if len(summaries) == 0 {
		return nil, &AllChunksFailedError{Level: stage.Level, Failures: failed}
	}
	if len(failed) > 0 {
		s.log.Warn("some chunks were skipped", "level", stage.Level, "failed", len(failed), "succeeded", len(summaries))
	}
	return summaries, nil
}

// complete issues one completion, retrying transient failures.
func (s *ChunkSummarizer) complete(ctx context.Context, req llm.Request, logArgs ...any) (string, error) {
	var lastErr error
	for attempt := range s.maxRetries + 1 {
		text, err := s.llm.Complete(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !llm.IsRetryable(err) || attempt == s.maxRetries {
			break
		}
		s.log.Warn("retryable completion error", append(logArgs, "attempt", attempt, "error", err)...)
		select {
		case <-time.After(s.Backoff(attempt)):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

func (s *ChunkSummarizer) observer() Observer {
	if s.Observer == nil {
		return nopObserver{}
	}
	return s.Observer
}
