package summarize

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/recap/internal/chunker"
	"github.com/dgallion1/recap/internal/config"
	"github.com/dgallion1/recap/internal/llm"
)

// Reduction is the outcome of a successful reduction.
type Reduction struct {
	Levels     []ReductionLevel
	Full       string // Converged (and polished) summary.
	Compressed string // Only when the detail level asks for compression.
	Warnings   []string
}

// Reducer re-chunks and re-summarizes combined summaries until they fit the
// terminal threshold, then optionally compresses the result.
type Reducer struct {
	summarizer *ChunkSummarizer
	prompts    Prompts
	cfg        config.RunConfig
	log        *slog.Logger
}

func NewReducer(s *ChunkSummarizer, cfg config.RunConfig, prompts Prompts, log *slog.Logger) *Reducer {
	return &Reducer{summarizer: s, prompts: prompts, cfg: cfg, log: log}
}

// ChunkStage is the level-0 pass over document chunks.
func (r *Reducer) ChunkStage() Stage {
	return Stage{
		Level:       0,
		Instruction: r.prompts.Chunk,
		MaxTokens:   r.cfg.SummaryMaxTokens(),
		Temperature: 0,
	}
}

func (r *Reducer) combineStage(level int) Stage {
	return Stage{
		Level:       level,
		Instruction: r.prompts.Combine,
		MaxTokens:   r.cfg.SummaryMaxTokens(),
		Temperature: 0.1,
	}
}

// Reduce runs the reduction loop over the level-0 summaries of doc. On
// failure the returned Reduction still holds the levels completed so far.
func (r *Reducer) Reduce(ctx context.Context, doc Document, level0 []ChunkSummary) (*Reduction, error) {
	red := &Reduction{}
	if len(level0) == 0 {
		return red, &AllChunksFailedError{Level: 0}
	}

	threshold := r.cfg.TerminalThreshold()
	maxLevels := r.cfg.MaxLevels(doc.Tokens())
	prevTokens := doc.Tokens()
	current := level0

	var combined string
	for level := 0; ; level++ {
		combined = Join(current)
		tokens := chunker.EstimateTokens(combined)
		red.Levels = append(red.Levels, ReductionLevel{Level: level, Summaries: current, Tokens: tokens})

		if tokens <= threshold {
			r.log.Info("summaries converged", "level", level, "tokens", tokens, "threshold", threshold)
			break
		}
		if tokens >= prevTokens {
			return red, &ConvergenceError{Levels: level, Tokens: tokens, Threshold: threshold, Reason: "summaries stopped shrinking", Partial: combined}
		}
		if level >= maxLevels {
			return red, &ConvergenceError{Levels: level, Tokens: tokens, Threshold: threshold, Reason: "level cap reached", Partial: combined}
		}

		chunks := chunker.Split(combined, r.cfg.ChunkBudget())
		r.log.Info("summaries too large, reducing", "level", level+1, "tokens", tokens, "chunks", len(chunks))

		next, err := r.summarizer.Summarize(ctx, chunks, r.combineStage(level+1))
		if err != nil {
			return red, fmt.Errorf("reduction level %d: %w", level+1, err)
		}
		prevTokens = tokens
		current = next
	}

	full, warning, err := r.polish(ctx, doc, combined)
	if err != nil {
		return red, err
	}
	red.Full = full
	if warning != "" {
		red.Warnings = append(red.Warnings, warning)
	}

	if r.cfg.Compresses() {
		compressed, warning, err := r.compress(ctx, full)
		if err != nil {
			return red, err
		}
		red.Compressed = compressed
		if warning != "" {
			red.Warnings = append(red.Warnings, warning)
		}
	}
	return red, nil
}

// polish turns the converged summaries into one piece of prose. A failed
// polish falls back to the combined text.
func (r *Reducer) polish(ctx context.Context, doc Document, combined string) (string, string, error) {
	if !r.cfg.Polish {
		return combined, "", nil
	}
	instruction := r.prompts.Polish + " " + TargetLength(doc.Tokens())
	text, err := r.summarizer.complete(ctx, llm.Request{
		System:      r.prompts.system(instruction),
		User:        combined,
		MaxTokens:   r.cfg.FinalMaxTokens(),
		Temperature: 0.2,
	}, "stage", "polish")
	if err != nil {
		if ctx.Err() != nil {
			return "", "", fmt.Errorf("polish: %w", ctx.Err())
		}
		r.log.Warn("final polish failed, using combined summaries", "error", err)
		return combined, "final polish failed, full summary is the combined summaries: " + err.Error(), nil
	}
	return text, "", nil
}

// compress applies up to CompressionPasses passes, stopping at the target
// size or when a pass fails to shrink the text. It returns "" plus a warning
// when the first pass fails.
func (r *Reducer) compress(ctx context.Context, full string) (string, string, error) {
	target := r.cfg.CompressionTarget()
	instruction := r.prompts.Compress + " " + r.prompts.Detail.For(r.cfg.Detail)

	current := full
	currentTokens := chunker.EstimateTokens(full)
	for pass := 1; pass <= r.cfg.CompressionPasses(); pass++ {
		text, err := r.summarizer.complete(ctx, llm.Request{
			System:      r.prompts.system(instruction),
			User:        current,
			MaxTokens:   r.cfg.FinalMaxTokens(),
			Temperature: 0.2,
		}, "stage", "compress", "pass", pass)
		if err != nil {
			if ctx.Err() != nil {
				return "", "", fmt.Errorf("compress: %w", ctx.Err())
			}
			if pass == 1 {
				r.log.Warn("compression failed, no shorter summary generated", "error", err)
				return "", "compression failed, no shorter summary generated: " + err.Error(), nil
			}
			r.log.Warn("compression pass failed, keeping previous pass", "pass", pass, "error", err)
			break
		}

		tokens := chunker.EstimateTokens(text)
		if tokens >= currentTokens {
			r.log.Info("compression pass did not shrink the summary", "pass", pass, "tokens", tokens)
			break
		}
		current, currentTokens = text, tokens
		r.log.Info("compression pass complete", "pass", pass, "tokens", tokens, "target", target)
		if currentTokens <= target {
			break
		}
	}
	return current, "", nil
}
