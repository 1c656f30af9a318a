package config

import (
	"fmt"
	"math"
	"time"
)

const (
	DefaultBaseURL       = "http://127.0.0.1:1234/v1" // LM Studio
	DefaultModel         = "local-model"
	DefaultContextWindow = 32000
	DefaultTimeout       = 5 * time.Minute
	DefaultMaxRetries    = 2

	MinDetail = 1
	MaxDetail = 5

	// MinContextWindow keeps the derived budgets meaningful.
	MinContextWindow = 64

	minLevels = 2
	maxLevels = 12
)

// compressionTargets are the token ceilings for the compressed summary,
// roughly 3-4 paragraphs, 7-8 paragraphs, 1,500 words and 2,500 words.
var compressionTargets = map[int]int{
	1: 600,
	2: 1200,
	3: 2000,
	4: 3300,
}

// RunConfig is the immutable configuration of a single summarization run.
// It is built once and passed by value to every component that needs it.
type RunConfig struct {
	ContextWindow    int // Model context window, in tokens.
	Detail           int // 1 (most compressed) to 5 (full summary only).
	KeepIntermediate bool

	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration

	Concurrency int // Concurrent completion calls per level.
	MaxRetries  int // Retries per chunk for transient failures.

	Polish bool // Run the final prose pass over the converged summaries.
}

// Validate checks ranges that would make a run meaningless.
func (c RunConfig) Validate() error {
	if c.Detail < MinDetail || c.Detail > MaxDetail {
		return fmt.Errorf("summary level must be between %d and %d, got %d", MinDetail, MaxDetail, c.Detail)
	}
	if c.ContextWindow < MinContextWindow {
		return fmt.Errorf("context window must be at least %d tokens, got %d", MinContextWindow, c.ContextWindow)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("retries must not be negative, got %d", c.MaxRetries)
	}
	return nil
}

// ChunkBudget is the per-request input budget in tokens.
func (c RunConfig) ChunkBudget() int {
	return max(c.ContextWindow/2, 1)
}

// SummaryMaxTokens caps the output of a single chunk summary.
func (c RunConfig) SummaryMaxTokens() int {
	return max(c.ContextWindow/4, 1)
}

// FinalMaxTokens caps the output of the polish and compression passes.
func (c RunConfig) FinalMaxTokens() int {
	return max(c.ContextWindow*2/5, 1)
}

// TerminalThreshold is the size at or below which combined summaries are
// considered converged.
func (c RunConfig) TerminalThreshold() int {
	return c.ChunkBudget()
}

// Compresses reports whether a compressed summary is requested.
func (c RunConfig) Compresses() bool {
	return c.Detail < MaxDetail
}

// CompressionTarget is the token ceiling for the compressed summary, or 0
// when no compression is requested.
func (c RunConfig) CompressionTarget() int {
	target, ok := compressionTargets[c.Detail]
	if !ok {
		return 0
	}
	return min(target, c.TerminalThreshold())
}

// CompressionPasses is the maximum number of compression passes; level 1
// gets the most.
func (c RunConfig) CompressionPasses() int {
	if !c.Compresses() {
		return 0
	}
	return MaxDetail - c.Detail
}

// MaxLevels bounds the number of reduction passes for a document of the
// given size. Each pass is expected to at least halve the text.
func (c RunConfig) MaxLevels(docTokens int) int {
	threshold := c.TerminalThreshold()
	if docTokens <= threshold {
		return minLevels
	}
	ratio := float64(docTokens) / float64(threshold)
	levels := int(math.Ceil(math.Log2(ratio))) + 2
	return min(max(levels, minLevels), maxLevels)
}
