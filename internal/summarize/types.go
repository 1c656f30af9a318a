package summarize

import (
	"strings"

	"github.com/dgallion1/recap/internal/chunker"
)

// Document is the raw input of a run. It is not modified after loading.
type Document struct {
	Name string // Source file name.
	Text string
}

// Tokens is the estimated token count of the document.
func (d Document) Tokens() int {
	return chunker.EstimateTokens(d.Text)
}

// ChunkSummary is the summary of one chunk. Index is inherited from the
// chunk and defines the order summaries are combined in.
type ChunkSummary struct {
	Index int
	Text  string
}

// ReductionLevel is one generation of summaries: 0 holds the chunk
// summaries, 1 the summaries of those, and so on.
type ReductionLevel struct {
	Level     int
	Summaries []ChunkSummary
	Tokens    int // Estimate of Join(Summaries).
}

// Separator sits between summaries when they are combined.
const Separator = "\n\n"

// Join concatenates summaries in the order given.
func Join(summaries []ChunkSummary) string {
	parts := make([]string, len(summaries))
	for i, s := range summaries {
		parts[i] = s.Text
	}
	return strings.Join(parts, Separator)
}

// Observer receives progress callbacks. Calls may arrive concurrently.
type Observer interface {
	LevelStarted(level, chunks int)
	ChunkDone(level, ordinal int, err error)
}

type nopObserver struct{}

func (nopObserver) LevelStarted(int, int)     {}
func (nopObserver) ChunkDone(int, int, error) {}
