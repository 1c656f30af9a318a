package summarize

import (
	"errors"
	"fmt"
)

var (
	// ErrAllChunksFailed matches *AllChunksFailedError.
	ErrAllChunksFailed = errors.New("all chunks failed")
	// ErrReductionDidNotConverge matches *ConvergenceError.
	ErrReductionDidNotConverge = errors.New("reduction did not converge")
)

// ChunkError records one chunk whose summary could not be produced. It is
// recoverable: the chunk is skipped and the run continues.
type ChunkError struct {
	Level   int
	Ordinal int
	Err     error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d (level %d): %v", e.Ordinal, e.Level, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// AllChunksFailedError is returned when no chunk at a level produced a summary.
type AllChunksFailedError struct {
	Level    int
	Failures []*ChunkError
}

func (e *AllChunksFailedError) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("level %d: %s", e.Level, ErrAllChunksFailed)
	}
	return fmt.Sprintf("level %d: all %d chunks failed (first: %v)", e.Level, len(e.Failures), e.Failures[0].Err)
}

func (e *AllChunksFailedError) Is(target error) bool { return target == ErrAllChunksFailed }

// Unwrap exposes the per-chunk failures so callers can match backend errors.
func (e *AllChunksFailedError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// ConvergenceError is returned when reduction stops shrinking or reaches the
// level cap before fitting the terminal threshold. Partial holds the last
// level's combined text.
type ConvergenceError struct {
	Levels    int
	Tokens    int
	Threshold int
	Reason    string
	Partial   string
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("%s after %d levels (%s): %d tokens, threshold %d",
		ErrReductionDidNotConverge, e.Levels, e.Reason, e.Tokens, e.Threshold)
}

func (e *ConvergenceError) Is(target error) bool { return target == ErrReductionDidNotConverge }
