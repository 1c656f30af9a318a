// Package output decides which summary files a run produces and writes them.
package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/recap/internal/config"
	"github.com/dgallion1/recap/internal/summarize"
)

// Kind identifies an artifact.
type Kind string

const (
	KindFull   Kind = "full"
	KindShort  Kind = "summary"
	KindChunks Kind = "chunks"
)

// Artifact is one file to persist.
type Artifact struct {
	Kind    Kind   `json:"kind"`
	Name    string `json:"name"`
	Content string `json:"-"`
	Words   int    `json:"words"`
}

// Plan is the set of artifacts a run should persist, plus a warning for each
// expected artifact that had no content.
type Plan struct {
	Artifacts []Artifact
	Warnings  []string
}

// Input is everything Assemble needs. Empty strings and a nil
// ChunkSummaries mean the content is unavailable.
type Input struct {
	Source         string // Source file name, as given by the caller.
	Detail         int
	Keep           bool
	Full           string
	Compressed     string
	ChunkSummaries []summarize.ChunkSummary
}

// Assemble returns the artifacts to write. The full summary is always
// expected, the compressed summary only below the maximum detail level, and
// the chunk summaries only when kept. Blank content is never planned.
func Assemble(in Input) Plan {
	name := BaseName(in.Source)
	var plan Plan

	plan.add(KindFull, "Full_Summary_"+name+".txt", in.Full,
		"no summary was generated, skipping full summary file")

	if in.Detail < config.MaxDetail {
		plan.add(KindShort, "Summary_"+name+".txt", in.Compressed,
			"no compressed summary was generated, skipping summary file")
	}

	if in.Keep {
		plan.add(KindChunks, "chunk_summaries_"+name+".txt", chunkFile(in.Source, in.ChunkSummaries),
			"no chunk summaries were generated, skipping chunk summaries file")
	}
	return plan
}

func (p *Plan) add(kind Kind, name, content, warning string) {
	if strings.TrimSpace(content) == "" {
		p.Warnings = append(p.Warnings, warning)
		return
	}
	p.Artifacts = append(p.Artifacts, Artifact{Kind: kind, Name: name, Content: content, Words: WordCount(content)})
}

// Get returns the artifact of the given kind, if planned.
func (p Plan) Get(kind Kind) (Artifact, bool) {
	for _, a := range p.Artifacts {
		if a.Kind == kind {
			return a, true
		}
	}
	return Artifact{}, false
}

// chunkFile renders the level-0 summaries with a header and one numbered
// block per chunk.
func chunkFile(source string, summaries []summarize.ChunkSummary) string {
	if len(summaries) == 0 {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Chunk summaries for %s\n\n", source)
	for _, s := range summaries {
		fmt.Fprintf(&sb, "--- Chunk %d ---\n%s\n\n", s.Index+1, s.Text)
	}
	return sb.String()
}

// Write persists every artifact in plan under dir and returns the paths
// written, in plan order.
func Write(dir string, plan Plan) ([]string, error) {
	if len(plan.Artifacts) == 0 {
		return nil, nil
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	paths := make([]string, 0, len(plan.Artifacts))
	for _, a := range plan.Artifacts {
		path := filepath.Join(dir, a.Name)
		if err := os.WriteFile(path, []byte(a.Content), 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", a.Name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// BaseName is the source file name without directory or extension.
func BaseName(source string) string {
	base := filepath.Base(source)
	if name := strings.TrimSuffix(base, filepath.Ext(base)); name != "" {
		return name
	}
	return base
}

// WordCount counts whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}
