package chunker

import (
	"fmt"
	"strings"
	"testing"
)

func joinChunks(chunks []Chunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.Text)
	}
	return sb.String()
}

func TestSplit_SmallTextFitsOneChunk(t *testing.T) {
	text := "A short paragraph.\n\nAnother one."
	chunks := Split(text, 100)

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Index != 0 {
		t.Errorf("expected index 0, got %d", chunks[0].Index)
	}
	if chunks[0].Text != text {
		t.Errorf("expected chunk text %q, got %q", text, chunks[0].Text)
	}
	if chunks[0].Tokens != EstimateTokens(text) {
		t.Errorf("expected %d tokens, got %d", EstimateTokens(text), chunks[0].Tokens)
	}
}

func TestSplit_EmptyText(t *testing.T) {
	if chunks := Split("", 100); len(chunks) != 0 {
		t.Errorf("expected 0 chunks, got %d", len(chunks))
	}
}

func TestSplit_RoundTrip(t *testing.T) {
	inputs := map[string]string{
		"paragraphs": strings.Repeat("The quick brown fox jumps over the lazy dog. It was not amused.\n\n", 80),
		"one block":  strings.Repeat("The quick brown fox jumps over the lazy dog. ", 300),
		"no breaks":  strings.Repeat("x", 5000),
		"mixed":      "Title\n\n\n" + strings.Repeat("Sentence one! Sentence two? ", 90) + "\n  \n" + strings.Repeat("y", 900) + "\n\ntail",
		"unicode":    strings.Repeat("Ünïcødé wörds — ñ. ", 200),
		"whitespace": "   \n\n\t\n",
	}

	for name, text := range inputs {
		for _, budget := range []int{1, 7, 50, 200, 10000} {
			t.Run(fmt.Sprintf("%s/%d", name, budget), func(t *testing.T) {
				chunks := Split(text, budget)
				if got := joinChunks(chunks); got != text {
					t.Fatalf("round trip mismatch: got %d bytes, want %d", len(got), len(text))
				}
				for i, c := range chunks {
					if c.Index != i {
						t.Errorf("chunk %d: expected index %d, got %d", i, i, c.Index)
					}
					if c.Tokens > budget {
						t.Errorf("chunk %d: %d tokens exceeds budget %d", i, c.Tokens, budget)
					}
					if c.Text == "" {
						t.Errorf("chunk %d is empty", i)
					}
				}
			})
		}
	}
}

func TestSplit_PrefersParagraphBoundaries(t *testing.T) {
	para := strings.Repeat("word ", 30) + "end.\n\n" // 156 chars, 39 tokens
	text := strings.Repeat(para, 6)

	chunks := Split(text, 100)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if !strings.HasSuffix(c.Text, "end.\n\n") {
			t.Errorf("chunk %d does not end on a paragraph boundary: %q", i, c.Text[len(c.Text)-10:])
		}
	}
}

func TestSplit_FallsBackToSentences(t *testing.T) {
	// One paragraph, far larger than the budget, with sentence breaks.
	text := strings.Repeat("This sentence has some words in it. ", 40)

	chunks := Split(text, 50)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, c := range chunks[:len(chunks)-1] {
		if !strings.HasSuffix(c.Text, "in it. ") {
			t.Errorf("chunk %d does not end on a sentence boundary: %q", i, c.Text)
		}
	}
}

func TestSplit_HardCutsIndivisibleUnits(t *testing.T) {
	text := strings.Repeat("z", 1000)

	chunks := Split(text, 10)
	if len(chunks) != 25 {
		t.Fatalf("expected 25 chunks of 40 chars, got %d", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Text) != 40 {
			t.Errorf("chunk %d: expected 40 chars, got %d", i, len(c.Text))
		}
	}
}

func TestSplit_HardCutKeepsRunesWhole(t *testing.T) {
	text := strings.Repeat("é", 30)
	for _, c := range Split(text, 2) {
		if strings.ContainsRune(c.Text, '�') || !strings.HasPrefix(c.Text, "é") {
			t.Fatalf("chunk split inside a rune: %q", c.Text)
		}
	}
}

func TestSplit_NonPositiveBudget(t *testing.T) {
	text := "abcdefgh"
	chunks := Split(text, 0)
	if len(chunks) != 2 {
		t.Fatalf("expected budget 0 to behave as 1 (2 chunks), got %d", len(chunks))
	}
	if joinChunks(chunks) != text {
		t.Errorf("round trip mismatch")
	}
}

func TestChunks_IsRestartableAndLazy(t *testing.T) {
	text := strings.Repeat("Paragraph text here.\n\n", 50)
	seq := Chunks(text, 20)

	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}
	if first == 0 || first != second {
		t.Fatalf("expected identical non-zero counts, got %d and %d", first, second)
	}

	taken := 0
	for range seq {
		taken++
		if taken == 2 {
			break
		}
	}
	if taken != 2 {
		t.Errorf("expected early stop after 2 chunks, got %d", taken)
	}
}
