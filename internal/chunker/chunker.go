package chunker

import (
	"iter"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Chunk is a contiguous span of source text sized for one completion request.
type Chunk struct {
	Index  int    // Position in the sequence; defines recombination order.
	Text   string // Exact source text, separators included.
	Tokens int    // EstimateTokens(Text).
}

// Unit granularity, coarsest first.
const (
	levelParagraph = iota
	levelSentence
	levelHard
)

var (
	// A paragraph runs up to and including the blank line(s) after it.
	paragraphBreak = regexp.MustCompile(`\n[ \t\r]*\n\s*`)
	// A sentence runs up to and including the whitespace after its terminator.
	sentenceBreak = regexp.MustCompile(`[.!?]+["'”’)\]]*\s+`)
)

// Chunks lazily splits text into chunks of at most budget estimated tokens.
// Paragraph boundaries are preferred, then sentence boundaries; a sentence
// that alone exceeds the budget is hard-cut into budget-sized windows.
// Concatenating the chunk texts in order reproduces text exactly. The
// returned sequence may be ranged over any number of times.
func Chunks(text string, budget int) iter.Seq[Chunk] {
	if budget <= 0 {
		budget = 1
	}
	return func(yield func(Chunk) bool) {
		if text == "" {
			return
		}
		b := &builder{budget: budget, yield: yield}
		if !b.add(text, levelParagraph-1) {
			return
		}
		b.flush()
	}
}

// Split collects Chunks into a slice.
func Split(text string, budget int) []Chunk {
	var chunks []Chunk
	for c := range Chunks(text, budget) {
		chunks = append(chunks, c)
	}
	return chunks
}

// builder greedily accumulates units into chunks.
type builder struct {
	budget int
	yield  func(Chunk) bool

	current strings.Builder
	runes   int
	index   int
}

// add places unit into the current chunk, breaking it into finer units when
// it cannot fit on its own. It returns false once the consumer stops.
func (b *builder) add(unit string, level int) bool {
	n := utf8.RuneCountInString(unit)
	if level < levelHard && tokensForRunes(n) > b.budget {
		finer := level + 1
		for _, part := range unitsAt(unit, finer, b.budget) {
			if !b.add(part, finer) {
				return false
			}
		}
		return true
	}

	if b.runes > 0 && tokensForRunes(b.runes+n) > b.budget {
		if !b.flush() {
			return false
		}
	}
	b.current.WriteString(unit)
	b.runes += n
	return true
}

func (b *builder) flush() bool {
	if b.runes == 0 {
		return true
	}
	c := Chunk{
		Index:  b.index,
		Text:   b.current.String(),
		Tokens: tokensForRunes(b.runes),
	}
	b.index++
	b.current.Reset()
	b.runes = 0
	return b.yield(c)
}

func unitsAt(text string, level, budget int) []string {
	switch level {
	case levelParagraph:
		return splitAfter(text, paragraphBreak)
	case levelSentence:
		return splitAfter(text, sentenceBreak)
	default:
		return hardCut(text, budget*CharsPerToken)
	}
}

// splitAfter cuts text after every match of re, keeping the separators.
func splitAfter(text string, re *regexp.Regexp) []string {
	var parts []string
	start := 0
	for _, m := range re.FindAllStringIndex(text, -1) {
		if m[1] >= len(text) {
			break
		}
		parts = append(parts, text[start:m[1]])
		start = m[1]
	}
	return append(parts, text[start:])
}

// hardCut splits text into windows of at most size runes.
func hardCut(text string, size int) []string {
	if size <= 0 {
		size = 1
	}
	var parts []string
	for text != "" {
		end, count := 0, 0
		for end < len(text) && count < size {
			_, w := utf8.DecodeRuneInString(text[end:])
			end += w
			count++
		}
		parts = append(parts, text[:end])
		text = text[end:]
	}
	return parts
}
