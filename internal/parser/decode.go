package parser

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeText converts raw bytes to text. Invalid UTF-8 sequences become
// U+FFFD instead of failing the read, a leading byte order mark is dropped
// and line endings are normalized to \n.
func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	s := strings.ToValidUTF8(string(data), "�")
	if strings.IndexByte(s, '\r') < 0 {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

var blankLineRe = regexp.MustCompile(`\n[ \t\f\v]*\n\s*`)

// splitParagraphs cuts text on blank lines. Line breaks inside a paragraph
// are kept. There is no limit on paragraph length.
func splitParagraphs(s string) []string {
	var paras []string
	for _, p := range blankLineRe.Split(s, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}

// docTitle is the file name without directory or extension.
func docTitle(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
