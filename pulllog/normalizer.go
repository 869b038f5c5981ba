// Package pulllog turns raw docker pull output into transcript lines.
//
// The pipeline is Normalizer (bytes to clean lines), Identifier (lines to
// unit-tagged lines) and Transcript (bounded, deduplicated view). None of
// the types are safe for concurrent use; the orchestrator loop owns them.
package pulllog

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// noisePhrases are dropped wherever they appear in a line (case-insensitive).
// They come from script(1) and shell teardown, not from docker.
var noisePhrases = []string{
	"killing shell",
	"killed.",
}

// Normalizer reassembles arbitrarily split output chunks into logical lines.
//
// Both '\n' and '\r' terminate a line, so in-place progress redraws become
// discrete lines. An unterminated tail is held back until the next chunk
// or Flush.
type Normalizer struct {
	remainder string
}

// NewNormalizer creates an empty normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Push feeds a chunk and returns every line it completed.
func (n *Normalizer) Push(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}

	data := n.remainder + string(chunk)
	cut := strings.LastIndexAny(data, "\r\n")
	if cut < 0 {
		n.remainder = data
		return nil
	}

	n.remainder = data[cut+1:]
	return splitLines(data[:cut+1])
}

// Flush returns the pending remainder as a final line, if it holds one.
// Call it once the stream has ended.
func (n *Normalizer) Flush() []string {
	rest := n.remainder
	n.remainder = ""
	return splitLines(rest)
}

// Pending reports the buffered, not yet terminated text.
func (n *Normalizer) Pending() string {
	return n.remainder
}

// Reset discards any buffered remainder.
func (n *Normalizer) Reset() {
	n.remainder = ""
}

// NormalizeLine strips terminal control sequences and surrounding
// whitespace from one raw line. It returns "" for blank and noise lines.
func NormalizeLine(raw string) string {
	line := strings.TrimSpace(ansi.Strip(raw))
	if line == "" || IsNoise(line) {
		return ""
	}
	return line
}

// IsNoise reports whether a line is shell teardown chatter.
func IsNoise(line string) bool {
	lower := strings.ToLower(line)
	for _, phrase := range noisePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func splitLines(data string) []string {
	if data == "" {
		return nil
	}
	segments := strings.FieldsFunc(data, func(r rune) bool {
		return r == '\n' || r == '\r'
	})
	lines := make([]string, 0, len(segments))
	for _, seg := range segments {
		if line := NormalizeLine(seg); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
