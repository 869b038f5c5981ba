package pulllog

import "strings"

// DefaultMaxLines is the transcript capacity.
const DefaultMaxLines = 200

// Transcript is a bounded, order-preserving view of pull output.
//
// Each unit id owns exactly one slot, updated in place. Lines without a
// unit id are appended as-is. When the capacity is exceeded the oldest
// lines are evicted and the unit index is rebuilt from what remains.
type Transcript struct {
	lines    []string
	index    map[string]int
	maxLines int
}

// NewTranscript creates a transcript holding at most maxLines lines.
// A non-positive maxLines selects DefaultMaxLines.
func NewTranscript(maxLines int) *Transcript {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	return &Transcript{
		index:    make(map[string]int),
		maxLines: maxLines,
	}
}

// Append records a line. With a unit id the unit's slot is replaced (or
// created); without one the line is appended unless it is a bare progress
// line, which has no owner and is dropped.
//
// It returns false when the line was dropped.
func (t *Transcript) Append(unitID, text string) bool {
	if unitID == "" {
		if IsProgressLine(text) {
			return false
		}
		t.lines = append(t.lines, text)
		t.evict()
		return true
	}

	if pos, ok := t.index[unitID]; ok && pos < len(t.lines) {
		t.lines[pos] = text
		return true
	}
	t.index[unitID] = len(t.lines)
	t.lines = append(t.lines, text)
	t.evict()
	return true
}

// AppendLine records an identified line.
func (t *Transcript) AppendLine(l Line) bool {
	return t.Append(l.UnitID, l.Text)
}

// evict drops the oldest lines beyond capacity and reindexes the rest.
func (t *Transcript) evict() {
	over := len(t.lines) - t.maxLines
	if over <= 0 {
		return
	}

	kept := make([]string, t.maxLines)
	copy(kept, t.lines[over:])
	t.lines = kept

	clear(t.index)
	for i, line := range t.lines {
		if unit := ExtractUnitID(line); unit != "" {
			t.index[unit] = i
		}
	}
}

// String returns the transcript joined with newlines.
func (t *Transcript) String() string {
	return strings.Join(t.lines, "\n")
}

// Len returns the number of stored lines.
func (t *Transcript) Len() int {
	return len(t.lines)
}

// Lines returns a copy of the stored lines.
func (t *Transcript) Lines() []string {
	out := make([]string, len(t.lines))
	copy(out, t.lines)
	return out
}

// Position returns the slot of a unit id.
func (t *Transcript) Position(unitID string) (int, bool) {
	pos, ok := t.index[unitID]
	return pos, ok
}

// Tail returns the last n lines joined with newlines.
func (t *Transcript) Tail(n int) string {
	if n <= 0 || len(t.lines) == 0 {
		return ""
	}
	start := max(len(t.lines)-n, 0)
	return strings.Join(t.lines[start:], "\n")
}

// Contains reports whether any stored line contains s.
func (t *Transcript) Contains(s string) bool {
	for _, line := range t.lines {
		if strings.Contains(line, s) {
			return true
		}
	}
	return false
}

// Reset empties the transcript.
func (t *Transcript) Reset() {
	t.lines = nil
	clear(t.index)
}
