package pulllog

import (
	"regexp"
	"strings"
)

// unitIDPattern matches a docker layer id prefix such as "a1b2c3d4e5f6:".
var unitIDPattern = regexp.MustCompile(`^([0-9a-f]{6,}):`)

// progressVerbs start the bare progress lines docker prints without a
// layer prefix when it redraws a single row.
var progressVerbs = []string{
	"Downloading",
	"Extracting",
	"Waiting",
	"Pull complete",
	"Download complete",
	"Pulling fs layer",
}

// Line is a logical line attributed to a transfer unit.
type Line struct {
	// UnitID is the layer id, or "" for uncategorized lines.
	UnitID string
	// Text is the line as shown in the transcript. Continuation lines
	// carry the inherited id as a prefix.
	Text string
	// Continuation is true when UnitID was inherited rather than parsed.
	Continuation bool
}

// ExtractUnitID returns the leading layer id of a line, or "".
func ExtractUnitID(line string) string {
	match := unitIDPattern.FindStringSubmatch(line)
	if match == nil {
		return ""
	}
	return match[1]
}

// IsProgressLine reports whether a line starts with a known progress verb.
func IsProgressLine(line string) bool {
	for _, verb := range progressVerbs {
		if strings.HasPrefix(line, verb) {
			return true
		}
	}
	return false
}

// Identifier attributes lines to units, carrying the most recent unit id
// forward onto bare progress lines.
//
// Inheritance assumes docker prints a bare progress row right after its
// owning layer. When that does not hold the row is misattributed; this is
// cosmetic and tolerated.
type Identifier struct {
	last string
}

// NewIdentifier creates an identifier with no unit seen yet.
func NewIdentifier() *Identifier {
	return &Identifier{}
}

// Identify attributes a normalized line. ok is false when the line must be
// dropped: a bare progress line before any unit id was seen.
func (id *Identifier) Identify(line string) (Line, bool) {
	if unit := ExtractUnitID(line); unit != "" {
		id.last = unit
		return Line{UnitID: unit, Text: line}, true
	}

	if !IsProgressLine(line) {
		return Line{Text: line}, true
	}
	if id.last == "" {
		return Line{}, false
	}
	return Line{
		UnitID:       id.last,
		Text:         id.last + ": " + line,
		Continuation: true,
	}, true
}

// Last returns the most recently seen unit id.
func (id *Identifier) Last() string {
	return id.last
}

// Reset forgets the most recently seen unit id.
func (id *Identifier) Reset() {
	id.last = ""
}
