// Package progress derives a completion ratio from per-layer pull states.
package progress

import (
	"math"
	"strings"
)

// State is the lifecycle rank of one transfer unit.
// Ranks only ever move upward within an attempt.
type State int

const (
	// StatePending is a unit docker is waiting to start.
	StatePending State = iota
	// StateActive is a unit being downloaded, verified or extracted.
	StateActive
	// StateDone is a unit that is complete or already present locally.
	StateDone
)

// Default ratio weights. They are heuristics carried over unchanged.
const (
	// DefaultActiveWeight is the credit an active unit contributes.
	DefaultActiveWeight = 0.3
	// DefaultRunningCap bounds the ratio until success is confirmed.
	DefaultRunningCap = 0.98
)

// ratioEpsilon is the tolerance used when comparing published ratios.
const ratioEpsilon = 1e-9

var (
	donePhrases    = []string{"pull complete", "already exists", "download complete"}
	activePhrases  = []string{"downloading", "extracting", "pulling fs layer", "verifying checksum"}
	pendingPhrases = []string{"waiting"}
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Classify maps a line to a candidate state. ok is false when the line
// carries no state information.
func Classify(line string) (State, bool) {
	lower := strings.ToLower(line)
	switch {
	case containsAny(lower, donePhrases):
		return StateDone, true
	case containsAny(lower, activePhrases):
		return StateActive, true
	case containsAny(lower, pendingPhrases):
		return StatePending, true
	default:
		return 0, false
	}
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// Weights configures the ratio formula.
type Weights struct {
	// Active is the fraction of a unit credited while it is active.
	Active float64
	// RunningCap is the ratio ceiling while the pull has not succeeded.
	RunningCap float64
}

// DefaultWeights returns the standard weights.
func DefaultWeights() Weights {
	return Weights{Active: DefaultActiveWeight, RunningCap: DefaultRunningCap}
}

// Tracker holds the unit table for one pull attempt.
type Tracker struct {
	weights Weights
	units   map[string]State
}

// NewTracker creates an empty tracker. Zero weight fields fall back to
// the defaults.
func NewTracker(w Weights) *Tracker {
	if w.Active <= 0 {
		w.Active = DefaultActiveWeight
	}
	if w.RunningCap <= 0 || w.RunningCap > 1 {
		w.RunningCap = DefaultRunningCap
	}
	return &Tracker{
		weights: w,
		units:   make(map[string]State),
	}
}

// Observe classifies a line for a unit and stores max(candidate, current).
// changed is true only for a first sighting or a strict increase.
func (t *Tracker) Observe(unitID, line string) bool {
	if unitID == "" {
		return false
	}
	candidate, ok := Classify(line)
	if !ok {
		return false
	}

	current, seen := t.units[unitID]
	if seen && candidate <= current {
		return false
	}
	t.units[unitID] = candidate
	return true
}

// State returns the stored state of a unit.
func (t *Tracker) State(unitID string) (State, bool) {
	s, ok := t.units[unitID]
	return s, ok
}

// Total returns the number of tracked units.
func (t *Tracker) Total() int {
	return len(t.units)
}

// Counts returns the number of done and active units.
func (t *Tracker) Counts() (done, active int) {
	for _, s := range t.units {
		switch s {
		case StateDone:
			done++
		case StateActive:
			active++
		}
	}
	return done, active
}

// Ratio computes (done + w*active) / total, capped at the running cap.
// It is 0 when no unit is tracked.
func (t *Tracker) Ratio() float64 {
	total := len(t.units)
	if total == 0 {
		return 0
	}
	done, active := t.Counts()
	ratio := (float64(done) + t.weights.Active*float64(active)) / float64(total)
	return math.Min(ratio, t.weights.RunningCap)
}

// Reset clears the unit table.
func (t *Tracker) Reset() {
	clear(t.units)
}

// Equal compares two ratios with a small tolerance.
func Equal(a, b float64) bool {
	return math.Abs(a-b) <= ratioEpsilon
}
