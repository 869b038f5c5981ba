// Package watchdog detects pulls that have gone silent.
//
// A pull whose output stops for longer than the stall threshold is assumed
// to be blocked on the network. The watchdog only decides; the caller owns
// the ticker and performs the probe.
package watchdog

import "time"

// Defaults for the stall watchdog.
const (
	DefaultInterval       = 5 * time.Second
	DefaultStallThreshold = 30 * time.Second
)

// Decision is the outcome of one watchdog tick.
type Decision int

const (
	// Stop means no subprocess is alive and the ticker should stop.
	Stop Decision = iota
	// Quiet means output is recent enough; nothing to do.
	Quiet
	// Busy means a stall was seen but a probe is already in flight.
	Busy
	// Probe means a stall was detected and the caller must probe now.
	Probe
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Stop:
		return "stop"
	case Quiet:
		return "quiet"
	case Busy:
		return "busy"
	case Probe:
		return "probe"
	default:
		return "unknown"
	}
}

// Config configures the watchdog.
type Config struct {
	// Interval is the tick period.
	Interval time.Duration
	// StallThreshold is how long output may be silent before probing.
	StallThreshold time.Duration
}

// Watchdog tracks output recency and probe overlap for one attempt.
type Watchdog struct {
	cfg           Config
	lastOutput    time.Time
	probeInFlight bool
}

// New creates a watchdog. Zero config fields take the defaults.
func New(cfg Config) *Watchdog {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.StallThreshold <= 0 {
		cfg.StallThreshold = DefaultStallThreshold
	}
	return &Watchdog{cfg: cfg}
}

// Interval returns the configured tick period.
func (w *Watchdog) Interval() time.Duration {
	return w.cfg.Interval
}

// Touch records that output was observed at now.
func (w *Watchdog) Touch(now time.Time) {
	w.lastOutput = now
}

// Silence returns how long output has been silent at now.
func (w *Watchdog) Silence(now time.Time) time.Duration {
	return now.Sub(w.lastOutput)
}

// Check evaluates one tick. A Probe decision marks a probe in flight;
// the caller must call ProbeDone when the probe completes.
func (w *Watchdog) Check(now time.Time, alive bool) Decision {
	if !alive {
		return Stop
	}
	if w.Silence(now) < w.cfg.StallThreshold {
		return Quiet
	}
	if w.probeInFlight {
		return Busy
	}
	w.probeInFlight = true
	return Probe
}

// ProbeDone clears the in-flight marker.
func (w *Watchdog) ProbeDone() {
	w.probeInFlight = false
}

// InFlight reports whether a probe is outstanding.
func (w *Watchdog) InFlight() bool {
	return w.probeInFlight
}

// Reset clears the in-flight marker and restarts the silence window.
func (w *Watchdog) Reset(now time.Time) {
	w.probeInFlight = false
	w.lastOutput = now
}
