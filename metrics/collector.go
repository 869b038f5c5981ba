// Package metrics provides per-pull metrics collection.
//
// The Collector accumulates counters during a single supervised pull,
// across every restart of the docker subprocess. It is a leaf package with
// no internal dependencies.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all pull metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Pull lifecycle
	PullsStarted   int64 `json:"pulls_started"`
	PullsSucceeded int64 `json:"pulls_succeeded"`
	PullsFailed    int64 `json:"pulls_failed"`
	PullsCanceled  int64 `json:"pulls_canceled"`

	// Subprocess
	SpawnSuccess int64 `json:"spawn_success"`
	SpawnFailure int64 `json:"spawn_failure"`
	Restarts     int64 `json:"restarts"`

	// Watchdog
	StallsDetected    int64 `json:"stalls_detected"`
	ProbesReachable   int64 `json:"probes_reachable"`
	ProbesUnreachable int64 `json:"probes_unreachable"`
	StaleMessages     int64 `json:"stale_messages"`

	// Output
	LinesAccepted int64 `json:"lines_accepted"`
	LinesDropped  int64 `json:"lines_dropped"`

	// Lode / Storage
	LodeWriteSuccess int64 `json:"lode_write_success"`
	LodeWriteFailure int64 `json:"lode_write_failure"`

	// Dimensions (informational, set at construction)
	Image          string `json:"image"`
	StorageBackend string `json:"storage_backend"`
	PullID         string `json:"pull_id"`
}

// Collector accumulates metrics during a single pull.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	pullsStarted   int64
	pullsSucceeded int64
	pullsFailed    int64
	pullsCanceled  int64

	spawnSuccess int64
	spawnFailure int64
	restarts     int64

	stallsDetected    int64
	probesReachable   int64
	probesUnreachable int64
	staleMessages     int64

	linesAccepted int64
	linesDropped  int64

	lodeWriteSuccess int64
	lodeWriteFailure int64

	image          string
	storageBackend string
	pullID         string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(image, storageBackend, pullID string) *Collector {
	return &Collector{
		image:          image,
		storageBackend: storageBackend,
		pullID:         pullID,
	}
}

func (c *Collector) inc(counter *int64) {
	c.mu.Lock()
	*counter++
	c.mu.Unlock()
}

// --- Pull lifecycle ---

// IncPullStarted records a pull start.
func (c *Collector) IncPullStarted() {
	if c == nil {
		return
	}
	c.inc(&c.pullsStarted)
}

// IncPullSucceeded records a confirmed successful pull.
func (c *Collector) IncPullSucceeded() {
	if c == nil {
		return
	}
	c.inc(&c.pullsSucceeded)
}

// IncPullFailed records a failed pull, including spawn failures.
func (c *Collector) IncPullFailed() {
	if c == nil {
		return
	}
	c.inc(&c.pullsFailed)
}

// IncPullCanceled records a canceled pull.
func (c *Collector) IncPullCanceled() {
	if c == nil {
		return
	}
	c.inc(&c.pullsCanceled)
}

// --- Subprocess ---

// IncSpawnSuccess records a started docker subprocess.
func (c *Collector) IncSpawnSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.spawnSuccess)
}

// IncSpawnFailure records a subprocess that could not be started.
func (c *Collector) IncSpawnFailure() {
	if c == nil {
		return
	}
	c.inc(&c.spawnFailure)
}

// IncRestart records a probe-gated restart.
func (c *Collector) IncRestart() {
	if c == nil {
		return
	}
	c.inc(&c.restarts)
}

// --- Watchdog ---

// IncStallDetected records a watchdog tick that launched a probe.
func (c *Collector) IncStallDetected() {
	if c == nil {
		return
	}
	c.inc(&c.stallsDetected)
}

// IncProbe records a probe outcome.
func (c *Collector) IncProbe(reachable bool) {
	if c == nil {
		return
	}
	if reachable {
		c.inc(&c.probesReachable)
	} else {
		c.inc(&c.probesUnreachable)
	}
}

// IncStaleMessage records a message discarded for carrying an old generation.
func (c *Collector) IncStaleMessage() {
	if c == nil {
		return
	}
	c.inc(&c.staleMessages)
}

// --- Output ---

// IncLineAccepted records a line that reached the transcript.
func (c *Collector) IncLineAccepted() {
	if c == nil {
		return
	}
	c.inc(&c.linesAccepted)
}

// IncLineDropped records a normalized line the transcript refused.
func (c *Collector) IncLineDropped() {
	if c == nil {
		return
	}
	c.inc(&c.linesDropped)
}

// --- Lode / Storage ---

// IncLodeWriteSuccess records a successful Lode write operation (per-call).
func (c *Collector) IncLodeWriteSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.lodeWriteSuccess)
}

// IncLodeWriteFailure records a failed Lode write operation (per-call).
func (c *Collector) IncLodeWriteFailure() {
	if c == nil {
		return
	}
	c.inc(&c.lodeWriteFailure)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		PullsStarted:   c.pullsStarted,
		PullsSucceeded: c.pullsSucceeded,
		PullsFailed:    c.pullsFailed,
		PullsCanceled:  c.pullsCanceled,

		SpawnSuccess: c.spawnSuccess,
		SpawnFailure: c.spawnFailure,
		Restarts:     c.restarts,

		StallsDetected:    c.stallsDetected,
		ProbesReachable:   c.probesReachable,
		ProbesUnreachable: c.probesUnreachable,
		StaleMessages:     c.staleMessages,

		LinesAccepted: c.linesAccepted,
		LinesDropped:  c.linesDropped,

		LodeWriteSuccess: c.lodeWriteSuccess,
		LodeWriteFailure: c.lodeWriteFailure,

		Image:          c.image,
		StorageBackend: c.storageBackend,
		PullID:         c.pullID,
	}
}
