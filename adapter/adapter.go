// Package adapter defines the completion notification boundary.
//
// Adapters publish pull completion notifications to downstream systems.
// The pull command owns adapter lifecycle; users provide configuration only.
package adapter

import (
	"context"
	"time"

	"github.com/pithecene-io/dockpull/types"
)

// EventType is the event_type of every completion notification.
const EventType = "pull_completed"

// DefaultBackoff is the base delay of the exponential retry backoff.
const DefaultBackoff = 500 * time.Millisecond

// PullCompletedEvent is the payload published when a pull finishes.
type PullCompletedEvent struct {
	ContractVersion string  `json:"contract_version"`
	EventType       string  `json:"event_type"` // always "pull_completed"
	PullID          string  `json:"pull_id"`
	Image           string  `json:"image"`
	Outcome         string  `json:"outcome"` // success, failed, canceled, spawn_failure
	OK              bool    `json:"ok"`
	Message         string  `json:"message"`
	Ratio           float64 `json:"ratio"`
	Generations     int64   `json:"generations"`
	Restarts        int64   `json:"restarts"`
	StoragePath     string  `json:"storage_path,omitempty"`
	Timestamp       string  `json:"timestamp"` // RFC 3339
	DurationMs      int64   `json:"duration_ms"`
}

// NewPullCompletedEvent builds the notification for a finished pull.
func NewPullCompletedEvent(meta *types.PullMeta, outcome *types.PullOutcome, finishedAt time.Time, duration time.Duration) *PullCompletedEvent {
	ev := &PullCompletedEvent{
		ContractVersion: types.ContractVersion,
		EventType:       EventType,
		PullID:          meta.PullID,
		Image:           meta.Image,
		Timestamp:       finishedAt.UTC().Format(time.RFC3339),
		DurationMs:      duration.Milliseconds(),
	}
	if outcome != nil {
		ev.Outcome = string(outcome.Status)
		ev.OK = outcome.OK()
		ev.Message = outcome.Message
	}
	return ev
}

// Adapter publishes pull completion events to a downstream system.
type Adapter interface {
	// Publish sends a pull completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *PullCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}
