package types

// ContractVersion is the event frame contract version.
const ContractVersion = "0.1.0"

// EventType discriminates pull events.
type EventType string

// Event type constants.
const (
	// EventTypeLine carries one accepted transcript line.
	EventTypeLine EventType = "line"
	// EventTypeProgress carries a new completion ratio.
	EventTypeProgress EventType = "progress"
	// EventTypeStatus carries a new human status text.
	EventTypeStatus EventType = "status"
	// EventTypeActive reports whether a pull is running.
	EventTypeActive EventType = "active"
	// EventTypeFinished is the terminal event of a pull.
	EventTypeFinished EventType = "finished"
)

// IsTerminal returns true if this event type ends a pull.
func (e EventType) IsTerminal() bool {
	return e == EventTypeFinished
}

// PullEvent is one observable change published by the orchestrator.
// Only the fields relevant to Type are populated.
type PullEvent struct {
	// ContractVersion is the semantic version of the event contract.
	ContractVersion string `msgpack:"contract_version" json:"contract_version"`
	// PullID is the pull identifier.
	PullID string `msgpack:"pull_id" json:"pull_id"`
	// Seq is the monotonic sequence number, starts at 1.
	Seq int64 `msgpack:"seq" json:"seq"`
	// Type is the event type discriminator.
	Type EventType `msgpack:"type" json:"type"`
	// Ts is the event timestamp in RFC 3339 UTC format.
	Ts string `msgpack:"ts" json:"ts"`
	// Generation is the subprocess generation current when the event fired.
	Generation int64 `msgpack:"generation" json:"generation"`

	// UnitID is the layer id of a line event, if any.
	UnitID string `msgpack:"unit_id,omitempty" json:"unit_id,omitempty"`
	// Line is the transcript line of a line event.
	Line string `msgpack:"line,omitempty" json:"line,omitempty"`
	// Ratio is the completion ratio of a progress event.
	Ratio float64 `msgpack:"ratio,omitempty" json:"ratio,omitempty"`
	// Status is the status text of a status event.
	Status string `msgpack:"status,omitempty" json:"status,omitempty"`
	// Active is the running flag of an active event.
	Active bool `msgpack:"active,omitempty" json:"active,omitempty"`
	// OK is the success flag of a finished event.
	OK bool `msgpack:"ok,omitempty" json:"ok,omitempty"`
	// Message is the final message of a finished event.
	Message string `msgpack:"message,omitempty" json:"message,omitempty"`
}
