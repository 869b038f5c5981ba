package types

// OutcomeStatus is the final classification of a pull.
type OutcomeStatus string

const (
	// OutcomeSuccess indicates docker exited cleanly after reporting a status marker.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeFailed indicates docker exited without confirming the pull.
	OutcomeFailed OutcomeStatus = "failed"
	// OutcomeCanceled indicates the caller canceled the pull.
	OutcomeCanceled OutcomeStatus = "canceled"
	// OutcomeSpawnFailure indicates the subprocess could not be started.
	OutcomeSpawnFailure OutcomeStatus = "spawn_failure"
)

// PullOutcome is the final outcome of a pull.
type PullOutcome struct {
	// Status is the outcome classification.
	Status OutcomeStatus `json:"status"`
	// Message is the human-readable final message.
	Message string `json:"message"`
	// ExitCode is the last subprocess exit code, -1 if none was observed.
	ExitCode int `json:"exit_code"`
}

// OK reports whether the pull succeeded.
func (o *PullOutcome) OK() bool {
	return o != nil && o.Status == OutcomeSuccess
}
