package runtime

import (
	"fmt"
	"strings"

	"github.com/pithecene-io/dockpull/types"
)

// CLI exit codes per outcome.
const (
	ExitCodeSuccess      = 0 // pull confirmed
	ExitCodeFailed       = 1 // docker exited without confirming the pull
	ExitCodeSpawnFailure = 2 // subprocess could not be started
	ExitCodeCanceled     = 3 // canceled by the caller
	ExitCodeConfigError  = 4 // invalid configuration or arguments
)

// Final messages.
const (
	MessageSuccess     = "Docker image pulled successfully."
	MessageFailed      = "Docker image pull failed."
	MessageCanceled    = "canceled"
	MessageSpawnFailed = "Docker pull failed to start"
)

// diagnosticLines is how many trailing transcript lines a failure carries.
const diagnosticLines = 5

// DetermineOutcome classifies a finished subprocess.
//
// Success requires a clean exit, a status marker in the output and no
// cancellation. Cancellation wins over everything else. A failure carries
// the trailing transcript lines, or a generic message when there are none.
func DetermineOutcome(canceled, sawStatusMarker bool, exitCode int, transcriptTail string) *types.PullOutcome {
	switch {
	case canceled:
		return &types.PullOutcome{
			Status:   types.OutcomeCanceled,
			Message:  MessageCanceled,
			ExitCode: exitCode,
		}
	case exitCode == 0 && sawStatusMarker:
		return &types.PullOutcome{
			Status:   types.OutcomeSuccess,
			Message:  MessageSuccess,
			ExitCode: exitCode,
		}
	}

	message := strings.TrimSpace(transcriptTail)
	if message == "" {
		message = MessageFailed
	}
	return &types.PullOutcome{
		Status:   types.OutcomeFailed,
		Message:  message,
		ExitCode: exitCode,
	}
}

// SpawnFailureOutcome builds the outcome for a subprocess that never started.
func SpawnFailureOutcome(err error) *types.PullOutcome {
	return &types.PullOutcome{
		Status:   types.OutcomeSpawnFailure,
		Message:  fmt.Sprintf("%s: %v", MessageSpawnFailed, err),
		ExitCode: -1,
	}
}

// ExitCodeFor maps an outcome to a CLI exit code.
func ExitCodeFor(outcome *types.PullOutcome) int {
	if outcome == nil {
		return ExitCodeFailed
	}
	switch outcome.Status {
	case types.OutcomeSuccess:
		return ExitCodeSuccess
	case types.OutcomeCanceled:
		return ExitCodeCanceled
	case types.OutcomeSpawnFailure:
		return ExitCodeSpawnFailure
	default:
		return ExitCodeFailed
	}
}
