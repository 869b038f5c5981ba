// Package main provides the dockpull CLI entrypoint.
//
// Usage:
//
//	dockpull <command> [options]
//
// Exit codes for `pull`:
//   - 0: image pulled
//   - 1: docker exited without confirming the pull
//   - 2: docker could not be started, or another pull holds the lock
//   - 3: canceled
//   - 4: invalid configuration or arguments
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/dockpull/cli/cmd"
	"github.com/pithecene-io/dockpull/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:           "dockpull",
		Usage:          "Supervised docker image pulls with stall recovery",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.PullCommand(),
			cmd.ProbeCommand(),
			cmd.HistoryCommand(),
			cmd.MetricsCommand(),
			cmd.StatusCommand(),
			cmd.ReplayCommand(),
			cmd.VersionCommand(commit),
		},
	}
}

// exitErrHandler preserves exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		if msg, ok := exitMessage(exitCoder); ok {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// exitMessage returns the message worth printing for an exit error.
// cli.Exit("", N).Error() yields "exit status N", which is suppressed.
func exitMessage(e cli.ExitCoder) (string, bool) {
	msg := e.Error()
	if msg == "" || msg == fmt.Sprintf("exit status %d", e.ExitCode()) {
		return "", false
	}
	return msg, true
}
