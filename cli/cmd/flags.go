// Package cmd provides CLI commands for the dockpull binary.
package cmd

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/dockpull/cli/render"
)

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// ConfigFlag points at a dockpull.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "Path to config file (default: ./dockpull.yaml if present)",
	}

	// StateDirFlag overrides the state directory.
	StateDirFlag = &cli.StringFlag{
		Name:  "state-dir",
		Usage: "Directory holding pull state and the pull lock (default: $XDG_STATE_HOME/dockpull)",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		ConfigFlag,
	}
}

// storageFlags returns the report storage flags shared by pull and history.
func storageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "dataset",
			Usage: "Report dataset ID (default: dockpull)",
		},
		&cli.StringFlag{
			Name:  "storage-backend",
			Usage: "Report storage backend: fs, s3 or memory (default: fs)",
		},
		&cli.StringFlag{
			Name:  "storage-path",
			Usage: "Report storage path (fs: directory, s3: bucket/prefix; default: <state-dir>/reports)",
		},
		&cli.StringFlag{
			Name:  "storage-region",
			Usage: "AWS region for the s3 backend (optional, uses default chain)",
		},
		&cli.StringFlag{
			Name:  "storage-endpoint",
			Usage: "Custom S3 endpoint URL for S3-compatible providers",
		},
		&cli.BoolFlag{
			Name:  "storage-s3-path-style",
			Usage: "Force path-style addressing for the s3 backend",
		},
	}
}

// isStderrTTY reports whether stderr is attached to a terminal.
func isStderrTTY() bool {
	return render.IsTTY(os.Stderr)
}
