package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/dockpull/cli/reader"
	"github.com/pithecene-io/dockpull/cli/render"
	"github.com/pithecene-io/dockpull/pulllog"
)

// ReplayCommand returns the replay command.
// Replay decodes a file written by `pull --emit frames` and prints the
// rebuilt outcome and transcript.
func ReplayCommand() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "Rebuild a pull from recorded event frames",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			FormatFlag,
			NoColorFlag,
			&cli.IntFlag{
				Name:  "max-lines",
				Usage: "Transcript capacity in lines",
				Value: pulllog.DefaultMaxLines,
			},
			&cli.BoolFlag{
				Name:  "transcript",
				Usage: "Print the transcript after the table summary",
				Value: true,
			},
		},
		Action: replayAction,
	}
}

func replayAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Args().Len() != 1 {
		return configError("replay takes exactly one FILE argument")
	}
	if c.Int("max-lines") <= 0 {
		return configError("--max-lines must be > 0, got %d", c.Int("max-lines"))
	}

	summary, err := reader.Replay(c.Args().First(), c.Int("max-lines"))
	if err != nil {
		return err
	}

	if err := r.Render(summary); err != nil {
		return err
	}
	if r.Format() != render.FormatTable || !c.Bool("transcript") || len(summary.Transcript) == 0 {
		return nil
	}
	fmt.Fprintln(r.Writer())
	for _, line := range summary.Transcript {
		fmt.Fprintln(r.Writer(), line)
	}
	return nil
}
