package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/dockpull/cli/reader"
	"github.com/pithecene-io/dockpull/cli/render"
	"github.com/pithecene-io/dockpull/state"
)

// StatusCommand returns the status command.
// Status prints the recorded pull flag of every image, or of one image.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show the recorded pull state per image",
		ArgsUsage: "[IMAGE]",
		Flags:     append(ReadOnlyFlags(), StateDirFlag),
		Action:    statusAction,
	}
}

func statusAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	if c.Args().Len() > 1 {
		return configError("status takes at most one image argument, got %d", c.Args().Len())
	}

	stateDir, err := resolveStateDir(c, cfg)
	if err != nil {
		return err
	}

	items, err := reader.New(nil, state.NewStore(stateDir)).Status(c.Args().First())
	if err != nil {
		return fmt.Errorf("read state: %w", err)
	}
	return r.Render(items)
}
