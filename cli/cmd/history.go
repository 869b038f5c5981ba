package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/dockpull/cli/reader"
	"github.com/pithecene-io/dockpull/cli/render"
	"github.com/pithecene-io/dockpull/types"
)

// HistoryCommand returns the history command.
// History lists stored pull reports, newest first.
func HistoryCommand() *cli.Command {
	flags := append(ReadOnlyFlags(), StateDirFlag,
		&cli.StringFlag{
			Name:  "image",
			Usage: "Only reports of this image",
		},
		&cli.StringFlag{
			Name:  "outcome",
			Usage: "Only reports with this outcome: success, failed, canceled, spawn_failure",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of reports (0 for all)",
			Value: 20,
		},
	)
	flags = append(flags, storageFlags()...)

	return &cli.Command{
		Name:   "history",
		Usage:  "List past pull reports",
		Flags:  flags,
		Action: historyAction,
	}
}

func historyAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if err := validateOutcomeFilter(c.String("outcome")); err != nil {
		return configError("%v", err)
	}
	if c.Int("limit") < 0 {
		return configError("--limit must be >= 0, got %d", c.Int("limit"))
	}

	stateDir, err := resolveStateDir(c, cfg)
	if err != nil {
		return err
	}
	storage := resolveStorage(c, cfg, stateDir)
	if err := storage.validate(); err != nil {
		return configError("%v", err)
	}

	ds, err := openDataset(c.Context, storage)
	if err != nil {
		return err
	}
	if ds == nil {
		return r.Render([]reader.HistoryItem{})
	}

	items, err := reader.New(ds, nil).History(c.Context, reader.HistoryOptions{
		Image:   c.String("image"),
		Outcome: c.String("outcome"),
		Limit:   c.Int("limit"),
	})
	if err != nil {
		return err
	}
	return r.Render(items)
}

func validateOutcomeFilter(outcome string) error {
	switch types.OutcomeStatus(outcome) {
	case "", types.OutcomeSuccess, types.OutcomeFailed, types.OutcomeCanceled, types.OutcomeSpawnFailure:
		return nil
	default:
		return fmt.Errorf("--outcome must be success, failed, canceled or spawn_failure, got %q", outcome)
	}
}
