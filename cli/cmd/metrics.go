package cmd

import (
	"errors"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/dockpull/cli/reader"
	"github.com/pithecene-io/dockpull/cli/render"
	"github.com/pithecene-io/dockpull/lode"
)

// MetricsCommand returns the metrics command.
// It prints the metrics snapshot stored with a pull report.
func MetricsCommand() *cli.Command {
	flags := append(ReadOnlyFlags(), StateDirFlag)
	flags = append(flags, storageFlags()...)
	return &cli.Command{
		Name:      "metrics",
		Usage:     "Show the metrics of the latest pull, or of PULL_ID",
		ArgsUsage: "[PULL_ID]",
		Flags:     flags,
		Action:    metricsAction,
	}
}

func metricsAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
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
		return cli.Exit(lode.ErrNoMetricsFound.Error(), 1)
	}

	rec, err := reader.New(ds, nil).Metrics(c.Context, c.Args().First())
	if errors.Is(err, lode.ErrNoMetricsFound) {
		return cli.Exit(err.Error(), 1)
	}
	if err != nil {
		return err
	}
	return r.Render(rec)
}
