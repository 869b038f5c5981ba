package cmd

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/dockpull/cli/config"
	"github.com/pithecene-io/dockpull/cli/render"
	"github.com/pithecene-io/dockpull/iox"
	"github.com/pithecene-io/dockpull/probe"
	"github.com/pithecene-io/dockpull/runtime"
)

// ProbeResponse is the response for the probe command.
type ProbeResponse struct {
	URL        string `json:"url" yaml:"url"`
	Reachable  bool   `json:"reachable" yaml:"reachable"`
	StatusCode int    `json:"status_code" yaml:"status_code"`
	ElapsedMs  int64  `json:"elapsed_ms" yaml:"elapsed_ms"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ProbeCommand returns the probe command.
// It runs one registry reachability check, exiting 1 when unreachable.
func ProbeCommand() *cli.Command {
	flags := append(ReadOnlyFlags(),
		&cli.StringFlag{
			Name:  "probe-url",
			Usage: "Registry endpoint to probe",
			Value: probe.DefaultURL,
		},
		&cli.DurationFlag{
			Name:  "probe-timeout",
			Usage: "Probe timeout",
			Value: probe.DefaultTimeout,
		},
	)
	return &cli.Command{
		Name:   "probe",
		Usage:  "Check whether the registry is reachable",
		Flags:  flags,
		Action: probeAction,
	}
}

func probeAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	url := resolveString(c, "probe-url", configVal(cfg, func(c *config.Config) string { return c.Probe.URL }))
	timeout := resolveDuration(c, "probe-timeout", configVal(cfg, func(c *config.Config) time.Duration { return c.Probe.Timeout.Duration }))
	if url == "" {
		return configError("--probe-url must not be empty")
	}

	p := probe.NewHTTPProber(url, timeout)
	defer iox.DiscardClose(p)

	resp := newProbeResponse(url, p.Probe(c.Context))
	if err := r.Render(resp); err != nil {
		return err
	}
	if !resp.Reachable {
		return cli.Exit("", runtime.ExitCodeFailed)
	}
	return nil
}

func newProbeResponse(url string, res probe.Result) ProbeResponse {
	resp := ProbeResponse{
		URL:        url,
		Reachable:  res.Reachable,
		StatusCode: res.StatusCode,
		ElapsedMs:  res.Elapsed.Milliseconds(),
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	return resp
}
