package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/dockpull/adapter"
	"github.com/pithecene-io/dockpull/cli/config"
	"github.com/pithecene-io/dockpull/cli/tui"
	"github.com/pithecene-io/dockpull/iox"
	"github.com/pithecene-io/dockpull/ipc"
	"github.com/pithecene-io/dockpull/lode"
	"github.com/pithecene-io/dockpull/log"
	"github.com/pithecene-io/dockpull/metrics"
	"github.com/pithecene-io/dockpull/probe"
	"github.com/pithecene-io/dockpull/progress"
	"github.com/pithecene-io/dockpull/pulllog"
	"github.com/pithecene-io/dockpull/runtime"
	"github.com/pithecene-io/dockpull/state"
	"github.com/pithecene-io/dockpull/types"
	"github.com/pithecene-io/dockpull/watchdog"
)

// Output modes of the pull command.
const (
	emitText   = "text"
	emitFrames = "frames"
	emitNone   = "none"
)

// eventBuffer is the subscriber buffer of CLI consumers.
const eventBuffer = 256

// tuiLogFile receives supervisor logs while the live view owns the terminal.
const tuiLogFile = "pull.log"

// PullCommand returns the pull command.
// This is the only command that executes work.
func PullCommand() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:  "image",
			Usage: "Image reference to pull (default: " + types.DefaultImage + ")",
		},
		&cli.StringFlag{
			Name:  "docker",
			Usage: "Docker binary",
			Value: "docker",
		},
		&cli.BoolFlag{
			Name:  "use-script",
			Usage: "Run docker under script(1) when available so it renders progress",
			Value: true,
		},
		ConfigFlag,
		StateDirFlag,
		&cli.DurationFlag{
			Name:  "grace-period",
			Usage: "Time between SIGTERM and SIGKILL when stopping docker",
			Value: runtime.DefaultGracePeriod,
		},
		&cli.DurationFlag{
			Name:  "watchdog-interval",
			Usage: "Stall check period",
			Value: watchdog.DefaultInterval,
		},
		&cli.DurationFlag{
			Name:  "stall-threshold",
			Usage: "Output silence that triggers a registry probe",
			Value: watchdog.DefaultStallThreshold,
		},
		&cli.StringFlag{
			Name:  "probe-url",
			Usage: "Registry endpoint probed after a stall",
			Value: probe.DefaultURL,
		},
		&cli.DurationFlag{
			Name:  "probe-timeout",
			Usage: "Registry probe timeout",
			Value: probe.DefaultTimeout,
		},
		&cli.IntFlag{
			Name:  "max-lines",
			Usage: "Transcript capacity in lines",
			Value: pulllog.DefaultMaxLines,
		},
		&cli.Float64Flag{
			Name:  "active-weight",
			Usage: "Progress credited to a layer while it downloads or extracts",
			Value: progress.DefaultActiveWeight,
		},
		&cli.Float64Flag{
			Name:  "running-cap",
			Usage: "Progress ceiling until the pull is confirmed",
			Value: progress.DefaultRunningCap,
		},
		&cli.StringFlag{
			Name:  "emit",
			Usage: "Event output: text (transcript lines), frames (msgpack event frames) or none",
			Value: emitText,
		},
		&cli.BoolFlag{
			Name:  "tui",
			Usage: "Show the live pull view",
		},
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress the result summary",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Write a JSON pull report to this path (- for stderr)",
		},
	}
	flags = append(flags, storageFlags()...)
	flags = append(flags, adapterFlags()...)

	return &cli.Command{
		Name:      "pull",
		Usage:     "Pull a docker image under supervision",
		ArgsUsage: "[IMAGE]",
		Flags:     flags,
		Action:    pullAction,
	}
}

// pullSettings holds the resolved pull configuration.
type pullSettings struct {
	image        string
	docker       string
	useScript    bool
	stateDir     string
	gracePeriod  time.Duration
	watchdog     watchdog.Config
	probeURL     string
	probeTimeout time.Duration
	maxLines     int
	weights      progress.Weights
	emit         string
	tui          bool
	quiet        bool
	reportPath   string
	storage      storageChoice
	adapter      adapterChoice
}

// resolvePullSettings merges flags over config over defaults and
// validates the result.
func resolvePullSettings(c *cli.Context, cfg *config.Config) (*pullSettings, error) {
	image := resolveString(c, "image", configVal(cfg, func(c *config.Config) string { return c.Image }))
	if arg := c.Args().First(); arg != "" {
		if c.IsSet("image") && c.String("image") != arg {
			return nil, fmt.Errorf("image given both as argument (%s) and --image (%s)", arg, c.String("image"))
		}
		image = arg
	}
	if c.Args().Len() > 1 {
		return nil, fmt.Errorf("pull takes at most one image argument, got %d", c.Args().Len())
	}
	if image == "" {
		image = types.DefaultImage
	}

	stateDir, err := resolveStateDir(c, cfg)
	if err != nil {
		return nil, err
	}

	progressCfg := configVal(cfg, func(c *config.Config) config.ProgressConfig { return c.Progress })
	s := &pullSettings{
		image:       image,
		docker:      resolveString(c, "docker", configVal(cfg, func(c *config.Config) string { return c.Docker })),
		useScript:   resolveBool(c, "use-script", configVal(cfg, func(c *config.Config) *bool { return c.UseScript })),
		stateDir:    stateDir,
		gracePeriod: resolveDuration(c, "grace-period", configVal(cfg, func(c *config.Config) time.Duration { return c.GracePeriod.Duration })),
		watchdog: watchdog.Config{
			Interval:       resolveDuration(c, "watchdog-interval", configVal(cfg, func(c *config.Config) time.Duration { return c.Watchdog.Interval.Duration })),
			StallThreshold: resolveDuration(c, "stall-threshold", configVal(cfg, func(c *config.Config) time.Duration { return c.Watchdog.StallThreshold.Duration })),
		},
		probeURL:     resolveString(c, "probe-url", configVal(cfg, func(c *config.Config) string { return c.Probe.URL })),
		probeTimeout: resolveDuration(c, "probe-timeout", configVal(cfg, func(c *config.Config) time.Duration { return c.Probe.Timeout.Duration })),
		maxLines:     resolveInt(c, "max-lines", configVal(cfg, func(c *config.Config) int { return c.Transcript.MaxLines })),
		weights: progress.Weights{
			Active:     resolveFloat(c, "active-weight", progressCfg.ActiveWeight),
			RunningCap: resolveFloat(c, "running-cap", progressCfg.RunningCap),
		},
		emit:       c.String("emit"),
		tui:        c.Bool("tui"),
		quiet:      c.Bool("quiet"),
		reportPath: c.String("report"),
		storage:    resolveStorage(c, cfg, stateDir),
	}

	if s.adapter, err = resolveAdapter(c, cfg); err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *pullSettings) validate() error {
	if strings.TrimSpace(s.image) != s.image || strings.ContainsAny(s.image, " \t\n") {
		return fmt.Errorf("invalid image reference %q", s.image)
	}
	switch s.emit {
	case emitText, emitFrames, emitNone:
	default:
		return fmt.Errorf("--emit must be text, frames or none, got %q", s.emit)
	}
	if s.tui && s.emit == emitFrames {
		return errors.New("--tui cannot be combined with --emit frames")
	}
	if s.maxLines <= 0 {
		return fmt.Errorf("--max-lines must be > 0, got %d", s.maxLines)
	}
	if w := s.weights.Active; w <= 0 || w > 1 {
		return fmt.Errorf("--active-weight must be within (0, 1], got %v", w)
	}
	if cp := s.weights.RunningCap; cp <= 0 || cp > 1 {
		return fmt.Errorf("--running-cap must be within (0, 1], got %v", cp)
	}
	if s.probeURL == "" {
		return errors.New("--probe-url must not be empty")
	}
	return s.storage.validate()
}

func pullAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	s, err := resolvePullSettings(c, cfg)
	if err != nil {
		return configError("%v", err)
	}

	store := state.NewStore(s.stateDir)
	lock, err := store.Lock()
	if errors.Is(err, state.ErrLocked) {
		return cli.Exit(fmt.Sprintf("%v (state dir: %s)", err, s.stateDir), runtime.ExitCodeSpawnFailure)
	}
	if err != nil {
		return err
	}
	defer iox.DiscardClose(lock)

	meta := types.NewPullMeta(s.image)
	logOut, closeLog := pullLogOutput(s, c.App.ErrWriter)
	defer closeLog()
	logger := log.NewLoggerWithWriter(meta, logOut)
	defer iox.DiscardErr(logger.Sync)

	collector := metrics.NewCollector(meta.Image, s.storage.backend, meta.PullID)
	prober := probe.NewHTTPProber(s.probeURL, s.probeTimeout)
	defer iox.DiscardClose(prober)

	orch, err := runtime.New(runtime.Config{
		Meta: meta,
		Process: runtime.ProcessConfig{
			Image:     meta.Image,
			Docker:    s.docker,
			UseScript: s.useScript,
		},
		Prober:      prober,
		Watchdog:    s.watchdog,
		GracePeriod: s.gracePeriod,
		MaxLines:    s.maxLines,
		Weights:     s.weights,
		Logger:      logger,
		Collector:   collector,
	})
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	ctx := c.Context
	stopSignals := forwardSignals(orch.Cancel)
	defer stopSignals()

	events := orch.Subscribe(eventBuffer)
	var result *runtime.Result
	if s.tui {
		result, err = runWithTUI(ctx, orch, events, s)
	} else {
		result, err = runStreaming(ctx, orch, events, s.emit, c.App.Writer)
	}
	if err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}
	finishedAt := time.Now()

	rec := &recorder{
		store:     store,
		storage:   s.storage,
		adapter:   s.adapter,
		collector: collector,
		logger:    logger,
	}
	storagePath := rec.record(ctx, result, finishedAt)

	exitCode := runtime.ExitCodeFor(result.Outcome)
	if s.reportPath != "" {
		report := runtime.BuildPullReport(result, collector.Snapshot(), exitCode, storagePath)
		if err := runtime.WritePullReport(report, s.reportPath); err != nil {
			logger.Warn("failed to write pull report file", map[string]any{"error": err.Error()})
		}
	}
	if !s.quiet {
		printPullResult(c.App.ErrWriter, result, storagePath)
	}

	return cli.Exit("", exitCode)
}

// pullLogOutput selects the log destination. The live view owns the
// terminal, so logs then go to <state-dir>/pull.log.
func pullLogOutput(s *pullSettings, errOut io.Writer) (io.Writer, func()) {
	if errOut == nil {
		errOut = os.Stderr
	}
	if !s.tui {
		return errOut, func() {}
	}
	f, err := os.OpenFile(filepath.Join(s.stateDir, tuiLogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return io.Discard, func() {}
	}
	return f, func() { _ = f.Close() }
}

// forwardSignals maps SIGINT and SIGTERM to cancel until the returned stop
// function is called.
func forwardSignals(cancel func()) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-sigCh:
				cancel()
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

// runStreaming runs the pull while writing events to out.
func runStreaming(ctx context.Context, orch *runtime.Orchestrator, events <-chan types.PullEvent, mode string, out io.Writer) (*runtime.Result, error) {
	if out == nil {
		out = os.Stdout
	}
	streamDone := make(chan error, 1)
	go func() {
		streamDone <- streamEvents(events, mode, out)
	}()

	result, err := orch.Run(ctx)
	streamErr := <-streamDone
	if err != nil {
		return nil, err
	}
	if streamErr != nil {
		// The pull outcome stands; a broken output pipe only loses events.
		fmt.Fprintf(os.Stderr, "Warning: event output failed: %v\n", streamErr)
	}
	return result, nil
}

// streamEvents writes events until the channel closes. After a write error
// the remaining events are drained and the first error is returned.
func streamEvents(events <-chan types.PullEvent, mode string, out io.Writer) error {
	var firstErr error
	var enc *ipc.FrameEncoder
	if mode == emitFrames {
		enc = ipc.NewFrameEncoder(out)
	}

	for ev := range events {
		if firstErr != nil {
			continue
		}
		switch mode {
		case emitFrames:
			firstErr = enc.WriteEvent(&ev)
		case emitText:
			if ev.Type == types.EventTypeLine {
				_, firstErr = fmt.Fprintln(out, ev.Line)
			}
		}
	}
	return firstErr
}

// runWithTUI runs the pull in the background while the live view owns
// the terminal.
func runWithTUI(ctx context.Context, orch *runtime.Orchestrator, events <-chan types.PullEvent, s *pullSettings) (*runtime.Result, error) {
	type runResult struct {
		result *runtime.Result
		err    error
	}
	done := make(chan runResult, 1)
	go func() {
		result, err := orch.Run(ctx)
		done <- runResult{result, err}
	}()

	tuiErr := tui.RunPull(ctx, events, orch.Cancel, tui.Options{
		Image:    s.image,
		MaxLines: s.maxLines,
	})
	if tuiErr != nil {
		orch.Cancel()
	}

	r := <-done
	if r.err != nil {
		return nil, r.err
	}
	if tuiErr != nil && !errors.Is(tuiErr, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Warning: live view failed: %v\n", tuiErr)
	}
	return r.result, nil
}

// recorder persists a finished pull: state flag, report dataset and
// completion notification. Failures are logged and never change the
// pull outcome.
type recorder struct {
	store     *state.Store
	storage   storageChoice
	adapter   adapterChoice
	collector *metrics.Collector
	logger    *log.Logger
}

// record persists the result and returns the report storage URI, if any.
func (r *recorder) record(ctx context.Context, result *runtime.Result, finishedAt time.Time) string {
	meta := result.Meta
	outcome := result.Outcome

	if err := r.store.Record(meta.Image, state.ImageState{
		PullOK:  outcome.OK(),
		PullID:  meta.PullID,
		Outcome: string(outcome.Status),
		Message: outcome.Message,
	}); err != nil {
		r.logger.Warn("failed to record pull state", map[string]any{"error": err.Error()})
	}

	storagePath, err := r.writeReport(ctx, result, finishedAt)
	if err != nil {
		r.logger.Warn("failed to write pull report", map[string]any{"error": err.Error()})
	}

	if err := r.publish(ctx, result, finishedAt, storagePath); err != nil {
		r.logger.Warn("failed to publish pull completion", map[string]any{
			"adapter": r.adapter.kind,
			"error":   err.Error(),
		})
	}
	return storagePath
}

func (r *recorder) writeReport(ctx context.Context, result *runtime.Result, finishedAt time.Time) (string, error) {
	client, err := openWriter(ctx, r.storage, lode.Config{
		Dataset: r.storage.dataset,
		Day:     lode.DeriveDay(result.StartedAt),
		PullID:  result.Meta.PullID,
	})
	if err != nil {
		return "", err
	}
	w := lode.NewInstrumentedWriter(client, r.collector)
	defer iox.DiscardClose(w)

	report := newReportRecord(result, finishedAt)
	if err := w.WriteReport(ctx, report); err != nil {
		return "", err
	}
	if err := w.PutFile(ctx, lode.TranscriptFile, "text/plain", []byte(result.Transcript)); err != nil {
		return "", err
	}
	// Metrics go last so the snapshot counts the writes above.
	if err := w.WriteMetrics(ctx, r.collector.Snapshot(), finishedAt); err != nil {
		return "", err
	}
	return buildStoragePath(r.storage, client.StoragePath()), nil
}

func (r *recorder) publish(ctx context.Context, result *runtime.Result, finishedAt time.Time, storagePath string) error {
	a, err := buildAdapter(r.adapter)
	if err != nil || a == nil {
		return err
	}
	defer iox.DiscardClose(a)

	return a.Publish(ctx, newPullCompletedEvent(result, finishedAt, storagePath))
}

// newReportRecord builds the stored report of a pull result.
func newReportRecord(result *runtime.Result, finishedAt time.Time) *lode.ReportRecord {
	report := lode.NewReportRecord(result.Meta, result.Outcome, result.StartedAt, finishedAt)
	report.Ratio = result.Ratio
	report.Generations = result.Generations
	report.Restarts = int64(result.Restarts)
	report.TranscriptLines = countLines(result.Transcript)
	return report
}

// newPullCompletedEvent builds the completion notification of a pull result.
func newPullCompletedEvent(result *runtime.Result, finishedAt time.Time, storagePath string) *adapter.PullCompletedEvent {
	ev := adapter.NewPullCompletedEvent(result.Meta, result.Outcome, finishedAt, result.Duration)
	ev.Ratio = result.Ratio
	ev.Generations = result.Generations
	ev.Restarts = int64(result.Restarts)
	ev.StoragePath = storagePath
	return ev
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

func printPullResult(w io.Writer, result *runtime.Result, storagePath string) {
	if w == nil {
		w = os.Stderr
	}
	fmt.Fprintf(w, "\npull_id=%s, image=%s, outcome=%s, restarts=%d, duration=%s\n",
		result.Meta.PullID,
		result.Meta.Image,
		result.Outcome.Status,
		result.Restarts,
		result.Duration.Round(time.Millisecond),
	)
	fmt.Fprintf(w, "message: %s\n", result.Outcome.Message)
	if storagePath != "" {
		fmt.Fprintf(w, "report:  %s\n", storagePath)
	}
}
