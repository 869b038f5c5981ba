package runtime

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/pithecene-io/dockpull/log"
	"github.com/pithecene-io/dockpull/metrics"
	"github.com/pithecene-io/dockpull/probe"
	"github.com/pithecene-io/dockpull/progress"
	"github.com/pithecene-io/dockpull/pulllog"
	"github.com/pithecene-io/dockpull/types"
	"github.com/pithecene-io/dockpull/watchdog"
)

// ErrAlreadyRunning is returned by Run while another pull is active.
var ErrAlreadyRunning = errors.New("pull already running")

// Status texts published while a pull is in progress.
const (
	StatusAuthenticating     = "Waiting for authentication..."
	StatusPulling            = "Pulling Docker image..."
	StatusNetworkUnavailable = "Network unavailable. Waiting to resume pull..."
	StatusCanceling          = "Canceling Docker pull..."
)

// Transcript notes injected by the supervisor.
const (
	PlaceholderTranscript  = "Waiting for docker output..."
	NoteNetworkUnavailable = "Network unavailable. Waiting to resume..."
	NoteNetworkRestored    = "Network restored. Retrying docker pull..."
)

const (
	readBufferSize = 32 * 1024
	// pumpBuffer absorbs output while the loop is blocked terminating a
	// subprocess.
	pumpBuffer = 64
)

// Config configures an Orchestrator.
type Config struct {
	// Meta is the pull identity. Required.
	Meta *types.PullMeta
	// Process configures the docker subprocess. Image defaults to Meta.Image.
	Process ProcessConfig
	// ProcessFactory overrides subprocess creation (for testing).
	// If nil, uses NewPullProcess.
	ProcessFactory ProcessFactory
	// Prober checks registry reachability after a stall.
	// If nil, uses probe.NewHTTPProber with defaults.
	Prober probe.Prober
	// Clock drives the watchdog. If nil, uses the wall clock.
	Clock clock.Clock
	// Watchdog configures stall detection.
	Watchdog watchdog.Config
	// GracePeriod bounds SIGTERM before SIGKILL. Defaults to DefaultGracePeriod.
	GracePeriod time.Duration
	// MaxLines caps the transcript. Defaults to pulllog.DefaultMaxLines.
	MaxLines int
	// Weights configures the progress ratio.
	Weights progress.Weights
	// Logger receives supervisor logs. If nil, logs go to stderr.
	Logger *log.Logger
	// Collector is the metrics collector for this pull.
	// If nil, no metrics are recorded (all Collector methods are nil-safe).
	Collector *metrics.Collector
}

// Snapshot is a point-in-time copy of the observable pull state.
type Snapshot struct {
	Transcript string
	Ratio      float64
	Active     bool
	Status     string
	Generation int64
	// Outcome is set once the pull has finished.
	Outcome *types.PullOutcome
}

// Result represents the result of a pull.
type Result struct {
	// Meta is the pull identity.
	Meta *types.PullMeta
	// Outcome is the final outcome.
	Outcome *types.PullOutcome
	// StartedAt is when Run began.
	StartedAt time.Time
	// Duration is the total pull duration including restarts.
	Duration time.Duration
	// Generations is the number of subprocesses spawned.
	Generations int64
	// Restarts is the number of probe-gated restarts.
	Restarts int
	// Ratio is the final published ratio.
	Ratio float64
	// Transcript is the final transcript.
	Transcript string
}

// Orchestrator supervises one docker pull at a time.
//
// All pull state is owned by a single loop goroutine inside Run. Output
// pumps, the watchdog ticker and probes only send it messages. Callers
// observe the pull through Snapshot and Subscribe and control it through
// Run and Cancel.
type Orchestrator struct {
	config Config
	clock  clock.Clock
	logger *log.Logger

	running atomic.Bool

	mu          sync.Mutex
	snap        Snapshot
	seq         int64
	subscribers []chan types.PullEvent
	cancelCh    chan struct{}
}

// New creates an orchestrator.
// Returns error if pull metadata is invalid.
func New(config Config) (*Orchestrator, error) {
	if config.Meta == nil {
		return nil, errors.New("pull metadata is required")
	}
	if err := config.Meta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pull metadata: %w", err)
	}
	if config.Process.Image == "" {
		config.Process.Image = config.Meta.Image
	}
	if config.ProcessFactory == nil {
		config.ProcessFactory = NewPullProcess
	}
	if config.Prober == nil {
		config.Prober = probe.NewHTTPProber(probe.DefaultURL, probe.DefaultTimeout)
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	if config.GracePeriod <= 0 {
		config.GracePeriod = DefaultGracePeriod
	}
	if config.Logger == nil {
		config.Logger = log.NewLogger(config.Meta)
	}

	return &Orchestrator{
		config: config,
		clock:  config.Clock,
		logger: config.Logger,
	}, nil
}

// Meta returns the pull identity.
func (o *Orchestrator) Meta() *types.PullMeta {
	return o.config.Meta
}

// Snapshot returns a copy of the current observable state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snap
}

// Subscribe returns a channel receiving events of the current or next pull.
// The channel is closed when that pull finishes. Non-terminal events are
// dropped when the buffer is full; the finished event is always delivered,
// evicting the oldest buffered event if necessary.
func (o *Orchestrator) Subscribe(buffer int) <-chan types.PullEvent {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan types.PullEvent, buffer)
	o.mu.Lock()
	o.subscribers = append(o.subscribers, ch)
	o.mu.Unlock()
	return ch
}

// Cancel requests cancellation of the active pull.
// It is a no-op when no pull is running.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	ch := o.cancelCh
	o.mu.Unlock()
	if ch == nil {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Run executes a pull end-to-end and blocks until it finishes.
// Canceling ctx has the same effect as Cancel.
//
// Failures of the pull itself are reported in Result.Outcome, not as an
// error. The error is non-nil only when the pull could not be attempted.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer o.running.Store(false)

	s := o.newSession(ctx)

	o.mu.Lock()
	o.cancelCh = s.cancelCh
	o.snap = Snapshot{}
	o.mu.Unlock()

	defer func() {
		close(s.done)
		s.probeCancel()
		o.mu.Lock()
		o.cancelCh = nil
		for _, ch := range o.subscribers {
			close(ch)
		}
		o.subscribers = nil
		o.mu.Unlock()
	}()

	s.begin()
	s.loop()

	return s.result(), nil
}

// pumpMsg carries subprocess output or exit, tagged with its generation.
type pumpMsg struct {
	gen    int64
	chunk  []byte
	exit   bool
	result *ProcessResult
	err    error
}

// probeMsg carries a probe result, tagged with the generation that launched it.
type probeMsg struct {
	gen    int64
	result probe.Result
}

// session is the loop-owned state of one Run.
type session struct {
	o         *Orchestrator
	config    *Config
	clock     clock.Clock
	collector *metrics.Collector
	ctx       context.Context

	gen   int64
	live  atomic.Int64
	proc  Process
	alive bool

	normalizer *pulllog.Normalizer
	identifier *pulllog.Identifier
	transcript *pulllog.Transcript
	tracker    *progress.Tracker
	watchdog   *watchdog.Watchdog
	ticker     *clock.Ticker

	placeholder     bool
	sawStatusMarker bool
	canceled        bool
	awaitingNetwork bool
	published       float64
	status          string
	active          bool
	restarts        int
	startedAt       time.Time
	outcome         *types.PullOutcome

	pumpCh      chan pumpMsg
	probeCh     chan probeMsg
	cancelCh    chan struct{}
	done        chan struct{}
	probeCtx    context.Context
	probeCancel context.CancelFunc
}

func (o *Orchestrator) newSession(ctx context.Context) *session {
	probeCtx, probeCancel := context.WithCancel(context.WithoutCancel(ctx))
	return &session{
		o:           o,
		config:      &o.config,
		clock:       o.clock,
		collector:   o.config.Collector,
		ctx:         ctx,
		normalizer:  pulllog.NewNormalizer(),
		identifier:  pulllog.NewIdentifier(),
		transcript:  pulllog.NewTranscript(o.config.MaxLines),
		tracker:     progress.NewTracker(o.config.Weights),
		watchdog:    watchdog.New(o.config.Watchdog),
		pumpCh:      make(chan pumpMsg, pumpBuffer),
		probeCh:     make(chan probeMsg, 1),
		cancelCh:    make(chan struct{}, 1),
		done:        make(chan struct{}),
		probeCtx:    probeCtx,
		probeCancel: probeCancel,
	}
}

func (s *session) log() *log.Logger {
	return s.o.logger.WithGeneration(s.gen)
}

// begin resets the observable state and spawns the first subprocess.
func (s *session) begin() {
	s.startedAt = s.clock.Now()
	s.collector.IncPullStarted()
	s.log().Info("starting pull", map[string]any{
		"use_script": s.config.Process.UseScript,
	})

	s.placeholder = true
	s.forceRatio(0)
	s.setStatus(StatusAuthenticating)

	if s.ctx.Err() != nil {
		s.canceled = true
		s.finish(DetermineOutcome(true, false, -1, ""))
		return
	}
	if err := s.spawn(); err != nil {
		s.finish(SpawnFailureOutcome(err))
	}
}

// loop dispatches messages until the pull has an outcome.
func (s *session) loop() {
	ctxDone := s.ctx.Done()
	for s.outcome == nil {
		select {
		case msg := <-s.pumpCh:
			if msg.exit {
				s.handleExit(msg)
			} else {
				s.handleOutput(msg)
			}
		case msg := <-s.probeCh:
			s.handleProbe(msg)
		case now := <-s.tickC():
			s.handleTick(now)
		case <-s.cancelCh:
			s.cancel()
		case <-ctxDone:
			ctxDone = nil
			s.cancel()
		}
	}
}

func (s *session) tickC() <-chan time.Time {
	if s.ticker == nil {
		return nil
	}
	return s.ticker.C
}

func (s *session) stopTicker() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}

// spawn starts the next generation.
func (s *session) spawn() error {
	gen := s.gen + 1
	proc := s.config.ProcessFactory(&s.config.Process)
	if err := proc.Start(s.ctx); err != nil {
		s.collector.IncSpawnFailure()
		s.log().Error("failed to start docker pull", map[string]any{
			"error": err.Error(),
		})
		return fmt.Errorf("spawn generation %d: %w", gen, err)
	}

	s.gen = gen
	s.live.Store(gen)
	s.proc = proc
	s.alive = true
	s.collector.IncSpawnSuccess()
	s.watchdog.Reset(s.clock.Now())
	if s.ticker == nil {
		s.ticker = s.clock.Ticker(s.watchdog.Interval())
	}

	go s.pump(gen, proc)

	s.log().Info("docker pull started", map[string]any{
		"image": s.config.Process.Image,
	})
	s.setStatus(StatusPulling)
	s.setActive(true)
	return nil
}

// pump forwards output until EOF, then reaps the subprocess.
// Output of a retired generation is read and discarded so the subprocess
// never blocks on a full pipe.
func (s *session) pump(gen int64, proc Process) {
	buf := make([]byte, readBufferSize)
	out := proc.Output()
	for out != nil {
		n, err := out.Read(buf)
		if n > 0 {
			if s.live.Load() != gen {
				s.collector.IncStaleMessage()
			} else {
				select {
				case s.pumpCh <- pumpMsg{gen: gen, chunk: bytes.Clone(buf[:n])}:
				case <-s.done:
				}
			}
		}
		if err != nil {
			break
		}
	}

	result, err := proc.Wait()
	select {
	case s.pumpCh <- pumpMsg{gen: gen, exit: true, result: result, err: err}:
	case <-s.done:
	}
}

func (s *session) discardStale(kind string, gen int64) {
	s.collector.IncStaleMessage()
	s.log().Debug("discarding stale message", map[string]any{
		"kind":           kind,
		"message_gen":    gen,
		"current_gen":    s.gen,
		"generation_gap": s.gen - gen,
	})
}

func (s *session) handleOutput(msg pumpMsg) {
	if msg.gen != s.gen {
		s.discardStale("output", msg.gen)
		return
	}
	s.watchdog.Touch(s.clock.Now())
	for _, line := range s.normalizer.Push(msg.chunk) {
		s.acceptLine(line)
	}
}

// acceptLine runs one logical line through attribution, the transcript
// and the progress tracker.
func (s *session) acceptLine(line string) {
	if strings.HasPrefix(line, "Status:") || strings.HasPrefix(line, "Digest:") {
		s.sawStatusMarker = true
	}

	identified, ok := s.identifier.Identify(line)
	if !ok || !s.transcript.AppendLine(identified) {
		s.collector.IncLineDropped()
		return
	}
	s.collector.IncLineAccepted()
	s.placeholder = false
	s.emit(types.PullEvent{
		Type:   types.EventTypeLine,
		UnitID: identified.UnitID,
		Line:   identified.Text,
	})

	changed := s.tracker.Observe(identified.UnitID, identified.Text)
	s.publishRatio(changed)
}

// appendNote adds a supervisor line that bypasses attribution and progress.
func (s *session) appendNote(text string) {
	if !s.transcript.Append("", text) {
		return
	}
	s.placeholder = false
	s.emit(types.PullEvent{Type: types.EventTypeLine, Line: text})
}

// publishRatio republishes when the tracker changed or the ratio moved.
// Newly discovered units may lower the ratio.
func (s *session) publishRatio(changed bool) {
	ratio := s.tracker.Ratio()
	if !changed && progress.Equal(ratio, s.published) {
		return
	}
	s.published = ratio
	s.emit(types.PullEvent{Type: types.EventTypeProgress, Ratio: ratio})
}

func (s *session) forceRatio(ratio float64) {
	s.published = ratio
	s.emit(types.PullEvent{Type: types.EventTypeProgress, Ratio: ratio})
}

func (s *session) setStatus(status string) {
	if s.status == status {
		return
	}
	s.status = status
	s.emit(types.PullEvent{Type: types.EventTypeStatus, Status: status})
}

func (s *session) setActive(active bool) {
	if s.active == active {
		return
	}
	s.active = active
	s.emit(types.PullEvent{Type: types.EventTypeActive, Active: active})
}

func (s *session) handleTick(now time.Time) {
	decision := s.watchdog.Check(now, s.alive)
	switch decision {
	case watchdog.Stop:
		s.stopTicker()
	case watchdog.Busy:
		s.log().Debug("stall persists, probe in flight", nil)
	case watchdog.Probe:
		s.collector.IncStallDetected()
		s.log().Warn("output stalled, probing registry", map[string]any{
			"silence": s.watchdog.Silence(now).String(),
		})
		s.launchProbe()
	}
}

func (s *session) launchProbe() {
	gen := s.gen
	go func() {
		result := s.config.Prober.Probe(s.probeCtx)
		select {
		case s.probeCh <- probeMsg{gen: gen, result: result}:
		case <-s.done:
		}
	}()
}

func (s *session) handleProbe(msg probeMsg) {
	if msg.gen != s.gen {
		s.discardStale("probe", msg.gen)
		return
	}
	s.watchdog.ProbeDone()
	s.collector.IncProbe(msg.result.Reachable)

	if !msg.result.Reachable {
		fields := map[string]any{"elapsed": msg.result.Elapsed.String()}
		if msg.result.Err != nil {
			fields["error"] = msg.result.Err.Error()
		}
		s.log().Warn("registry unreachable", fields)
		if !s.awaitingNetwork {
			s.appendNote(NoteNetworkUnavailable)
			s.setStatus(StatusNetworkUnavailable)
		}
		s.awaitingNetwork = true
		return
	}

	s.log().Info("registry reachable", map[string]any{
		"status_code": msg.result.StatusCode,
	})
	if s.awaitingNetwork {
		s.appendNote(NoteNetworkRestored)
	}
	s.awaitingNetwork = false
	if s.alive && !s.canceled {
		s.restart()
	}
}

// restart terminates the current generation and spawns the next one.
// The transcript and unit table carry over.
func (s *session) restart() {
	previous := s.gen
	s.live.Store(0)
	if err := s.proc.Terminate(s.config.GracePeriod); err != nil {
		s.log().Warn("terminate failed", map[string]any{"error": err.Error()})
	}
	s.alive = false

	if s.canceled || s.ctx.Err() != nil {
		s.canceled = true
		s.log().Info("pull canceled during restart", map[string]any{
			"previous_generation": previous,
		})
		s.finish(DetermineOutcome(true, false, -1, ""))
		return
	}

	s.restarts++
	s.collector.IncRestart()
	s.normalizer.Reset()
	s.identifier.Reset()

	s.log().Info("restarting docker pull", map[string]any{
		"previous_generation": previous,
		"restarts":            s.restarts,
	})
	if err := s.spawn(); err != nil {
		s.finish(SpawnFailureOutcome(err))
	}
}

func (s *session) cancel() {
	if s.canceled || !s.alive {
		return
	}
	s.canceled = true
	s.setStatus(StatusCanceling)
	s.log().Info("canceling pull", nil)
	if err := s.proc.Terminate(s.config.GracePeriod); err != nil {
		s.log().Warn("terminate failed", map[string]any{"error": err.Error()})
	}
}

func (s *session) handleExit(msg pumpMsg) {
	if msg.gen != s.gen {
		s.discardStale("exit", msg.gen)
		return
	}
	for _, line := range s.normalizer.Flush() {
		s.acceptLine(line)
	}
	s.alive = false
	s.stopTicker()

	exitCode := -1
	switch {
	case msg.err != nil:
		s.log().Warn("wait failed", map[string]any{"error": msg.err.Error()})
	case msg.result != nil:
		exitCode = msg.result.ExitCode
	}

	s.finish(DetermineOutcome(s.canceled, s.sawStatusMarker, exitCode, s.transcript.Tail(diagnosticLines)))
}

// finish publishes the terminal state. It runs exactly once per session.
func (s *session) finish(outcome *types.PullOutcome) {
	s.stopTicker()

	switch outcome.Status {
	case types.OutcomeSuccess:
		s.collector.IncPullSucceeded()
		s.forceRatio(1.0)
	case types.OutcomeCanceled:
		s.collector.IncPullCanceled()
		s.forceRatio(0)
	default:
		s.collector.IncPullFailed()
		s.forceRatio(0)
	}

	if !strings.Contains(s.transcript.String(), outcome.Message) {
		s.appendNote(outcome.Message)
	}
	s.setStatus(outcome.Message)
	s.setActive(false)
	s.outcome = outcome

	s.log().Info("pull finished", map[string]any{
		"status":    string(outcome.Status),
		"exit_code": outcome.ExitCode,
		"restarts":  s.restarts,
		"duration":  s.clock.Since(s.startedAt).String(),
	})
	s.emit(types.PullEvent{
		Type:    types.EventTypeFinished,
		OK:      outcome.OK(),
		Message: outcome.Message,
	})
}

func (s *session) transcriptText() string {
	if s.placeholder && s.transcript.Len() == 0 {
		return PlaceholderTranscript
	}
	return s.transcript.String()
}

// emit refreshes the snapshot and fans the event out to subscribers.
func (s *session) emit(event types.PullEvent) {
	o := s.o
	o.mu.Lock()
	defer o.mu.Unlock()

	o.snap = Snapshot{
		Transcript: s.transcriptText(),
		Ratio:      s.published,
		Active:     s.active,
		Status:     s.status,
		Generation: s.gen,
		Outcome:    s.outcome,
	}

	o.seq++
	event.ContractVersion = types.ContractVersion
	event.PullID = o.config.Meta.PullID
	event.Seq = o.seq
	event.Ts = s.clock.Now().UTC().Format(time.RFC3339Nano)
	event.Generation = s.gen

	for _, ch := range o.subscribers {
		if event.Type.IsTerminal() {
			deliverTerminal(ch, event)
			continue
		}
		select {
		case ch <- event:
		default:
		}
	}
}

// deliverTerminal sends without blocking, evicting buffered events until
// the terminal event fits.
func deliverTerminal(ch chan types.PullEvent, event types.PullEvent) {
	for {
		select {
		case ch <- event:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func (s *session) result() *Result {
	return &Result{
		Meta:        s.config.Meta,
		Outcome:     s.outcome,
		StartedAt:   s.startedAt,
		Duration:    s.clock.Since(s.startedAt),
		Generations: s.gen,
		Restarts:    s.restarts,
		Ratio:       s.published,
		Transcript:  s.transcript.String(),
	}
}
