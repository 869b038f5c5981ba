package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/dockpull/cli/config"
	"github.com/pithecene-io/dockpull/cli/reader"
	"github.com/pithecene-io/dockpull/iox"
	"github.com/pithecene-io/dockpull/ipc"
	"github.com/pithecene-io/dockpull/runtime"
	"github.com/pithecene-io/dockpull/state"
	"github.com/pithecene-io/dockpull/types"
)

func TestReadOnlyFlags_IncludesFormatAndConfig(t *testing.T) {
	names := map[string]bool{}
	for _, f := range ReadOnlyFlags() {
		names[f.Names()[0]] = true
	}
	for _, want := range []string{"format", "no-color", "config"} {
		if !names[want] {
			t.Errorf("ReadOnlyFlags missing --%s", want)
		}
	}
}

func TestIsStderrTTY(_ *testing.T) {
	// Actual TTY behavior depends on the environment.
	_ = isStderrTTY()
}

func newTestCLIContext(t *testing.T, flagValues map[string]string, defaultFlags map[string]string) *cli.Context {
	t.Helper()
	app := cli.NewApp()

	allFlags := make(map[string]string)
	for k, v := range defaultFlags {
		allFlags[k] = v
	}
	for k, v := range flagValues {
		allFlags[k] = v
	}

	var cliFlags []cli.Flag
	for name, val := range allFlags {
		cliFlags = append(cliFlags, &cli.StringFlag{Name: name, Value: val})
	}
	app.Flags = cliFlags

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	for name, val := range allFlags {
		fs.String(name, val, "")
	}
	// Only set the flagValues (not defaults) so c.IsSet works
	for name, val := range flagValues {
		if err := fs.Set(name, val); err != nil {
			t.Fatalf("failed to set flag %s: %v", name, err)
		}
	}

	return cli.NewContext(app, fs, nil)
}

func TestResolveString_CLIWins(t *testing.T) {
	c := newTestCLIContext(t, map[string]string{"image": "cli:1"}, nil)
	if got := resolveString(c, "image", "config:1"); got != "cli:1" {
		t.Errorf("expected CLI to win, got %q", got)
	}
}

func TestResolveString_ConfigFallback(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{"image": ""})
	if got := resolveString(c, "image", "config:1"); got != "config:1" {
		t.Errorf("expected config fallback, got %q", got)
	}
}

func TestResolveString_FlagDefault(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{"docker": "docker"})
	if got := resolveString(c, "docker", ""); got != "docker" {
		t.Errorf("expected flag default, got %q", got)
	}
}

func TestConfigVal_NilConfig(t *testing.T) {
	got := configVal(nil, func(c *config.Config) string { return c.Image })
	if got != "" {
		t.Errorf("expected empty for nil config, got %q", got)
	}
}

func TestResolveInt(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.IntFlag{Name: "max-lines"}}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Int("max-lines", 200, "")
	c := cli.NewContext(app, fs, nil)
	if got := resolveInt(c, "max-lines", 50); got != 50 {
		t.Errorf("expected config fallback 50, got %d", got)
	}

	_ = fs.Set("max-lines", "10")
	if got := resolveInt(c, "max-lines", 50); got != 10 {
		t.Errorf("expected CLI to win with 10, got %d", got)
	}
}

func TestResolveBool_ConfigFalseOverridesDefault(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.BoolFlag{Name: "use-script", Value: true}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Bool("use-script", true, "")
	c := cli.NewContext(app, fs, nil)

	off := false
	if resolveBool(c, "use-script", &off) {
		t.Error("config false should override the flag default")
	}
	if !resolveBool(c, "use-script", nil) {
		t.Error("missing config should keep the flag default")
	}
}

func TestResolveDuration(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.DurationFlag{Name: "stall-threshold"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Duration("stall-threshold", 30*time.Second, "")
	c := cli.NewContext(app, fs, nil)

	if got := resolveDuration(c, "stall-threshold", 10*time.Second); got != 10*time.Second {
		t.Errorf("expected config fallback 10s, got %v", got)
	}
	_ = fs.Set("stall-threshold", "1m")
	if got := resolveDuration(c, "stall-threshold", 10*time.Second); got != time.Minute {
		t.Errorf("expected CLI 1m to win, got %v", got)
	}
}

func TestResolveFloat(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.Float64Flag{Name: "running-cap"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Float64("running-cap", 0.98, "")
	c := cli.NewContext(app, fs, nil)

	cp := 0.9
	if got := resolveFloat(c, "running-cap", &cp); got != 0.9 {
		t.Errorf("expected config fallback 0.9, got %v", got)
	}
	if got := resolveFloat(c, "running-cap", nil); got != 0.98 {
		t.Errorf("expected flag default 0.98, got %v", got)
	}
}

func TestStorageChoice_Validate(t *testing.T) {
	tests := []struct {
		name        string
		choice      storageChoice
		errContains string
	}{
		{"fs with path", storageChoice{backend: "fs", path: "/tmp/x"}, ""},
		{"fs without path", storageChoice{backend: "fs"}, "--storage-path is required"},
		{"s3 with bucket", storageChoice{backend: "s3", path: "bucket/prefix"}, ""},
		{"s3 without path", storageChoice{backend: "s3"}, "bucket/prefix"},
		{"s3 empty bucket", storageChoice{backend: "s3", path: "/prefix"}, "empty bucket"},
		{"memory", storageChoice{backend: "memory"}, ""},
		{"unknown", storageChoice{backend: "gcs"}, "--storage-backend must be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.choice.validate()
			if tt.errContains == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error = %v, want containing %q", err, tt.errContains)
			}
		})
	}
}

func TestBuildStoragePath(t *testing.T) {
	rel := "datasets/dockpull/partitions/day=2026-10-19/pull_id=p"

	fsPath := buildStoragePath(storageChoice{backend: "fs", path: "/var/lib/dockpull"}, rel)
	if fsPath != "file:///var/lib/dockpull/"+rel {
		t.Errorf("fs path = %q", fsPath)
	}

	s3Path := buildStoragePath(storageChoice{backend: "s3", path: "bucket/reports/"}, rel)
	if s3Path != "s3://bucket/reports/"+rel {
		t.Errorf("s3 path = %q", s3Path)
	}

	bucketOnly := buildStoragePath(storageChoice{backend: "s3", path: "bucket"}, rel)
	if bucketOnly != "s3://bucket/"+rel {
		t.Errorf("s3 bucket-only path = %q", bucketOnly)
	}

	if got := buildStoragePath(storageChoice{backend: "memory"}, rel); got != "" {
		t.Errorf("memory path = %q, want empty", got)
	}
}

func TestAdapterChoice_Validate(t *testing.T) {
	tests := []struct {
		name    string
		choice  adapterChoice
		wantErr bool
	}{
		{"none", adapterChoice{}, false},
		{"webhook", adapterChoice{kind: "webhook", url: "http://localhost"}, false},
		{"webhook without url", adapterChoice{kind: "webhook"}, true},
		{"redis negative retries", adapterChoice{kind: "redis", url: "redis://localhost", retries: -1}, true},
		{"unknown", adapterChoice{kind: "kafka", url: "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.choice.validate(); (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBuildAdapter_None(t *testing.T) {
	a, err := buildAdapter(adapterChoice{})
	if err != nil || a != nil {
		t.Errorf("buildAdapter() = %v, %v; want nil, nil", a, err)
	}
}

func TestStreamEvents_Frames(t *testing.T) {
	events := make(chan types.PullEvent, 3)
	events <- types.PullEvent{Seq: 1, Type: types.EventTypeLine, Line: "abc: Pull complete"}
	events <- types.PullEvent{Seq: 2, Type: types.EventTypeProgress, Ratio: 0.5}
	events <- types.PullEvent{Seq: 3, Type: types.EventTypeFinished, OK: true, Message: "done"}
	close(events)

	var buf bytes.Buffer
	if err := streamEvents(events, emitFrames, &buf); err != nil {
		t.Fatalf("streamEvents: %v", err)
	}

	got, err := reader.ReadEvents(&buf)
	if err != nil {
		t.Fatalf("ReadEvents: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	if got[2].Type != types.EventTypeFinished || !got[2].OK {
		t.Errorf("last event = %+v", got[2])
	}
}

func TestStreamEvents_TextWritesLinesOnly(t *testing.T) {
	events := make(chan types.PullEvent, 3)
	events <- types.PullEvent{Type: types.EventTypeStatus, Status: "Pulling Docker image..."}
	events <- types.PullEvent{Type: types.EventTypeLine, Line: "one"}
	events <- types.PullEvent{Type: types.EventTypeLine, Line: "two"}
	close(events)

	var buf bytes.Buffer
	if err := streamEvents(events, emitText, &buf); err != nil {
		t.Fatalf("streamEvents: %v", err)
	}
	if buf.String() != "one\ntwo\n" {
		t.Errorf("output = %q", buf.String())
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestStreamEvents_DrainsAfterWriteError(t *testing.T) {
	events := make(chan types.PullEvent, 2)
	events <- types.PullEvent{Type: types.EventTypeLine, Line: "one"}
	events <- types.PullEvent{Type: types.EventTypeLine, Line: "two"}
	close(events)

	if err := streamEvents(events, emitText, failingWriter{}); err == nil {
		t.Fatal("expected write error")
	}
	if _, ok := <-events; ok {
		t.Error("channel should be drained")
	}
}

func TestCountLines(t *testing.T) {
	if got := countLines(""); got != 0 {
		t.Errorf("countLines(\"\") = %d", got)
	}
	if got := countLines("a\nb\nc"); got != 3 {
		t.Errorf("countLines = %d, want 3", got)
	}
}

// newTestApp wires all commands with ExitErrHandler suppressed so errors are
// returned instead of calling os.Exit.
func newTestApp(out io.Writer) *cli.App {
	app := cli.NewApp()
	app.Writer = out
	app.ErrWriter = io.Discard
	app.Commands = []*cli.Command{
		PullCommand(),
		ProbeCommand(),
		HistoryCommand(),
		MetricsCommand(),
		StatusCommand(),
		ReplayCommand(),
		VersionCommand("test"),
	}
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	if err == nil {
		return 0
	}
	var ec cli.ExitCoder
	if !errors.As(err, &ec) {
		t.Fatalf("error is not an exit coder: %v", err)
	}
	return ec.ExitCode()
}

// writeFakeDocker writes a shell script standing in for the docker binary.
func writeFakeDocker(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docker")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

const successfulDocker = `echo "latest: Pulling from library/busybox"
echo "a1b2c3d4e5f6: Pull complete"
echo "Digest: sha256:0123456789abcdef"
printf 'Status: Downloaded newer image for %s\n' "$2"
`

func TestPullAction_SuccessRecordsStateAndReport(t *testing.T) {
	stateDir := t.TempDir()
	docker := writeFakeDocker(t, successfulDocker)

	var out bytes.Buffer
	err := newTestApp(&out).Run([]string{"dockpull", "pull",
		"--docker", docker,
		"--use-script=false",
		"--state-dir", stateDir,
		"--quiet",
		"busybox:latest",
	})
	if code := exitCode(t, err); code != runtime.ExitCodeSuccess {
		t.Fatalf("exit code = %d, want %d (err %v)", code, runtime.ExitCodeSuccess, err)
	}
	if !strings.Contains(out.String(), "a1b2c3d4e5f6: Pull complete") {
		t.Errorf("transcript lines not streamed, got %q", out.String())
	}

	st, ok, err := state.NewStore(stateDir).Get("busybox:latest")
	if err != nil || !ok {
		t.Fatalf("state not recorded: ok=%v err=%v", ok, err)
	}
	if !st.PullOK || st.Outcome != string(types.OutcomeSuccess) {
		t.Errorf("state = %+v", st)
	}

	out.Reset()
	err = newTestApp(&out).Run([]string{"dockpull", "history", "--state-dir", stateDir, "--format", "json"})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var items []reader.HistoryItem
	if err := json.Unmarshal(out.Bytes(), &items); err != nil {
		t.Fatalf("decode history %q: %v", out.String(), err)
	}
	if len(items) != 1 || items[0].Image != "busybox:latest" || items[0].PullID != st.PullID {
		t.Errorf("history = %+v", items)
	}
}

func TestPullAction_FailedDockerExitsOne(t *testing.T) {
	stateDir := t.TempDir()
	reportPath := filepath.Join(t.TempDir(), "report.json")
	docker := writeFakeDocker(t, "echo \"Error response from daemon: manifest unknown\"\nexit 1\n")

	err := newTestApp(io.Discard).Run([]string{"dockpull", "pull",
		"--docker", docker,
		"--use-script=false",
		"--state-dir", stateDir,
		"--emit", "none",
		"--storage-backend", "memory",
		"--report", reportPath,
		"--quiet",
		"busybox:missing",
	})
	if code := exitCode(t, err); code != runtime.ExitCodeFailed {
		t.Fatalf("exit code = %d, want %d", code, runtime.ExitCodeFailed)
	}

	st, ok, err := state.NewStore(stateDir).Get("busybox:missing")
	if err != nil || !ok {
		t.Fatalf("state not recorded: ok=%v err=%v", ok, err)
	}
	if st.PullOK {
		t.Error("failed pull must record pull_ok=false")
	}
	if !strings.Contains(st.Message, "manifest unknown") {
		t.Errorf("message = %q, want the docker diagnostic", st.Message)
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("report file: %v", err)
	}
	var report runtime.PullReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Outcome != types.OutcomeFailed || report.ExitCode != runtime.ExitCodeFailed || report.DockerExit != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestPullAction_SpawnFailure(t *testing.T) {
	err := newTestApp(io.Discard).Run([]string{"dockpull", "pull",
		"--docker", filepath.Join(t.TempDir(), "no-such-docker"),
		"--use-script=false",
		"--state-dir", t.TempDir(),
		"--storage-backend", "memory",
		"--quiet",
	})
	if code := exitCode(t, err); code != runtime.ExitCodeSpawnFailure {
		t.Fatalf("exit code = %d, want %d", code, runtime.ExitCodeSpawnFailure)
	}
}

func TestPullAction_LockHeld(t *testing.T) {
	stateDir := t.TempDir()
	lock, err := state.NewStore(stateDir).Lock()
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	t.Cleanup(iox.CloseFunc(lock))

	err = newTestApp(io.Discard).Run([]string{"dockpull", "pull",
		"--docker", writeFakeDocker(t, successfulDocker),
		"--use-script=false",
		"--state-dir", stateDir,
	})
	if code := exitCode(t, err); code != runtime.ExitCodeSpawnFailure {
		t.Fatalf("exit code = %d, want %d", code, runtime.ExitCodeSpawnFailure)
	}
	if !strings.Contains(err.Error(), "another pull is in progress") {
		t.Errorf("error = %v", err)
	}
}

func TestPullAction_ConfigErrors(t *testing.T) {
	dir := t.TempDir()
	badConfig := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(badConfig, []byte("storage:\n  backend: gcs\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		args        []string
		errContains string
	}{
		{"missing config file", []string{"--config", filepath.Join(dir, "missing.yaml")}, "config file not found"},
		{"invalid config file", []string{"--config", badConfig}, "storage.backend"},
		{"bad emit mode", []string{"--emit", "xml"}, "--emit must be"},
		{"tui with frames", []string{"--tui", "--emit", "frames"}, "cannot be combined"},
		{"bad running cap", []string{"--running-cap", "1.5"}, "--running-cap"},
		{"zero active weight", []string{"--active-weight", "0"}, "--active-weight must be within (0, 1]"},
		{"adapter without url", []string{"--adapter", "webhook"}, "--adapter-url is required"},
		{"bad adapter header", []string{"--adapter", "webhook", "--adapter-url", "http://x", "--adapter-header", "nokey"}, "Key=Value"},
		{"two images", []string{"a:1", "b:2"}, "at most one image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"dockpull", "pull", "--state-dir", dir}, tt.args...)
			err := newTestApp(io.Discard).Run(args)
			if code := exitCode(t, err); code != runtime.ExitCodeConfigError {
				t.Fatalf("exit code = %d, want %d (err %v)", code, runtime.ExitCodeConfigError, err)
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error %q should contain %q", err.Error(), tt.errContains)
			}
		})
	}
}

func TestPullAction_ConfigFileProvidesDefaults(t *testing.T) {
	dir := t.TempDir()
	stateDir := filepath.Join(dir, "state")
	docker := writeFakeDocker(t, successfulDocker)
	configPath := filepath.Join(dir, "dockpull.yaml")
	content := "image: alpine:3\ndocker: " + docker + "\nuse_script: false\nstate_dir: " + stateDir + "\nstorage:\n  backend: memory\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	err := newTestApp(io.Discard).Run([]string{"dockpull", "pull", "--config", configPath, "--quiet"})
	if code := exitCode(t, err); code != runtime.ExitCodeSuccess {
		t.Fatalf("exit code = %d (err %v)", code, err)
	}
	if _, ok, _ := state.NewStore(stateDir).Get("alpine:3"); !ok {
		t.Error("config image and state_dir should be used")
	}
}

func TestPullAction_EmitFramesReplays(t *testing.T) {
	stateDir := t.TempDir()
	var frames bytes.Buffer
	err := newTestApp(&frames).Run([]string{"dockpull", "pull",
		"--docker", writeFakeDocker(t, successfulDocker),
		"--use-script=false",
		"--state-dir", stateDir,
		"--storage-backend", "memory",
		"--emit", "frames",
		"--quiet",
		"busybox:latest",
	})
	if code := exitCode(t, err); code != 0 {
		t.Fatalf("exit code = %d (err %v)", code, err)
	}

	path := filepath.Join(t.TempDir(), "pull.frames")
	if err := os.WriteFile(path, frames.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := newTestApp(&out).Run([]string{"dockpull", "replay", "--format", "json", path}); err != nil {
		t.Fatalf("replay: %v", err)
	}
	var summary reader.ReplaySummary
	if err := json.Unmarshal(out.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary %q: %v", out.String(), err)
	}
	if !summary.Finished || !summary.OK || summary.Ratio != 1.0 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Truncated {
		t.Error("complete frame stream reported as truncated")
	}
}

func TestReplayAction_RequiresFile(t *testing.T) {
	err := newTestApp(io.Discard).Run([]string{"dockpull", "replay"})
	if code := exitCode(t, err); code != runtime.ExitCodeConfigError {
		t.Fatalf("exit code = %d, want %d", code, runtime.ExitCodeConfigError)
	}
}

func TestReplayAction_TableIncludesTranscript(t *testing.T) {
	var buf bytes.Buffer
	enc := ipc.NewFrameEncoder(&buf)
	for _, ev := range []types.PullEvent{
		{Seq: 1, Type: types.EventTypeLine, Line: "abc: Pull complete"},
		{Seq: 2, Type: types.EventTypeFinished, OK: true, Message: "Docker image pulled successfully."},
	} {
		if err := enc.WriteEvent(&ev); err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(t.TempDir(), "pull.frames")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := newTestApp(&out).Run([]string{"dockpull", "replay", "--format", "table", "--no-color", path}); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !strings.Contains(out.String(), "abc: Pull complete") {
		t.Errorf("table output should end with the transcript, got %q", out.String())
	}
}

func TestStatusAction(t *testing.T) {
	stateDir := t.TempDir()
	store := state.NewStore(stateDir)
	if err := store.Record("a:1", state.ImageState{PullOK: true, Outcome: "success"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Record("b:1", state.ImageState{Outcome: "failed"}); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := newTestApp(&out).Run([]string{"dockpull", "status", "--state-dir", stateDir, "--format", "json", "b:1"}); err != nil {
		t.Fatalf("status: %v", err)
	}
	var items []reader.StatusItem
	if err := json.Unmarshal(out.Bytes(), &items); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if len(items) != 1 || items[0].Image != "b:1" || items[0].PullOK {
		t.Errorf("status = %+v", items)
	}
}

func TestHistoryAction_EmptyStorage(t *testing.T) {
	var out bytes.Buffer
	err := newTestApp(&out).Run([]string{"dockpull", "history", "--state-dir", t.TempDir(), "--format", "json"})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if strings.TrimSpace(out.String()) != "[]" {
		t.Errorf("output = %q, want []", out.String())
	}
}

func TestHistoryAction_InvalidOutcome(t *testing.T) {
	err := newTestApp(io.Discard).Run([]string{"dockpull", "history", "--state-dir", t.TempDir(), "--outcome", "maybe"})
	if code := exitCode(t, err); code != runtime.ExitCodeConfigError {
		t.Fatalf("exit code = %d, want %d", code, runtime.ExitCodeConfigError)
	}
}

func TestProbeAction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var out bytes.Buffer
	if err := newTestApp(&out).Run([]string{"dockpull", "probe", "--format", "json", "--probe-url", srv.URL}); err != nil {
		t.Fatalf("probe: %v", err)
	}
	var resp ProbeResponse
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", out.String(), err)
	}
	if !resp.Reachable || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %+v", resp)
	}
}

func TestProbeAction_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	var out bytes.Buffer
	err := newTestApp(&out).Run([]string{"dockpull", "probe", "--format", "json", "--probe-url", url, "--probe-timeout", "1s"})
	if code := exitCode(t, err); code != runtime.ExitCodeFailed {
		t.Fatalf("exit code = %d, want %d", code, runtime.ExitCodeFailed)
	}
	if !strings.Contains(out.String(), `"reachable": false`) {
		t.Errorf("output = %q", out.String())
	}
}

func TestVersionAction(t *testing.T) {
	var out bytes.Buffer
	if err := newTestApp(&out).Run([]string{"dockpull", "version", "--format", "json"}); err != nil {
		t.Fatalf("version: %v", err)
	}
	var resp VersionResponse
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Version != types.Version || resp.Commit != "test" {
		t.Errorf("version = %+v", resp)
	}
}
