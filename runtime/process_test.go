package runtime

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestBuildCommand(t *testing.T) {
	found := func(string) (string, error) { return "/usr/bin/script", nil }
	missing := func(string) (string, error) { return "", errors.New("not found") }

	tests := []struct {
		name     string
		config   ProcessConfig
		lookPath func(string) (string, error)
		wantName string
		wantArgs []string
	}{
		{
			name:     "plain docker",
			config:   ProcessConfig{Image: "rjaat/aibox-prod:latest"},
			lookPath: found,
			wantName: "docker",
			wantArgs: []string{"pull", "rjaat/aibox-prod:latest"},
		},
		{
			name:     "script wrapper",
			config:   ProcessConfig{Image: "rjaat/aibox-prod:latest", UseScript: true},
			lookPath: found,
			wantName: "/usr/bin/script",
			wantArgs: []string{"-q", "-e", "-c", "docker pull rjaat/aibox-prod:latest", "/dev/null"},
		},
		{
			name:     "script missing falls back",
			config:   ProcessConfig{Image: "busybox", UseScript: true},
			lookPath: missing,
			wantName: "docker",
			wantArgs: []string{"pull", "busybox"},
		},
		{
			name:     "custom docker binary quoted",
			config:   ProcessConfig{Image: "busybox", Docker: "/opt/my docker/docker", UseScript: true},
			lookPath: found,
			wantName: "/usr/bin/script",
			wantArgs: []string{"-q", "-e", "-c", "'/opt/my docker/docker' pull busybox", "/dev/null"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, args := BuildCommand(&tt.config, tt.lookPath)
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
			if !slices.Equal(args, tt.wantArgs) {
				t.Errorf("args = %q, want %q", args, tt.wantArgs)
			}
		})
	}
}

func TestEnviron_TerminalHints(t *testing.T) {
	t.Setenv("TERM", "dumb")

	env := Environ(&ProcessConfig{Env: []string{"COLUMNS=200", "DOCKER_CONFIG=/tmp/cfg"}})

	get := func(key string) []string {
		var values []string
		for _, entry := range env {
			if k, v, _ := strings.Cut(entry, "="); k == key {
				values = append(values, v)
			}
		}
		return values
	}

	if got := get("TERM"); !slices.Equal(got, []string{"xterm-256color"}) {
		t.Errorf("TERM = %q, want [xterm-256color]", got)
	}
	if got := get("COLUMNS"); !slices.Equal(got, []string{"200"}) {
		t.Errorf("COLUMNS = %q, want [200] (config.Env wins)", got)
	}
	if got := get("DOCKER_CONFIG"); !slices.Equal(got, []string{"/tmp/cfg"}) {
		t.Errorf("DOCKER_CONFIG = %q, want [/tmp/cfg]", got)
	}
}

func TestDeduplicateEnv(t *testing.T) {
	got := deduplicateEnv([]string{"A=1", "B=2", "A=3", "C=4", "B=5"})
	want := []string{"A=3", "C=4", "B=5"}
	if !slices.Equal(got, want) {
		t.Errorf("deduplicateEnv = %q, want %q", got, want)
	}
}

// writeFakeDocker writes an executable shell script standing in for docker.
func writeFakeDocker(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docker")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestPullProcess_MergedOutputAndExitCode(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	docker := writeFakeDocker(t, `echo "pulling $2"
echo "to stderr" 1>&2
exit 3
`)

	proc := NewPullProcess(&ProcessConfig{Image: "busybox", Docker: docker})
	if err := proc.Start(t.Context()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	out, err := io.ReadAll(proc.Output())
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	result, err := proc.Wait()
	if err != nil {
		t.Fatalf("Wait failed: %v", err)
	}

	if !strings.Contains(string(out), "pulling busybox") {
		t.Errorf("output %q missing stdout line", out)
	}
	if !strings.Contains(string(out), "to stderr") {
		t.Errorf("output %q missing stderr line", out)
	}
	if result.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", result.ExitCode)
	}
}

func TestPullProcess_TerminateEscalates(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	// Ignores SIGTERM so only SIGKILL ends it.
	docker := writeFakeDocker(t, `trap '' TERM
echo ready
while :; do sleep 1; done
`)

	proc := NewPullProcess(&ProcessConfig{Image: "busybox", Docker: docker})
	if err := proc.Start(t.Context()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	done := make(chan *ProcessResult, 1)
	go func() {
		_, _ = io.Copy(io.Discard, proc.Output())
		res, _ := proc.Wait()
		done <- res
	}()

	start := time.Now()
	if err := proc.Terminate(200 * time.Millisecond); err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Terminate blocked %v, want about the grace period", elapsed)
	}

	select {
	case res := <-done:
		if res == nil || res.ExitCode != -1 {
			t.Errorf("result = %+v, want ExitCode -1 (signaled)", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after SIGKILL")
	}
}

func TestPullProcess_StartFailure(t *testing.T) {
	proc := NewPullProcess(&ProcessConfig{Image: "busybox", Docker: filepath.Join(t.TempDir(), "missing")})
	if err := proc.Start(t.Context()); err == nil {
		t.Fatal("Start succeeded for a missing binary")
	}
	if err := proc.Terminate(time.Millisecond); err != nil {
		t.Errorf("Terminate on unstarted process = %v, want nil", err)
	}
}
