package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// DefaultGracePeriod is how long a terminated subprocess may take to exit
// before it is killed.
const DefaultGracePeriod = 2 * time.Second

// ProcessConfig configures the docker pull subprocess.
type ProcessConfig struct {
	// Image is the image reference to pull.
	Image string
	// Docker is the docker binary. Defaults to "docker".
	Docker string
	// UseScript runs docker under script(1) when it is on PATH, so docker
	// believes it writes to a terminal and emits progress redraws.
	UseScript bool
	// Env holds extra KEY=VALUE entries appended to the inherited environment.
	Env []string
}

// ProcessResult represents the result of a finished subprocess.
type ProcessResult struct {
	// ExitCode is the process exit code, -1 when killed by a signal.
	ExitCode int
}

// Process abstracts subprocess lifecycle for testing.
type Process interface {
	// Start spawns the subprocess.
	Start(ctx context.Context) error
	// Output returns the merged stdout/stderr stream.
	Output() io.Reader
	// Wait blocks until exit. Must be called after Output reached EOF.
	Wait() (*ProcessResult, error)
	// Terminate sends SIGTERM, then SIGKILL if the process is still alive
	// after grace. It blocks for at most grace.
	Terminate(grace time.Duration) error
}

// ProcessFactory creates a Process. Used for test injection.
type ProcessFactory func(config *ProcessConfig) Process

// PullProcess runs docker pull in its own process group.
type PullProcess struct {
	config   *ProcessConfig
	lookPath func(string) (string, error)

	cmd    *exec.Cmd
	output io.ReadCloser

	exited   chan struct{}
	exitOnce sync.Once
}

// NewPullProcess creates a pull subprocess. It does not start it.
func NewPullProcess(config *ProcessConfig) Process {
	return &PullProcess{
		config:   config,
		lookPath: exec.LookPath,
		exited:   make(chan struct{}),
	}
}

// BuildCommand returns the program and arguments for a pull.
// lookPath resolves script(1); a failed lookup falls back to plain docker.
func BuildCommand(config *ProcessConfig, lookPath func(string) (string, error)) (string, []string) {
	docker := config.Docker
	if docker == "" {
		docker = "docker"
	}

	if config.UseScript && lookPath != nil {
		if scriptPath, err := lookPath("script"); err == nil {
			command := shellQuote(docker) + " pull " + shellQuote(config.Image)
			return scriptPath, []string{"-q", "-e", "-c", command, "/dev/null"}
		}
	}
	return docker, []string{"pull", config.Image}
}

// Environ returns the subprocess environment: the inherited environment,
// terminal hints for docker's progress renderer, then config.Env.
func Environ(config *ProcessConfig) []string {
	env := os.Environ()
	env = append(env, "TERM=xterm-256color", "COLUMNS=120")
	env = append(env, config.Env...)
	return deduplicateEnv(env)
}

// Start spawns the subprocess with stderr merged into stdout.
func (p *PullProcess) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name, args := BuildCommand(p.config, p.lookPath)
	// Not CommandContext: termination goes through Terminate so the whole
	// process group is signaled.
	p.cmd = exec.Command(name, args...) //nolint:gosec // image comes from local config
	p.cmd.Env = Environ(p.config)
	p.cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := p.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	p.cmd.Stderr = p.cmd.Stdout
	p.output = stdout

	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", name, err)
	}
	return nil
}

// Output returns the merged output stream.
func (p *PullProcess) Output() io.Reader {
	return p.output
}

// Wait waits for the subprocess to exit and returns the result.
func (p *PullProcess) Wait() (*ProcessResult, error) {
	if p.cmd == nil {
		return nil, errors.New("process not started")
	}
	defer p.exitOnce.Do(func() { close(p.exited) })

	err := p.cmd.Wait()
	if err == nil {
		return &ProcessResult{ExitCode: 0}, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return nil, fmt.Errorf("process wait failed: %w", err)
	}
	result := &ProcessResult{ExitCode: -1}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Exited() {
		result.ExitCode = status.ExitStatus()
	}
	return result, nil
}

// Terminate signals the process group with SIGTERM and escalates to SIGKILL
// after grace.
func (p *PullProcess) Terminate(grace time.Duration) error {
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	select {
	case <-p.exited:
		return nil
	default:
	}

	pid := p.cmd.Process.Pid
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("failed to terminate process group %d: %w", pid, err)
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-p.exited:
		return nil
	case <-timer.C:
	}

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("failed to kill process group %d: %w", pid, err)
	}
	return nil
}

// shellQuote quotes s for sh -c when it contains anything beyond a
// conservative set of safe characters.
func shellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./:@+=", r))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// deduplicateEnv keeps the last occurrence of each env var key.
func deduplicateEnv(env []string) []string {
	seen := make(map[string]int, len(env))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		seen[key] = i
	}
	result := make([]string, 0, len(seen))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		if seen[key] == i {
			result = append(result, entry)
		}
	}
	return result
}

// Verify PullProcess implements Process.
var _ Process = (*PullProcess)(nil)
