package tui

import (
	"context"
	"io"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/dockpull/types"
)

// Options configure the live view.
type Options struct {
	// Image is shown in the header.
	Image string
	// MaxLines bounds the mirrored transcript.
	MaxLines int
	// Output overrides the program output (default stdout).
	Output io.Writer
	// Input overrides the program input (default stdin).
	Input io.Reader
}

// RunPull shows the live view until the event channel closes or the user
// quits after the pull finished. cancel is invoked when the user cancels.
func RunPull(ctx context.Context, events <-chan types.PullEvent, cancel func(), opts Options) error {
	model := NewPullModel(opts.Image, events, cancel, opts.MaxLines)

	progOpts := []tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}
	if opts.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Output))
	}
	if opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(opts.Input))
	}

	_, err := tea.NewProgram(model, progOpts...).Run()
	return err
}
