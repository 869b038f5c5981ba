package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/dockpull/cli/reader"
	"github.com/pithecene-io/dockpull/types"
)

const (
	defaultWidth  = 80
	defaultHeight = 24
	// chromeHeight is the number of rows used by everything but the
	// transcript box.
	chromeHeight = 8
)

// eventMsg carries one orchestrator event into the model.
type eventMsg types.PullEvent

// closedMsg reports that the event channel was closed.
type closedMsg struct{}

// waitForEvent reads the next event from the subscription.
func waitForEvent(events <-chan types.PullEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return closedMsg{}
		}
		return eventMsg(ev)
	}
}

// keyMap defines key bindings.
type keyMap struct {
	Cancel key.Binding
	Quit   key.Binding
	Up     key.Binding
	Down   key.Binding
}

var keys = keyMap{
	Cancel: key.NewBinding(
		key.WithKeys("ctrl+c", "c"),
		key.WithHelp("c", "cancel pull"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "esc"),
		key.WithHelp("q", "quit when finished"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "scroll up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "scroll down"),
	),
}

// PullModel is the Bubble Tea model of a live pull.
type PullModel struct {
	image  string
	events <-chan types.PullEvent
	cancel func()

	mirror   *reader.Mirror
	active   bool
	canceled bool
	closed   bool

	progress progress.Model
	viewport viewport.Model
	spinner  spinner.Model
	follow   bool
	width    int
	height   int
}

// NewPullModel creates a model reading events from the subscription.
// cancel is invoked once when the user asks to cancel the pull.
func NewPullModel(image string, events <-chan types.PullEvent, cancel func(), maxLines int) PullModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = WarningStyle

	m := PullModel{
		image:    image,
		events:   events,
		cancel:   cancel,
		mirror:   reader.NewMirror(maxLines),
		progress: progress.New(progress.WithScaledGradient("#2496ED", "#10B981")),
		viewport: viewport.New(defaultWidth, defaultHeight-chromeHeight),
		spinner:  sp,
		follow:   true,
		width:    defaultWidth,
		height:   defaultHeight,
	}
	m.resize()
	return m
}

// Init implements tea.Model.
func (m PullModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

// Update implements tea.Model.
func (m PullModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case eventMsg:
		m.apply(types.PullEvent(msg))
		return m, waitForEvent(m.events)

	case closedMsg:
		m.closed = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Cancel):
			if m.Finished() {
				return m, tea.Quit
			}
			if !m.canceled && m.cancel != nil {
				m.canceled = true
				m.cancel()
			}
			return m, nil
		case key.Matches(msg, keys.Quit):
			if m.Finished() {
				return m, tea.Quit
			}
			return m, nil
		case key.Matches(msg, keys.Up):
			m.follow = false
			m.viewport.ScrollUp(1)
			return m, nil
		case key.Matches(msg, keys.Down):
			m.viewport.ScrollDown(1)
			m.follow = m.viewport.AtBottom()
			return m, nil
		}
	}

	return m, nil
}

func (m *PullModel) apply(ev types.PullEvent) {
	m.mirror.Apply(ev)
	if ev.Type == types.EventTypeActive {
		m.active = ev.Active
	}
	if ev.Type == types.EventTypeLine {
		m.viewport.SetContent(m.mirror.Transcript())
		if m.follow {
			m.viewport.GotoBottom()
		}
	}
}

func (m *PullModel) resize() {
	w := max(m.width-4, 20)
	m.progress.Width = w
	m.viewport.Width = w
	m.viewport.Height = max(m.height-chromeHeight, 3)
}

// Finished reports whether the terminal event was received.
func (m PullModel) Finished() bool {
	return m.mirror.Summary().Finished
}

// Summary returns the mirrored pull state.
func (m PullModel) Summary() reader.ReplaySummary {
	return m.mirror.Summary()
}

// View implements tea.Model.
func (m PullModel) View() string {
	s := m.mirror.Summary()

	var b strings.Builder
	b.WriteString(TitleStyle.Render("docker pull " + m.image))
	if s.Generations > 1 {
		b.WriteString(LabelStyle.Render(fmt.Sprintf("  attempt %d", s.Generations)))
	}
	b.WriteString("\n\n")

	status := s.Status
	if s.Finished {
		status = s.Message
	}
	indicator := "  "
	if m.active && !s.Finished {
		indicator = m.spinner.View() + " "
	}
	b.WriteString(indicator + StatusStyle(s.Finished, s.OK, m.active).Render(status))
	b.WriteString("\n")
	b.WriteString(m.progress.ViewAs(s.Ratio))
	b.WriteString("\n")

	transcript := m.viewport.View()
	if len(s.Transcript) == 0 {
		transcript = LabelStyle.Render("Waiting for docker output...")
	}
	b.WriteString(BoxStyle.Width(m.viewport.Width + 2).Render(transcript))
	b.WriteString("\n")

	b.WriteString(HelpStyle.Render(m.helpText(s.Finished)))
	return lipgloss.NewStyle().Padding(0, 1).Render(b.String())
}

func (m PullModel) helpText(finished bool) string {
	if finished {
		return keys.Quit.Help().Key + " " + keys.Quit.Help().Desc
	}
	if m.canceled {
		return "canceling..."
	}
	parts := []string{
		keys.Cancel.Help().Key + " " + keys.Cancel.Help().Desc,
		keys.Up.Help().Key + " " + keys.Up.Help().Desc,
		keys.Down.Help().Key + " " + keys.Down.Help().Desc,
	}
	return strings.Join(parts, " • ")
}
