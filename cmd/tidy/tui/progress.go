package tui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// Phase names the stage of work being reported.
type Phase string

const (
	PhaseScan  Phase = "Scanning"
	PhaseHash  Phase = "Hashing"
	PhaseApply Phase = "Applying"
	PhaseUndo  Phase = "Undoing"
)

// UpdateMsg reports progress. Total is zero while it is unknown.
type UpdateMsg struct {
	Phase   Phase
	Done    int
	Total   int
	Failed  int
	Current string
}

// DoneMsg is sent when the work function returns.
type DoneMsg struct {
	Err error
}

// Model is the progress view.
type Model struct {
	title    string
	spinner  spinner.Model
	bar      progress.Model
	update   UpdateMsg
	start    time.Time
	width    int
	finished bool
	stopping bool
	err      error
	cancel   context.CancelFunc
}

// NewModel creates a progress view. cancel is called when the user presses
// Ctrl+C; the view stays up until the work reports DoneMsg.
func NewModel(title string, cancel context.CancelFunc) Model {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = lipgloss.NewStyle().Foreground(primaryColor)

	return Model{
		title:   title,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		start:   time.Now(),
		width:   80,
		cancel:  cancel,
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(10, min(60, msg.Width-20))
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			if !m.stopping && m.cancel != nil {
				m.cancel()
			}
			m.stopping = true
		}
		return m, nil

	case UpdateMsg:
		m.update = msg
		return m, nil

	case DoneMsg:
		m.finished = true
		m.err = msg.Err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// Percent returns the completed fraction, or 0 when the total is unknown.
func (m Model) Percent() float64 {
	if m.update.Total <= 0 {
		return 0
	}
	return float64(m.update.Done) / float64(m.update.Total)
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	contentWidth := max(40, m.width-4)

	title := titleStyle.Render(m.title)
	hint := mutedTextStyle.Render("[Ctrl+C to stop]")
	gap := max(1, contentWidth-lipgloss.Width(title)-lipgloss.Width(hint))
	b.WriteString(title + strings.Repeat(" ", gap) + hint + "\n")
	b.WriteString(renderDivider(contentWidth) + "\n\n")

	switch {
	case m.finished && m.err != nil:
		b.WriteString(errorTextStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	case m.finished:
		b.WriteString(successTextStyle.Render("Done"))
	case m.stopping:
		b.WriteString(warningTextStyle.Render("Stopping after the current entry..."))
	default:
		phase := m.update.Phase
		if phase == "" {
			phase = PhaseScan
		}
		b.WriteString(fmt.Sprintf("%s %s %s", m.spinner.View(), phaseStyle.Render(string(phase)),
			truncatePath(m.update.Current, contentWidth-20)))
	}
	b.WriteString("\n\n")

	if m.update.Total > 0 {
		b.WriteString(m.bar.ViewAs(m.Percent()))
		b.WriteString("\n")
	}

	counts := fmt.Sprintf("%s done", humanize.Comma(int64(m.update.Done)))
	if m.update.Total > 0 {
		counts = fmt.Sprintf("%s of %s done", humanize.Comma(int64(m.update.Done)), humanize.Comma(int64(m.update.Total)))
	}
	if m.update.Failed > 0 {
		counts += ", " + errorTextStyle.Render(fmt.Sprintf("%d failed", m.update.Failed))
	}
	b.WriteString(mutedTextStyle.Render(counts+"  ") + mutedTextStyle.Render(formatElapsed(time.Since(m.start))))

	return outerBoxStyle.Width(contentWidth + 2).Render(b.String())
}

// formatElapsed formats a duration as M:SS.
func formatElapsed(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", d/time.Minute, (d%time.Minute)/time.Second)
}

// Run shows the progress view on out while work runs. work receives a
// context cancelled by Ctrl+C and a report function safe for concurrent
// use. Run returns work's error.
func Run(ctx context.Context, out io.Writer, title string, work func(context.Context, func(UpdateMsg)) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(title, cancel), tea.WithOutput(out))

	workErr := make(chan error, 1)
	go func() {
		err := work(ctx, func(u UpdateMsg) { p.Send(u) })
		workErr <- err
		p.Send(DoneMsg{Err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		if werr := <-workErr; werr != nil {
			return werr
		}
		return fmt.Errorf("progress view: %w", err)
	}
	return <-workErr
}
