package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/geolist/internal/models"
	"github.com/desertthunder/geolist/internal/tasks"
)

const (
	logLines     = 8
	maxBarWidth  = 60
	progressSize = 64
)

// RunFunc starts a pipeline run that reports on progress. [tasks.Pipeline.Run] satisfies it.
type RunFunc func(ctx context.Context, progress chan<- tasks.ProgressUpdate) (*tasks.RunResult, error)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	RunningView ViewState = iota
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	cancel       context.CancelFunc
	run          RunFunc
	view         ViewState
	width        int
	progressChan chan tasks.ProgressUpdate
	progress     tasks.ProgressUpdate
	recent       []string
	showLog      bool
	spinner      spinner.Model
	bar          progress.Model
	help         help.Model
	keys         keyMap

	finished chan struct{}
	mu       sync.Mutex
	outcome  runOutcome
}

// NewModel creates a new TUI model that will drive run.
func NewModel(ctx context.Context, run RunFunc) *Model {
	ctx, cancel := context.WithCancel(ctx)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.title.UnsetMarginBottom()

	return &Model{
		ctx:      ctx,
		cancel:   cancel,
		run:      run,
		view:     RunningView,
		spinner:  s,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(maxBarWidth)),
		help:     help.New(),
		keys:     newKeyMap(),
		finished: make(chan struct{}),
	}
}

// Run drives the pipeline behind a live progress display and returns its outcome once it finishes.
//
// Quitting the display cancels the run.
func Run(ctx context.Context, run RunFunc, opts ...tea.ProgramOption) (*tasks.RunResult, error) {
	m := NewModel(ctx, run)
	m.start()

	_, err := tea.NewProgram(m, opts...).Run()
	m.cancel()
	out := m.wait()

	if err != nil && out.err == nil {
		return out.result, fmt.Errorf("progress display: %w", err)
	}
	return out.result, out.err
}

// start launches the run in the background.
func (m *Model) start() {
	m.progressChan = make(chan tasks.ProgressUpdate, progressSize)

	go func() {
		result, err := m.run(m.ctx, m.progressChan)
		m.mu.Lock()
		m.outcome = runOutcome{result, err}
		m.mu.Unlock()
		close(m.finished)
		close(m.progressChan)
	}()
}

func (m *Model) wait() runOutcome {
	<-m.finished
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outcome
}

// Init starts the spinner and begins listening for progress.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForProgress())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(max(msg.Width-4, 10), maxBarWidth)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			if m.view == RunningView {
				m.cancel()
				return m, nil
			}
			return m, tea.Quit
		case key.Matches(msg, m.keys.log):
			m.showLog = !m.showLog
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			update := msg.data.(tasks.ProgressUpdate)
			m.progress = update
			if update.Phase == tasks.ResolveOrigins {
				m.record(update)
			}
			return m, m.waitForProgress()

		case MsgRunComplete:
			out := msg.data.(runOutcome)
			m.mu.Lock()
			m.outcome = out
			m.mu.Unlock()
			m.view = ResultView
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m *Model) record(update tasks.ProgressUpdate) {
	line := update.Message
	if origin, ok := update.Data.(models.OriginRecord); ok {
		line = styles.Status(origin.Status).Render(line)
	}
	m.recent = append(m.recent, line)
	if len(m.recent) > logLines {
		m.recent = m.recent[len(m.recent)-logLines:]
	}
}

func (m *Model) waitForProgress() tea.Cmd {
	ch := m.progressChan
	return func() tea.Msg {
		if ch != nil {
			if update, ok := <-ch; ok {
				return progressUpdateMsg(update)
			}
		}
		out := m.wait()
		return runCompleteMsg(out.result, out.err)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case ResultView:
		return m.renderResult()
	default:
		return m.renderRunning()
	}
}

func (m *Model) renderRunning() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("Resolving artist origins"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s %s\n", m.spinner.View(), phaseLabel(m.progress.Phase)))

	if m.progress.Total > 0 {
		pct := float64(m.progress.Step) / float64(m.progress.Total)
		b.WriteString(m.bar.ViewAs(min(pct, 1)))
		b.WriteString("\n")
	}
	if m.progress.Message != "" {
		b.WriteString(styles.muted.Render(m.progress.Message))
		b.WriteString("\n")
	}

	if m.showLog && len(m.recent) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(m.recent, "\n"))
		b.WriteString("\n")
	}

	if m.ctx.Err() != nil {
		b.WriteString(styles.warning.Render("Cancelling..."))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))
	return b.String()
}

func (m *Model) renderResult() string {
	m.mu.Lock()
	out := m.outcome
	m.mu.Unlock()

	if out.err != nil {
		return styles.error.Render(fmt.Sprintf("Run failed: %v", out.err)) + "\n"
	}
	return RenderSummary(out.result) + "\n"
}

func phaseLabel(p tasks.Phase) string {
	switch p {
	case tasks.FetchLibrary:
		return "Fetching saved tracks..."
	case tasks.LoadInput:
		return "Loading saved library..."
	case tasks.GroupArtists:
		return "Grouping tracks by artist..."
	case tasks.ClearCache:
		return "Clearing cache..."
	case tasks.ResolveOrigins:
		return "Looking up artist origins..."
	case tasks.Aggregate:
		return "Merging records..."
	case tasks.WriteOutput:
		return "Writing output..."
	default:
		return "Starting..."
	}
}
