package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"count-words/archive"
	"count-words/config"
	"count-words/search"
)

// Styles (shared with CLI usage/version output)
var (
	appStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7aa2f7"))

	logoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7aa2f7")).
			Bold(true)

	subHeaderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7dcfff")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a9b1d6"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#9ece6a")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#e0af68")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f7768e")).
			Bold(true)

	engineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#bb9af7"))

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// progressMsg is the latest pipeline progress.
// Rendered as "⏳ {Stage} [num/total]: filename"
type progressMsg struct {
	Stage string
	Count int
	Total int
	Path  string
}

// progressTracker keeps the newest progress snapshot written by the engine
// goroutine; the TUI polls it.
type progressTracker struct {
	mu     sync.Mutex
	latest progressMsg
	have   bool
}

func (p *progressTracker) record(stage string, processed, total int, path string) {
	p.mu.Lock()
	p.latest = progressMsg{Stage: stage, Count: processed, Total: total, Path: path}
	p.have = true
	p.mu.Unlock()
}

func (p *progressTracker) snapshot() (progressMsg, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest, p.have
}

type model struct {
	engine   *search.Engine
	archive  string
	word     string
	progress *progressTracker
	ctx      context.Context
	cancel   context.CancelFunc

	spinner spinner.Model
	started time.Time

	// Run outcome
	loading bool
	report  *search.Report
	err     error

	// Window size and scrolling
	width  int
	height int
	scroll int

	quitting     bool
	progressText string
	usageText    string
}

func newModel(engine *search.Engine, archivePath, word string) model {
	ctx, cancel := context.WithCancel(context.Background())
	progress := &progressTracker{}
	if engine != nil {
		engine.SetProgress(progress.record)
	}
	return model{
		engine:   engine,
		archive:  archivePath,
		word:     word,
		progress: progress,
		ctx:      ctx,
		cancel:   cancel,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(subHeaderStyle),
		),
		started: time.Now(),
		loading: true,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.runSearch(), pollProgress(), usageTick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}
		if m.loading {
			return m, nil
		}
		switch msg.String() {
		case "up", "k":
			m.scroll = max(m.scroll-1, 0)
		case "down", "j":
			m.scroll++
		case "pgup":
			m.scroll = max(m.scroll-5, 0)
		case "pgdown":
			m.scroll += 5
		case "home":
			m.scroll = 0
		}
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case runDoneMsg:
		m.loading = false
		m.report = msg.report
		m.err = msg.err
		return m, nil

	case progressTick:
		if !m.loading {
			return m, nil
		}
		if p, ok := m.progress.snapshot(); ok {
			m.progressText = formatProgress(p)
		}
		return m, pollProgress()

	case usageMsg:
		m.usageText = msg.Text
		return m, usageTick()
	}
	return m, nil
}

func formatProgress(p progressMsg) string {
	stage := p.Stage
	if stage != "" {
		stage = strings.ToUpper(stage[:1]) + stage[1:]
	}
	if p.Total > 0 {
		return fmt.Sprintf("%s [%d/%d]: %s", stage, p.Count, p.Total, filepath.Base(p.Path))
	}
	return fmt.Sprintf("%s [%d]: %s", stage, p.Count, filepath.Base(p.Path))
}

func (m model) View() string {
	width := m.width
	height := m.height
	if width <= 0 {
		width = 100
	}
	if height <= 0 {
		height = 30
	}

	if m.quitting {
		return "Goodbye!\n"
	}

	var header []string
	header = append(header, "", logoStyle.Render(fmt.Sprintf("count-words v%s", version)), "")
	header = append(header, subHeaderStyle.Render(wrapTextWithIndent("🔍 Searching: ", fmt.Sprintf("%q", m.word), width-4)))
	header = append(header, infoStyle.Render(wrapTextWithIndent("📦 Archive: ", m.archive, width-4)))
	header = append(header, infoStyle.Render("📁 Target: "+config.GetFileTypeDescription()))
	if m.usageText != "" {
		header = append(header, engineStyle.Render("⚙️ "+m.usageText))
	}

	elapsed := time.Since(m.started)
	if !m.loading && m.report != nil {
		elapsed = m.report.Elapsed
	}
	header = append(header, warningStyle.Render(fmt.Sprintf("⏱️ Elapsed: %.2f seconds", elapsed.Seconds())))

	var parts []string
	parts = append(parts, strings.Join(header, "\n"))

	if m.loading {
		txt := "Processing"
		if m.progressText != "" {
			txt = m.progressText
		}
		parts = append(parts, m.spinner.View()+" "+infoStyle.Render(txt))
	} else {
		parts = append(parts, "")
	}

	body := m.body(width - 10)

	headerHeight := strings.Count(parts[0], "\n") + 1
	contentHeight := max(height-headerHeight-2-4, 1)
	lines := strings.Split(body, "\n")
	maxStart := max(len(lines)-contentHeight, 0)
	start := min(m.scroll, maxStart)
	end := min(start+contentHeight, len(lines))
	parts = append(parts, appStyle.Width(width-4).Render(strings.Join(lines[start:end], "\n")))

	footer := "🔚 'q' quit"
	if !m.loading {
		footer += " • ↑/↓ scroll"
	}
	parts = append(parts, footerStyle.Render(footer))

	return strings.Join(parts, "\n")
}

// body renders the box content for the current state
func (m model) body(width int) string {
	if m.loading {
		return "Extracting and counting..."
	}

	switch {
	case errors.Is(m.err, archive.ErrNoContent):
		return warningStyle.Render("The archive contains no files.")
	case m.err != nil:
		return errorStyle.Render(wrapTextWithIndent("Error: ", m.err.Error(), width))
	case m.report == nil || m.report.Result == nil:
		return "No results."
	}

	lines := m.report.Lines()
	var b strings.Builder
	b.WriteString(successStyle.Render(lines[0]))
	b.WriteString("\n\n")
	for i, rec := range m.report.Result.Records {
		line := wrapTextWithIndent("", lines[i+1], width)
		if rec.Failed() {
			b.WriteString(warningStyle.Render(line))
		} else {
			b.WriteString(infoStyle.Render(line))
		}
		b.WriteString("\n")
	}
	if len(m.report.Result.Records) == 0 {
		b.WriteString(warningStyle.Render("No pdf, txt, csv or docx files in the archive."))
	}
	return strings.TrimRight(b.String(), "\n")
}

// runSearch runs the pipeline off the UI goroutine
func (m model) runSearch() tea.Cmd {
	engine, ctx, path, word := m.engine, m.ctx, m.archive, m.word
	return func() tea.Msg {
		report, err := engine.RunFile(ctx, path, word)
		return runDoneMsg{report: report, err: err}
	}
}

func wrapTextWithIndent(prefix, text string, width int) string {
	prefixWidth := lipgloss.Width(prefix)
	indent := strings.Repeat(" ", prefixWidth)
	wrapped := lipgloss.NewStyle().Width(max(width-prefixWidth, 10)).Render(text)
	return prefix + strings.ReplaceAll(wrapped, "\n", "\n"+indent)
}

func usageTick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return usageMsg{Text: processUsage.sample().String()}
	})
}

func pollProgress() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return progressTick{}
	})
}

// Messages for TUI updates
type runDoneMsg struct {
	report *search.Report
	err    error
}

type usageMsg struct {
	Text string
}

type progressTick struct{}
