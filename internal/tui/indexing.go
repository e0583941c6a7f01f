package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"leakctl/internal/ingest"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type indexingModel struct {
	spinner  spinner.Model
	bar      progress.Model
	alias    string
	file     string
	fileNo   int
	files    int
	total    int
	flushed  int
	started  time.Time
	finished []fileResult
	done     bool
	stats    []*ingest.Stats
	err      error
}

type fileResult struct {
	name string
	err  error
}

func newIndexingModel(files int, alias string) indexingModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle
	return indexingModel{
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient()),
		alias:   alias,
		files:   files,
	}
}

// fileStartMsg is sent when a file's pre-scan has finished.
type fileStartMsg struct {
	name       string
	totalLines int
}

// fileAdvanceMsg is sent after each successful bulk flush.
type fileAdvanceMsg struct {
	flushed int
}

// fileFinishMsg is sent when a file run ends.
type fileFinishMsg struct {
	err error
}

// ingestDoneMsg is sent when every selected file has been processed or one
// has failed.
type ingestDoneMsg struct {
	stats []*ingest.Stats
	err   error
}

// teaProgress forwards pipeline progress to the running program.
type teaProgress struct {
	ref *programRef
}

func (p teaProgress) Start(fileName string, totalLines int) {
	p.ref.send(fileStartMsg{name: fileName, totalLines: totalLines})
}

func (p teaProgress) Advance(flushed int) {
	p.ref.send(fileAdvanceMsg{flushed: flushed})
}

func (p teaProgress) Finish(err error) {
	p.ref.send(fileFinishMsg{err: err})
}

func runIngest(cfg Config, paths []string) tea.Cmd {
	return func() tea.Msg {
		if cfg.NewPipeline == nil {
			return ingestDoneMsg{err: errors.New("no ingest pipeline configured")}
		}
		p := cfg.NewPipeline(teaProgress{ref: cfg.program})
		stats, err := p.Run(context.Background(), paths)
		return ingestDoneMsg{stats: stats, err: err}
	}
}

func (m indexingModel) Update(msg tea.Msg) (indexingModel, tea.Cmd) {
	switch msg := msg.(type) {
	case fileStartMsg:
		m.file = msg.name
		m.fileNo++
		m.total = msg.totalLines
		m.flushed = 0
		m.started = time.Now()
		return m, nil
	case fileAdvanceMsg:
		m.flushed += msg.flushed
		return m, nil
	case fileFinishMsg:
		m.finished = append(m.finished, fileResult{name: m.file, err: msg.err})
		return m, nil
	case ingestDoneMsg:
		m.done = true
		m.stats = msg.stats
		m.err = msg.err
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// succeeded counts leading stats entries whose run finished without error.
func (m indexingModel) succeeded() int {
	n := 0
	for _, r := range m.finished {
		if r.err != nil {
			break
		}
		n++
	}
	return min(n, len(m.stats))
}

func (m indexingModel) fraction() float64 {
	if m.total <= 0 {
		return 0
	}
	return min(float64(m.flushed)/float64(m.total), 1)
}

func (m indexingModel) View(width, height int) string {
	s := "\n"
	s += titleStyle.Render("  Indexing") + "\n\n"

	for _, r := range m.finished {
		if r.err != nil {
			s += errorStyle.Render(fmt.Sprintf("  ✗ %s", r.name)) + "\n"
		} else {
			s += successStyle.Render(fmt.Sprintf("  ✓ %s", r.name)) + "\n"
		}
	}

	if m.done {
		s += "\n"
		ok := m.succeeded()
		for _, st := range m.stats[:ok] {
			s += fmt.Sprintf("  '%s' file has been uploaded to the '%s' alias.\n", st.Path, m.alias)
			s += dimStyle.Render(fmt.Sprintf("    %d documents in %d batches, %s, %s",
				st.Documents, st.Batches, st.Encoding, st.Duration.Round(time.Millisecond))) + "\n"
		}
		if m.err != nil {
			s += "\n" + errorStyle.Render(fmt.Sprintf("  Error: %v", m.err)) + "\n"
			if len(m.stats) > ok {
				last := m.stats[ok]
				s += dimStyle.Render(fmt.Sprintf("  %d documents of %s were indexed before the failure and remain in the index.",
					last.Documents, filepath.Base(last.Path))) + "\n"
			}
		}
		s += "\n"
		s += dimStyle.Render("  Press Enter or q to exit") + "\n"
		return s
	}

	if m.file == "" {
		s += fmt.Sprintf("  %s Scanning...\n", m.spinner.View())
		return s
	}

	if width > 8 {
		m.bar.Width = min(width-8, 80)
	}
	s += fmt.Sprintf("\n  %s %s (%d/%d)\n", m.spinner.View(), m.file, m.fileNo, m.files)
	s += "  " + m.bar.ViewAs(m.fraction()) + "\n"
	s += dimStyle.Render(fmt.Sprintf("  %d / %d lines", m.flushed, m.total)) + "\n"
	if !m.started.IsZero() {
		s += dimStyle.Render(fmt.Sprintf("  elapsed %s", time.Since(m.started).Round(time.Second))) + "\n"
	}
	return s
}
