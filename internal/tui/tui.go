package tui

import (
	"context"

	"leakctl/internal/ingest"
	"leakctl/internal/search"

	tea "github.com/charmbracelet/bubbletea"
)

// ViewState represents which screen is active.
type ViewState int

const (
	ViewWelcome ViewState = iota
	ViewSelect
	ViewIndexing
)

// programRef is an indirect pointer to the tea.Program so background goroutines
// can send messages. It must be set after tea.NewProgram returns but before Run.
type programRef struct {
	p *tea.Program
}

func (r *programRef) send(msg tea.Msg) {
	if r != nil && r.p != nil {
		r.p.Send(msg)
	}
}

// Cluster is the part of the search client the welcome screen checks.
type Cluster interface {
	Info(ctx context.Context) (*search.ClusterInfo, error)
	AliasExists(ctx context.Context, alias string) (bool, error)
}

// Config holds configuration passed from the CLI layer.
type Config struct {
	// Dir is scanned for corpus files.
	Dir   string
	Alias string

	Cluster Cluster
	// NewPipeline builds the ingest pipeline reporting to the given progress.
	NewPipeline func(ingest.Progress) *ingest.Pipeline

	// program is set internally so background goroutines can send messages.
	program *programRef
}

// Model is the top-level Bubble Tea model.
type Model struct {
	state  ViewState
	config Config
	width  int
	height int

	welcome  welcomeModel
	picker   selectModel
	indexing indexingModel
}

// New creates a new TUI model with the given config.
func New(cfg Config) Model {
	return Model{
		state:  ViewWelcome,
		config: cfg,
	}
}

func (m Model) Init() tea.Cmd {
	return checkCluster(m.config)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "q":
			// Bulk requests in flight are not interrupted by q.
			if m.state != ViewIndexing || m.indexing.done {
				return m, tea.Quit
			}
		}
	}

	var cmd tea.Cmd

	switch m.state {
	case ViewWelcome:
		m.welcome, cmd = m.welcome.Update(msg)
		if cmd != nil {
			return m, cmd
		}
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter && m.welcome.canContinue() {
			m.state = ViewSelect
			m.picker = newSelectModel(m.welcome.files)
		}

	case ViewSelect:
		m.picker, cmd = m.picker.Update(msg)
		if cmd != nil {
			return m, cmd
		}
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter {
			paths := m.picker.paths()
			if len(paths) == 0 {
				return m, nil
			}
			m.state = ViewIndexing
			m.indexing = newIndexingModel(len(paths), m.config.Alias)
			return m, tea.Batch(m.indexing.spinner.Tick, runIngest(m.config, paths))
		}

	case ViewIndexing:
		m.indexing, cmd = m.indexing.Update(msg)
		if cmd != nil {
			return m, cmd
		}
		if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter && m.indexing.done {
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m Model) View() string {
	switch m.state {
	case ViewWelcome:
		return m.welcome.View(m.width, m.height)
	case ViewSelect:
		return m.picker.View(m.width, m.height)
	case ViewIndexing:
		return m.indexing.View(m.width, m.height)
	}
	return ""
}

// Run starts the TUI program. The returned error is the ingest error, if
// any, so the caller can set the exit status.
func Run(cfg Config) error {
	ref := &programRef{}
	cfg.program = ref
	model := New(cfg)
	p := tea.NewProgram(model, tea.WithAltScreen())
	ref.p = p
	final, err := p.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(Model); ok && fm.indexing.err != nil {
		return fm.indexing.err
	}
	return nil
}
