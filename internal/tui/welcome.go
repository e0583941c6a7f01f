package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leakctl/internal/search"
	"leakctl/internal/walker"

	tea "github.com/charmbracelet/bubbletea"
)

const checkTimeout = 15 * time.Second

type welcomeModel struct {
	info        *search.ClusterInfo
	aliasExists bool
	files       []walker.FileInfo
	clusterErr  error
	filesErr    error
	ready       bool // true once the check has completed
}

// checkClusterMsg is sent after probing the cluster and the corpus directory.
type checkClusterMsg struct {
	info        *search.ClusterInfo
	aliasExists bool
	files       []walker.FileInfo
	clusterErr  error
	filesErr    error
}

func checkCluster(cfg Config) tea.Cmd {
	return func() tea.Msg {
		var msg checkClusterMsg
		msg.files, msg.filesErr = walker.List(cfg.Dir, walker.DefaultExt)

		if cfg.Cluster == nil {
			msg.clusterErr = errors.New("no cluster configured")
			return msg
		}
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()

		msg.info, msg.clusterErr = cfg.Cluster.Info(ctx)
		if msg.clusterErr != nil {
			return msg
		}
		msg.aliasExists, msg.clusterErr = cfg.Cluster.AliasExists(ctx, cfg.Alias)
		return msg
	}
}

func (m welcomeModel) Update(msg tea.Msg) (welcomeModel, tea.Cmd) {
	switch msg := msg.(type) {
	case checkClusterMsg:
		m.info = msg.info
		m.aliasExists = msg.aliasExists
		m.files = msg.files
		m.clusterErr = msg.clusterErr
		m.filesErr = msg.filesErr
		m.ready = true
	}
	return m, nil
}

// canContinue reports whether there is anything to select and somewhere to
// send it. A missing alias is only a warning: bulk writes to a plain name
// auto-create an index, which setup would normally prevent.
func (m welcomeModel) canContinue() bool {
	return m.ready && m.clusterErr == nil && m.filesErr == nil && len(m.files) > 0
}

func (m welcomeModel) View(width, height int) string {
	s := "\n"
	s += titleStyle.Render("  ◆ leakctl") + "\n"
	s += subtitleStyle.Render("  Bulk-load text corpora into an Elasticsearch rollover alias") + "\n\n"

	if !m.ready {
		s += dimStyle.Render("  Checking cluster...") + "\n"
		return s
	}

	if m.clusterErr != nil {
		s += errorStyle.Render(fmt.Sprintf("  ✗ Cluster unreachable: %v", m.clusterErr)) + "\n"
	} else {
		s += successStyle.Render(fmt.Sprintf("  ✓ Connected to %s (%s)", m.info.ClusterName, m.info.Version.Number)) + "\n"
		if !m.aliasExists {
			s += warnStyle.Render("  ⚠ Write alias not found, run `leakctl setup` first") + "\n"
		}
	}

	switch {
	case errors.Is(m.filesErr, walker.ErrNoFiles):
		s += warnStyle.Render("  ✗ No .txt files found in this directory") + "\n"
	case m.filesErr != nil:
		s += errorStyle.Render(fmt.Sprintf("  ✗ %v", m.filesErr)) + "\n"
	default:
		s += successStyle.Render(fmt.Sprintf("  ✓ %d corpus files found", len(m.files))) + "\n"
	}

	s += "\n"
	if m.canContinue() {
		s += dimStyle.Render("  Press Enter to choose files") + "\n"
	} else {
		s += dimStyle.Render("  Press q to quit") + "\n"
	}
	return s
}
