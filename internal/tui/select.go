package tui

import (
	"fmt"

	"leakctl/internal/walker"

	tea "github.com/charmbracelet/bubbletea"
)

type selectModel struct {
	files  []walker.FileInfo
	cursor int
	// order holds the picked indexes in the order they were toggled on.
	order []int
}

func newSelectModel(files []walker.FileInfo) selectModel {
	return selectModel{files: files}
}

func (m selectModel) Update(msg tea.Msg) (selectModel, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch keyMsg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.files)-1 {
			m.cursor++
		}
	case " ", "x":
		m.toggle(m.cursor)
	case "a":
		if len(m.order) == len(m.files) {
			m.order = nil
		} else {
			for i := range m.files {
				if !m.isPicked(i) {
					m.order = append(m.order, i)
				}
			}
		}
	}
	return m, nil
}

func (m *selectModel) toggle(i int) {
	for j, picked := range m.order {
		if picked == i {
			m.order = append(m.order[:j:j], m.order[j+1:]...)
			return
		}
	}
	m.order = append(m.order, i)
}

func (m selectModel) isPicked(i int) bool {
	for _, picked := range m.order {
		if picked == i {
			return true
		}
	}
	return false
}

// paths returns the picked files in pick order. With nothing picked, Enter
// means the file under the cursor.
func (m selectModel) paths() []string {
	if len(m.files) == 0 {
		return nil
	}
	if len(m.order) == 0 {
		return walker.Pick(m.files, []int{m.cursor})
	}
	return walker.Pick(m.files, m.order)
}

func (m selectModel) View(width, height int) string {
	s := "\n"
	s += titleStyle.Render("  Select Files") + "\n"
	s += dimStyle.Render("  Each non-blank line becomes one document") + "\n\n"

	for i, f := range m.files {
		cursor := "  "
		style := listItemStyle
		if i == m.cursor {
			cursor = "▸ "
			style = selectedStyle
		}
		box := "[ ]"
		if m.isPicked(i) {
			box = "[x]"
		}
		s += fmt.Sprintf("  %s%s %s\n", cursor, box, style.Render(fmt.Sprintf("%s (%s)", f.Name, formatSize(f.Size))))
	}
	s += "\n"
	s += helpStyle.Render(fmt.Sprintf("  %d selected • ↑/↓ navigate • space toggle • a all • Enter index • q quit", len(m.order))) + "\n"
	return s
}

// formatSize returns a human-readable size string.
func formatSize(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.0f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.0f KB", float64(bytes)/float64(kb))
	}
	return fmt.Sprintf("%d B", bytes)
}
