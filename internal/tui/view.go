package tui

import (
	"fmt"
	"strings"

	"pdqctl/internal/download"
	"pdqctl/internal/store"

	"github.com/charmbracelet/lipgloss"
)

var titleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("230")).
	Background(lipgloss.Color("62")).
	Padding(0, 2)

var (
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	buttonStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	tooltipStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	helpBarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	statusStyle  = lipgloss.NewStyle().Italic(true)
)

const maxSQLColumns = 60

const helpText = "[↑/↓] select | [p] plan | [d] download plan | [D] download results | [?] tooltip | [r] reload | [q] quit"

// View implements tea.Model
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("pdqctl"))
	b.WriteString("\n\n")

	switch st := m.store.State().(type) {
	case store.Idle, store.Loading:
		b.WriteString(dimStyle.Render("Loading schemas..."))
		b.WriteString("\n")
	case store.Failed:
		b.WriteString(errorStyle.Render("Could not load schemas."))
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(st.Err.Error()))
		b.WriteString("\n")
	case store.Loaded:
		if len(m.rows) == 0 {
			b.WriteString(dimStyle.Render("No queries."))
			b.WriteString("\n")
		}
		for i, r := range m.rows {
			line := fmt.Sprintf("%s / query %d  %s", r.schema.Name, r.query.ID, truncate(download.SimplifySQL(r.query.SQL), maxSQLColumns))
			if i == m.cursor {
				b.WriteString(cursorStyle.Render("> " + line))
			} else {
				b.WriteString("  " + line)
			}
			b.WriteString("\n")
		}
	}

	if m.button != nil {
		b.WriteString("\n")
		b.WriteString(m.renderButtons())
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(statusStyle.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpBarStyle.Render(helpText))
	return b.String()
}

func (m *Model) renderButtons() string {
	var b strings.Builder

	label := "[Download plan]"
	if m.button.Disabled() {
		b.WriteString(dimStyle.Render(label + " (no plan for this query)"))
	} else {
		b.WriteString(buttonStyle.Render(label))
		b.WriteString("  ")
		b.WriteString(buttonStyle.Render("[Download results]"))
	}
	b.WriteString("\n")

	if m.button.TooltipOpen() {
		b.WriteString(tooltipStyle.Render(m.button.TooltipText()))
		b.WriteString(dimStyle.Render("  #" + m.button.ElementID()))
		b.WriteString("\n")
	}

	if m.plan != nil && !m.button.Disabled() {
		b.WriteString(dimStyle.Render(truncate(m.plan.BestPlan, maxSQLColumns*2)))
		b.WriteString("\n")
	}
	return b.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
