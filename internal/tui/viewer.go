// Package tui provides a read-only terminal viewer for schedules.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/plancraft/plancraft/internal/models"
)

var (
	baseStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("240"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

const dateLayout = "2006-01-02"

// Model is the schedule viewer.
type Model struct {
	title    string
	table    table.Model
	warnings []string
	width    int
	height   int
}

// NewModel builds a viewer over a scheduling result.
func NewModel(title string, result *models.Result) Model {
	columns := []table.Column{
		{Title: "Task", Width: 24},
		{Title: "Start", Width: 12},
		{Title: "End", Width: 12},
		{Title: "Days", Width: 6},
		{Title: "Resources", Width: 24},
		{Title: "", Width: 6},
	}

	rows := make([]table.Row, 0, len(result.ScheduledTasks))
	for _, st := range result.ScheduledTasks {
		flag := ""
		if annot, ok := result.Annotations[st.TaskID]; ok {
			switch {
			case annot.DeadlineViolated:
				flag = "late"
			case annot.WasFixed:
				flag = "fixed"
			}
		}
		rows = append(rows, table.Row{
			st.TaskID,
			st.StartDate.Format(dateLayout),
			st.EndDate.Format(dateLayout),
			fmt.Sprintf("%.1f", st.DurationDays),
			strings.Join(st.Resources, ", "),
			flag,
		})
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(20),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(styles)

	warnings := make([]string, 0, len(result.Warnings))
	for _, w := range result.Warnings {
		warnings = append(warnings, w.Warning())
	}

	return Model{title: title, table: t, warnings: warnings}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(msg.Height - 6 - len(m.warnings))
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteByte('\n')
	b.WriteString(baseStyle.Render(m.table.View()))
	b.WriteByte('\n')
	for _, w := range m.warnings {
		b.WriteString(warnStyle.Render("warning: " + w))
		b.WriteByte('\n')
	}
	b.WriteString(helpStyle.Render("↑/↓ move • q quit"))
	return b.String()
}

// Run starts the viewer and blocks until quit.
func Run(title string, result *models.Result) error {
	p := tea.NewProgram(NewModel(title, result), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
