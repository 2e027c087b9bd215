// Package render formats scheduling results for terminal output.
package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/plancraft/plancraft/internal/models"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	lateStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	fixedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

const dateLayout = "2006-01-02"

// Table renders the schedule as an aligned text table, one row per task.
func Table(result *models.Result) string {
	var b strings.Builder

	widths := []int{8, 10, 10, 6, 0}
	for _, st := range result.ScheduledTasks {
		if len(st.TaskID) > widths[0] {
			widths[0] = len(st.TaskID)
		}
	}

	fmt.Fprintf(&b, "%s\n", headerStyle.Render(fmt.Sprintf(
		"%-*s  %-10s  %-10s  %6s  %s", widths[0], "TASK", "START", "END", "DAYS", "RESOURCES")))

	for _, st := range result.ScheduledTasks {
		line := fmt.Sprintf("%-*s  %-10s  %-10s  %6.1f  %s",
			widths[0], st.TaskID,
			st.StartDate.Format(dateLayout),
			st.EndDate.Format(dateLayout),
			st.DurationDays,
			strings.Join(st.Resources, ", "))

		annot, ok := result.Annotations[st.TaskID]
		switch {
		case ok && annot.DeadlineViolated:
			line = lateStyle.Render(line)
		case ok && annot.WasFixed:
			line = fixedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	for _, w := range result.Warnings {
		fmt.Fprintf(&b, "%s\n", warningStyle.Render("warning: "+w.Warning()))
	}

	return b.String()
}

// Gantt renders a month-scale text gantt chart. Each column is one week.
func Gantt(result *models.Result) string {
	if len(result.ScheduledTasks) == 0 {
		return ""
	}

	start := result.ScheduledTasks[0].StartDate
	end := result.ScheduledTasks[0].EndDate
	nameWidth := 8
	for _, st := range result.ScheduledTasks {
		start = models.MinDate(start, st.StartDate)
		end = models.MaxDate(end, st.EndDate)
		if len(st.TaskID) > nameWidth {
			nameWidth = len(st.TaskID)
		}
	}

	weeks := models.DaysBetween(start, end)/7 + 1
	if weeks < 1 {
		weeks = 1
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-*s  %s\n", nameWidth, "",
		mutedStyle.Render(monthRuler(start, weeks)))

	tasks := make([]models.ScheduledTask, len(result.ScheduledTasks))
	copy(tasks, result.ScheduledTasks)
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].StartDate.Equal(tasks[j].StartDate) {
			return tasks[i].StartDate.Before(tasks[j].StartDate)
		}
		return tasks[i].TaskID < tasks[j].TaskID
	})

	for _, st := range tasks {
		row := make([]byte, weeks)
		for i := range row {
			row[i] = '.'
		}
		first := models.DaysBetween(start, st.StartDate) / 7
		last := models.DaysBetween(start, st.EndDate) / 7
		for i := first; i <= last && i < weeks; i++ {
			row[i] = '#'
		}
		if st.DurationDays == 0 && first < weeks {
			row[first] = '^'
		}
		fmt.Fprintf(&b, "%-*s  %s\n", nameWidth, st.TaskID, string(row))
	}

	return b.String()
}

// monthRuler marks the first week of each month along the chart.
func monthRuler(start time.Time, weeks int) string {
	ruler := make([]byte, weeks)
	for i := range ruler {
		ruler[i] = ' '
	}
	label := ""
	for i := 0; i < weeks; i++ {
		week := models.AddDays(start, i*7)
		m := week.Format("Jan")
		if m != label {
			label = m
			for j, c := range []byte(m) {
				if i+j < weeks {
					ruler[i+j] = c
				}
			}
		}
	}
	return string(ruler)
}
