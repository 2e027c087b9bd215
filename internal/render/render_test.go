package render

import (
	"strings"
	"testing"
	"time"

	"github.com/plancraft/plancraft/internal/models"
)

func d(year int, month time.Month, day int) time.Time {
	return models.Date(year, month, day)
}

func sampleResult() *models.Result {
	return &models.Result{
		ScheduledTasks: []models.ScheduledTask{
			{TaskID: "api", StartDate: d(2025, 1, 1), EndDate: d(2025, 1, 20),
				DurationDays: 19, Resources: []string{"alice"}},
			{TaskID: "ship", StartDate: d(2025, 1, 21), EndDate: d(2025, 1, 21),
				DurationDays: 0},
		},
		Annotations: map[string]models.Annotation{
			"api": {EstimatedStart: d(2025, 1, 1), EstimatedEnd: d(2025, 1, 20)},
		},
		Warnings: []models.Warning{models.UnassignedTask{TaskID: "misc"}},
	}
}

func TestTableListsTasksAndWarnings(t *testing.T) {
	out := Table(sampleResult())

	for _, want := range []string{"api", "ship", "2025-01-01", "alice", "warning:"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestGanttMarksSpansAndMilestones(t *testing.T) {
	out := Gantt(sampleResult())

	if !strings.Contains(out, "#") {
		t.Errorf("gantt missing span marks:\n%s", out)
	}
	if !strings.Contains(out, "^") {
		t.Errorf("gantt missing milestone mark:\n%s", out)
	}
	if !strings.Contains(out, "api") {
		t.Errorf("gantt missing task names:\n%s", out)
	}
}

func TestGanttEmptyResult(t *testing.T) {
	if out := Gantt(&models.Result{}); out != "" {
		t.Errorf("empty result should render nothing, got %q", out)
	}
}
