package criticalpath

import (
	"math"
	"testing"
	"time"

	"github.com/plancraft/plancraft/internal/models"
)

func d(year int, month time.Month, day int) time.Time {
	return models.Date(year, month, day)
}

func intPtr(v int) *int { return &v }

func makeTask(id string, duration float64, deps ...models.Dependency) *models.Task {
	return &models.Task{ID: id, DurationDays: duration, Dependencies: deps}
}

func taskMap(tasks ...*models.Task) map[string]*models.Task {
	m := make(map[string]*models.Task, len(tasks))
	for _, t := range tasks {
		m[t.ID] = t
	}
	return m
}

func TestSingleTaskIsOwnCriticalPath(t *testing.T) {
	tasks := taskMap(makeTask("a", 5))
	deps := buildDependents(tasks)

	result, err := calculatePath("a", tasks, nil, nil, deps)
	if err != nil {
		t.Fatalf("calculatePath: %v", err)
	}

	if result.Length != 5 {
		t.Errorf("length = %f, want 5", result.Length)
	}
	if !result.CriticalTasks["a"] {
		t.Error("target should be on its own critical path")
	}
}

func TestChainCriticalPath(t *testing.T) {
	tasks := taskMap(
		makeTask("a", 2),
		makeTask("b", 3, models.Dependency{TaskID: "a"}),
		makeTask("c", 4, models.Dependency{TaskID: "b"}),
	)
	deps := buildDependents(tasks)

	result, err := calculatePath("c", tasks, nil, nil, deps)
	if err != nil {
		t.Fatalf("calculatePath: %v", err)
	}

	if result.Length != 9 {
		t.Errorf("length = %f, want 9", result.Length)
	}
	if result.TotalWork != 9 {
		t.Errorf("total work = %f, want 9", result.TotalWork)
	}
	for _, id := range []string{"a", "b", "c"} {
		if !result.CriticalTasks[id] {
			t.Errorf("%s should be critical in a pure chain", id)
		}
	}
}

func TestParallelPathsHaveSlack(t *testing.T) {
	tasks := taskMap(
		makeTask("a", 2),
		makeTask("b", 3, models.Dependency{TaskID: "a"}),
		makeTask("c", 5, models.Dependency{TaskID: "a"}),
		makeTask("d", 4, models.Dependency{TaskID: "b"}, models.Dependency{TaskID: "c"}),
	)
	deps := buildDependents(tasks)

	result, err := calculatePath("d", tasks, nil, nil, deps)
	if err != nil {
		t.Fatalf("calculatePath: %v", err)
	}

	if result.Length != 11 {
		t.Errorf("length = %f, want 11 (a+c+d)", result.Length)
	}
	if result.CriticalTasks["b"] {
		t.Error("b has slack, should not be critical")
	}
	for _, id := range []string{"a", "c", "d"} {
		if !result.CriticalTasks[id] {
			t.Errorf("%s should be critical", id)
		}
	}
	if slack := result.Timings["b"].Slack; math.Abs(slack-2.0) > 1e-9 {
		t.Errorf("b slack = %f, want 2", slack)
	}
}

func TestLagExtendsPath(t *testing.T) {
	tasks := taskMap(
		makeTask("a", 2),
		makeTask("b", 3, models.Dependency{TaskID: "a", LagDays: 2}),
	)
	deps := buildDependents(tasks)

	result, err := calculatePath("b", tasks, nil, nil, deps)
	if err != nil {
		t.Fatalf("calculatePath: %v", err)
	}

	if result.Length != 7 {
		t.Errorf("length = %f, want 7 (2 + 2 lag + 3)", result.Length)
	}
}

func TestCompletedDependencyExcluded(t *testing.T) {
	tasks := taskMap(
		makeTask("a", 5),
		makeTask("b", 3, models.Dependency{TaskID: "a"}),
	)
	deps := buildDependents(tasks)
	completed := map[string]bool{"a": true}

	result, err := calculatePath("b", tasks, nil, completed, deps)
	if err != nil {
		t.Fatalf("calculatePath: %v", err)
	}

	if result.Length != 3 {
		t.Errorf("length = %f, want 3 (a is done)", result.Length)
	}
	if result.CriticalTasks["a"] {
		t.Error("completed dependency should not join the path")
	}
}

func TestScheduledDependencyAnchorsStart(t *testing.T) {
	tasks := taskMap(
		makeTask("a", 5),
		makeTask("b", 3, models.Dependency{TaskID: "a"}),
		makeTask("c", 4, models.Dependency{TaskID: "b"}),
	)
	deps := buildDependents(tasks)
	scheduledEnd := map[string]float64{"a": 10}

	result, err := calculatePath("c", tasks, scheduledEnd, nil, deps)
	if err != nil {
		t.Fatalf("calculatePath: %v", err)
	}

	// a is committed ending at day 10; b's path starts there.
	if got := result.Timings["b"].EarliestStart; math.Abs(got-10.0) > 1e-9 {
		t.Errorf("b earliest start = %f, want 10", got)
	}
	if result.Length != 17 {
		t.Errorf("length = %f, want 17 (10 + 3 + 4)", result.Length)
	}
}
