package preprocess

import (
	"errors"
	"testing"
	"time"

	"github.com/plancraft/plancraft/internal/models"
)

func d(year int, month time.Month, day int) time.Time {
	return models.Date(year, month, day)
}

func makeTask(id string, duration float64, deps []models.Dependency, endBefore time.Time, priority *int) *models.Task {
	return &models.Task{
		ID:           id,
		DurationDays: duration,
		Dependencies: deps,
		EndBefore:    endBefore,
		Priority:     priority,
	}
}

func intPtr(v int) *int { return &v }

func TestSingleTaskNoDeadline(t *testing.T) {
	tasks := []*models.Task{makeTask("a", 5, nil, time.Time{}, intPtr(50))}

	result, err := BackwardPass(tasks, nil, Config{DefaultPriority: 50})
	if err != nil {
		t.Fatalf("BackwardPass error: %v", err)
	}

	if len(result.ComputedDeadlines) != 0 {
		t.Errorf("expected no deadlines, got %v", result.ComputedDeadlines)
	}
	if result.ComputedPriorities["a"] != 50 {
		t.Errorf("priority = %d, want 50", result.ComputedPriorities["a"])
	}
}

func TestSingleTaskWithDeadline(t *testing.T) {
	deadline := d(2025, 1, 20)
	tasks := []*models.Task{makeTask("a", 5, nil, deadline, intPtr(50))}

	result, err := BackwardPass(tasks, nil, Config{DefaultPriority: 50})
	if err != nil {
		t.Fatalf("BackwardPass error: %v", err)
	}

	if !result.ComputedDeadlines["a"].Equal(deadline) {
		t.Errorf("deadline = %v, want %v", result.ComputedDeadlines["a"], deadline)
	}
}

func TestDeadlinePropagation(t *testing.T) {
	deadline := d(2025, 1, 20)
	tasks := []*models.Task{
		makeTask("a", 5, nil, time.Time{}, intPtr(50)),
		makeTask("b", 3, []models.Dependency{{TaskID: "a"}}, deadline, intPtr(50)),
	}

	result, err := BackwardPass(tasks, nil, Config{DefaultPriority: 50})
	if err != nil {
		t.Fatalf("BackwardPass error: %v", err)
	}

	// a's deadline = Jan 20 - 3 days (b's duration) - 0 lag = Jan 17.
	if want := d(2025, 1, 17); !result.ComputedDeadlines["a"].Equal(want) {
		t.Errorf("a deadline = %v, want %v", result.ComputedDeadlines["a"], want)
	}
	if !result.ComputedDeadlines["b"].Equal(deadline) {
		t.Errorf("b deadline = %v, want %v", result.ComputedDeadlines["b"], deadline)
	}
}

func TestDeadlinePropagationWithLag(t *testing.T) {
	deadline := d(2025, 1, 20)
	tasks := []*models.Task{
		makeTask("a", 5, nil, time.Time{}, intPtr(50)),
		makeTask("b", 3, []models.Dependency{{TaskID: "a", LagDays: 2}}, deadline, intPtr(50)),
	}

	result, err := BackwardPass(tasks, nil, Config{DefaultPriority: 50})
	if err != nil {
		t.Fatalf("BackwardPass error: %v", err)
	}

	// a's deadline = Jan 20 - 3 - 2 = Jan 15.
	if want := d(2025, 1, 15); !result.ComputedDeadlines["a"].Equal(want) {
		t.Errorf("a deadline = %v, want %v", result.ComputedDeadlines["a"], want)
	}
}

func TestPriorityPropagation(t *testing.T) {
	tasks := []*models.Task{
		makeTask("a", 5, nil, time.Time{}, intPtr(50)),
		makeTask("b", 3, []models.Dependency{{TaskID: "a"}}, time.Time{}, intPtr(80)),
	}

	result, err := BackwardPass(tasks, nil, Config{DefaultPriority: 50})
	if err != nil {
		t.Fatalf("BackwardPass error: %v", err)
	}

	if result.ComputedPriorities["a"] != 80 {
		t.Errorf("a priority = %d, want 80 (inherited from b)", result.ComputedPriorities["a"])
	}
}

func TestDiamondDeadlineTakesMin(t *testing.T) {
	deadline := d(2025, 1, 30)
	tasks := []*models.Task{
		makeTask("a", 2, nil, time.Time{}, intPtr(50)),
		makeTask("b", 3, []models.Dependency{{TaskID: "a"}}, time.Time{}, intPtr(50)),
		makeTask("c", 5, []models.Dependency{{TaskID: "a"}}, time.Time{}, intPtr(50)),
		makeTask("d", 4, []models.Dependency{{TaskID: "b"}, {TaskID: "c"}}, deadline, intPtr(50)),
	}

	result, err := BackwardPass(tasks, nil, Config{DefaultPriority: 50})
	if err != nil {
		t.Fatalf("BackwardPass error: %v", err)
	}

	// a via b: Jan 30 - 4 - 3 = Jan 23; a via c: Jan 30 - 4 - 5 = Jan 21.
	if want := d(2025, 1, 21); !result.ComputedDeadlines["a"].Equal(want) {
		t.Errorf("a deadline = %v, want %v", result.ComputedDeadlines["a"], want)
	}
}

func TestCycleDetection(t *testing.T) {
	tasks := []*models.Task{
		makeTask("a", 5, []models.Dependency{{TaskID: "b"}}, time.Time{}, intPtr(50)),
		makeTask("b", 3, []models.Dependency{{TaskID: "a"}}, time.Time{}, intPtr(50)),
	}

	_, err := BackwardPass(tasks, nil, Config{DefaultPriority: 50})

	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if len(cycleErr.Edges) == 0 {
		t.Error("cycle error should list residual edges")
	}
}

func TestCompletedTaskExcluded(t *testing.T) {
	deadline := d(2025, 1, 20)
	tasks := []*models.Task{
		makeTask("a", 5, nil, time.Time{}, intPtr(50)),
		makeTask("b", 3, []models.Dependency{{TaskID: "a"}}, deadline, intPtr(80)),
	}
	completed := map[string]bool{"a": true}

	result, err := BackwardPass(tasks, completed, Config{DefaultPriority: 50})
	if err != nil {
		t.Fatalf("BackwardPass error: %v", err)
	}

	if result.ComputedPriorities["a"] != 50 {
		t.Errorf("completed task inherited priority: %d", result.ComputedPriorities["a"])
	}
	if _, ok := result.ComputedDeadlines["a"]; ok {
		t.Error("completed task received propagated deadline")
	}
}

func TestDefaultPriority(t *testing.T) {
	tasks := []*models.Task{makeTask("a", 5, nil, time.Time{}, nil)}

	result, err := BackwardPass(tasks, nil, Config{DefaultPriority: 75})
	if err != nil {
		t.Fatalf("BackwardPass error: %v", err)
	}

	if result.ComputedPriorities["a"] != 75 {
		t.Errorf("priority = %d, want 75", result.ComputedPriorities["a"])
	}
}

func TestEndOnBeatsEndBefore(t *testing.T) {
	task := makeTask("a", 5, nil, d(2025, 1, 20), intPtr(50))
	task.EndOn = d(2025, 1, 10)

	result, err := BackwardPass([]*models.Task{task}, nil, Config{DefaultPriority: 50})
	if err != nil {
		t.Fatalf("BackwardPass error: %v", err)
	}

	if want := d(2025, 1, 10); !result.ComputedDeadlines["a"].Equal(want) {
		t.Errorf("deadline = %v, want end_on %v", result.ComputedDeadlines["a"], want)
	}
}
