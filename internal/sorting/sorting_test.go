package sorting

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/plancraft/plancraft/internal/config"
	"github.com/plancraft/plancraft/internal/models"
)

func d(year int, month time.Month, day int) time.Time {
	return models.Date(year, month, day)
}

func makeConfig(strategy config.Strategy) *config.SchedulingConfig {
	cfg := config.DefaultSchedulingConfig()
	cfg.Strategy = strategy
	return cfg
}

func TestCriticalRatioWithDeadline(t *testing.T) {
	cr := CriticalRatio(d(2025, 1, 31), 10.0, d(2025, 1, 1), 99.0)
	if math.Abs(cr-3.0) > 0.001 {
		t.Errorf("CR = %f, want 3.0", cr)
	}
}

func TestCriticalRatioWithoutDeadline(t *testing.T) {
	cr := CriticalRatio(time.Time{}, 10.0, d(2025, 1, 1), 99.0)
	if math.Abs(cr-99.0) > 0.001 {
		t.Errorf("CR = %f, want default 99.0", cr)
	}
}

func TestCriticalRatioZeroDurationClamped(t *testing.T) {
	cr := CriticalRatio(d(2025, 1, 31), 0.0, d(2025, 1, 1), 99.0)
	if math.Abs(cr-30.0) > 0.001 {
		t.Errorf("CR = %f, want 30.0 (duration clamped to 1)", cr)
	}
}

func TestPriorityFirstStrategy(t *testing.T) {
	cfg := makeConfig(config.StrategyPriorityFirst)
	deadline := d(2025, 1, 31)

	infos := map[string]Info{
		"high_pri": {DurationDays: 5, Deadline: deadline, Priority: 90},
		"low_pri":  {DurationDays: 5, Deadline: deadline, Priority: 30},
	}

	sorted, err := SortTasks([]string{"low_pri", "high_pri"}, infos, d(2025, 1, 1), 10.0, cfg, nil)
	if err != nil {
		t.Fatalf("SortTasks error: %v", err)
	}
	if !reflect.DeepEqual(sorted, []string{"high_pri", "low_pri"}) {
		t.Errorf("sorted = %v", sorted)
	}
}

func TestCRFirstStrategy(t *testing.T) {
	cfg := makeConfig(config.StrategyCRFirst)

	infos := map[string]Info{
		"tight":   {DurationDays: 20, Deadline: d(2025, 1, 31), Priority: 50},
		"relaxed": {DurationDays: 5, Deadline: d(2025, 1, 31), Priority: 50},
	}

	sorted, err := SortTasks([]string{"relaxed", "tight"}, infos, d(2025, 1, 1), 10.0, cfg, nil)
	if err != nil {
		t.Fatalf("SortTasks error: %v", err)
	}
	if !reflect.DeepEqual(sorted, []string{"tight", "relaxed"}) {
		t.Errorf("sorted = %v", sorted)
	}
}

func TestWeightedStrategy(t *testing.T) {
	cfg := makeConfig(config.StrategyWeighted)
	deadline := d(2025, 1, 31)

	// a: 10*3.0 + 1*(100-90) = 40; b: 10*6.0 + 1*(100-50) = 110.
	infos := map[string]Info{
		"task_a": {DurationDays: 10, Deadline: deadline, Priority: 90},
		"task_b": {DurationDays: 5, Deadline: deadline, Priority: 50},
	}

	sorted, err := SortTasks([]string{"task_b", "task_a"}, infos, d(2025, 1, 1), 10.0, cfg, nil)
	if err != nil {
		t.Fatalf("SortTasks error: %v", err)
	}
	if !reflect.DeepEqual(sorted, []string{"task_a", "task_b"}) {
		t.Errorf("sorted = %v", sorted)
	}
}

func TestATCStrategy(t *testing.T) {
	cfg := makeConfig(config.StrategyATC)
	params := &ATCParams{AvgDuration: 10.0, DefaultUrgency: 0.3}

	infos := map[string]Info{
		"urgent":  {DurationDays: 5, Deadline: d(2025, 1, 6), Priority: 50},
		"relaxed": {DurationDays: 5, Deadline: d(2025, 2, 28), Priority: 50},
	}

	sorted, err := SortTasks([]string{"relaxed", "urgent"}, infos, d(2025, 1, 1), 10.0, cfg, params)
	if err != nil {
		t.Fatalf("SortTasks error: %v", err)
	}
	if !reflect.DeepEqual(sorted, []string{"urgent", "relaxed"}) {
		t.Errorf("sorted = %v", sorted)
	}
}

func TestATCNoDeadlineUsesDefaultUrgency(t *testing.T) {
	cfg := makeConfig(config.StrategyATC)
	params := &ATCParams{AvgDuration: 10.0, DefaultUrgency: 0.5}

	infos := map[string]Info{
		"no_deadline":  {DurationDays: 5, Priority: 80},
		"far_deadline": {DurationDays: 5, Deadline: d(2025, 6, 30), Priority: 50},
	}

	sorted, err := SortTasks([]string{"far_deadline", "no_deadline"}, infos, d(2025, 1, 1), 10.0, cfg, params)
	if err != nil {
		t.Fatalf("SortTasks error: %v", err)
	}
	if !reflect.DeepEqual(sorted, []string{"no_deadline", "far_deadline"}) {
		t.Errorf("sorted = %v", sorted)
	}
}

func TestATCMissingParamsError(t *testing.T) {
	cfg := makeConfig(config.StrategyATC)
	infos := map[string]Info{"task": {DurationDays: 5, Priority: 50}}

	if _, err := SortTasks([]string{"task"}, infos, d(2025, 1, 1), 10.0, cfg, nil); err == nil {
		t.Fatal("expected error for atc without params")
	}
}

func TestUnknownStrategyError(t *testing.T) {
	cfg := makeConfig("mystery")
	infos := map[string]Info{"task": {DurationDays: 5, Priority: 50}}

	if _, err := SortTasks([]string{"task"}, infos, d(2025, 1, 1), 10.0, cfg, nil); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestTieBreakByTaskID(t *testing.T) {
	cfg := makeConfig(config.StrategyWeighted)
	deadline := d(2025, 1, 31)

	infos := map[string]Info{
		"task_b": {DurationDays: 10, Deadline: deadline, Priority: 50},
		"task_a": {DurationDays: 10, Deadline: deadline, Priority: 50},
	}

	sorted, err := SortTasks([]string{"task_b", "task_a"}, infos, d(2025, 1, 1), 10.0, cfg, nil)
	if err != nil {
		t.Fatalf("SortTasks error: %v", err)
	}
	if !reflect.DeepEqual(sorted, []string{"task_a", "task_b"}) {
		t.Errorf("sorted = %v, want alphabetical tie-break", sorted)
	}
}
