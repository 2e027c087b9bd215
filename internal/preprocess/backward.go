// Package preprocess computes derived deadlines and priorities before the
// forward scheduling pass.
package preprocess

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/plancraft/plancraft/internal/models"
)

// CycleError reports a circular dependency. Edges lists the residual
// "task -> dependency" edges that could not be ordered.
type CycleError struct {
	Edges []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Edges, ", "))
}

// Config for the backward pass.
type Config struct {
	// DefaultPriority for tasks without an explicit priority (0-100).
	DefaultPriority int
}

// computeDependencyDeadline derives when a dependency must finish for its
// dependent to meet its own deadline, accounting for lag. Fractional days
// round up to whole days.
func computeDependencyDeadline(dependentDeadline time.Time, dependentDuration, lagDays float64) time.Time {
	total := models.CeilDays(dependentDuration + lagDays)
	return models.AddDays(dependentDeadline, -total)
}

// TopologicalOrder sorts task ids so that tasks with dependents come before
// their dependencies (Kahn's algorithm), which is the order a backward
// deadline propagation needs.
func TopologicalOrder(tasks map[string]*models.Task) ([]string, error) {
	inDegree := make(map[string]int, len(tasks))
	for id := range tasks {
		inDegree[id] = 0
	}
	for _, task := range tasks {
		for _, dep := range task.Dependencies {
			if _, ok := inDegree[dep.TaskID]; ok {
				inDegree[dep.TaskID]++
			}
		}
	}

	var queue []string
	for id, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	order := make([]string, 0, len(tasks))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		task := tasks[id]
		if task == nil {
			continue
		}
		for _, dep := range task.Dependencies {
			if degree, ok := inDegree[dep.TaskID]; ok {
				inDegree[dep.TaskID] = degree - 1
				if degree-1 == 0 {
					queue = append(queue, dep.TaskID)
				}
			}
		}
	}

	if len(order) != len(tasks) {
		placed := make(map[string]bool, len(order))
		for _, id := range order {
			placed[id] = true
		}
		var edges []string
		for id, task := range tasks {
			if placed[id] {
				continue
			}
			for _, dep := range task.Dependencies {
				if _, ok := tasks[dep.TaskID]; ok && !placed[dep.TaskID] {
					edges = append(edges, fmt.Sprintf("%s -> %s", id, dep.TaskID))
				}
			}
		}
		sort.Strings(edges)
		return nil, &CycleError{Edges: edges}
	}

	return order, nil
}

// BackwardPass propagates deadlines backward and priorities forward over
// the dependency graph. Completed tasks are excluded from propagation.
func BackwardPass(tasks []*models.Task, completed map[string]bool, cfg Config) (*models.PreProcessResult, error) {
	taskMap := make(map[string]*models.Task, len(tasks))
	for _, t := range tasks {
		taskMap[t.ID] = t
	}

	order, err := TopologicalOrder(taskMap)
	if err != nil {
		return nil, err
	}

	deadlines := make(map[string]time.Time)
	priorities := make(map[string]int, len(tasks))

	for id, task := range taskMap {
		switch {
		case !task.EndOn.IsZero():
			deadlines[id] = task.EndOn
		case !task.EndBefore.IsZero():
			deadlines[id] = task.EndBefore
		}
		if task.Priority != nil {
			priorities[id] = *task.Priority
		} else {
			priorities[id] = cfg.DefaultPriority
		}
	}

	for _, id := range order {
		task := taskMap[id]
		taskDeadline, hasDeadline := deadlines[id]
		taskPriority := priorities[id]

		for _, dep := range task.Dependencies {
			if _, ok := taskMap[dep.TaskID]; !ok || completed[dep.TaskID] {
				continue
			}

			if taskPriority > priorities[dep.TaskID] {
				priorities[dep.TaskID] = taskPriority
			}

			if hasDeadline {
				depDeadline := computeDependencyDeadline(taskDeadline, task.DurationDays, dep.LagDays)
				existing, ok := deadlines[dep.TaskID]
				if !ok || depDeadline.Before(existing) {
					deadlines[dep.TaskID] = depDeadline
				}
			}
		}
	}

	return &models.PreProcessResult{
		ComputedDeadlines:  deadlines,
		ComputedPriorities: priorities,
	}, nil
}
