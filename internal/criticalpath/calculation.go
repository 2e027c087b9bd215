// Package criticalpath implements the target-driven scheduler: every
// unscheduled task is a potential target, and only tasks on some target's
// critical path are candidates at each tick.
package criticalpath

import (
	"fmt"
	"math"

	"github.com/plancraft/plancraft/internal/models"
)

const slackEpsilon = 1e-9

// Timing holds CPM forward/backward pass results for one task, in days
// relative to the calculation's reference time.
type Timing struct {
	EarliestStart  float64
	EarliestFinish float64
	LatestStart    float64
	LatestFinish   float64
	Slack          float64
}

// IsCritical reports whether the task lies on the critical path.
func (t Timing) IsCritical() bool { return math.Abs(t.Slack) < slackEpsilon }

// PathResult is the critical path analysis for one target.
type PathResult struct {
	Timings       map[string]Timing
	CriticalTasks map[string]bool
	Length        float64
	TotalWork     float64
}

// depEdge points from a task to one of its dependents.
type depEdge struct {
	dependentID string
	lagDays     float64
}

// buildDependents inverts the dependency edges once for reuse across
// targets.
func buildDependents(tasks map[string]*models.Task) map[string][]depEdge {
	dependents := make(map[string][]depEdge, len(tasks))
	for id, task := range tasks {
		for _, dep := range task.Dependencies {
			dependents[dep.TaskID] = append(dependents[dep.TaskID], depEdge{dependentID: id, lagDays: dep.LagDays})
		}
	}
	return dependents
}

// findSubgraph collects the unscheduled, uncompleted dependency closure of
// the target (the target itself excluded).
func findSubgraph(targetID string, tasks map[string]*models.Task, scheduledEnd map[string]float64, completed map[string]bool) map[string]bool {
	subgraph := make(map[string]bool)
	stack := []string{targetID}
	visited := map[string]bool{targetID: true}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		task := tasks[id]
		if task == nil {
			continue
		}
		for _, dep := range task.Dependencies {
			if visited[dep.TaskID] || completed[dep.TaskID] {
				continue
			}
			if _, ok := scheduledEnd[dep.TaskID]; ok {
				continue
			}
			if _, ok := tasks[dep.TaskID]; !ok {
				continue
			}
			visited[dep.TaskID] = true
			subgraph[dep.TaskID] = true
			stack = append(stack, dep.TaskID)
		}
	}
	return subgraph
}

// topoOrder sorts the subgraph plus target with dependencies before
// dependents.
func topoOrder(subgraph map[string]bool, targetID string, tasks map[string]*models.Task) ([]string, error) {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	marks := make(map[string]int, len(subgraph)+1)
	var order []string

	inScope := func(id string) bool { return subgraph[id] || id == targetID }

	var visit func(id string) error
	visit = func(id string) error {
		switch marks[id] {
		case done:
			return nil
		case inStack:
			return fmt.Errorf("circular dependency through %q", id)
		}
		marks[id] = inStack
		task := tasks[id]
		if task != nil {
			for _, dep := range task.Dependencies {
				if inScope(dep.TaskID) {
					if err := visit(dep.TaskID); err != nil {
						return err
					}
				}
			}
		}
		marks[id] = done
		order = append(order, id)
		return nil
	}

	if err := visit(targetID); err != nil {
		return nil, err
	}
	return order, nil
}

// calculatePath runs CPM over the target's unscheduled dependency
// subgraph. scheduledEnd maps committed tasks to their end offsets in days
// from the reference time; such dependencies anchor earliest starts but do
// not join the subgraph.
func calculatePath(
	targetID string,
	tasks map[string]*models.Task,
	scheduledEnd map[string]float64,
	completed map[string]bool,
	dependents map[string][]depEdge,
) (*PathResult, error) {
	subgraph := findSubgraph(targetID, tasks, scheduledEnd, completed)

	if len(subgraph) == 0 {
		duration := 0.0
		if task := tasks[targetID]; task != nil {
			duration = task.DurationDays
		}
		return &PathResult{
			Timings: map[string]Timing{
				targetID: {EarliestFinish: duration, LatestFinish: duration},
			},
			CriticalTasks: map[string]bool{targetID: true},
			Length:        duration,
			TotalWork:     duration,
		}, nil
	}

	order, err := topoOrder(subgraph, targetID, tasks)
	if err != nil {
		return nil, err
	}

	timings := make(map[string]Timing, len(order))
	totalWork := 0.0

	for _, id := range order {
		task := tasks[id]
		if task == nil {
			continue
		}
		totalWork += task.DurationDays

		earliestStart := 0.0
		for _, dep := range task.Dependencies {
			if completed[dep.TaskID] {
				continue
			}
			if end, ok := scheduledEnd[dep.TaskID]; ok {
				earliestStart = math.Max(earliestStart, end+dep.LagDays)
			} else if t, ok := timings[dep.TaskID]; ok {
				earliestStart = math.Max(earliestStart, t.EarliestFinish+dep.LagDays)
			}
		}

		timings[id] = Timing{
			EarliestStart:  earliestStart,
			EarliestFinish: earliestStart + task.DurationDays,
		}
	}

	length := timings[targetID].EarliestFinish

	if t, ok := timings[targetID]; ok {
		duration := 0.0
		if task := tasks[targetID]; task != nil {
			duration = task.DurationDays
		}
		t.LatestFinish = length
		t.LatestStart = length - duration
		timings[targetID] = t
	}

	// Backward pass in reverse topological order, skipping the target.
	for i := len(order) - 2; i >= 0; i-- {
		id := order[i]
		task := tasks[id]
		if task == nil {
			continue
		}

		latestFinish := math.MaxFloat64
		for _, edge := range dependents[id] {
			if !subgraph[edge.dependentID] && edge.dependentID != targetID {
				continue
			}
			if t, ok := timings[edge.dependentID]; ok {
				latestFinish = math.Min(latestFinish, t.LatestStart-edge.lagDays)
			}
		}
		if latestFinish == math.MaxFloat64 {
			latestFinish = length
		}

		t := timings[id]
		t.LatestFinish = latestFinish
		t.LatestStart = latestFinish - task.DurationDays
		t.Slack = t.LatestStart - t.EarliestStart
		timings[id] = t
	}

	if t, ok := timings[targetID]; ok {
		t.Slack = t.LatestStart - t.EarliestStart
		timings[targetID] = t
	}

	critical := make(map[string]bool)
	for id, t := range timings {
		if t.IsCritical() {
			critical[id] = true
		}
	}

	return &PathResult{
		Timings:       timings,
		CriticalTasks: critical,
		Length:        length,
		TotalWork:     totalWork,
	}, nil
}
