// Package service wires validation, preprocessing, and the scheduling
// algorithms into the single entry point the rest of the tool consumes.
package service

import (
	"sort"
	"time"

	"github.com/plancraft/plancraft/internal/config"
	"github.com/plancraft/plancraft/internal/criticalpath"
	"github.com/plancraft/plancraft/internal/lock"
	"github.com/plancraft/plancraft/internal/models"
	"github.com/plancraft/plancraft/internal/preprocess"
	"github.com/plancraft/plancraft/internal/resource"
	"github.com/plancraft/plancraft/internal/scheduler"
)

// Bundle aggregates everything one scheduling run needs.
type Bundle struct {
	Tasks            []*models.Task
	Resources        *resource.Config
	GlobalDNSPeriods []resource.Period
	CurrentDate      time.Time
	CompletedTaskIDs map[string]bool
	Config           *config.SchedulingConfig
	Lock             *lock.ScheduleLock
}

// Schedule runs the bundle through validation, preprocessing, and the
// configured algorithm. Same bundle, same result.
func Schedule(b *Bundle) (*models.Result, error) {
	cfg := b.Config
	if cfg == nil {
		cfg = config.DefaultSchedulingConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.Resources != nil {
		if err := b.Resources.Validate(); err != nil {
			return nil, err
		}
	}

	completed := b.CompletedTaskIDs
	if completed == nil {
		completed = make(map[string]bool)
	}

	tasks, warnings, computedResources, err := normalizeTasks(b, cfg)
	if err != nil {
		return nil, err
	}

	var (
		algorithmResult *models.AlgorithmResult
		deadlines       map[string]time.Time
		priorities      map[string]int
		unassignedIDs   []string
	)

	switch cfg.Algorithm {
	case config.AlgorithmCriticalPath:
		// Critical path reasons globally from explicit deadlines; the
		// backward pass would contaminate upstream priorities.
		cp, err := criticalpath.New(tasks, b.CurrentDate, completed, cfg, b.Resources, b.GlobalDNSPeriods)
		if err != nil {
			return nil, err
		}
		algorithmResult, err = cp.Schedule()
		if err != nil {
			return nil, err
		}
		deadlines = explicitDeadlines(tasks)
		priorities = explicitPriorities(tasks, cfg.DefaultPriority)
		unassignedIDs = cp.UnassignedTaskIDs()

	default:
		pre, err := preprocess.BackwardPass(tasks, completed, preprocess.Config{
			DefaultPriority: cfg.DefaultPriority,
		})
		if err != nil {
			return nil, err
		}

		var rollout *config.RolloutConfig
		if cfg.Algorithm == config.AlgorithmBoundedRollout {
			rc := cfg.Rollout
			rollout = &rc
		}

		sgs, err := scheduler.New(tasks, b.CurrentDate, completed, cfg, rollout, b.Resources, b.GlobalDNSPeriods, pre)
		if err != nil {
			return nil, err
		}
		algorithmResult, err = sgs.Schedule()
		if err != nil {
			return nil, err
		}
		deadlines = sgs.ComputedDeadlines()
		priorities = sgs.ComputedPriorities()
		unassignedIDs = sgs.UnassignedTaskIDs()
	}

	for _, id := range unassignedIDs {
		warnings = append(warnings, models.UnassignedTask{TaskID: id})
	}

	result := buildResult(tasks, algorithmResult, deadlines, priorities, computedResources, warnings)
	return result, nil
}

// normalizeTasks validates dependency references, applies lock entries,
// and routes resource-less tasks to the default resource spec when one is
// configured, else to the unassigned resource. Durations are used as given;
// the loader has already divided them by total allocation.
func normalizeTasks(b *Bundle, cfg *config.SchedulingConfig) ([]*models.Task, []models.Warning, map[string]bool, error) {
	known := make(map[string]bool, len(b.Tasks))
	for _, t := range b.Tasks {
		known[t.ID] = true
	}
	for _, t := range b.Tasks {
		for _, dep := range t.Dependencies {
			if !known[dep.TaskID] && !b.CompletedTaskIDs[dep.TaskID] {
				return nil, nil, nil, &scheduler.UnknownDependencyError{TaskID: t.ID, MissingID: dep.TaskID}
			}
		}
	}

	var warnings []models.Warning
	computedResources := make(map[string]bool)

	tasks := make([]*models.Task, 0, len(b.Tasks))
	for _, orig := range b.Tasks {
		t := *orig

		if b.Lock != nil {
			if entry, ok := b.Lock.Locks[t.ID]; ok {
				t.StartOn = entry.StartDate
				t.EndOn = entry.EndDate
				t.Resources = entry.Resources
				t.ResourceSpec = ""
			}
		}

		if t.ResourceSpec != "" {
			computedResources[t.ID] = true
		}

		if len(t.Resources) == 0 && t.ResourceSpec == "" && !t.IsMilestone() {
			if b.Resources != nil && b.Resources.DefaultResource != "" {
				t.ResourceSpec = b.Resources.DefaultResource
				computedResources[t.ID] = true
			} else {
				t.Resources = []models.Allocation{{Resource: resource.Unassigned, Allocation: 1.0}}
				warnings = append(warnings, models.UnassignedTask{TaskID: t.ID})
			}
		}

		tasks = append(tasks, &t)
	}

	return tasks, warnings, computedResources, nil
}

func explicitDeadlines(tasks []*models.Task) map[string]time.Time {
	deadlines := make(map[string]time.Time)
	for _, t := range tasks {
		switch {
		case !t.EndOn.IsZero():
			deadlines[t.ID] = t.EndOn
		case !t.EndBefore.IsZero():
			deadlines[t.ID] = t.EndBefore
		}
	}
	return deadlines
}

func explicitPriorities(tasks []*models.Task, defaultPriority int) map[string]int {
	priorities := make(map[string]int, len(tasks))
	for _, t := range tasks {
		if t.Priority != nil {
			priorities[t.ID] = *t.Priority
		} else {
			priorities[t.ID] = defaultPriority
		}
	}
	return priorities
}

// buildResult assembles annotations and warnings around the raw algorithm
// output. Deadline checks treat end_date == deadline as on time.
func buildResult(
	tasks []*models.Task,
	ar *models.AlgorithmResult,
	deadlines map[string]time.Time,
	priorities map[string]int,
	computedResources map[string]bool,
	warnings []models.Warning,
) *models.Result {
	taskByID := make(map[string]*models.Task, len(tasks))
	for _, t := range tasks {
		taskByID[t.ID] = t
	}
	scheduledByID := make(map[string]models.ScheduledTask, len(ar.ScheduledTasks))
	for _, st := range ar.ScheduledTasks {
		scheduledByID[st.TaskID] = st
	}

	annotations := make(map[string]models.Annotation, len(ar.ScheduledTasks))
	for _, st := range ar.ScheduledTasks {
		task := taskByID[st.TaskID]
		deadline := deadlines[st.TaskID]
		violated := !deadline.IsZero() && st.EndDate.After(deadline)

		annotations[st.TaskID] = models.Annotation{
			EstimatedStart:        st.StartDate,
			EstimatedEnd:          st.EndDate,
			ComputedDeadline:      deadline,
			ComputedPriority:      priorities[st.TaskID],
			DeadlineViolated:      violated,
			ResourceAssignments:   st.Resources,
			ResourcesWereComputed: computedResources[st.TaskID],
			WasFixed:              task != nil && task.IsFixed(),
		}

		if violated {
			warnings = append(warnings, models.DeadlineMissed{
				TaskID:      st.TaskID,
				ComputedEnd: st.EndDate,
				RequiredEnd: deadline,
			})
		}
	}

	// Fixed tasks whose predecessors land after the pinned start.
	for _, t := range tasks {
		if !t.IsFixed() {
			continue
		}
		st, ok := scheduledByID[t.ID]
		if !ok {
			continue
		}
		for _, dep := range t.Dependencies {
			pred, ok := scheduledByID[dep.TaskID]
			if !ok {
				continue
			}
			required := models.AddDays(pred.EndDate, 1+models.CeilDays(dep.LagDays))
			if required.After(st.StartDate) {
				warnings = append(warnings, models.FixedTaskPredecessorLate{
					TaskID:        t.ID,
					PredecessorID: dep.TaskID,
					LatenessDays:  models.DaysBetween(st.StartDate, required),
				})
			}
		}
	}

	sorted := make([]models.ScheduledTask, len(ar.ScheduledTasks))
	copy(sorted, ar.ScheduledTasks)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].StartDate.Equal(sorted[j].StartDate) {
			return sorted[i].StartDate.Before(sorted[j].StartDate)
		}
		return sorted[i].TaskID < sorted[j].TaskID
	})

	return &models.Result{
		ScheduledTasks: sorted,
		Annotations:    annotations,
		Warnings:       warnings,
		Metadata:       ar.Metadata,
	}
}
