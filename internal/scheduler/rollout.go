package scheduler

import (
	"math"
	"sort"
	"time"

	"github.com/plancraft/plancraft/internal/config"
	"github.com/plancraft/plancraft/internal/models"
	"github.com/plancraft/plancraft/internal/sorting"
)

// RolloutDecision records one schedule-vs-skip choice for explainability.
type RolloutDecision struct {
	TaskID                string    `json:"task_id"`
	TaskPriority          int       `json:"task_priority"`
	TaskCR                float64   `json:"task_cr"`
	CompetingTaskID       string    `json:"competing_task_id"`
	CompetingPriority     int       `json:"competing_priority"`
	CompetingCR           float64   `json:"competing_cr"`
	CompetingEligibleDate time.Time `json:"competing_eligible_date"`
	ScheduleScore         float64   `json:"schedule_score"`
	SkipScore             float64   `json:"skip_score"`
	Decision              string    `json:"decision"`
}

// upcomingTask is a more-urgent task becoming eligible inside the horizon.
type upcomingTask struct {
	id           string
	priority     int
	cr           float64
	eligibleDate time.Time
}

// taskCR computes the critical ratio of a task at a point in time, using
// the config floor for tasks without deadlines.
func (s *Scheduler) taskCR(id string, now time.Time) float64 {
	duration := 1.0
	if task := s.tasks[id]; task != nil {
		duration = task.DurationDays
	}
	deadline, ok := s.deadlines[id]
	if !ok || deadline.IsZero() {
		return s.cfg.DefaultCRFloor
	}
	return sorting.CriticalRatio(deadline, duration, now, s.cfg.DefaultCRFloor)
}

// shouldSkipForRollout decides whether to defer the leading candidate. It
// triggers only for relaxed tasks with a strictly more urgent competitor
// arriving before completion, then simulates both scenarios to the horizon
// and picks the lower score. Rollout never recurses: simulations run the
// plain forward pass.
func (s *Scheduler) shouldSkipForRollout(id string, task *models.Task, completion time.Time, st *state) bool {
	rc := s.rollout

	taskPriority := s.priority(id)
	taskCR := s.taskCR(id, st.now)

	lowPriority := taskPriority < rc.PriorityThreshold
	relaxedCR := taskCR > rc.CRRelaxedThreshold
	if !lowPriority && !relaxedCR {
		return false
	}
	if task.IsMilestone() {
		return false
	}

	upcoming := s.findUpcomingUrgentTasks(id, completion, st)
	if len(upcoming) == 0 {
		return false
	}
	competitor := upcoming[0]

	s.cfg.Logf(config.VerbosityChecks,
		"    rollout triggered: %s (pri=%d, cr=%.2f) vs %s (pri=%d, cr=%.2f, eligible=%s)",
		id, taskPriority, taskCR,
		competitor.id, competitor.priority, competitor.cr, competitor.eligibleDate.Format("2006-01-02"))

	horizon := s.capHorizon(completion, st.now)

	scheduleScore := s.runSimulation(st.clone(), horizon, "")
	skipScore := s.runSimulation(st.clone(), horizon, id)

	s.cfg.Logf(config.VerbosityChecks, "    rollout scores: schedule=%.2f, skip=%.2f", scheduleScore, skipScore)

	decision := "schedule"
	if skipScore < scheduleScore {
		decision = "skip"
		s.cfg.Logf(config.VerbosityChanges, "  rollout: skipping %s to wait for %s", id, competitor.id)
	}

	s.decisions = append(s.decisions, RolloutDecision{
		TaskID:                id,
		TaskPriority:          taskPriority,
		TaskCR:                taskCR,
		CompetingTaskID:       competitor.id,
		CompetingPriority:     competitor.priority,
		CompetingCR:           competitor.cr,
		CompetingEligibleDate: competitor.eligibleDate,
		ScheduleScore:         scheduleScore,
		SkipScore:             skipScore,
		Decision:              decision,
	})

	return decision == "skip"
}

// capHorizon bounds the simulation horizon by the configured maximum.
func (s *Scheduler) capHorizon(horizon, now time.Time) time.Time {
	if s.rollout.MaxHorizonDays <= 0 {
		return horizon
	}
	return models.MinDate(horizon, models.AddDays(now, s.rollout.MaxHorizonDays))
}

// findUpcomingUrgentTasks collects unscheduled tasks strictly more urgent
// than the candidate that become eligible before the candidate's
// completion. Tasks with unscheduled dependencies cannot be estimated and
// are skipped.
func (s *Scheduler) findUpcomingUrgentTasks(id string, horizon time.Time, st *state) []upcomingTask {
	rc := s.rollout
	taskPriority := s.priority(id)
	taskCR := s.taskCR(id, st.now)

	var upcoming []upcomingTask
	for otherID := range st.unscheduled {
		if otherID == id {
			continue
		}

		otherPriority := s.priority(otherID)
		otherCR := s.taskCR(otherID, st.now)

		higherPriority := otherPriority >= taskPriority+rc.MinPriorityGap
		tighterCR := taskCR-otherCR >= rc.MinCRUrgencyGap && otherPriority >= taskPriority-rc.MinPriorityGap
		if !higherPriority && !tighterCR {
			continue
		}

		other := s.tasks[otherID]
		if other == nil {
			continue
		}

		eligibleDate := st.now
		estimable := true
		for _, dep := range other.Dependencies {
			if s.completed[dep.TaskID] {
				continue
			}
			sp, ok := st.scheduled[dep.TaskID]
			if !ok {
				estimable = false
				break
			}
			depEligible := models.AddDays(sp.end, 1+models.CeilDays(dep.LagDays))
			eligibleDate = models.MaxDate(eligibleDate, depEligible)
		}
		if !estimable {
			continue
		}
		if !other.StartAfter.IsZero() {
			eligibleDate = models.MaxDate(eligibleDate, other.StartAfter)
		}

		if eligibleDate.Before(horizon) {
			upcoming = append(upcoming, upcomingTask{
				id:           otherID,
				priority:     otherPriority,
				cr:           otherCR,
				eligibleDate: eligibleDate,
			})
		}
	}

	sort.Slice(upcoming, func(i, j int) bool {
		if upcoming[i].priority != upcoming[j].priority {
			return upcoming[i].priority > upcoming[j].priority
		}
		return upcoming[i].id < upcoming[j].id
	})
	return upcoming
}

// runSimulation runs the plain forward pass on a cloned state until the
// horizon and scores the outcome. skipID, when set, is excluded at the
// initial tick only.
func (s *Scheduler) runSimulation(sim *state, horizon time.Time, skipID string) float64 {
	initialTime := sim.now
	maxIterations := len(s.tasks)*10 + 1

	for iter := 0; iter < maxIterations; iter++ {
		if len(sim.unscheduled) == 0 || sim.now.After(horizon) {
			break
		}

		eligible := s.findEligibleTasks(sim)
		if len(eligible) == 0 {
			next, ok := s.findNextEventTime(sim)
			if !ok || next.After(horizon) {
				break
			}
			sim.now = next
			continue
		}

		sorted, err := s.sortEligible(eligible, sim)
		if err != nil {
			break
		}

		scheduledAny := false
		for _, id := range sorted {
			if id == skipID && sim.now.Equal(initialTime) {
				continue
			}
			task := s.tasks[id]
			if task == nil {
				continue
			}
			if s.trySimSchedule(id, task, sim) {
				scheduledAny = true
			}
		}

		if !scheduledAny {
			next, ok := s.findNextEventTime(sim)
			if !ok || next.After(horizon) {
				break
			}
			sim.now = next
		}
	}

	return s.evaluatePartialSchedule(sim, horizon)
}

// trySimSchedule schedules one task inside a simulation, without the
// rollout gate.
func (s *Scheduler) trySimSchedule(id string, task *models.Task, sim *state) bool {
	if task.IsMilestone() {
		sim.commit(models.ScheduledTask{TaskID: id, StartDate: sim.now, EndDate: sim.now})
		return true
	}

	var committed *models.ScheduledTask
	if task.ResourceSpec != "" && s.resources != nil {
		committed = s.tryAutoAssignment(id, task, sim, false)
	} else {
		committed = s.tryExplicitResources(id, task, sim, false)
	}
	if committed == nil {
		return false
	}
	sim.commit(*committed)
	return true
}

// evaluatePartialSchedule scores a simulated state; lower is better. It
// rewards early starts for high-priority work, punishes tardiness tenfold,
// and charges eligible-but-unscheduled tasks for their delay and expected
// tardiness.
func (s *Scheduler) evaluatePartialSchedule(sim *state, horizon time.Time) float64 {
	score := 0.0

	for _, st := range sim.result {
		priority := float64(s.priority(st.TaskID))

		daysFromStart := float64(models.DaysBetween(s.currentDate, st.StartDate))
		score += daysFromStart * priority / 100.0

		if deadline, ok := s.deadlines[st.TaskID]; ok && !deadline.IsZero() && st.EndDate.After(deadline) {
			tardiness := float64(models.DaysBetween(deadline, st.EndDate))
			score += tardiness * priority * 10.0
		}
	}

	for id := range sim.unscheduled {
		task := s.tasks[id]
		if task == nil {
			continue
		}

		eligible := true
		for _, dep := range task.Dependencies {
			if s.completed[dep.TaskID] {
				continue
			}
			if _, ok := sim.scheduled[dep.TaskID]; !ok {
				eligible = false
				break
			}
		}
		if eligible && !task.StartAfter.IsZero() && task.StartAfter.After(horizon) {
			eligible = false
		}
		if !eligible {
			continue
		}

		priority := float64(s.priority(id))
		cr := s.taskCR(id, s.currentDate)
		urgencyMult := math.Min(10.0/math.Max(cr, 0.1), 100.0)
		daysDelayed := float64(models.DaysBetween(s.currentDate, horizon))
		score += daysDelayed * (priority / 100.0) * urgencyMult

		if deadline, ok := s.deadlines[id]; ok && !deadline.IsZero() {
			expectedEnd := models.AddDays(horizon, models.CeilDays(task.DurationDays))
			if expectedEnd.After(deadline) {
				expectedTardiness := float64(models.DaysBetween(deadline, expectedEnd))
				score += expectedTardiness * priority * 10.0
			}
		}
	}

	return score
}
