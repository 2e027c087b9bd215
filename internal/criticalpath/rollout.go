package criticalpath

import (
	"sort"
	"time"

	"github.com/plancraft/plancraft/internal/models"
)

// competing describes a higher-scoring target whose critical-path task
// wants the contested resource before the current task would release it.
type competing struct {
	targetID    string
	targetScore float64
	taskID      string
	eligible    time.Time
}

// reservationInfo is the outcome of a skip decision: hold the resource for
// the competitor from its eligible date.
type reservationInfo struct {
	resource     string
	taskID       string
	reservedFrom time.Time
}

// checkRolloutSkip decides whether to defer the current task in favor of a
// competing target. It simulates both scenarios with the plain loop
// (rollout disabled, so it never recurses) and compares schedule scores.
func (s *Scheduler) checkRolloutSkip(id string, current targetInfo, targets []targetInfo, chosen *choice, st *cpState) (bool, reservationInfo) {
	competitors := s.findCompetingTargets(id, current, targets, chosen, st)
	if len(competitors) == 0 {
		return false, reservationInfo{}
	}
	top := competitors[0]

	horizon := chosen.end
	if s.cfg.RolloutMaxHorizonDays > 0 {
		horizon = models.MinDate(horizon, models.AddDays(st.now, s.cfg.RolloutMaxHorizonDays))
	}

	scheduleState, err := s.scheduleFromState(st.clone(), horizon, false, "")
	if err != nil {
		return false, reservationInfo{}
	}
	skipState, err := s.scheduleFromState(st.clone(), horizon, false, id)
	if err != nil {
		return false, reservationInfo{}
	}

	scheduleScore := s.scoreState(scheduleState, horizon)
	skipScore := s.scoreState(skipState, horizon)

	if skipScore < scheduleScore {
		return true, reservationInfo{
			resource:     chosen.resources[0],
			taskID:       top.taskID,
			reservedFrom: top.eligible,
		}
	}
	return false, reservationInfo{}
}

// findCompetingTargets scans higher-scoring targets for an unscheduled
// critical-path task that needs the contested resource and becomes
// eligible before the current task's completion.
func (s *Scheduler) findCompetingTargets(id string, current targetInfo, targets []targetInfo, chosen *choice, st *cpState) []competing {
	contested := chosen.resources[0]
	threshold := current.score * s.cfg.RolloutScoreRatioThreshold

	var competitors []competing
	for _, target := range targets {
		if target.id == current.id || target.score <= threshold {
			continue
		}

		cpIDs := make([]string, 0, len(target.path.CriticalTasks))
		for cpID := range target.path.CriticalTasks {
			cpIDs = append(cpIDs, cpID)
		}
		sort.Strings(cpIDs)

		for _, cpID := range cpIDs {
			if cpID == id || !st.unscheduled[cpID] {
				continue
			}
			task := s.tasks[cpID]
			if task == nil || task.IsMilestone() {
				continue
			}
			if !s.taskNeedsResource(cpID, task, contested) {
				continue
			}

			eligible, ok := s.estimateEligibleDate(task, st)
			if !ok || !eligible.Before(chosen.end) {
				continue
			}

			competitors = append(competitors, competing{
				targetID:    target.id,
				targetScore: target.score,
				taskID:      cpID,
				eligible:    eligible,
			})
			break
		}
	}

	sort.Slice(competitors, func(i, j int) bool {
		if competitors[i].targetScore != competitors[j].targetScore {
			return competitors[i].targetScore > competitors[j].targetScore
		}
		return competitors[i].targetID < competitors[j].targetID
	})
	return competitors
}

func (s *Scheduler) taskNeedsResource(id string, task *models.Task, name string) bool {
	for _, a := range task.Resources {
		if a.Resource == name {
			return true
		}
	}
	for _, candidate := range s.candidates[id] {
		if candidate == name {
			return true
		}
	}
	return false
}

// estimateEligibleDate computes when a task could start given committed
// state; false when a dependency is still unscheduled.
func (s *Scheduler) estimateEligibleDate(task *models.Task, st *cpState) (time.Time, bool) {
	eligible := st.now
	for _, dep := range task.Dependencies {
		if s.completed[dep.TaskID] {
			continue
		}
		sp, ok := st.scheduled[dep.TaskID]
		if !ok {
			return time.Time{}, false
		}
		eligible = models.MaxDate(eligible, models.AddDays(sp.end, 1+models.CeilDays(dep.LagDays)))
	}
	if !task.StartAfter.IsZero() {
		eligible = models.MaxDate(eligible, task.StartAfter)
	}
	return eligible, true
}

func (s *Scheduler) scoreState(st *cpState, horizon time.Time) float64 {
	return scoreSchedule(
		st.scheduled,
		st.unscheduled,
		s.tasks,
		s.deadlines,
		s.priority,
		s.completed,
		s.currentDate,
		horizon,
	)
}
