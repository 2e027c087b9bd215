package criticalpath

import (
	"math"
	"time"

	"github.com/plancraft/plancraft/internal/config"
	"github.com/plancraft/plancraft/internal/models"
)

// targetInfo is a scored scheduling goal.
type targetInfo struct {
	id       string
	path     *PathResult
	priority int
	deadline time.Time // zero = none
	urgency  float64
	score    float64
}

// deadlineUrgency computes exp(-slack / (K * avgWork)) where slack is the
// days until the deadline minus the critical path length. Values above 1
// mean the deadline is already slipping; positive slack decays
// exponentially down to the floor.
func deadlineUrgency(deadline time.Time, pathLength float64, now time.Time, cfg config.CriticalPathConfig, avgWork float64) float64 {
	daysUntil := float64(models.DaysBetween(now, deadline))
	slack := daysUntil - pathLength

	urgency := math.Exp(-slack / (cfg.K * math.Max(avgWork, 1.0)))
	if slack > 0 && urgency < cfg.UrgencyFloor {
		return cfg.UrgencyFloor
	}
	return urgency
}

// noDeadlineUrgency derives an urgency for deadline-free targets from the
// least urgent deadline target, so deadline-free work neither starves nor
// dominates. With no deadline targets at all every target is equal.
func noDeadlineUrgency(minDeadlineUrgency float64, haveDeadlines bool, cfg config.CriticalPathConfig) float64 {
	if !haveDeadlines {
		return 1.0
	}
	urgency := minDeadlineUrgency * cfg.NoDeadlineUrgencyMultiplier
	if urgency < cfg.UrgencyFloor {
		return cfg.UrgencyFloor
	}
	return urgency
}

// scoreTarget computes (priority / totalWork) * urgency. Higher is a more
// attractive goal.
func scoreTarget(priority int, totalWork, urgency float64) float64 {
	return float64(priority) / math.Max(totalWork, 0.1) * urgency
}

// wspt scores a task by priority / duration. Higher schedules first.
func wspt(priority int, duration float64) float64 {
	return float64(priority) / math.Max(duration, 0.1)
}

// scoreSchedule rates a (partial) schedule for rollout comparison; lower
// is better. It combines priority-weighted completion times, tardiness
// penalties, and charges for eligible-but-unscheduled tasks.
func scoreSchedule(
	scheduled map[string]scheduledSpan,
	unscheduled map[string]bool,
	tasks map[string]*models.Task,
	deadlines map[string]time.Time,
	priorityOf func(string) int,
	completed map[string]bool,
	startDate, horizon time.Time,
) float64 {
	score := 0.0

	for id, sp := range scheduled {
		priority := float64(priorityOf(id))
		score += float64(models.DaysBetween(startDate, sp.end)) * priority / 100.0

		if deadline, ok := deadlines[id]; ok && sp.end.After(deadline) {
			tardiness := float64(models.DaysBetween(deadline, sp.end))
			score += tardiness * priority * 10.0
		}
	}

	for id := range unscheduled {
		task := tasks[id]
		if task == nil {
			continue
		}

		eligible := true
		for _, dep := range task.Dependencies {
			if completed[dep.TaskID] {
				continue
			}
			if _, ok := scheduled[dep.TaskID]; !ok {
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

		priority := float64(priorityOf(id))
		daysDelayed := float64(models.DaysBetween(startDate, horizon))

		urgencyMult := 1.0
		if deadline, ok := deadlines[id]; ok {
			daysToDeadline := float64(models.DaysBetween(startDate, deadline))
			if daysToDeadline <= 0 {
				urgencyMult = 10.0
			} else {
				urgencyMult = math.Min(10.0/math.Max(daysToDeadline, 1.0), 10.0)
			}
		}
		score += urgencyMult * (priority / 100.0) * daysDelayed

		if deadline, ok := deadlines[id]; ok {
			expectedEnd := models.AddDays(horizon, models.CeilDays(task.DurationDays))
			if expectedEnd.After(deadline) {
				expectedTardiness := float64(models.DaysBetween(deadline, expectedEnd))
				score += expectedTardiness * priority * 10.0
			}
		}
	}

	return score
}
