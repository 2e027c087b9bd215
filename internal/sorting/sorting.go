// Package sorting computes per-task urgency keys for the scheduler.
//
// Four strategies are implemented:
//
//	priority_first: priority dominates, CR breaks ties
//	cr_first:       critical ratio dominates, priority breaks ties
//	weighted:       blended score combining CR and priority
//	atc:            apparent tardiness cost with exponential urgency decay
package sorting

import (
	"math"
	"sort"
	"time"

	"github.com/plancraft/plancraft/internal/config"
)

// Info holds what a sort key needs to know about a task.
type Info struct {
	DurationDays float64
	Deadline     time.Time // zero = no deadline
	Priority     int
}

// ATCParams are the per-tick aggregates the atc strategy needs.
type ATCParams struct {
	AvgDuration    float64
	DefaultUrgency float64
}

// Key is a uniform, totally ordered sort key. Lower sorts first (more
// urgent). Primary carries the strategy's main score, Secondary the
// tiebreak score, and TaskID makes the order deterministic.
type Key struct {
	Primary   float64
	Secondary float64
	TaskID    string
}

// Less imposes the total order.
func (k Key) Less(other Key) bool {
	if k.Primary != other.Primary {
		return k.Primary < other.Primary
	}
	if k.Secondary != other.Secondary {
		return k.Secondary < other.Secondary
	}
	return k.TaskID < other.TaskID
}

// CriticalRatio computes slack / max(duration, 1). Lower means more
// urgent. Tasks without deadlines receive defaultCR.
func CriticalRatio(deadline time.Time, durationDays float64, now time.Time, defaultCR float64) float64 {
	if deadline.IsZero() {
		return defaultCR
	}
	slack := float64(daysBetween(now, deadline))
	return slack / math.Max(durationDays, 1.0)
}

// ATCScore computes the apparent tardiness cost: a WSPT term times an
// exponential urgency decay. Higher means more urgent.
func ATCScore(deadline time.Time, durationDays float64, priority int, now time.Time, atcK float64, params ATCParams) float64 {
	wspt := float64(priority) / math.Max(durationDays, 0.1)

	urgency := params.DefaultUrgency
	if !deadline.IsZero() {
		slack := float64(daysBetween(now, deadline)) - durationDays
		if slack <= 0 {
			urgency = 1.0
		} else {
			urgency = math.Exp(-slack / (atcK * params.AvgDuration))
		}
	}

	return wspt * urgency
}

// ComputeKey builds the sort key for one task under the configured
// strategy.
func ComputeKey(taskID string, info Info, now time.Time, defaultCR float64, cfg *config.SchedulingConfig, atc *ATCParams) (Key, error) {
	cr := CriticalRatio(info.Deadline, info.DurationDays, now, defaultCR)

	switch cfg.Strategy {
	case config.StrategyPriorityFirst:
		return Key{Primary: -float64(info.Priority), Secondary: cr, TaskID: taskID}, nil
	case config.StrategyCRFirst:
		return Key{Primary: cr, Secondary: -float64(info.Priority), TaskID: taskID}, nil
	case config.StrategyWeighted:
		score := cfg.CRWeight*cr + cfg.PriorityWeight*(100.0-float64(info.Priority))
		return Key{Primary: score, TaskID: taskID}, nil
	case config.StrategyATC:
		if atc == nil {
			return Key{}, &config.ConfigError{Field: "strategy", Reason: "atc strategy requires atc parameters"}
		}
		score := ATCScore(info.Deadline, info.DurationDays, info.Priority, now, cfg.ATCK, *atc)
		return Key{Primary: -score, TaskID: taskID}, nil
	default:
		return Key{}, &config.ConfigError{Field: "strategy", Reason: "unknown strategy " + string(cfg.Strategy)}
	}
}

// SortTasks orders task ids most-urgent-first under the configured
// strategy. Ties break by task id for determinism.
func SortTasks(taskIDs []string, infos map[string]Info, now time.Time, defaultCR float64, cfg *config.SchedulingConfig, atc *ATCParams) ([]string, error) {
	keys := make([]Key, 0, len(taskIDs))
	for _, id := range taskIDs {
		info, ok := infos[id]
		if !ok {
			return nil, &config.ConfigError{Field: "tasks", Reason: "task not found: " + id}
		}
		key, err := ComputeKey(id, info, now, defaultCR, cfg, atc)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	sorted := make([]string, len(keys))
	for i, k := range keys {
		sorted[i] = k.TaskID
	}
	return sorted, nil
}

func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
