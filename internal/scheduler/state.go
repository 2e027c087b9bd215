package scheduler

import (
	"time"

	"github.com/plancraft/plancraft/internal/models"
	"github.com/plancraft/plancraft/internal/resource"
)

// span is a committed start/end pair.
type span struct {
	start time.Time
	end   time.Time
}

// state is the mutable scheduling state. Rollout simulations run on deep
// clones so committed state is never touched.
type state struct {
	scheduled   map[string]span
	unscheduled map[string]bool
	schedules   map[string]*resource.Schedule
	now         time.Time
	result      []models.ScheduledTask
}

func newState(now time.Time) *state {
	return &state{
		scheduled:   make(map[string]span),
		unscheduled: make(map[string]bool),
		schedules:   make(map[string]*resource.Schedule),
		now:         now,
	}
}

// clone deep-copies the state for a rollout simulation.
func (s *state) clone() *state {
	c := &state{
		scheduled:   make(map[string]span, len(s.scheduled)),
		unscheduled: make(map[string]bool, len(s.unscheduled)),
		schedules:   make(map[string]*resource.Schedule, len(s.schedules)),
		now:         s.now,
		result:      make([]models.ScheduledTask, len(s.result)),
	}
	for id, sp := range s.scheduled {
		c.scheduled[id] = sp
	}
	for id := range s.unscheduled {
		c.unscheduled[id] = true
	}
	for name, sched := range s.schedules {
		c.schedules[name] = sched.Clone()
	}
	copy(c.result, s.result)
	return c
}

// commit records a scheduled task in the state.
func (s *state) commit(task models.ScheduledTask) {
	s.scheduled[task.TaskID] = span{start: task.StartDate, end: task.EndDate}
	delete(s.unscheduled, task.TaskID)
	s.result = append(s.result, task)
}
