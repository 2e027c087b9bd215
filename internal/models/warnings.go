package models

import (
	"fmt"
	"time"
)

// Warning is a non-fatal finding produced alongside a schedule. The run
// always completes; warnings tell the user where it bent a constraint.
type Warning interface {
	Warning() string
}

// DeadlineMissed reports a task that finishes after its required end date.
type DeadlineMissed struct {
	TaskID      string
	ComputedEnd time.Time
	RequiredEnd time.Time
}

func (w DeadlineMissed) Warning() string {
	days := DaysBetween(w.RequiredEnd, w.ComputedEnd)
	return fmt.Sprintf("task %q finishes %d days after required date (%s vs %s)",
		w.TaskID, days, w.ComputedEnd.Format("2006-01-02"), w.RequiredEnd.Format("2006-01-02"))
}

// FixedTaskPredecessorLate reports a fixed-date task whose predecessor
// ends (plus lag) after the fixed start.
type FixedTaskPredecessorLate struct {
	TaskID        string
	PredecessorID string
	LatenessDays  int
}

func (w FixedTaskPredecessorLate) Warning() string {
	return fmt.Sprintf("fixed task %q starts %d days before predecessor %q completes",
		w.TaskID, w.LatenessDays, w.PredecessorID)
}

// UnassignedTask reports a task that ran on the shared unassigned resource.
type UnassignedTask struct {
	TaskID string
}

func (w UnassignedTask) Warning() string {
	return fmt.Sprintf("task %q has no matching resources and was serialized on the unassigned resource", w.TaskID)
}
