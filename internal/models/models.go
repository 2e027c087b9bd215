// Package models defines the core domain types for plancraft.
package models

import "time"

// Dependency is an edge to a predecessor task with an optional lag.
type Dependency struct {
	TaskID  string  `json:"task_id"`
	LagDays float64 `json:"lag_days,omitempty"`
}

// Allocation binds a resource name to the fraction of its time a task uses.
type Allocation struct {
	Resource   string  `json:"resource"`
	Allocation float64 `json:"allocation"`
}

// Task is the unit of scheduling.
//
// Optional dates use the zero time.Time to mean "not set". A task with
// StartOn or EndOn is fixed: it bypasses the scheduling loop but still
// claims its resources. DurationDays of zero marks a milestone.
type Task struct {
	ID           string       `json:"id"`
	DurationDays float64      `json:"duration_days"`
	Resources    []Allocation `json:"resources,omitempty"`
	Dependencies []Dependency `json:"dependencies,omitempty"`
	StartAfter   time.Time    `json:"start_after,omitempty"`
	EndBefore    time.Time    `json:"end_before,omitempty"`
	StartOn      time.Time    `json:"start_on,omitempty"`
	EndOn        time.Time    `json:"end_on,omitempty"`
	ResourceSpec string       `json:"resource_spec,omitempty"`
	Priority     *int         `json:"priority,omitempty"`
}

// IsMilestone reports whether the task has zero duration.
func (t *Task) IsMilestone() bool { return t.DurationDays == 0 }

// IsFixed reports whether the task has a pinned start or end date.
func (t *Task) IsFixed() bool { return !t.StartOn.IsZero() || !t.EndOn.IsZero() }

// ScheduledTask is the output record for one task.
type ScheduledTask struct {
	TaskID       string    `json:"task_id"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	DurationDays float64   `json:"duration_days"`
	Resources    []string  `json:"resources"`
}

// AlgorithmResult is what a scheduling algorithm returns.
type AlgorithmResult struct {
	ScheduledTasks []ScheduledTask   `json:"scheduled_tasks"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// PreProcessResult carries the backward pass outputs.
type PreProcessResult struct {
	ComputedDeadlines  map[string]time.Time `json:"computed_deadlines"`
	ComputedPriorities map[string]int       `json:"computed_priorities"`
}

// Annotation captures the scheduling outcome for one task, for rendering
// and lock files.
type Annotation struct {
	EstimatedStart        time.Time `json:"estimated_start"`
	EstimatedEnd          time.Time `json:"estimated_end"`
	ComputedDeadline      time.Time `json:"computed_deadline,omitempty"`
	ComputedPriority      int       `json:"computed_priority"`
	DeadlineViolated      bool      `json:"deadline_violated"`
	ResourceAssignments   []string  `json:"resource_assignments"`
	ResourcesWereComputed bool      `json:"resources_were_computed"`
	WasFixed              bool      `json:"was_fixed"`
}

// Result is the complete output of a scheduling run.
type Result struct {
	ScheduledTasks []ScheduledTask       `json:"scheduled_tasks"`
	Annotations    map[string]Annotation `json:"annotations"`
	Warnings       []Warning             `json:"warnings,omitempty"`
	Metadata       map[string]string     `json:"metadata,omitempty"`
}
