package scheduler

import (
	"fmt"
	"strings"
)

// UnscheduledError reports tasks left over at the end of the forward pass.
// It usually means a resource spec matched no live resource or a fixed-date
// task contradicts a DNS period.
type UnscheduledError struct {
	TaskIDs []string
}

func (e *UnscheduledError) Error() string {
	return fmt.Sprintf("failed to schedule tasks: %s", strings.Join(e.TaskIDs, ", "))
}

// UnknownDependencyError reports a dependency edge pointing at a task id
// that does not exist in the bundle.
type UnknownDependencyError struct {
	TaskID    string
	MissingID string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("task %q depends on unknown task %q", e.TaskID, e.MissingID)
}
