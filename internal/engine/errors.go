package engine

import (
	"fmt"
	"strings"
)

// UnauthorizedError indicates the actor may not perform the requested change.
type UnauthorizedError struct {
	ActorID string
}

func (e UnauthorizedError) Error() string {
	return fmt.Sprintf("actor %s is not permitted to perform this change", e.ActorID)
}

// InvalidTransitionError indicates an illegal status edge.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid task status transition %s -> %s", e.From, e.To)
}

// ApprovalRequiredError indicates completion was attempted without a governing approval.
type ApprovalRequiredError struct {
	TaskID string
}

func (e ApprovalRequiredError) Error() string {
	return fmt.Sprintf("task %s requires an approval before it can be completed", e.TaskID)
}

// BlockedByDependencyError carries the titles of unfinished prerequisites.
// Titles is capped; Total holds the full count.
type BlockedByDependencyError struct {
	Titles []string
	Total  int
}

func (e BlockedByDependencyError) Error() string {
	list := strings.Join(e.Titles, ", ")
	if e.Total > len(e.Titles) {
		list = fmt.Sprintf("%s (+%d more)", list, e.Total-len(e.Titles))
	}
	return fmt.Sprintf("blocked by unfinished prerequisites: %s", list)
}

// SelfDependencyError indicates a task depending on itself.
type SelfDependencyError struct {
	TaskID string
}

func (e SelfDependencyError) Error() string {
	return fmt.Sprintf("task %s cannot depend on itself", e.TaskID)
}

// CrossProjectDependencyError indicates an edge between tasks of different projects.
type CrossProjectDependencyError struct {
	TaskID          string
	DependsOnTaskID string
}

func (e CrossProjectDependencyError) Error() string {
	return fmt.Sprintf("tasks %s and %s are not in the same project", e.TaskID, e.DependsOnTaskID)
}

// CircularDependencyError indicates an edge that would close a cycle.
type CircularDependencyError struct {
	TaskID          string
	DependsOnTaskID string
}

func (e CircularDependencyError) Error() string {
	return fmt.Sprintf("dependency %s -> %s would create a cycle", e.TaskID, e.DependsOnTaskID)
}

// InvalidAssigneeError indicates the target user holds no membership in the task's workspace.
type InvalidAssigneeError struct {
	UserID string
}

func (e InvalidAssigneeError) Error() string {
	return fmt.Sprintf("user %s is not a member of the task's workspace", e.UserID)
}
