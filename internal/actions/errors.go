package actions

import "fmt"

// NotFoundError indicates the requested action does not exist or is
// not visible to the requesting user.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("action %s not found", e.ID)
}

// ConflictError indicates a status transition was attempted from a
// state the action is no longer in, e.g. approving an action that was
// already rejected or executed.
type ConflictError struct {
	ID        string
	Current   Status
	Attempted Status
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("action %s is %s, cannot transition to %s", e.ID, e.Current, e.Attempted)
}
