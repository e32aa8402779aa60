package domain

import (
	"errors"
	"fmt"
)

// ErrTaskNotFound indicates an operation referenced an unknown task id.
var ErrTaskNotFound = errors.New("task not found")

// ValidationError reports missing or malformed input. No mutation is applied.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string { return e.Reason }

// ForbiddenError reports an attempt to alter a field that is locked once the
// task has left the backlog stage.
type ForbiddenError struct {
	Field string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("field %q can only be changed while the task is in backlog", e.Field)
}
