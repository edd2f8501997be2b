package task

import "errors"

var (
	// ErrTaskNotFound is returned when a manual trigger names an
	// unregistered task.
	ErrTaskNotFound = errors.New("task not found")
)
