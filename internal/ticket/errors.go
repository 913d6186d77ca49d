package ticket

import "errors"

var (
	// ErrNotFound covers both truly absent resources and resources
	// concealed from the actor; callers cannot tell the two apart.
	ErrNotFound = errors.New("ticket: not found")

	// ErrForbidden is returned only when the resource's existence was
	// already confirmed to the actor by a prior read step.
	ErrForbidden = errors.New("ticket: forbidden")

	ErrInvalidInput = errors.New("ticket: invalid input")
)
