package gradebook

import (
	"errors"

	"semaphore/gradebook/internal/model"
)

var (
	ErrAuthFailure      = errors.New("invalid credentials")
	ErrForbidden        = errors.New("forbidden")
	ErrDuplicateAccount = errors.New("an account with this name already exists")
	ErrClassMismatch    = errors.New("you can only change grades for students in your class")
	ErrNotFound         = errors.New("not found")
	ErrInvalidRole      = model.ErrInvalidRole
	ErrInvalidScore     = errors.New("invalid score")
)
