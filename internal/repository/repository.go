package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"semaphore/gradebook/internal/model"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

// Queries is the set of parameterized operations over accounts and grades.
type Queries interface {
	CountAccounts(ctx context.Context) (int, error)
	CreateAccount(ctx context.Context, account model.Account) error
	GetAccount(ctx context.Context, id uuid.UUID) (model.Account, error)
	// FindAccountsByName returns every account with the exact name pair, oldest first.
	FindAccountsByName(ctx context.Context, givenName, familyName string) ([]model.Account, error)
	// ListAccounts orders by role rank, then creation time.
	ListAccounts(ctx context.Context) ([]model.Account, error)
	UpdateAccountRole(ctx context.Context, id uuid.UUID, role model.Role, assignedClass *string, updatedAt time.Time) error

	CreateGrade(ctx context.Context, grade model.GradeRecord) error
	GetGrade(ctx context.Context, ownerID uuid.UUID, className string) (model.GradeRecord, error)
	UpdateGrade(ctx context.Context, ownerID uuid.UUID, className, score string) (int64, error)
	ListGrades(ctx context.Context) ([]model.GradeEntry, error)
	ListGradesByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.GradeRecord, error)
	ListClassRoster(ctx context.Context, className string) ([]model.RosterEntry, error)
}

// Repository adds atomic multi-statement work on top of Queries.
type Repository interface {
	Queries
	WithTx(ctx context.Context, fn func(Queries) error) error
}

var (
	_ Repository = (*Store)(nil)
	_ Repository = (*Memory)(nil)
)
