package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semaphore/gradebook/internal/model"
)

func newAccount(role model.Role, given, family string) model.Account {
	now := time.Now().UTC()
	return model.Account{
		ID:         uuid.New(),
		Role:       role,
		GivenName:  given,
		FamilyName: family,
		SecretHash: "hash",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestMemoryListAccountsOrdersByRoleThenCreation(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()

	student1 := newAccount(model.RoleStudent, "Sam", "One")
	teacher := newAccount(model.RoleTeacher, "Tess", "Two")
	admin := newAccount(model.RoleAdmin, "Ada", "Three")
	student2 := newAccount(model.RoleStudent, "Sue", "Four")
	for _, account := range []model.Account{student1, teacher, admin, student2} {
		require.NoError(t, repo.CreateAccount(ctx, account))
	}

	accounts, err := repo.ListAccounts(ctx)
	require.NoError(t, err)
	ids := make([]uuid.UUID, 0, len(accounts))
	for _, account := range accounts {
		ids = append(ids, account.ID)
	}
	assert.Equal(t, []uuid.UUID{admin.ID, teacher.ID, student1.ID, student2.ID}, ids)
}

func TestMemoryConstraints(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()

	student := newAccount(model.RoleStudent, "Ana", "Lee")
	require.NoError(t, repo.CreateAccount(ctx, student))
	assert.ErrorIs(t, repo.CreateAccount(ctx, newAccount(model.RoleAdmin, "Ana", "Lee")), ErrConflict)

	require.NoError(t, repo.CreateGrade(ctx, model.GradeRecord{OwnerID: student.ID, ClassName: "Math", Score: "0"}))
	assert.ErrorIs(t, repo.CreateGrade(ctx, model.GradeRecord{OwnerID: student.ID, ClassName: "Math", Score: "0"}), ErrConflict)
	assert.ErrorIs(t, repo.CreateGrade(ctx, model.GradeRecord{OwnerID: uuid.New(), ClassName: "Math", Score: "0"}), ErrNotFound)

	_, err := repo.GetAccount(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.UpdateAccountRole(ctx, uuid.New(), model.RoleTeacher, nil, time.Now()), ErrNotFound)
}

func TestMemoryWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	boom := errors.New("boom")

	err := repo.WithTx(ctx, func(q Queries) error {
		student := newAccount(model.RoleStudent, "Ana", "Lee")
		if err := q.CreateAccount(ctx, student); err != nil {
			return err
		}
		if err := q.CreateGrade(ctx, model.GradeRecord{OwnerID: student.ID, ClassName: "Math", Score: "0"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	count, err := repo.CountAccounts(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	grades, err := repo.ListGrades(ctx)
	require.NoError(t, err)
	assert.Empty(t, grades)
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()
	class := "Math"
	teacher := newAccount(model.RoleTeacher, "Tess", "Two")
	teacher.AssignedClass = &class
	require.NoError(t, repo.CreateAccount(ctx, teacher))

	loaded, err := repo.GetAccount(ctx, teacher.ID)
	require.NoError(t, err)
	*loaded.AssignedClass = "English"

	again, err := repo.GetAccount(ctx, teacher.ID)
	require.NoError(t, err)
	assert.Equal(t, "Math", again.Class())
}

func TestMemoryRosterOnlyListsStudents(t *testing.T) {
	ctx := context.Background()
	repo := NewMemory()

	zed := newAccount(model.RoleStudent, "Zoe", "Zed")
	abe := newAccount(model.RoleStudent, "Abe", "Able")
	demoted := newAccount(model.RoleStudent, "Dan", "Demoted")
	for _, account := range []model.Account{zed, abe, demoted} {
		require.NoError(t, repo.CreateAccount(ctx, account))
		require.NoError(t, repo.CreateGrade(ctx, model.GradeRecord{OwnerID: account.ID, ClassName: "Math", Score: "0"}))
	}
	require.NoError(t, repo.UpdateAccountRole(ctx, demoted.ID, model.RoleAdmin, nil, time.Now()))

	roster, err := repo.ListClassRoster(ctx, "Math")
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, abe.ID, roster[0].StudentID)
	assert.Equal(t, zed.ID, roster[1].StudentID)
}
