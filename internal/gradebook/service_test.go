package gradebook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semaphore/gradebook/internal/crypto"
	"semaphore/gradebook/internal/model"
	"semaphore/gradebook/internal/repository"
)

func newTestService(t *testing.T) (*Service, *repository.Memory) {
	t.Helper()
	repo := repository.NewMemory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, logger), repo
}

func bootstrapAdmin(t *testing.T, svc *Service) model.Identity {
	t.Helper()
	ctx := context.Background()
	created, err := svc.Bootstrap(ctx, "admin", "admin", "123")
	require.NoError(t, err)
	require.True(t, created)
	admin, err := svc.Authenticate(ctx, "admin", "admin", "123")
	require.NoError(t, err)
	return admin
}

func makeTeacher(t *testing.T, svc *Service, admin model.Identity, given, family, class string) model.Identity {
	t.Helper()
	ctx := context.Background()
	account, err := svc.CreateStudent(ctx, given, family, "pw")
	require.NoError(t, err)
	_, err = svc.SetRole(ctx, admin, account.ID, model.RoleTeacher, &class)
	require.NoError(t, err)
	teacher, err := svc.Authenticate(ctx, given, family, "pw")
	require.NoError(t, err)
	return teacher
}

func TestBootstrapSeedsSingleAdmin(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	created, err := svc.Bootstrap(ctx, "admin", "admin", "123")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.Bootstrap(ctx, "admin", "admin", "123")
	require.NoError(t, err)
	assert.False(t, created)

	accounts, err := repo.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, model.RoleAdmin, accounts[0].Role)
	assert.NotEqual(t, "123", accounts[0].SecretHash)
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	account, err := svc.CreateStudent(ctx, "Ana", "Lee", "pw")
	require.NoError(t, err)

	identity, err := svc.Authenticate(ctx, "Ana", "Lee", "pw")
	require.NoError(t, err)
	assert.Equal(t, model.Identity{
		AccountID:  account.ID,
		Role:       model.RoleStudent,
		GivenName:  "Ana",
		FamilyName: "Lee",
	}, identity)

	_, err = svc.Authenticate(ctx, "Ana", "Lee", "wrong")
	assert.ErrorIs(t, err, ErrAuthFailure)
	_, err = svc.Authenticate(ctx, "Nobody", "Here", "pw")
	assert.ErrorIs(t, err, ErrAuthFailure)
	_, err = svc.Authenticate(ctx, "ana", "Lee", "pw")
	assert.ErrorIs(t, err, ErrAuthFailure)
}

// duplicateNames reports two accounts for every name lookup, which the
// schema prevents but older data may still contain.
type duplicateNames struct {
	*repository.Memory
	accounts []model.Account
}

func (d duplicateNames) FindAccountsByName(context.Context, string, string) ([]model.Account, error) {
	return d.accounts, nil
}

func TestAuthenticateWithDuplicateNamesPicksOldestMatch(t *testing.T) {
	older, err := crypto.HashPassword("shared")
	require.NoError(t, err)
	newer, err := crypto.HashPassword("shared")
	require.NoError(t, err)
	other, err := crypto.HashPassword("other")
	require.NoError(t, err)

	first := model.Account{ID: uuid.New(), Role: model.RoleTeacher, GivenName: "Sam", FamilyName: "Roe", SecretHash: older}
	second := model.Account{ID: uuid.New(), Role: model.RoleStudent, GivenName: "Sam", FamilyName: "Roe", SecretHash: newer}
	repo := duplicateNames{Memory: repository.NewMemory(), accounts: []model.Account{first, second}}
	svc := NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))

	identity, err := svc.Authenticate(context.Background(), "Sam", "Roe", "shared")
	require.NoError(t, err)
	assert.Equal(t, first.ID, identity.AccountID)

	first.SecretHash = other
	repo.accounts = []model.Account{first, second}
	svc = NewService(repo, nil)
	identity, err = svc.Authenticate(context.Background(), "Sam", "Roe", "shared")
	require.NoError(t, err)
	assert.Equal(t, second.ID, identity.AccountID)
}

func TestCreateStudentSeedsDefaultGrades(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	account, err := svc.CreateStudent(ctx, "Ana", "Lee", "pw")
	require.NoError(t, err)
	assert.Equal(t, model.RoleStudent, account.Role)
	assert.Nil(t, account.AssignedClass)

	grades, err := repo.ListGradesByOwner(ctx, account.ID)
	require.NoError(t, err)
	require.Len(t, grades, 4)
	classes := []string{}
	for _, grade := range grades {
		assert.Equal(t, "0", grade.Score)
		classes = append(classes, grade.ClassName)
	}
	assert.ElementsMatch(t, model.DefaultClasses, classes)

	_, err = svc.CreateStudent(ctx, "Ana", "Lee", "another")
	assert.ErrorIs(t, err, ErrDuplicateAccount)

	all, err := repo.ListGrades(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	count, err := repo.CountAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCreateStudentRejectsNameOfAnyRole(t *testing.T) {
	svc, _ := newTestService(t)
	bootstrapAdmin(t, svc)

	_, err := svc.CreateStudent(context.Background(), "admin", "admin", "pw")
	assert.ErrorIs(t, err, ErrDuplicateAccount)
}

func TestSetRolePromotesTeacher(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	admin := bootstrapAdmin(t, svc)

	account, err := svc.CreateStudent(ctx, "Tess", "Ng", "pw")
	require.NoError(t, err)
	role, err := model.ParseRole("2")
	require.NoError(t, err)
	class := "Math"
	updated, err := svc.SetRole(ctx, admin, account.ID, role, &class)
	require.NoError(t, err)
	assert.Equal(t, model.RoleTeacher, updated.Role)

	teacher, err := svc.Authenticate(ctx, "Tess", "Ng", "pw")
	require.NoError(t, err)
	view, err := svc.TeacherDashboard(ctx, teacher)
	require.NoError(t, err)
	assert.Equal(t, "Math", view.AssignedClass)
	assert.Equal(t, "Tess", view.GivenName)

	again, err := svc.SetRole(ctx, admin, account.ID, role, &class)
	require.NoError(t, err)
	assert.Equal(t, updated.Role, again.Role)
	assert.Equal(t, updated.Class(), again.Class())
}

func TestSetRoleWithoutClassStoresEmptyClass(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	admin := bootstrapAdmin(t, svc)

	account, err := svc.CreateStudent(ctx, "Tess", "Ng", "pw")
	require.NoError(t, err)
	updated, err := svc.SetRole(ctx, admin, account.ID, model.RoleTeacher, nil)
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedClass)
	assert.Equal(t, "", *updated.AssignedClass)
}

func TestSetRoleDemotionClearsClass(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	admin := bootstrapAdmin(t, svc)
	teacher := makeTeacher(t, svc, admin, "Tess", "Ng", "Math")

	updated, err := svc.SetRole(ctx, admin, teacher.AccountID, model.RoleStudent, nil)
	require.NoError(t, err)
	assert.Nil(t, updated.AssignedClass)

	stored, err := repo.GetAccount(ctx, teacher.AccountID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleStudent, stored.Role)
	assert.Nil(t, stored.AssignedClass)
}

func TestSetRoleRequiresAdmin(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	bootstrapAdmin(t, svc)
	student, err := svc.CreateStudent(ctx, "Ana", "Lee", "pw")
	require.NoError(t, err)

	forged := student.Identity()
	forged.Role = model.RoleAdmin
	_, err = svc.SetRole(ctx, forged, student.ID, model.RoleAdmin, nil)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.SetRole(ctx, student.Identity(), student.ID, model.Role(7), nil)
	assert.ErrorIs(t, err, ErrForbidden)

	stored, err := repo.GetAccount(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RoleStudent, stored.Role)
}

func TestSetRoleErrors(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	admin := bootstrapAdmin(t, svc)

	_, err := svc.SetRole(ctx, admin, uuid.New(), model.RoleTeacher, nil)
	assert.ErrorIs(t, err, ErrNotFound)

	student, err := svc.CreateStudent(ctx, "Ana", "Lee", "pw")
	require.NoError(t, err)
	_, err = svc.SetRole(ctx, admin, student.ID, model.Role(0), nil)
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestStaleSessionLosesAccessAfterRoleChange(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	admin := bootstrapAdmin(t, svc)
	teacher := makeTeacher(t, svc, admin, "Tess", "Ng", "Math")

	_, err := svc.SetRole(ctx, admin, teacher.AccountID, model.RoleStudent, nil)
	require.NoError(t, err)

	_, err = svc.TeacherDashboard(ctx, teacher)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSetGrade(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	admin := bootstrapAdmin(t, svc)
	teacher := makeTeacher(t, svc, admin, "Tess", "Ng", "Math")
	student, err := svc.CreateStudent(ctx, "Ana", "Lee", "pw")
	require.NoError(t, err)

	grade, err := svc.SetGrade(ctx, teacher, student.ID, "Math", "85")
	require.NoError(t, err)
	assert.Equal(t, "85", grade.Score)

	grades, err := repo.ListGradesByOwner(ctx, student.ID)
	require.NoError(t, err)
	changed := 0
	for _, g := range grades {
		if g.Score != "0" {
			changed++
			assert.Equal(t, "Math", g.ClassName)
		}
	}
	assert.Equal(t, 1, changed)

	_, err = svc.SetGrade(ctx, teacher, student.ID, "English", "70")
	assert.ErrorIs(t, err, ErrClassMismatch)
	english, err := repo.GetGrade(ctx, student.ID, "English")
	require.NoError(t, err)
	assert.Equal(t, "0", english.Score)

	_, err = svc.SetGrade(ctx, teacher, student.ID, "math", "70")
	assert.ErrorIs(t, err, ErrClassMismatch)
}

func TestSetGradeRejections(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	admin := bootstrapAdmin(t, svc)
	teacher := makeTeacher(t, svc, admin, "Tess", "Ng", "Astronomy")
	student, err := svc.CreateStudent(ctx, "Ana", "Lee", "pw")
	require.NoError(t, err)

	_, err = svc.SetGrade(ctx, teacher, student.ID, "Astronomy", "90")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.SetGrade(ctx, student.Identity(), student.ID, "Math", "90")
	assert.ErrorIs(t, err, ErrForbidden)

	mathTeacher := makeTeacher(t, svc, admin, "Max", "Ode", "Math")
	for _, score := range []string{"", "abc", "NaN", "Inf"} {
		_, err = svc.SetGrade(ctx, mathTeacher, student.ID, "Math", score)
		assert.ErrorIs(t, err, ErrInvalidScore, "score %q", score)
	}
	grade, err := svc.SetGrade(ctx, mathTeacher, student.ID, "Math", " 12.5 ")
	require.NoError(t, err)
	assert.Equal(t, "12.5", grade.Score)

	loaded, err := svc.GradeForTeacher(ctx, mathTeacher, student.ID, "Math")
	require.NoError(t, err)
	assert.Equal(t, "12.5", loaded.Score)
	_, err = svc.GradeForTeacher(ctx, mathTeacher, student.ID, "History")
	assert.ErrorIs(t, err, ErrClassMismatch)
}

func TestSetGradeOnlyForCurrentStudents(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	admin := bootstrapAdmin(t, svc)
	mathTeacher := makeTeacher(t, svc, admin, "Max", "Ode", "Math")
	promoted := makeTeacher(t, svc, admin, "Eve", "Ink", "English")

	_, err := svc.SetGrade(ctx, mathTeacher, promoted.AccountID, "Math", "90")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.GradeForTeacher(ctx, mathTeacher, promoted.AccountID, "Math")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.SetRole(ctx, admin, promoted.AccountID, model.RoleAdmin, nil)
	require.NoError(t, err)
	_, err = svc.SetGrade(ctx, mathTeacher, promoted.AccountID, "Math", "90")
	assert.ErrorIs(t, err, ErrNotFound)

	stored, err := repo.GetGrade(ctx, promoted.AccountID, "Math")
	require.NoError(t, err)
	assert.Equal(t, "0", stored.Score)

	_, err = svc.SetGrade(ctx, mathTeacher, uuid.New(), "Math", "90")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.SetRole(ctx, admin, promoted.AccountID, model.RoleStudent, nil)
	require.NoError(t, err)
	grade, err := svc.SetGrade(ctx, mathTeacher, promoted.AccountID, "Math", "90")
	require.NoError(t, err)
	assert.Equal(t, "90", grade.Score)
}

func TestTeacherDashboardRoster(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	admin := bootstrapAdmin(t, svc)
	teacher := makeTeacher(t, svc, admin, "Tess", "Ng", "Math")
	zed, err := svc.CreateStudent(ctx, "Zoe", "Zed", "pw")
	require.NoError(t, err)
	abe, err := svc.CreateStudent(ctx, "Abe", "Able", "pw")
	require.NoError(t, err)
	_, err = svc.SetGrade(ctx, teacher, zed.ID, "Math", "77")
	require.NoError(t, err)

	view, err := svc.TeacherDashboard(ctx, teacher)
	require.NoError(t, err)
	require.Len(t, view.Students, 2)
	assert.Equal(t, abe.ID, view.Students[0].StudentID)
	assert.Equal(t, "0", view.Students[0].Score)
	assert.Equal(t, zed.ID, view.Students[1].StudentID)
	assert.Equal(t, "77", view.Students[1].Score)
}

func TestAdminDashboard(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	admin := bootstrapAdmin(t, svc)
	_, err := svc.CreateStudent(ctx, "Ana", "Lee", "pw")
	require.NoError(t, err)
	teacher := makeTeacher(t, svc, admin, "Tess", "Ng", "Math")

	view, err := svc.AdminDashboard(ctx, admin)
	require.NoError(t, err)
	require.Len(t, view.Accounts, 3)
	assert.Equal(t, model.RoleAdmin, view.Accounts[0].Role)
	assert.Equal(t, teacher.AccountID, view.Accounts[1].ID)
	assert.Equal(t, model.RoleStudent, view.Accounts[2].Role)
	// the promoted teacher keeps the grades seeded at registration
	assert.Len(t, view.Grades, 8)
	for _, entry := range view.Grades {
		assert.NotEmpty(t, entry.GivenName)
	}

	_, err = svc.AdminDashboard(ctx, teacher)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestStudentDashboardAverage(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	admin := bootstrapAdmin(t, svc)
	math := makeTeacher(t, svc, admin, "Max", "Ode", "Math")
	english := makeTeacher(t, svc, admin, "Eve", "Ink", "English")
	student, err := svc.CreateStudent(ctx, "Ana", "Lee", "pw")
	require.NoError(t, err)

	_, err = svc.SetGrade(ctx, math, student.ID, "Math", "80")
	require.NoError(t, err)
	_, err = svc.SetGrade(ctx, english, student.ID, "English", "90")
	require.NoError(t, err)

	view, err := svc.StudentDashboard(ctx, student.Identity())
	require.NoError(t, err)
	require.Len(t, view.Grades, 4)
	require.NotNil(t, view.Average)
	assert.InDelta(t, 42.5, *view.Average, 1e-9)

	dashboard, err := svc.Dashboard(ctx, student.Identity())
	require.NoError(t, err)
	require.NotNil(t, dashboard.Student)
	assert.Nil(t, dashboard.Admin)
	assert.Nil(t, dashboard.Teacher)

	_, err = svc.StudentDashboard(ctx, admin)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAverage(t *testing.T) {
	average, err := Average([]model.GradeRecord{
		{ClassName: "Math", Score: "80"},
		{ClassName: "English", Score: "90"},
	})
	require.NoError(t, err)
	require.NotNil(t, average)
	assert.Equal(t, 85.0, *average)

	average, err = Average(nil)
	require.NoError(t, err)
	assert.Nil(t, average)

	_, err = Average([]model.GradeRecord{{ClassName: "Math", Score: "A+"}})
	assert.True(t, errors.Is(err, ErrInvalidScore))
}

func TestDashboardRejectsUnknownRole(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Dashboard(context.Background(), model.Identity{AccountID: uuid.New(), Role: model.Role(9)})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestServiceClockIsUTC(t *testing.T) {
	svc, _ := newTestService(t)
	account, err := svc.CreateStudent(context.Background(), "Ana", "Lee", "pw")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, account.CreatedAt.Location())
}
