package gradebook

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"semaphore/gradebook/internal/model"
)

// Dashboard is the role-specific view of an identity. Exactly one of the
// view fields is set, matching Role.
type Dashboard struct {
	Role    model.Role   `json:"role"`
	Admin   *AdminView   `json:"admin,omitempty"`
	Teacher *TeacherView `json:"teacher,omitempty"`
	Student *StudentView `json:"student,omitempty"`
}

type AdminView struct {
	Accounts []model.Account    `json:"accounts"`
	Grades   []model.GradeEntry `json:"grades"`
}

type TeacherView struct {
	GivenName     string              `json:"given_name"`
	FamilyName    string              `json:"family_name"`
	AssignedClass string              `json:"assigned_class"`
	Students      []model.RosterEntry `json:"students"`
}

type StudentView struct {
	Grades []model.GradeRecord `json:"grades"`
	// Average is nil when the student has no grades.
	Average *float64 `json:"average"`
}

func (s *Service) Dashboard(ctx context.Context, identity model.Identity) (Dashboard, error) {
	switch identity.Role {
	case model.RoleAdmin:
		view, err := s.AdminDashboard(ctx, identity)
		if err != nil {
			return Dashboard{}, err
		}
		return Dashboard{Role: identity.Role, Admin: &view}, nil
	case model.RoleTeacher:
		view, err := s.TeacherDashboard(ctx, identity)
		if err != nil {
			return Dashboard{}, err
		}
		return Dashboard{Role: identity.Role, Teacher: &view}, nil
	case model.RoleStudent:
		view, err := s.StudentDashboard(ctx, identity)
		if err != nil {
			return Dashboard{}, err
		}
		return Dashboard{Role: identity.Role, Student: &view}, nil
	default:
		return Dashboard{}, ErrForbidden
	}
}

func (s *Service) AdminDashboard(ctx context.Context, identity model.Identity) (AdminView, error) {
	if _, err := requireRole(ctx, s.repo, identity, model.RoleAdmin); err != nil {
		return AdminView{}, s.mapError("admin dashboard", err)
	}
	accounts, err := s.repo.ListAccounts(ctx)
	if err != nil {
		return AdminView{}, fmt.Errorf("list accounts: %w", err)
	}
	grades, err := s.repo.ListGrades(ctx)
	if err != nil {
		return AdminView{}, fmt.Errorf("list grades: %w", err)
	}
	return AdminView{Accounts: accounts, Grades: grades}, nil
}

func (s *Service) TeacherDashboard(ctx context.Context, identity model.Identity) (TeacherView, error) {
	account, err := requireRole(ctx, s.repo, identity, model.RoleTeacher)
	if err != nil {
		return TeacherView{}, s.mapError("teacher dashboard", err)
	}
	view := TeacherView{
		GivenName:     account.GivenName,
		FamilyName:    account.FamilyName,
		AssignedClass: account.Class(),
		Students:      []model.RosterEntry{},
	}
	if view.AssignedClass == "" {
		return view, nil
	}
	view.Students, err = s.repo.ListClassRoster(ctx, view.AssignedClass)
	if err != nil {
		return TeacherView{}, fmt.Errorf("list roster: %w", err)
	}
	return view, nil
}

func (s *Service) StudentDashboard(ctx context.Context, identity model.Identity) (StudentView, error) {
	if _, err := requireRole(ctx, s.repo, identity, model.RoleStudent); err != nil {
		return StudentView{}, s.mapError("student dashboard", err)
	}
	grades, err := s.repo.ListGradesByOwner(ctx, identity.AccountID)
	if err != nil {
		return StudentView{}, fmt.Errorf("list grades: %w", err)
	}
	average, err := Average(grades)
	if err != nil {
		return StudentView{}, err
	}
	return StudentView{Grades: grades, Average: average}, nil
}

// Average is the arithmetic mean of the scores, or nil for no grades.
func Average(grades []model.GradeRecord) (*float64, error) {
	if len(grades) == 0 {
		return nil, nil
	}
	var total float64
	for _, grade := range grades {
		value, err := strconv.ParseFloat(strings.TrimSpace(grade.Score), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s in %s: %v", ErrInvalidScore, grade.Score, grade.ClassName, err)
		}
		total += value
	}
	average := total / float64(len(grades))
	return &average, nil
}
