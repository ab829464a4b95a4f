package gradebook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"semaphore/gradebook/internal/crypto"
	"semaphore/gradebook/internal/model"
	"semaphore/gradebook/internal/repository"
)

type Service struct {
	repo   repository.Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo repository.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Authenticate returns the identity of the oldest account with the given
// name pair whose secret matches.
func (s *Service) Authenticate(ctx context.Context, givenName, familyName, secret string) (model.Identity, error) {
	candidates, err := s.repo.FindAccountsByName(ctx, givenName, familyName)
	if err != nil {
		return model.Identity{}, fmt.Errorf("find accounts: %w", err)
	}
	if len(candidates) == 0 {
		crypto.BurnPasswordCheck(secret)
		return model.Identity{}, ErrAuthFailure
	}
	for _, account := range candidates {
		if crypto.CheckPassword(account.SecretHash, secret) == nil {
			return account.Identity(), nil
		}
	}
	return model.Identity{}, ErrAuthFailure
}

// CreateStudent registers a student and seeds a zero grade for every default
// class. The name pair must not be used by any account, whatever its role.
func (s *Service) CreateStudent(ctx context.Context, givenName, familyName, secret string) (model.Account, error) {
	hash, err := crypto.HashPassword(secret)
	if err != nil {
		return model.Account{}, fmt.Errorf("hash secret: %w", err)
	}
	now := s.now()
	account := model.Account{
		ID:         uuid.New(),
		Role:       model.RoleStudent,
		GivenName:  givenName,
		FamilyName: familyName,
		SecretHash: hash,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = s.repo.WithTx(ctx, func(q repository.Queries) error {
		existing, err := q.FindAccountsByName(ctx, givenName, familyName)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return ErrDuplicateAccount
		}
		if err := q.CreateAccount(ctx, account); err != nil {
			return err
		}
		for _, class := range model.DefaultClasses {
			grade := model.GradeRecord{OwnerID: account.ID, ClassName: class, Score: model.DefaultScore}
			if err := q.CreateGrade(ctx, grade); err != nil {
				return err
			}
		}
		return nil
	})
	switch {
	case errors.Is(err, ErrDuplicateAccount), errors.Is(err, repository.ErrConflict):
		return model.Account{}, ErrDuplicateAccount
	case err != nil:
		return model.Account{}, fmt.Errorf("create student: %w", err)
	}
	s.logger.Info("student account created", "account_id", account.ID)
	return account, nil
}

// Bootstrap seeds an admin account when no account exists yet.
func (s *Service) Bootstrap(ctx context.Context, givenName, familyName, secret string) (bool, error) {
	hash, err := crypto.HashPassword(secret)
	if err != nil {
		return false, fmt.Errorf("hash secret: %w", err)
	}
	created := false
	err = s.repo.WithTx(ctx, func(q repository.Queries) error {
		count, err := q.CountAccounts(ctx)
		if err != nil || count > 0 {
			return err
		}
		now := s.now()
		created = true
		return q.CreateAccount(ctx, model.Account{
			ID:         uuid.New(),
			Role:       model.RoleAdmin,
			GivenName:  givenName,
			FamilyName: familyName,
			SecretHash: hash,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	})
	if err != nil {
		return false, fmt.Errorf("bootstrap admin: %w", err)
	}
	return created, nil
}

// SetRole changes the role of the target account. Promoting to teacher
// assigns newClass (absent means empty); any other role clears the class.
func (s *Service) SetRole(ctx context.Context, admin model.Identity, targetID uuid.UUID, newRole model.Role, newClass *string) (model.Account, error) {
	var updated model.Account
	err := s.repo.WithTx(ctx, func(q repository.Queries) error {
		if _, err := requireRole(ctx, q, admin, model.RoleAdmin); err != nil {
			return err
		}
		if !newRole.Valid() {
			return ErrInvalidRole
		}
		target, err := q.GetAccount(ctx, targetID)
		if err != nil {
			return err
		}

		var class *string
		if newRole == model.RoleTeacher {
			value := ""
			if newClass != nil {
				value = *newClass
			}
			class = &value
		}
		now := s.now()
		if err := q.UpdateAccountRole(ctx, targetID, newRole, class, now); err != nil {
			return err
		}
		target.Role = newRole
		target.AssignedClass = class
		target.UpdatedAt = now
		updated = target
		return nil
	})
	if err != nil {
		return model.Account{}, s.mapError("set role", err)
	}
	s.logger.Info("account role changed",
		"admin_id", admin.AccountID,
		"account_id", targetID,
		"role", newRole.String(),
	)
	return updated, nil
}

// AccountForAdmin loads one account for the role-change form.
func (s *Service) AccountForAdmin(ctx context.Context, admin model.Identity, targetID uuid.UUID) (model.Account, error) {
	if _, err := requireRole(ctx, s.repo, admin, model.RoleAdmin); err != nil {
		return model.Account{}, s.mapError("load account", err)
	}
	account, err := s.repo.GetAccount(ctx, targetID)
	if err != nil {
		return model.Account{}, s.mapError("load account", err)
	}
	return account, nil
}

// SetGrade overwrites a student's score in the calling teacher's class.
func (s *Service) SetGrade(ctx context.Context, teacher model.Identity, studentID uuid.UUID, className, newScore string) (model.GradeRecord, error) {
	if _, err := s.teacherOfRecord(ctx, teacher, className); err != nil {
		return model.GradeRecord{}, s.mapError("set grade", err)
	}
	if err := s.requireStudent(ctx, studentID); err != nil {
		return model.GradeRecord{}, s.mapError("set grade", err)
	}
	score, err := ValidateScore(newScore)
	if err != nil {
		return model.GradeRecord{}, err
	}
	affected, err := s.repo.UpdateGrade(ctx, studentID, className, score)
	if err != nil {
		return model.GradeRecord{}, s.mapError("set grade", err)
	}
	if affected == 0 {
		return model.GradeRecord{}, ErrNotFound
	}
	s.logger.Info("grade updated",
		"teacher_id", teacher.AccountID,
		"student_id", studentID,
		"class", className,
	)
	return model.GradeRecord{OwnerID: studentID, ClassName: className, Score: score}, nil
}

// GradeForTeacher loads one grade for the grade edit form.
func (s *Service) GradeForTeacher(ctx context.Context, teacher model.Identity, studentID uuid.UUID, className string) (model.GradeRecord, error) {
	if _, err := s.teacherOfRecord(ctx, teacher, className); err != nil {
		return model.GradeRecord{}, s.mapError("load grade", err)
	}
	if err := s.requireStudent(ctx, studentID); err != nil {
		return model.GradeRecord{}, s.mapError("load grade", err)
	}
	grade, err := s.repo.GetGrade(ctx, studentID, className)
	if err != nil {
		return model.GradeRecord{}, s.mapError("load grade", err)
	}
	return grade, nil
}

func (s *Service) teacherOfRecord(ctx context.Context, teacher model.Identity, className string) (model.Account, error) {
	account, err := requireRole(ctx, s.repo, teacher, model.RoleTeacher)
	if err != nil {
		return model.Account{}, err
	}
	if account.AssignedClass == nil || *account.AssignedClass != className {
		return model.Account{}, ErrClassMismatch
	}
	return account, nil
}

// requireStudent reports ErrNotFound unless id belongs to a current student.
// Accounts promoted away from student keep their rows but are no longer graded.
func (s *Service) requireStudent(ctx context.Context, id uuid.UUID) error {
	account, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	if account.Role != model.RoleStudent {
		return ErrNotFound
	}
	return nil
}

// ValidateScore accepts any finite decimal number and returns it trimmed.
func ValidateScore(score string) (string, error) {
	score = strings.TrimSpace(score)
	value, err := strconv.ParseFloat(score, 64)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidScore, score)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidScore, score)
	}
	return score, nil
}

// requireRole checks the caller's claimed role against the stored account so
// that sessions opened before a role change stop working.
func requireRole(ctx context.Context, q repository.Queries, identity model.Identity, role model.Role) (model.Account, error) {
	if identity.IsZero() || identity.Role != role {
		return model.Account{}, ErrForbidden
	}
	account, err := q.GetAccount(ctx, identity.AccountID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Account{}, ErrForbidden
	}
	if err != nil {
		return model.Account{}, err
	}
	if account.Role != role {
		return model.Account{}, ErrForbidden
	}
	return account, nil
}

func (s *Service) mapError(op string, err error) error {
	switch {
	case errors.Is(err, ErrForbidden),
		errors.Is(err, ErrClassMismatch),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidRole),
		errors.Is(err, ErrInvalidScore):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
