package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role int16

const (
	RoleAdmin   Role = 1
	RoleTeacher Role = 2
	RoleStudent Role = 3
)

var ErrInvalidRole = errors.New("invalid role")

// DefaultClasses are seeded for every new student.
var DefaultClasses = []string{"History", "Math", "English", "Philosophy"}

const DefaultScore = "0"

func ParseRole(value string) (Role, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "1", "admin":
		return RoleAdmin, nil
	case "2", "teacher":
		return RoleTeacher, nil
	case "3", "student":
		return RoleStudent, nil
	default:
		return 0, ErrInvalidRole
	}
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleTeacher:
		return "teacher"
	case RoleStudent:
		return "student"
	default:
		return "unknown"
	}
}

// Rank orders accounts in the admin listing.
func (r Role) Rank() int {
	return int(r)
}

func (r Role) DashboardPath() string {
	switch r {
	case RoleAdmin:
		return "/admin_dashboard"
	case RoleTeacher:
		return "/teacher_dashboard"
	case RoleStudent:
		return "/student_dashboard"
	default:
		return "/login"
	}
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, ErrInvalidRole
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

type Account struct {
	ID            uuid.UUID `json:"id"`
	Role          Role      `json:"role"`
	GivenName     string    `json:"given_name"`
	FamilyName    string    `json:"family_name"`
	SecretHash    string    `json:"-"`
	AssignedClass *string   `json:"assigned_class,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (a Account) Identity() Identity {
	return Identity{
		AccountID:  a.ID,
		Role:       a.Role,
		GivenName:  a.GivenName,
		FamilyName: a.FamilyName,
	}
}

func (a Account) Class() string {
	if a.AssignedClass == nil {
		return ""
	}
	return *a.AssignedClass
}

type GradeRecord struct {
	OwnerID   uuid.UUID `json:"owner_id"`
	ClassName string    `json:"class_name"`
	Score     string    `json:"score"`
}

// GradeEntry is a grade record joined with its owner's names.
type GradeEntry struct {
	GradeRecord
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

// RosterEntry is one student of a class together with their score in it.
type RosterEntry struct {
	StudentID  uuid.UUID `json:"student_id"`
	GivenName  string    `json:"given_name"`
	FamilyName string    `json:"family_name"`
	ClassName  string    `json:"class_name"`
	Score      string    `json:"score"`
}

// Identity is the authenticated caller carried through a request.
type Identity struct {
	AccountID  uuid.UUID `json:"account_id"`
	Role       Role      `json:"role"`
	GivenName  string    `json:"given_name"`
	FamilyName string    `json:"family_name"`
}

func (i Identity) IsZero() bool {
	return i.AccountID == uuid.Nil
}
