package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"semaphore/gradebook/internal/model"
)

// Memory is a Repository held in process memory. It mirrors the constraints
// of the Postgres schema and is used for local runs and tests.
type Memory struct {
	mu   sync.Mutex
	data memoryData
}

func NewMemory() *Memory {
	return &Memory{}
}

type memoryData struct {
	accounts []model.Account
	grades   []model.GradeRecord
}

func (d memoryData) clone() memoryData {
	out := memoryData{
		accounts: make([]model.Account, 0, len(d.accounts)),
		grades:   append([]model.GradeRecord(nil), d.grades...),
	}
	for _, account := range d.accounts {
		out.accounts = append(out.accounts, copyAccount(account))
	}
	return out
}

func copyAccount(account model.Account) model.Account {
	if account.AssignedClass != nil {
		class := *account.AssignedClass
		account.AssignedClass = &class
	}
	return account
}

func (m *Memory) WithTx(ctx context.Context, fn func(Queries) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.data.clone()
	if err := fn(memoryQueries{data: &m.data}); err != nil {
		m.data = snapshot
		return err
	}
	return nil
}

func (m *Memory) Ping(context.Context) error {
	return nil
}

func (m *Memory) run(fn func(q memoryQueries)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(memoryQueries{data: &m.data})
}

func (m *Memory) CountAccounts(ctx context.Context) (count int, err error) {
	m.run(func(q memoryQueries) { count, err = q.CountAccounts(ctx) })
	return count, err
}

func (m *Memory) CreateAccount(ctx context.Context, account model.Account) (err error) {
	m.run(func(q memoryQueries) { err = q.CreateAccount(ctx, account) })
	return err
}

func (m *Memory) GetAccount(ctx context.Context, id uuid.UUID) (account model.Account, err error) {
	m.run(func(q memoryQueries) { account, err = q.GetAccount(ctx, id) })
	return account, err
}

func (m *Memory) FindAccountsByName(ctx context.Context, givenName, familyName string) (accounts []model.Account, err error) {
	m.run(func(q memoryQueries) { accounts, err = q.FindAccountsByName(ctx, givenName, familyName) })
	return accounts, err
}

func (m *Memory) ListAccounts(ctx context.Context) (accounts []model.Account, err error) {
	m.run(func(q memoryQueries) { accounts, err = q.ListAccounts(ctx) })
	return accounts, err
}

func (m *Memory) UpdateAccountRole(ctx context.Context, id uuid.UUID, role model.Role, assignedClass *string, updatedAt time.Time) (err error) {
	m.run(func(q memoryQueries) { err = q.UpdateAccountRole(ctx, id, role, assignedClass, updatedAt) })
	return err
}

func (m *Memory) CreateGrade(ctx context.Context, grade model.GradeRecord) (err error) {
	m.run(func(q memoryQueries) { err = q.CreateGrade(ctx, grade) })
	return err
}

func (m *Memory) GetGrade(ctx context.Context, ownerID uuid.UUID, className string) (grade model.GradeRecord, err error) {
	m.run(func(q memoryQueries) { grade, err = q.GetGrade(ctx, ownerID, className) })
	return grade, err
}

func (m *Memory) UpdateGrade(ctx context.Context, ownerID uuid.UUID, className, score string) (affected int64, err error) {
	m.run(func(q memoryQueries) { affected, err = q.UpdateGrade(ctx, ownerID, className, score) })
	return affected, err
}

func (m *Memory) ListGrades(ctx context.Context) (entries []model.GradeEntry, err error) {
	m.run(func(q memoryQueries) { entries, err = q.ListGrades(ctx) })
	return entries, err
}

func (m *Memory) ListGradesByOwner(ctx context.Context, ownerID uuid.UUID) (grades []model.GradeRecord, err error) {
	m.run(func(q memoryQueries) { grades, err = q.ListGradesByOwner(ctx, ownerID) })
	return grades, err
}

func (m *Memory) ListClassRoster(ctx context.Context, className string) (roster []model.RosterEntry, err error) {
	m.run(func(q memoryQueries) { roster, err = q.ListClassRoster(ctx, className) })
	return roster, err
}

// memoryQueries operates on data the caller has already locked.
type memoryQueries struct {
	data *memoryData
}

func (q memoryQueries) indexOfAccount(id uuid.UUID) int {
	for i, account := range q.data.accounts {
		if account.ID == id {
			return i
		}
	}
	return -1
}

func (q memoryQueries) CountAccounts(context.Context) (int, error) {
	return len(q.data.accounts), nil
}

func (q memoryQueries) CreateAccount(_ context.Context, account model.Account) error {
	for _, existing := range q.data.accounts {
		if existing.ID == account.ID {
			return ErrConflict
		}
		if existing.GivenName == account.GivenName && existing.FamilyName == account.FamilyName {
			return ErrConflict
		}
	}
	q.data.accounts = append(q.data.accounts, copyAccount(account))
	return nil
}

func (q memoryQueries) GetAccount(_ context.Context, id uuid.UUID) (model.Account, error) {
	idx := q.indexOfAccount(id)
	if idx < 0 {
		return model.Account{}, ErrNotFound
	}
	return copyAccount(q.data.accounts[idx]), nil
}

func (q memoryQueries) FindAccountsByName(_ context.Context, givenName, familyName string) ([]model.Account, error) {
	accounts := []model.Account{}
	for _, account := range q.data.accounts {
		if account.GivenName == givenName && account.FamilyName == familyName {
			accounts = append(accounts, copyAccount(account))
		}
	}
	return accounts, nil
}

func (q memoryQueries) ListAccounts(context.Context) ([]model.Account, error) {
	accounts := make([]model.Account, 0, len(q.data.accounts))
	for _, account := range q.data.accounts {
		accounts = append(accounts, copyAccount(account))
	}
	sort.SliceStable(accounts, func(i, j int) bool {
		return accounts[i].Role.Rank() < accounts[j].Role.Rank()
	})
	return accounts, nil
}

func (q memoryQueries) UpdateAccountRole(_ context.Context, id uuid.UUID, role model.Role, assignedClass *string, updatedAt time.Time) error {
	idx := q.indexOfAccount(id)
	if idx < 0 {
		return ErrNotFound
	}
	account := &q.data.accounts[idx]
	account.Role = role
	account.AssignedClass = nil
	if assignedClass != nil {
		class := *assignedClass
		account.AssignedClass = &class
	}
	account.UpdatedAt = updatedAt
	return nil
}

func (q memoryQueries) CreateGrade(_ context.Context, grade model.GradeRecord) error {
	if q.indexOfAccount(grade.OwnerID) < 0 {
		return ErrNotFound
	}
	for _, existing := range q.data.grades {
		if existing.OwnerID == grade.OwnerID && existing.ClassName == grade.ClassName {
			return ErrConflict
		}
	}
	q.data.grades = append(q.data.grades, grade)
	return nil
}

func (q memoryQueries) GetGrade(_ context.Context, ownerID uuid.UUID, className string) (model.GradeRecord, error) {
	for _, grade := range q.data.grades {
		if grade.OwnerID == ownerID && grade.ClassName == className {
			return grade, nil
		}
	}
	return model.GradeRecord{}, ErrNotFound
}

func (q memoryQueries) UpdateGrade(_ context.Context, ownerID uuid.UUID, className, score string) (int64, error) {
	var affected int64
	for i := range q.data.grades {
		if q.data.grades[i].OwnerID == ownerID && q.data.grades[i].ClassName == className {
			q.data.grades[i].Score = score
			affected++
		}
	}
	return affected, nil
}

func (q memoryQueries) ListGrades(context.Context) ([]model.GradeEntry, error) {
	entries := []model.GradeEntry{}
	for _, account := range q.data.accounts {
		for _, grade := range q.ownerGrades(account.ID) {
			entries = append(entries, model.GradeEntry{
				GradeRecord: grade,
				GivenName:   account.GivenName,
				FamilyName:  account.FamilyName,
			})
		}
	}
	return entries, nil
}

func (q memoryQueries) ListGradesByOwner(_ context.Context, ownerID uuid.UUID) ([]model.GradeRecord, error) {
	return q.ownerGrades(ownerID), nil
}

func (q memoryQueries) ownerGrades(ownerID uuid.UUID) []model.GradeRecord {
	grades := []model.GradeRecord{}
	for _, grade := range q.data.grades {
		if grade.OwnerID == ownerID {
			grades = append(grades, grade)
		}
	}
	sort.Slice(grades, func(i, j int) bool {
		return grades[i].ClassName < grades[j].ClassName
	})
	return grades
}

func (q memoryQueries) ListClassRoster(_ context.Context, className string) ([]model.RosterEntry, error) {
	roster := []model.RosterEntry{}
	for _, grade := range q.data.grades {
		if grade.ClassName != className {
			continue
		}
		idx := q.indexOfAccount(grade.OwnerID)
		if idx < 0 || q.data.accounts[idx].Role != model.RoleStudent {
			continue
		}
		owner := q.data.accounts[idx]
		roster = append(roster, model.RosterEntry{
			StudentID:  owner.ID,
			GivenName:  owner.GivenName,
			FamilyName: owner.FamilyName,
			ClassName:  className,
			Score:      grade.Score,
		})
	}
	sort.SliceStable(roster, func(i, j int) bool {
		if roster[i].FamilyName != roster[j].FamilyName {
			return roster[i].FamilyName < roster[j].FamilyName
		}
		return roster[i].GivenName < roster[j].GivenName
	})
	return roster, nil
}
