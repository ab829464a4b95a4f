package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"semaphore/gradebook/internal/model"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	*pgQueries
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pgQueries: &pgQueries{db: pool}, pool: pool}
}

func (s *Store) WithTx(ctx context.Context, fn func(Queries) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	if err := fn(&pgQueries{db: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return mapError(tx.Commit(ctx))
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

type pgQueries struct {
	db dbtx
}

const accountColumns = `id, role, given_name, family_name, secret_hash, assigned_class, created_at, updated_at`

func scanAccount(row pgx.Row) (model.Account, error) {
	var (
		account model.Account
		id      pgtype.UUID
		role    int16
	)
	err := row.Scan(
		&id,
		&role,
		&account.GivenName,
		&account.FamilyName,
		&account.SecretHash,
		&account.AssignedClass,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return model.Account{}, mapError(err)
	}
	account.ID = fromPgUUID(id)
	account.Role = model.Role(role)
	return account, nil
}

func collectAccounts(rows pgx.Rows) ([]model.Account, error) {
	defer rows.Close()
	accounts := []model.Account{}
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (q *pgQueries) CountAccounts(ctx context.Context) (int, error) {
	var count int
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM accounts`).Scan(&count)
	return count, err
}

func (q *pgQueries) CreateAccount(ctx context.Context, account model.Account) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, pgUUID(account.ID), int16(account.Role), account.GivenName, account.FamilyName, account.SecretHash,
		account.AssignedClass, account.CreatedAt, account.UpdatedAt)
	return mapError(err)
}

func (q *pgQueries) GetAccount(ctx context.Context, id uuid.UUID) (model.Account, error) {
	row := q.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, pgUUID(id))
	return scanAccount(row)
}

func (q *pgQueries) FindAccountsByName(ctx context.Context, givenName, familyName string) ([]model.Account, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE given_name = $1 AND family_name = $2
		ORDER BY created_at, id
	`, givenName, familyName)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

func (q *pgQueries) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		ORDER BY role, created_at, id
	`)
	if err != nil {
		return nil, err
	}
	return collectAccounts(rows)
}

func (q *pgQueries) UpdateAccountRole(ctx context.Context, id uuid.UUID, role model.Role, assignedClass *string, updatedAt time.Time) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE accounts
		SET role = $1, assigned_class = $2, updated_at = $3
		WHERE id = $4
	`, int16(role), assignedClass, updatedAt, pgUUID(id))
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *pgQueries) CreateGrade(ctx context.Context, grade model.GradeRecord) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO grade_records (owner_id, class_name, score)
		VALUES ($1, $2, $3)
	`, pgUUID(grade.OwnerID), grade.ClassName, grade.Score)
	return mapError(err)
}

func (q *pgQueries) GetGrade(ctx context.Context, ownerID uuid.UUID, className string) (model.GradeRecord, error) {
	grade := model.GradeRecord{OwnerID: ownerID, ClassName: className}
	err := q.db.QueryRow(ctx, `
		SELECT score FROM grade_records
		WHERE owner_id = $1 AND class_name = $2
	`, pgUUID(ownerID), className).Scan(&grade.Score)
	if err != nil {
		return model.GradeRecord{}, mapError(err)
	}
	return grade, nil
}

func (q *pgQueries) UpdateGrade(ctx context.Context, ownerID uuid.UUID, className, score string) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE grade_records SET score = $1
		WHERE owner_id = $2 AND class_name = $3
	`, score, pgUUID(ownerID), className)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}

func (q *pgQueries) ListGrades(ctx context.Context) ([]model.GradeEntry, error) {
	rows, err := q.db.Query(ctx, `
		SELECT g.owner_id, g.class_name, g.score, a.given_name, a.family_name
		FROM grade_records g
		INNER JOIN accounts a ON a.id = g.owner_id
		ORDER BY a.created_at, a.id, g.class_name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []model.GradeEntry{}
	for rows.Next() {
		var (
			entry model.GradeEntry
			owner pgtype.UUID
		)
		if err := rows.Scan(&owner, &entry.ClassName, &entry.Score, &entry.GivenName, &entry.FamilyName); err != nil {
			return nil, err
		}
		entry.OwnerID = fromPgUUID(owner)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (q *pgQueries) ListGradesByOwner(ctx context.Context, ownerID uuid.UUID) ([]model.GradeRecord, error) {
	rows, err := q.db.Query(ctx, `
		SELECT class_name, score FROM grade_records
		WHERE owner_id = $1
		ORDER BY class_name
	`, pgUUID(ownerID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	grades := []model.GradeRecord{}
	for rows.Next() {
		grade := model.GradeRecord{OwnerID: ownerID}
		if err := rows.Scan(&grade.ClassName, &grade.Score); err != nil {
			return nil, err
		}
		grades = append(grades, grade)
	}
	return grades, rows.Err()
}

func (q *pgQueries) ListClassRoster(ctx context.Context, className string) ([]model.RosterEntry, error) {
	rows, err := q.db.Query(ctx, `
		SELECT a.id, a.given_name, a.family_name, g.score
		FROM grade_records g
		INNER JOIN accounts a ON a.id = g.owner_id
		WHERE g.class_name = $1 AND a.role = $2
		ORDER BY a.family_name, a.given_name, a.id
	`, className, int16(model.RoleStudent))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roster := []model.RosterEntry{}
	for rows.Next() {
		var (
			entry   model.RosterEntry
			student pgtype.UUID
		)
		if err := rows.Scan(&student, &entry.GivenName, &entry.FamilyName, &entry.Score); err != nil {
			return nil, err
		}
		entry.StudentID = fromPgUUID(student)
		entry.ClassName = className
		roster = append(roster, entry)
	}
	return roster, rows.Err()
}
