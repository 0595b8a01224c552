package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const studentColumns = `id, can_id, name, class_semester, mobile, email, admission_number,
	hashed_password, banned, banned_at, created_at, updated_at`

func scanStudent(row interface{ Scan(dest ...any) error }) (Student, error) {
	var s Student
	err := row.Scan(&s.ID, &s.CanID, &s.Name, &s.ClassSemester, &s.Mobile, &s.Email,
		&s.AdmissionNumber, &s.HashedPassword, &s.Banned, &s.BannedAt, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

type CreateStudentParams struct {
	CanID           string
	Name            string
	ClassSemester   string
	Mobile          string
	Email           string
	AdmissionNumber string
	HashedPassword  string
}

func (q *Queries) CreateStudent(ctx context.Context, arg CreateStudentParams) (Student, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO students (can_id, name, class_semester, mobile, email, admission_number, hashed_password)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+studentColumns,
		arg.CanID, arg.Name, arg.ClassSemester, arg.Mobile, arg.Email, arg.AdmissionNumber, arg.HashedPassword)
	return scanStudent(row)
}

func (q *Queries) GetStudentByEmail(ctx context.Context, email string) (Student, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+studentColumns+` FROM students WHERE email = $1`, email)
	return scanStudent(row)
}

func (q *Queries) GetStudentByMobile(ctx context.Context, mobile string) (Student, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+studentColumns+` FROM students WHERE mobile = $1`, mobile)
	return scanStudent(row)
}

type GetStudentInCanteenParams struct {
	ID    uuid.UUID
	CanID string
}

// GetStudentInCanteen scopes the lookup by canteen so cross-tenant access
// surfaces as pgx.ErrNoRows.
func (q *Queries) GetStudentInCanteen(ctx context.Context, arg GetStudentInCanteenParams) (Student, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+studentColumns+` FROM students WHERE id = $1 AND can_id = $2`, arg.ID, arg.CanID)
	return scanStudent(row)
}

func (q *Queries) ListStudentsByCanteen(ctx context.Context, canID string) ([]Student, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+studentColumns+` FROM students WHERE can_id = $1 ORDER BY name`, canID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

type SetStudentBannedParams struct {
	ID       uuid.UUID
	CanID    string
	Banned   bool
	BannedAt pgtype.Timestamptz
}

func (q *Queries) SetStudentBanned(ctx context.Context, arg SetStudentBannedParams) (Student, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE students
		SET banned = $3, banned_at = $4, updated_at = now()
		WHERE id = $1 AND can_id = $2
		RETURNING `+studentColumns,
		arg.ID, arg.CanID, arg.Banned, arg.BannedAt)
	return scanStudent(row)
}

type DeleteStudentParams struct {
	ID    uuid.UUID
	CanID string
}

func (q *Queries) DeleteStudent(ctx context.Context, arg DeleteStudentParams) (Student, error) {
	row := q.db.QueryRow(ctx, `
		DELETE FROM students WHERE id = $1 AND can_id = $2
		RETURNING `+studentColumns,
		arg.ID, arg.CanID)
	return scanStudent(row)
}

func (q *Queries) CountStudentsByCanteen(ctx context.Context, canID string) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM students WHERE can_id = $1`, canID).Scan(&n)
	return n, err
}
