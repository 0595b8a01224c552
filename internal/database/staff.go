package database

import (
	"context"

	"github.com/google/uuid"
)

const staffColumns = `id, can_id, name, email, hashed_password, status, created_at, updated_at`

func scanStaff(row interface{ Scan(dest ...any) error }) (Staff, error) {
	var s Staff
	err := row.Scan(&s.ID, &s.CanID, &s.Name, &s.Email, &s.HashedPassword, &s.Status,
		&s.CreatedAt, &s.UpdatedAt)
	return s, err
}

type CreateStaffParams struct {
	CanID          string
	Name           string
	Email          string
	HashedPassword string
}

func (q *Queries) CreateStaff(ctx context.Context, arg CreateStaffParams) (Staff, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO staff (can_id, name, email, hashed_password)
		VALUES ($1, $2, $3, $4)
		RETURNING `+staffColumns,
		arg.CanID, arg.Name, arg.Email, arg.HashedPassword)
	return scanStaff(row)
}

func (q *Queries) GetStaffByEmail(ctx context.Context, email string) (Staff, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+staffColumns+` FROM staff WHERE email = $1`, email)
	return scanStaff(row)
}

func (q *Queries) ListStaffByCanteen(ctx context.Context, canID string) ([]Staff, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+staffColumns+` FROM staff WHERE can_id = $1 ORDER BY name`, canID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, s)
	}
	return members, rows.Err()
}

type UpdateStaffStatusParams struct {
	ID     uuid.UUID
	CanID  string
	Status string
}

func (q *Queries) UpdateStaffStatus(ctx context.Context, arg UpdateStaffStatusParams) (Staff, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE staff SET status = $3, updated_at = now()
		WHERE id = $1 AND can_id = $2
		RETURNING `+staffColumns,
		arg.ID, arg.CanID, arg.Status)
	return scanStaff(row)
}
