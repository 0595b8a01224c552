package database

import (
	"context"
)

const canteenColumns = `id, can_id, college_name, email, hashed_password, created_at`

func scanCanteen(row interface{ Scan(dest ...any) error }) (Canteen, error) {
	var c Canteen
	err := row.Scan(&c.ID, &c.CanID, &c.CollegeName, &c.Email, &c.HashedPassword, &c.CreatedAt)
	return c, err
}

type CreateCanteenParams struct {
	CanID          string
	CollegeName    string
	Email          string
	HashedPassword string
}

func (q *Queries) CreateCanteen(ctx context.Context, arg CreateCanteenParams) (Canteen, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO canteens (can_id, college_name, email, hashed_password)
		VALUES ($1, $2, $3, $4)
		RETURNING `+canteenColumns,
		arg.CanID, arg.CollegeName, arg.Email, arg.HashedPassword)
	return scanCanteen(row)
}

func (q *Queries) GetCanteenByEmail(ctx context.Context, email string) (Canteen, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+canteenColumns+` FROM canteens WHERE email = $1`, email)
	return scanCanteen(row)
}

func (q *Queries) GetCanteenByCanID(ctx context.Context, canID string) (Canteen, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+canteenColumns+` FROM canteens WHERE can_id = $1`, canID)
	return scanCanteen(row)
}

// CanteenIDExists backs the canteen ID generator's uniqueness predicate.
func (q *Queries) CanteenIDExists(ctx context.Context, canID string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM canteens WHERE can_id = $1)`, canID).Scan(&exists)
	return exists, err
}
