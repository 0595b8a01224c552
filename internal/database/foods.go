package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const foodColumns = `id, can_id, name, price, category, in_stock, image_url, created_at, updated_at`

func scanFood(row interface{ Scan(dest ...any) error }) (Food, error) {
	var f Food
	err := row.Scan(&f.ID, &f.CanID, &f.Name, &f.Price, &f.Category, &f.InStock,
		&f.ImageURL, &f.CreatedAt, &f.UpdatedAt)
	return f, err
}

type CreateFoodParams struct {
	CanID    string
	Name     string
	Price    pgtype.Numeric
	Category string
	InStock  bool
	ImageURL string
}

func (q *Queries) CreateFood(ctx context.Context, arg CreateFoodParams) (Food, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO foods (can_id, name, price, category, in_stock, image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+foodColumns,
		arg.CanID, arg.Name, arg.Price, arg.Category, arg.InStock, arg.ImageURL)
	return scanFood(row)
}

type GetFoodParams struct {
	ID    uuid.UUID
	CanID string
}

func (q *Queries) GetFood(ctx context.Context, arg GetFoodParams) (Food, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+foodColumns+` FROM foods WHERE id = $1 AND can_id = $2`, arg.ID, arg.CanID)
	return scanFood(row)
}

func (q *Queries) ListFoodsByCanteen(ctx context.Context, canID string) ([]Food, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+foodColumns+` FROM foods WHERE can_id = $1 ORDER BY name`, canID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var foods []Food
	for rows.Next() {
		f, err := scanFood(rows)
		if err != nil {
			return nil, err
		}
		foods = append(foods, f)
	}
	return foods, rows.Err()
}

type UpdateFoodParams struct {
	ID       uuid.UUID
	CanID    string
	Name     string
	Price    pgtype.Numeric
	Category string
	InStock  bool
	ImageURL string
}

func (q *Queries) UpdateFood(ctx context.Context, arg UpdateFoodParams) (Food, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE foods
		SET name = $3, price = $4, category = $5, in_stock = $6, image_url = $7, updated_at = now()
		WHERE id = $1 AND can_id = $2
		RETURNING `+foodColumns,
		arg.ID, arg.CanID, arg.Name, arg.Price, arg.Category, arg.InStock, arg.ImageURL)
	return scanFood(row)
}

type DeleteFoodParams struct {
	ID    uuid.UUID
	CanID string
}

func (q *Queries) DeleteFood(ctx context.Context, arg DeleteFoodParams) (Food, error) {
	row := q.db.QueryRow(ctx, `
		DELETE FROM foods WHERE id = $1 AND can_id = $2
		RETURNING `+foodColumns,
		arg.ID, arg.CanID)
	return scanFood(row)
}

func (q *Queries) CountFoodsByCanteen(ctx context.Context, canID string) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM foods WHERE can_id = $1`, canID).Scan(&n)
	return n, err
}
