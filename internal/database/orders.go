package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_id, can_id, student_id, order_date, daily_token,
	pickup_token, qr_token, total, status, created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderID, &o.CanID, &o.StudentID, &o.OrderDate, &o.DailyToken,
		&o.PickupToken, &o.QrToken, &o.Total, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

func (q *Queries) collectOrders(ctx context.Context, sql string, args ...any) ([]Order, error) {
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type CreateOrderParams struct {
	OrderID     string
	CanID       string
	StudentID   uuid.UUID
	OrderDate   pgtype.Date
	DailyToken  pgtype.Text
	PickupToken pgtype.Text
	QrToken     pgtype.Text
	Total       pgtype.Numeric
	Status      string
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO orders (order_id, can_id, student_id, order_date, daily_token,
			pickup_token, qr_token, total, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+orderColumns,
		arg.OrderID, arg.CanID, arg.StudentID, arg.OrderDate, arg.DailyToken,
		arg.PickupToken, arg.QrToken, arg.Total, arg.Status)
	return scanOrder(row)
}

type CreateOrderItemParams struct {
	OrderID   uuid.UUID
	FoodID    uuid.UUID
	Quantity  int32
	UnitPrice pgtype.Numeric
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	var item OrderItem
	err := q.db.QueryRow(ctx, `
		INSERT INTO order_items (order_id, food_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id, order_id, food_id, quantity, unit_price`,
		arg.OrderID, arg.FoodID, arg.Quantity, arg.UnitPrice).
		Scan(&item.ID, &item.OrderID, &item.FoodID, &item.Quantity, &item.UnitPrice)
	return item, err
}

type GetOrderParams struct {
	OrderID string
	CanID   string
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE order_id = $1 AND can_id = $2`,
		arg.OrderID, arg.CanID)
	return scanOrder(row)
}

func (q *Queries) ListOrdersByCanteen(ctx context.Context, canID string) ([]Order, error) {
	return q.collectOrders(ctx, `
		SELECT `+orderColumns+` FROM orders WHERE can_id = $1 ORDER BY created_at DESC`, canID)
}

type ListOrdersByStudentParams struct {
	CanID     string
	StudentID uuid.UUID
}

func (q *Queries) ListOrdersByStudent(ctx context.Context, arg ListOrdersByStudentParams) ([]Order, error) {
	return q.collectOrders(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE can_id = $1 AND student_id = $2
		ORDER BY created_at DESC`,
		arg.CanID, arg.StudentID)
}

// ListOrderItemDetails joins items with their food names for responses.
// Foods deleted after ordering still resolve through the FK.
func (q *Queries) ListOrderItemDetails(ctx context.Context, orderID uuid.UUID) ([]OrderItemDetail, error) {
	rows, err := q.db.Query(ctx, `
		SELECT oi.id, oi.food_id, f.name, oi.quantity, oi.unit_price
		FROM order_items oi
		JOIN foods f ON f.id = oi.food_id
		WHERE oi.order_id = $1
		ORDER BY f.name`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItemDetail
	for rows.Next() {
		var it OrderItemDetail
		if err := rows.Scan(&it.ID, &it.FoodID, &it.FoodName, &it.Quantity, &it.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type UpdateOrderStatusParams struct {
	OrderID string
	CanID   string
	Status  string
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET status = $3, updated_at = now()
		WHERE order_id = $1 AND can_id = $2
		RETURNING `+orderColumns,
		arg.OrderID, arg.CanID, arg.Status)
	return scanOrder(row)
}

type MarkOrderReadyParams struct {
	OrderID     string
	CanID       string
	OrderDate   pgtype.Date
	DailyToken  pgtype.Text
	PickupToken pgtype.Text
	QrToken     pgtype.Text
}

// MarkOrderReady backfills any missing pickup fields and sets status to Ready
// in one statement. COALESCE keeps values that already exist, which makes the
// backfill idempotent: a second call never replaces the first call's tokens.
func (q *Queries) MarkOrderReady(ctx context.Context, arg MarkOrderReadyParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders
		SET order_date   = COALESCE(order_date, $3),
		    daily_token  = COALESCE(daily_token, $4),
		    pickup_token = COALESCE(pickup_token, $5),
		    qr_token     = COALESCE(qr_token, $6),
		    status       = 'Ready',
		    updated_at   = now()
		WHERE order_id = $1 AND can_id = $2
		RETURNING `+orderColumns,
		arg.OrderID, arg.CanID, arg.OrderDate, arg.DailyToken, arg.PickupToken, arg.QrToken)
	return scanOrder(row)
}

type OrderByDailyTokenParams struct {
	OrderID    string
	CanID      string
	DailyToken string
	DateStart  pgtype.Date
	DateEnd    pgtype.Date
}

func (q *Queries) GetOrderByDailyToken(ctx context.Context, arg OrderByDailyTokenParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE order_id = $1 AND can_id = $2 AND daily_token = $3
		  AND order_date >= $4 AND order_date < $5`,
		arg.OrderID, arg.CanID, arg.DailyToken, arg.DateStart, arg.DateEnd)
	return scanOrder(row)
}

// DeliverOrderByDailyToken performs the terminal transition for the manual
// pickup path. The status guard makes repeated scans report pgx.ErrNoRows
// instead of re-delivering.
func (q *Queries) DeliverOrderByDailyToken(ctx context.Context, arg OrderByDailyTokenParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET status = 'Delivered', updated_at = now()
		WHERE order_id = $1 AND can_id = $2 AND daily_token = $3
		  AND order_date >= $4 AND order_date < $5
		  AND status <> 'Delivered'
		RETURNING `+orderColumns,
		arg.OrderID, arg.CanID, arg.DailyToken, arg.DateStart, arg.DateEnd)
	return scanOrder(row)
}

type DeliverOrderByQrTokenParams struct {
	OrderID string
	CanID   string
	QrToken string
}

// DeliverOrderByQrToken is the conditional update for the signed-QR path.
// Only an order that is currently Ready with the exact stored token matches,
// so two simultaneous scans cannot both succeed.
func (q *Queries) DeliverOrderByQrToken(ctx context.Context, arg DeliverOrderByQrTokenParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET status = 'Delivered', updated_at = now()
		WHERE order_id = $1 AND can_id = $2 AND qr_token = $3 AND status = 'Ready'
		RETURNING `+orderColumns,
		arg.OrderID, arg.CanID, arg.QrToken)
	return scanOrder(row)
}

func (q *Queries) OrderIDExists(ctx context.Context, orderID string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM orders WHERE order_id = $1)`, orderID).Scan(&exists)
	return exists, err
}

type DailyTokenExistsParams struct {
	CanID      string
	OrderDate  pgtype.Date
	DailyToken string
}

func (q *Queries) DailyTokenExists(ctx context.Context, arg DailyTokenExistsParams) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM orders
			WHERE can_id = $1 AND order_date = $2 AND daily_token = $3
		)`, arg.CanID, arg.OrderDate, arg.DailyToken).Scan(&exists)
	return exists, err
}

func (q *Queries) PickupTokenExists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM orders WHERE pickup_token = $1)`, token).Scan(&exists)
	return exists, err
}

func (q *Queries) CountOrdersByCanteen(ctx context.Context, canID string) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM orders WHERE can_id = $1`, canID).Scan(&n)
	return n, err
}
