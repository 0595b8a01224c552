package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const paymentColumns = `id, razorpay_order_id, razorpay_payment_id, student_id, can_id,
	amount, currency, status, order_id, lock_id, paid_at, created_at, updated_at`

func scanPayment(row interface{ Scan(dest ...any) error }) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.RazorpayOrderID, &p.RazorpayPaymentID, &p.StudentID, &p.CanID,
		&p.Amount, &p.Currency, &p.Status, &p.OrderID, &p.LockID, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

type UpsertPaymentParams struct {
	RazorpayOrderID string
	StudentID       uuid.UUID
	CanID           string
	Amount          pgtype.Numeric
	Currency        string
	Status          string
}

// UpsertPayment records the gateway-side order. Re-confirmations update the
// status but never touch order_id or lock_id; those move only through the
// conditional claim/resolve/release updates below.
func (q *Queries) UpsertPayment(ctx context.Context, arg UpsertPaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO payments (razorpay_order_id, student_id, can_id, amount, currency, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (razorpay_order_id) DO UPDATE
		SET status = EXCLUDED.status, updated_at = now()
		RETURNING `+paymentColumns,
		arg.RazorpayOrderID, arg.StudentID, arg.CanID, arg.Amount, arg.Currency, arg.Status)
	return scanPayment(row)
}

type GetPaymentParams struct {
	RazorpayOrderID string
	StudentID       uuid.UUID
}

func (q *Queries) GetPayment(ctx context.Context, arg GetPaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE razorpay_order_id = $1 AND student_id = $2`,
		arg.RazorpayOrderID, arg.StudentID)
	return scanPayment(row)
}

type ClaimPaymentParams struct {
	RazorpayOrderID string
	StudentID       uuid.UUID
	LockID          uuid.UUID
}

// ClaimPayment acquires the processing lock with a single compare-and-set:
// it matches only the unclaimed state (no lock, no resolved order). A miss
// surfaces as pgx.ErrNoRows, meaning another request holds the lock or has
// already resolved the payment.
func (q *Queries) ClaimPayment(ctx context.Context, arg ClaimPaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE payments SET lock_id = $3, updated_at = now()
		WHERE razorpay_order_id = $1 AND student_id = $2
		  AND lock_id IS NULL AND order_id IS NULL
		RETURNING `+paymentColumns,
		arg.RazorpayOrderID, arg.StudentID, arg.LockID)
	return scanPayment(row)
}

type ResolvePaymentParams struct {
	RazorpayOrderID   string
	LockID            uuid.UUID
	OrderID           string
	RazorpayPaymentID string
	Status            string
	PaidAt            pgtype.Timestamptz
}

// ResolvePayment promotes the lock to the real order reference. Conditional
// on the caller's lock so a stale holder cannot overwrite a later claim.
func (q *Queries) ResolvePayment(ctx context.Context, arg ResolvePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE payments
		SET order_id = $3, lock_id = NULL, razorpay_payment_id = $4,
		    status = $5, paid_at = $6, updated_at = now()
		WHERE razorpay_order_id = $1 AND lock_id = $2
		RETURNING `+paymentColumns,
		arg.RazorpayOrderID, arg.LockID, arg.OrderID, arg.RazorpayPaymentID, arg.Status, arg.PaidAt)
	return scanPayment(row)
}

type ReleasePaymentParams struct {
	RazorpayOrderID string
	LockID          uuid.UUID
}

// ReleasePayment returns a failed claim to the unclaimed state so a future
// confirmation can retry order creation.
func (q *Queries) ReleasePayment(ctx context.Context, arg ReleasePaymentParams) (Payment, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE payments SET lock_id = NULL, updated_at = now()
		WHERE razorpay_order_id = $1 AND lock_id = $2
		RETURNING `+paymentColumns,
		arg.RazorpayOrderID, arg.LockID)
	return scanPayment(row)
}
