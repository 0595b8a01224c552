package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campusbites/api/internal/database"
	"github.com/campusbites/api/internal/enum"
	"github.com/campusbites/api/internal/gateway"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Polling bounds for a confirmation that finds the payment locked by a
// concurrent request. 10 x 200ms gives the lock holder two seconds to finish
// before we tell the caller to retry.
const (
	claimPollAttempts = 10
	claimPollInterval = 200 * time.Millisecond
)

var (
	ErrBadSignature       = errors.New("payment signature verification failed")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrPaymentProcessing  = errors.New("payment is being processed")
	ErrPaymentNotCaptured = errors.New("payment not captured")
	ErrAmountMismatch     = errors.New("payment amount does not match order total")
	ErrPaymentMismatch    = errors.New("payment does not belong to this gateway order")
)

// PaymentStore defines the DB methods for the payment ledger.
// Satisfied by *database.Queries.
type PaymentStore interface {
	UpsertPayment(ctx context.Context, arg database.UpsertPaymentParams) (database.Payment, error)
	GetPayment(ctx context.Context, arg database.GetPaymentParams) (database.Payment, error)
	ClaimPayment(ctx context.Context, arg database.ClaimPaymentParams) (database.Payment, error)
	ResolvePayment(ctx context.Context, arg database.ResolvePaymentParams) (database.Payment, error)
	ReleasePayment(ctx context.Context, arg database.ReleasePaymentParams) (database.Payment, error)
}

// OrderPlacer is the slice of OrderService the payment flow needs.
type OrderPlacer interface {
	Create(ctx context.Context, req CreateOrderRequest) (*OrderResult, error)
	Get(ctx context.Context, canID, orderID string) (*OrderResult, error)
}

// PaymentService drives the prepay flow: create a gateway order before
// checkout, then reconcile the gateway's confirmation into a placed order
// exactly once.
type PaymentService struct {
	store   PaymentStore
	catalog ValidatorStore
	gw      gateway.Gateway
	orders  OrderPlacer
}

func NewPaymentService(store PaymentStore, catalog ValidatorStore, gw gateway.Gateway, orders OrderPlacer) *PaymentService {
	return &PaymentService{store: store, catalog: catalog, gw: gw, orders: orders}
}

// CreateGatewayOrderRequest prices a cart and registers it with the gateway.
type CreateGatewayOrderRequest struct {
	CanID     string
	StudentID uuid.UUID
	Items     []OrderItemInput
}

// PaymentIntent is what the client needs to open the gateway checkout.
type PaymentIntent struct {
	Payment        database.Payment
	GatewayOrderID string
	Amount         int64 // paise
	Currency       string
	KeyID          string
}

// CreateGatewayOrder validates the cart, creates the Razorpay order for its
// total, and records the pending payment. The cart itself is not persisted;
// the client re-submits it with the confirmation.
func (s *PaymentService) CreateGatewayOrder(ctx context.Context, req CreateGatewayOrderRequest) (*PaymentIntent, error) {
	_, total, err := ValidateOrder(ctx, s.catalog, req.CanID, req.StudentID, req.Items)
	if err != nil {
		return nil, err
	}

	// Razorpay amounts are in the smallest currency unit.
	amount := total.Shift(2).IntPart()
	receipt := fmt.Sprintf("rcpt-%s-%d", req.CanID, time.Now().UnixMilli())

	gwOrder, err := s.gw.CreateOrder(ctx, amount, "INR", receipt, map[string]interface{}{
		"can_id":     req.CanID,
		"student_id": req.StudentID.String(),
	})
	if err != nil {
		return nil, err
	}

	payment, err := s.store.UpsertPayment(ctx, database.UpsertPaymentParams{
		RazorpayOrderID: gwOrder.ID,
		StudentID:       req.StudentID,
		CanID:           req.CanID,
		Amount:          decimalToNumeric(total),
		Currency:        "INR",
		Status:          enum.PaymentStatusCreated,
	})
	if err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}

	return &PaymentIntent{
		Payment:        payment,
		GatewayOrderID: gwOrder.ID,
		Amount:         amount,
		Currency:       "INR",
		KeyID:          s.gw.KeyID(),
	}, nil
}

// VerifyPaymentRequest carries the gateway confirmation plus the cart to
// place once the payment checks out.
type VerifyPaymentRequest struct {
	CanID             string
	StudentID         uuid.UUID
	RazorpayOrderID   string
	RazorpayPaymentID string
	Signature         string
	Items             []OrderItemInput
}

// VerifyAndPlace reconciles a gateway confirmation into a placed order.
// Duplicate confirmations for an already resolved payment return the
// existing order. Concurrent confirmations race on a per-payment lock; the
// loser polls briefly for the winner's outcome and reports
// ErrPaymentProcessing if the winner is still working.
func (s *PaymentService) VerifyAndPlace(ctx context.Context, req VerifyPaymentRequest) (*OrderResult, error) {
	if !s.gw.VerifySignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.Signature) {
		return nil, ErrBadSignature
	}

	payment, err := s.getPayment(ctx, req)
	if err != nil {
		return nil, err
	}
	if payment.OrderID.Valid {
		return s.orders.Get(ctx, req.CanID, payment.OrderID.String)
	}

	// The cart is re-submitted with the confirmation; its recomputed total
	// must still match what the student was charged for.
	_, total, err := ValidateOrder(ctx, s.catalog, req.CanID, req.StudentID, req.Items)
	if err != nil {
		return nil, err
	}
	if total.Shift(2).IntPart() != numericToDecimal(payment.Amount).Shift(2).IntPart() {
		return nil, ErrAmountMismatch
	}

	lockID := uuid.New()
	claimed, existing, err := s.claim(ctx, req, lockID)
	if err != nil {
		return nil, err
	}
	if existing != "" {
		return s.orders.Get(ctx, req.CanID, existing)
	}

	result, err := s.settle(ctx, req, claimed, lockID)
	if err != nil {
		if result != nil {
			// The order exists but the payment row could not be promoted.
			// Keep the lock: releasing it would let a retried confirmation
			// pass the replay check and place a second order. Retries see
			// ErrPaymentProcessing until the row is repaired.
			return nil, err
		}
		// No order was created; put the payment back so a later
		// confirmation can retry.
		if _, relErr := s.store.ReleasePayment(ctx, database.ReleasePaymentParams{
			RazorpayOrderID: req.RazorpayOrderID,
			LockID:          lockID,
		}); relErr != nil && !errors.Is(relErr, pgx.ErrNoRows) {
			return nil, fmt.Errorf("release payment after %w: %v", err, relErr)
		}
		return nil, err
	}
	return result, nil
}

func (s *PaymentService) getPayment(ctx context.Context, req VerifyPaymentRequest) (database.Payment, error) {
	payment, err := s.store.GetPayment(ctx, database.GetPaymentParams{
		RazorpayOrderID: req.RazorpayOrderID,
		StudentID:       req.StudentID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Payment{}, ErrPaymentNotFound
		}
		return database.Payment{}, fmt.Errorf("get payment: %w", err)
	}
	return payment, nil
}

// claim acquires the per-payment lock. When another request holds it, claim
// polls for that request's outcome: either the payment resolves to an order
// (returned via existing) or the poll budget runs out.
func (s *PaymentService) claim(ctx context.Context, req VerifyPaymentRequest, lockID uuid.UUID) (database.Payment, string, error) {
	claimed, err := s.store.ClaimPayment(ctx, database.ClaimPaymentParams{
		RazorpayOrderID: req.RazorpayOrderID,
		StudentID:       req.StudentID,
		LockID:          lockID,
	})
	if err == nil {
		return claimed, "", nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Payment{}, "", fmt.Errorf("claim payment: %w", err)
	}

	for i := 0; i < claimPollAttempts; i++ {
		select {
		case <-ctx.Done():
			return database.Payment{}, "", ctx.Err()
		case <-time.After(claimPollInterval):
		}

		payment, err := s.getPayment(ctx, req)
		if err != nil {
			return database.Payment{}, "", err
		}
		if payment.OrderID.Valid {
			return database.Payment{}, payment.OrderID.String, nil
		}
		if !payment.LockID.Valid {
			// The previous holder released without resolving; take over.
			claimed, err := s.store.ClaimPayment(ctx, database.ClaimPaymentParams{
				RazorpayOrderID: req.RazorpayOrderID,
				StudentID:       req.StudentID,
				LockID:          lockID,
			})
			if err == nil {
				return claimed, "", nil
			}
			if !errors.Is(err, pgx.ErrNoRows) {
				return database.Payment{}, "", fmt.Errorf("claim payment: %w", err)
			}
			// Lost the re-claim race, keep polling.
		}
	}
	return database.Payment{}, "", ErrPaymentProcessing
}

// settle runs with the lock held: cross-check the charge with the gateway,
// place the order, and resolve the payment to it. When it fails after the
// order was placed it returns the result alongside the error so the caller
// knows the lock must not be released.
func (s *PaymentService) settle(ctx context.Context, req VerifyPaymentRequest, payment database.Payment, lockID uuid.UUID) (*OrderResult, error) {
	charge, err := s.gw.FetchPayment(ctx, req.RazorpayPaymentID)
	if err != nil {
		return nil, err
	}
	if charge.OrderID != req.RazorpayOrderID {
		return nil, ErrPaymentMismatch
	}
	if charge.Status != "captured" {
		return nil, ErrPaymentNotCaptured
	}
	if expected := numericToDecimal(payment.Amount).Shift(2).IntPart(); charge.Amount != expected {
		return nil, ErrAmountMismatch
	}

	result, err := s.orders.Create(ctx, CreateOrderRequest{
		CanID:     req.CanID,
		StudentID: req.StudentID,
		Items:     req.Items,
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.store.ResolvePayment(ctx, database.ResolvePaymentParams{
		RazorpayOrderID:   req.RazorpayOrderID,
		LockID:            lockID,
		OrderID:           result.Order.OrderID,
		RazorpayPaymentID: req.RazorpayPaymentID,
		Status:            enum.PaymentStatusCaptured,
		PaidAt:            pgtype.Timestamptz{Time: time.Now(), Valid: true},
	}); err != nil {
		return result, fmt.Errorf("resolve payment: %w", err)
	}

	return result, nil
}
