package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campusbites/api/internal/database"
	"github.com/campusbites/api/internal/enum"
	"github.com/campusbites/api/internal/token"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// maxTokenRetries bounds retries of the whole creation transaction when an
// insert loses a uniqueness race despite the pre-insert existence checks.
const maxTokenRetries = 3

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidOrderStatus = errors.New("invalid order status")
)

// tokenConstraints are the unique indexes whose violation means a token
// collided between our existence check and the insert.
var tokenConstraints = []string{
	"orders_order_id_key",
	"uq_orders_daily_token",
	"uq_orders_pickup_token",
}

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to create and transition orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	ValidatorStore
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrderItemDetails(ctx context.Context, orderID uuid.UUID) ([]database.OrderItemDetail, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	MarkOrderReady(ctx context.Context, arg database.MarkOrderReadyParams) (database.Order, error)
	OrderIDExists(ctx context.Context, orderID string) (bool, error)
	DailyTokenExists(ctx context.Context, arg database.DailyTokenExistsParams) (bool, error)
	PickupTokenExists(ctx context.Context, tok string) (bool, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for placing an order.
type CreateOrderRequest struct {
	CanID     string
	StudentID uuid.UUID
	Items     []OrderItemInput
}

// OrderResult is an order with its priced lines.
type OrderResult struct {
	Order database.Order
	Items []database.OrderItemDetail
}

// OrderService handles order placement and lifecycle transitions.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
	qrSecret string
	qrTTL    time.Duration
}

func NewOrderService(pool TxBeginner, newStore NewOrderStore, qrSecret string, qrTTL time.Duration) *OrderService {
	return &OrderService{pool: pool, newStore: newStore, qrSecret: qrSecret, qrTTL: qrTTL}
}

// Create validates the request, generates the order's identifiers and pickup
// tokens, and inserts the order with its lines atomically. Token collisions
// that slip past the existence checks surface as unique violations; the whole
// transaction retries up to maxTokenRetries times before giving up.
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	var lastErr error
	for attempt := 0; attempt < maxTokenRetries; attempt++ {
		result, err := s.createTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if database.IsUniqueViolation(err, tokenConstraints...) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *OrderService) createTx(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	items, total, err := ValidateOrder(ctx, store, req.CanID, req.StudentID, req.Items)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	orderDate := pgtype.Date{Time: now, Valid: true}

	orderID, err := token.Unique(ctx, token.OrderIDAttempts, token.OrderID, store.OrderIDExists)
	if err != nil {
		return nil, fmt.Errorf("generate order id: %w", err)
	}

	dailyToken, err := token.Unique(ctx, token.DailyTokenAttempts, token.DailyToken,
		func(ctx context.Context, candidate string) (bool, error) {
			return store.DailyTokenExists(ctx, database.DailyTokenExistsParams{
				CanID:      req.CanID,
				OrderDate:  orderDate,
				DailyToken: candidate,
			})
		})
	if err != nil {
		return nil, fmt.Errorf("generate daily token: %w", err)
	}

	pickupToken, err := token.Unique(ctx, token.PickupTokenAttempts, token.PickupToken, store.PickupTokenExists)
	if err != nil {
		return nil, fmt.Errorf("generate pickup token: %w", err)
	}

	qrToken, err := token.SignQRToken(s.qrSecret, s.qrTTL, orderID, req.CanID, pickupToken)
	if err != nil {
		return nil, fmt.Errorf("sign qr token: %w", err)
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderID:     orderID,
		CanID:       req.CanID,
		StudentID:   req.StudentID,
		OrderDate:   orderDate,
		DailyToken:  pgtype.Text{String: dailyToken, Valid: true},
		PickupToken: pgtype.Text{String: pickupToken, Valid: true},
		QrToken:     pgtype.Text{String: qrToken, Valid: true},
		Total:       decimalToNumeric(total),
		Status:      enum.OrderStatusPreparing,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	for _, item := range items {
		if _, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
			OrderID:   order.ID,
			FoodID:    item.FoodID,
			Quantity:  item.Quantity,
			UnitPrice: decimalToNumeric(item.UnitPrice),
		}); err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
	}

	details, err := store.ListOrderItemDetails(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &OrderResult{Order: order, Items: details}, nil
}

// Get returns one order with its lines, scoped to the canteen.
func (s *OrderService) Get(ctx context.Context, canID, orderID string) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrder(ctx, database.GetOrderParams{OrderID: orderID, CanID: canID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	details, err := store.ListOrderItemDetails(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &OrderResult{Order: order, Items: details}, nil
}

// MarkReady moves an order to Ready, backfilling any pickup fields the order
// is still missing. Orders placed through the normal flow already carry their
// tokens, so the backfill is a no-op for them; it exists for rows imported
// from before tokens were assigned at creation. Calling MarkReady on an order
// that is already Ready is harmless.
func (s *OrderService) MarkReady(ctx context.Context, canID, orderID string) (*OrderResult, error) {
	var lastErr error
	for attempt := 0; attempt < maxTokenRetries; attempt++ {
		result, err := s.markReadyTx(ctx, canID, orderID)
		if err == nil {
			return result, nil
		}
		if database.IsUniqueViolation(err, tokenConstraints...) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

func (s *OrderService) markReadyTx(ctx context.Context, canID, orderID string) (*OrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrder(ctx, database.GetOrderParams{OrderID: orderID, CanID: canID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	orderDate := order.OrderDate
	if !orderDate.Valid {
		orderDate = pgtype.Date{Time: time.Now(), Valid: true}
	}

	dailyToken := order.DailyToken
	if !dailyToken.Valid {
		generated, err := token.Unique(ctx, token.DailyTokenAttempts, token.DailyToken,
			func(ctx context.Context, candidate string) (bool, error) {
				return store.DailyTokenExists(ctx, database.DailyTokenExistsParams{
					CanID:      canID,
					OrderDate:  orderDate,
					DailyToken: candidate,
				})
			})
		if err != nil {
			return nil, fmt.Errorf("generate daily token: %w", err)
		}
		dailyToken = pgtype.Text{String: generated, Valid: true}
	}

	pickupToken := order.PickupToken
	if !pickupToken.Valid {
		generated, err := token.Unique(ctx, token.PickupTokenAttempts, token.PickupToken, store.PickupTokenExists)
		if err != nil {
			return nil, fmt.Errorf("generate pickup token: %w", err)
		}
		pickupToken = pgtype.Text{String: generated, Valid: true}
	}

	qrToken := order.QrToken
	if !qrToken.Valid {
		signed, err := token.SignQRToken(s.qrSecret, s.qrTTL, orderID, canID, pickupToken.String)
		if err != nil {
			return nil, fmt.Errorf("sign qr token: %w", err)
		}
		qrToken = pgtype.Text{String: signed, Valid: true}
	}

	updated, err := store.MarkOrderReady(ctx, database.MarkOrderReadyParams{
		OrderID:     orderID,
		CanID:       canID,
		OrderDate:   orderDate,
		DailyToken:  dailyToken,
		PickupToken: pickupToken,
		QrToken:     qrToken,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The order vanished between the read and the update.
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("mark order ready: %w", err)
	}

	details, err := store.ListOrderItemDetails(ctx, updated.ID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &OrderResult{Order: updated, Items: details}, nil
}

// SetStatus is the counter staff's explicit override. Unlike MarkReady and
// delivery it allows any transition, including moving an order backwards.
func (s *OrderService) SetStatus(ctx context.Context, canID, orderID, status string) (*OrderResult, error) {
	if !isValidOrderStatus(status) {
		return nil, ErrInvalidOrderStatus
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		OrderID: orderID,
		CanID:   canID,
		Status:  status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("update order status: %w", err)
	}

	details, err := store.ListOrderItemDetails(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &OrderResult{Order: order, Items: details}, nil
}

// QRPayload derives the bare QR content for an order once its pickup fields
// exist. Returns false for orders that have not been assigned tokens yet.
func QRPayload(order database.Order) (string, bool) {
	if !order.DailyToken.Valid || !order.OrderDate.Valid {
		return "", false
	}
	payload, err := token.BuildQRPayload(order.OrderID, order.DailyToken.String, order.CanID, order.OrderDate.Time)
	if err != nil {
		return "", false
	}
	return payload, true
}

func isValidOrderStatus(s string) bool {
	switch s {
	case enum.OrderStatusPreparing, enum.OrderStatusReady, enum.OrderStatusDelivered:
		return true
	}
	return false
}
