package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campusbites/api/internal/database"
	"github.com/campusbites/api/internal/enum"
	"github.com/campusbites/api/internal/token"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

var (
	ErrInvalidDate      = errors.New("order_date must be YYYY-MM-DD")
	ErrPickupNotFound   = errors.New("no matching order for pickup")
	ErrAlreadyDelivered = errors.New("order already delivered")
	ErrNotReady         = errors.New("order is not ready for pickup")
	ErrStaleQRToken     = errors.New("qr token does not match the order's current token")
	ErrWrongCanteen     = errors.New("qr token belongs to a different canteen")
)

// PickupStore defines the DB methods for handing orders over at the counter.
// Satisfied by *database.Queries.
type PickupStore interface {
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	GetOrderByDailyToken(ctx context.Context, arg database.OrderByDailyTokenParams) (database.Order, error)
	DeliverOrderByDailyToken(ctx context.Context, arg database.OrderByDailyTokenParams) (database.Order, error)
	DeliverOrderByQrToken(ctx context.Context, arg database.DeliverOrderByQrTokenParams) (database.Order, error)
}

// PickupService verifies pickup proofs and performs the terminal Delivered
// transition. Both paths go through a single conditional update, so two
// staff scanning the same order cannot both succeed.
type PickupService struct {
	store    PickupStore
	qrSecret string
}

func NewPickupService(store PickupStore, qrSecret string) *PickupService {
	return &PickupService{store: store, qrSecret: qrSecret}
}

// ManualPickupRequest is the tuple a staff member types in when the QR
// cannot be scanned.
type ManualPickupRequest struct {
	CanID      string
	OrderID    string
	DailyToken string
	OrderDate  string // YYYY-MM-DD
}

// VerifyAndDeliver matches the manual tuple against exactly one order and
// delivers it. The date must match the order's own date; yesterday's token
// never opens today's order. An order that was already handed over comes
// back alongside ErrAlreadyDelivered so the caller can show it instead of
// retrying.
func (s *PickupService) VerifyAndDeliver(ctx context.Context, req ManualPickupRequest) (database.Order, error) {
	day, err := time.Parse("2006-01-02", req.OrderDate)
	if err != nil {
		return database.Order{}, ErrInvalidDate
	}

	params := database.OrderByDailyTokenParams{
		OrderID:    req.OrderID,
		CanID:      req.CanID,
		DailyToken: req.DailyToken,
		DateStart:  pgtype.Date{Time: day, Valid: true},
		DateEnd:    pgtype.Date{Time: day.AddDate(0, 0, 1), Valid: true},
	}

	order, err := s.store.DeliverOrderByDailyToken(ctx, params)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Order{}, fmt.Errorf("deliver order: %w", err)
	}

	// The conditional update missed. Re-read without the status guard to
	// tell "already delivered" apart from "no such order".
	existing, probeErr := s.store.GetOrderByDailyToken(ctx, params)
	if probeErr == nil {
		return existing, ErrAlreadyDelivered
	}
	if !errors.Is(probeErr, pgx.ErrNoRows) {
		return database.Order{}, fmt.Errorf("get order for pickup: %w", probeErr)
	}
	return database.Order{}, ErrPickupNotFound
}

// VerifyAndDeliverQR validates a signed pickup token and delivers the order
// it names. The update matches only a Ready order holding this exact token;
// on a miss the order is re-read to report why the scan failed.
func (s *PickupService) VerifyAndDeliverQR(ctx context.Context, canID, tokenStr string) (database.Order, error) {
	claims, err := token.VerifyQRToken(s.qrSecret, tokenStr)
	if err != nil {
		return database.Order{}, err
	}
	if claims.Type != token.QRTypeOrderPickup {
		return database.Order{}, token.ErrQRInvalid
	}
	if claims.CanID != canID {
		return database.Order{}, ErrWrongCanteen
	}

	order, err := s.store.DeliverOrderByQrToken(ctx, database.DeliverOrderByQrTokenParams{
		OrderID: claims.OrderID,
		CanID:   canID,
		QrToken: tokenStr,
	})
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.Order{}, fmt.Errorf("deliver order: %w", err)
	}

	probe, probeErr := s.store.GetOrder(ctx, database.GetOrderParams{
		OrderID: claims.OrderID,
		CanID:   canID,
	})
	if probeErr != nil {
		if errors.Is(probeErr, pgx.ErrNoRows) {
			return database.Order{}, ErrPickupNotFound
		}
		return database.Order{}, fmt.Errorf("get order for pickup: %w", probeErr)
	}

	switch {
	case probe.Status == enum.OrderStatusDelivered:
		return database.Order{}, ErrAlreadyDelivered
	case probe.Status != enum.OrderStatusReady:
		return database.Order{}, ErrNotReady
	case !probe.QrToken.Valid || probe.QrToken.String != tokenStr:
		// The order was re-issued a token after this QR was rendered.
		return database.Order{}, ErrStaleQRToken
	default:
		return database.Order{}, ErrPickupNotFound
	}
}
