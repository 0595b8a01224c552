package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/campusbites/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Errors returned by order validation.
var (
	ErrEmptyItems      = errors.New("items are required")
	ErrInvalidQuantity = errors.New("quantity must be > 0")
	ErrInvalidFoodID   = errors.New("invalid food_id")
	ErrStudentNotFound = errors.New("student not found in canteen")
	ErrStudentBanned   = errors.New("student is banned")
	ErrFoodNotFound    = errors.New("food not found in canteen")
	ErrOutOfStock      = errors.New("food is out of stock")
)

// ValidatorStore defines the DB reads needed to validate an order.
// Satisfied by *database.Queries (and its WithTx variant).
type ValidatorStore interface {
	GetStudentInCanteen(ctx context.Context, arg database.GetStudentInCanteenParams) (database.Student, error)
	GetFood(ctx context.Context, arg database.GetFoodParams) (database.Food, error)
}

// OrderItemInput is a single requested line before validation.
type OrderItemInput struct {
	FoodID   string
	Quantity int32
}

// ValidatedItem is a line that passed validation, with the unit price
// snapshotted from the menu at validation time.
type ValidatedItem struct {
	FoodID    uuid.UUID
	FoodName  string
	Quantity  int32
	UnitPrice decimal.Decimal
}

// ValidateOrder checks the student and every requested line against the
// canteen's menu and returns the priced lines plus the order total.
// Validation stops at the first failing line so the caller gets one precise
// error, not a bundle.
func ValidateOrder(ctx context.Context, store ValidatorStore, canID string, studentID uuid.UUID, items []OrderItemInput) ([]ValidatedItem, decimal.Decimal, error) {
	student, err := store.GetStudentInCanteen(ctx, database.GetStudentInCanteenParams{
		ID:    studentID,
		CanID: canID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, decimal.Zero, ErrStudentNotFound
		}
		return nil, decimal.Zero, fmt.Errorf("get student: %w", err)
	}
	if student.Banned {
		return nil, decimal.Zero, ErrStudentBanned
	}

	if len(items) == 0 {
		return nil, decimal.Zero, ErrEmptyItems
	}

	total := decimal.Zero
	validated := make([]ValidatedItem, 0, len(items))

	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}

		foodID, err := uuid.Parse(item.FoodID)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrInvalidFoodID)
		}

		food, err := store.GetFood(ctx, database.GetFoodParams{
			ID:    foodID,
			CanID: canID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrFoodNotFound)
			}
			return nil, decimal.Zero, fmt.Errorf("item[%d]: get food: %w", i, err)
		}
		if !food.InStock {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrOutOfStock)
		}

		unitPrice := numericToDecimal(food.Price)
		total = total.Add(unitPrice.Mul(decimal.NewFromInt32(item.Quantity)))

		validated = append(validated, ValidatedItem{
			FoodID:    foodID,
			FoodName:  food.Name,
			Quantity:  item.Quantity,
			UnitPrice: unitPrice,
		})
	}

	return validated, total, nil
}

// --- Numeric helpers shared across the service layer ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
