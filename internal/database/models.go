package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Canteen struct {
	ID             uuid.UUID
	CanID          string
	CollegeName    string
	Email          string
	HashedPassword string
	CreatedAt      time.Time
}

type Student struct {
	ID              uuid.UUID
	CanID           string
	Name            string
	ClassSemester   string
	Mobile          string
	Email           string
	AdmissionNumber string
	HashedPassword  string
	Banned          bool
	BannedAt        pgtype.Timestamptz
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Food struct {
	ID        uuid.UUID
	CanID     string
	Name      string
	Price     pgtype.Numeric
	Category  string
	InStock   bool
	ImageURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Order struct {
	ID          uuid.UUID
	OrderID     string
	CanID       string
	StudentID   uuid.UUID
	OrderDate   pgtype.Date
	DailyToken  pgtype.Text
	PickupToken pgtype.Text
	QrToken     pgtype.Text
	Total       pgtype.Numeric
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	FoodID    uuid.UUID
	Quantity  int32
	UnitPrice pgtype.Numeric
}

// OrderItemDetail joins the item with its food name for responses.
type OrderItemDetail struct {
	ID        uuid.UUID
	FoodID    uuid.UUID
	FoodName  string
	Quantity  int32
	UnitPrice pgtype.Numeric
}

type Payment struct {
	ID                uuid.UUID
	RazorpayOrderID   string
	RazorpayPaymentID pgtype.Text
	StudentID         uuid.UUID
	CanID             string
	Amount            pgtype.Numeric
	Currency          string
	Status            string
	OrderID           pgtype.Text
	LockID            pgtype.UUID
	PaidAt            pgtype.Timestamptz
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Staff struct {
	ID             uuid.UUID
	CanID          string
	Name           string
	Email          string
	HashedPassword string
	Status         string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
