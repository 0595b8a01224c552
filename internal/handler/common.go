// Package handler contains the HTTP boundary: request decoding, response
// shaping, and mapping service errors to status codes. Business rules live
// in the service layer.
package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/campusbites/api/internal/database"
	"github.com/campusbites/api/internal/service"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// --- Shared order response shaping ---

type orderItemResponse struct {
	FoodID    string `json:"foodId"`
	FoodName  string `json:"foodName"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
}

type orderResponse struct {
	OrderID     string              `json:"orderId"`
	CanID       string              `json:"canID"`
	StudentID   string              `json:"studentId"`
	OrderDate   string              `json:"orderDate,omitempty"`
	DailyToken  string              `json:"dailyToken,omitempty"`
	PickupToken string              `json:"pickupToken,omitempty"`
	QrToken     string              `json:"qrToken,omitempty"`
	QrPayload   string              `json:"qrPayload,omitempty"`
	Total       string              `json:"total"`
	Status      string              `json:"status"`
	Items       []orderItemResponse `json:"items,omitempty"`
	CreatedAt   string              `json:"createdAt,omitempty"`
}

func toOrderResponse(order database.Order, items []database.OrderItemDetail) orderResponse {
	resp := orderResponse{
		OrderID:   order.OrderID,
		CanID:     order.CanID,
		StudentID: order.StudentID.String(),
		Total:     numericString(order.Total),
		Status:    order.Status,
	}
	if order.OrderDate.Valid {
		resp.OrderDate = order.OrderDate.Time.Format("2006-01-02")
	}
	if order.DailyToken.Valid {
		resp.DailyToken = order.DailyToken.String
	}
	if order.PickupToken.Valid {
		resp.PickupToken = order.PickupToken.String
	}
	if order.QrToken.Valid {
		resp.QrToken = order.QrToken.String
	}
	if payload, ok := service.QRPayload(order); ok {
		resp.QrPayload = payload
	}
	if !order.CreatedAt.IsZero() {
		resp.CreatedAt = order.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	for _, item := range items {
		resp.Items = append(resp.Items, orderItemResponse{
			FoodID:    item.FoodID.String(),
			FoodName:  item.FoodName,
			Quantity:  item.Quantity,
			UnitPrice: numericString(item.UnitPrice),
		})
	}
	return resp
}

func toOrderResultResponse(result *service.OrderResult) orderResponse {
	return toOrderResponse(result.Order, result.Items)
}

// numericString renders money with two decimal places.
func numericString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}
