package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/campusbites/api/internal/enum"
	"github.com/campusbites/api/internal/middleware"
	"github.com/campusbites/api/internal/service"
	"github.com/campusbites/api/internal/ws"
	"github.com/go-chi/chi/v5"
)

// PaymentServicer defines the service methods needed by payment handlers.
// Satisfied by *service.PaymentService; narrow interface for testability.
type PaymentServicer interface {
	CreateGatewayOrder(ctx context.Context, req service.CreateGatewayOrderRequest) (*service.PaymentIntent, error)
	VerifyAndPlace(ctx context.Context, req service.VerifyPaymentRequest) (*service.OrderResult, error)
}

// PaymentHandler handles the prepaid checkout endpoints.
type PaymentHandler struct {
	svc PaymentServicer
	hub Broadcaster
}

func NewPaymentHandler(svc PaymentServicer, hub Broadcaster) *PaymentHandler {
	return &PaymentHandler{svc: svc, hub: hub}
}

// RegisterRoutes registers payment endpoints on the given Chi router.
// Expected to be mounted inside a canteen-scoped subrouter: /canteens/{canID}/payments
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireRole(enum.RoleStudent)).Post("/order", h.CreateGatewayOrder)
	r.With(middleware.RequireRole(enum.RoleStudent)).Post("/verify", h.Verify)
}

// --- Request / Response types ---

type createGatewayOrderRequest struct {
	Items []orderItemRequest `json:"items"`
}

type gatewayOrderResponse struct {
	RazorpayOrderID string `json:"razorpayOrderId"`
	Amount          int64  `json:"amount"` // paise
	Currency        string `json:"currency"`
	KeyID           string `json:"keyId"`
	Status          string `json:"status"`
}

type verifyPaymentRequest struct {
	RazorpayOrderID   string             `json:"razorpay_order_id"`
	RazorpayPaymentID string             `json:"razorpay_payment_id"`
	RazorpaySignature string             `json:"razorpay_signature"`
	Items             []orderItemRequest `json:"items"`
}

// --- Handlers ---

// CreateGatewayOrder prices the cart and opens a gateway order for it.
func (h *PaymentHandler) CreateGatewayOrder(w http.ResponseWriter, r *http.Request) {
	canID := chi.URLParam(r, "canID")
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createGatewayOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	intent, err := h.svc.CreateGatewayOrder(r.Context(), service.CreateGatewayOrderRequest{
		CanID:     canID,
		StudentID: claims.UserID,
		Items:     toItemInputs(req.Items),
	})
	if err != nil {
		writePaymentError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, gatewayOrderResponse{
		RazorpayOrderID: intent.GatewayOrderID,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
		KeyID:           intent.KeyID,
		Status:          intent.Payment.Status,
	})
}

// Verify reconciles the gateway confirmation and places the order.
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	canID := chi.URLParam(r, "canID")
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req verifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.RazorpayOrderID == "" || req.RazorpayPaymentID == "" || req.RazorpaySignature == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "razorpay_order_id, razorpay_payment_id and razorpay_signature are required"})
		return
	}

	result, err := h.svc.VerifyAndPlace(r.Context(), service.VerifyPaymentRequest{
		CanID:             canID,
		StudentID:         claims.UserID,
		RazorpayOrderID:   req.RazorpayOrderID,
		RazorpayPaymentID: req.RazorpayPaymentID,
		Signature:         req.RazorpaySignature,
		Items:             toItemInputs(req.Items),
	})
	if err != nil {
		writePaymentError(w, err)
		return
	}

	resp := toOrderResultResponse(result)
	h.broadcast(canID, enum.EventNewOrder, resp)
	writeJSON(w, http.StatusCreated, resp)
}

func (h *PaymentHandler) broadcast(canID, eventType string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.hub.BroadcastToCanteen(canID, ws.Event{Type: eventType, Payload: raw})
}

// writePaymentError maps payment service errors to HTTP responses. Order
// validation errors can also surface here because the cart is re-validated
// at both checkout steps.
func writePaymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrBadSignature):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrPaymentNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrPaymentProcessing):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrPaymentNotCaptured),
		errors.Is(err, service.ErrAmountMismatch),
		errors.Is(err, service.ErrPaymentMismatch):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	default:
		writeOrderError(w, err)
	}
}
