package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/campusbites/api/internal/database"
	"github.com/campusbites/api/internal/enum"
	"github.com/campusbites/api/internal/service"
	"github.com/campusbites/api/internal/token"
	"github.com/campusbites/api/internal/ws"
	"github.com/go-chi/chi/v5"
)

// PickupServicer defines the service methods needed by pickup handlers.
// Satisfied by *service.PickupService; narrow interface for testability.
type PickupServicer interface {
	VerifyAndDeliver(ctx context.Context, req service.ManualPickupRequest) (database.Order, error)
	VerifyAndDeliverQR(ctx context.Context, canID, tokenStr string) (database.Order, error)
}

// PickupHandler handles the counter handover endpoints.
type PickupHandler struct {
	svc PickupServicer
	hub Broadcaster
}

func NewPickupHandler(svc PickupServicer, hub Broadcaster) *PickupHandler {
	return &PickupHandler{svc: svc, hub: hub}
}

// RegisterRoutes registers pickup endpoints on the given Chi router.
// Expected to be mounted inside a canteen-scoped subrouter: /canteens/{canID}/pickup
func (h *PickupHandler) RegisterRoutes(r chi.Router) {
	r.Post("/verify", h.VerifyManual)
	r.Post("/scan", h.VerifyQR)
}

type manualPickupRequest struct {
	OrderID    string `json:"orderId"`
	DailyToken string `json:"dailyToken"`
	OrderDate  string `json:"orderDate"`
}

type qrPickupRequest struct {
	Token string `json:"token"`
}

// VerifyManual delivers an order from the hand-typed tuple on the bare QR.
func (h *PickupHandler) VerifyManual(w http.ResponseWriter, r *http.Request) {
	canID := chi.URLParam(r, "canID")

	var req manualPickupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.OrderID == "" || req.DailyToken == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "orderId and dailyToken are required"})
		return
	}

	order, err := h.svc.VerifyAndDeliver(r.Context(), service.ManualPickupRequest{
		CanID:      canID,
		OrderID:    req.OrderID,
		DailyToken: req.DailyToken,
		OrderDate:  req.OrderDate,
	})
	if err != nil {
		if errors.Is(err, service.ErrAlreadyDelivered) && order.OrderID != "" {
			// Handed over earlier. Show the order so staff can see who
			// collected it instead of treating the tuple as bad input.
			writeJSON(w, http.StatusConflict, map[string]interface{}{
				"error": err.Error(),
				"order": toOrderResponse(order, nil),
			})
			return
		}
		writePickupError(w, err)
		return
	}
	h.respondDelivered(w, canID, order)
}

// VerifyQR delivers an order from a scanned signed token.
func (h *PickupHandler) VerifyQR(w http.ResponseWriter, r *http.Request) {
	canID := chi.URLParam(r, "canID")

	var req qrPickupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "token is required"})
		return
	}

	order, err := h.svc.VerifyAndDeliverQR(r.Context(), canID, req.Token)
	if err != nil {
		writePickupError(w, err)
		return
	}
	h.respondDelivered(w, canID, order)
}

func (h *PickupHandler) respondDelivered(w http.ResponseWriter, canID string, order database.Order) {
	resp := toOrderResponse(order, nil)
	if raw, err := json.Marshal(resp); err == nil {
		h.hub.BroadcastToCanteen(canID, ws.Event{Type: enum.EventOrderUpdated, Payload: raw})
	}
	writeJSON(w, http.StatusOK, resp)
}

// writePickupError maps pickup service errors to HTTP responses. The
// distinct messages matter: staff act differently on an expired QR than on
// an already delivered order.
func writePickupError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidDate):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, token.ErrQRExpired):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "qr token expired, ask the student to refresh"})
	case errors.Is(err, token.ErrQRInvalid):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid qr token"})
	case errors.Is(err, service.ErrWrongCanteen):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrPickupNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrAlreadyDelivered),
		errors.Is(err, service.ErrNotReady),
		errors.Is(err, service.ErrStaleQRToken):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		writeOrderError(w, err)
	}
}
