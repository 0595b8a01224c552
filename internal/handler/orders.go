package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/campusbites/api/internal/database"
	"github.com/campusbites/api/internal/enum"
	"github.com/campusbites/api/internal/middleware"
	"github.com/campusbites/api/internal/service"
	"github.com/campusbites/api/internal/token"
	"github.com/campusbites/api/internal/ws"
	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	Create(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error)
	Get(ctx context.Context, canID, orderID string) (*service.OrderResult, error)
	MarkReady(ctx context.Context, canID, orderID string) (*service.OrderResult, error)
	SetStatus(ctx context.Context, canID, orderID, status string) (*service.OrderResult, error)
}

// OrderListStore defines the database methods for order listings.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderListStore interface {
	ListOrdersByCanteen(ctx context.Context, canID string) ([]database.Order, error)
	ListOrdersByStudent(ctx context.Context, arg database.ListOrdersByStudentParams) ([]database.Order, error)
}

// Broadcaster pushes order events to the canteen's live dashboards.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToCanteen(canID string, event ws.Event)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderListStore
	hub   Broadcaster
}

func NewOrderHandler(svc OrderServicer, store OrderListStore, hub Broadcaster) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, hub: hub}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside a canteen-scoped subrouter: /canteens/{canID}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireRole(enum.RoleStudent)).Post("/", h.Create)
	r.With(middleware.RequireRole(enum.RoleAdmin, enum.RoleStaff)).Get("/", h.List)
	r.With(middleware.RequireRole(enum.RoleStudent)).Get("/mine", h.Mine)
	r.Get("/{orderID}", h.Get)
	r.Get("/{orderID}/qr.png", h.QRCode)
	r.With(middleware.RequireRole(enum.RoleAdmin)).Patch("/{orderID}/status", h.UpdateStatus)
	r.With(middleware.RequireRole(enum.RoleAdmin, enum.RoleStaff)).Post("/{orderID}/ready", h.MarkReady)
}

// --- Request types ---

type orderItemRequest struct {
	FoodID   string `json:"foodId"`
	Quantity int32  `json:"quantity"`
}

type createOrderRequest struct {
	Items []orderItemRequest `json:"items"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func toItemInputs(items []orderItemRequest) []service.OrderItemInput {
	inputs := make([]service.OrderItemInput, 0, len(items))
	for _, item := range items {
		inputs = append(inputs, service.OrderItemInput{FoodID: item.FoodID, Quantity: item.Quantity})
	}
	return inputs
}

// --- Handlers ---

// Create places a cash order for the authenticated student. Prepaid orders
// go through the payment verification endpoint instead.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	canID := chi.URLParam(r, "canID")
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.Create(r.Context(), service.CreateOrderRequest{
		CanID:     canID,
		StudentID: claims.UserID,
		Items:     toItemInputs(req.Items),
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}

	resp := toOrderResultResponse(result)
	h.broadcast(canID, enum.EventNewOrder, resp)
	writeJSON(w, http.StatusCreated, resp)
}

// List returns every order in the canteen, newest first.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	canID := chi.URLParam(r, "canID")

	orders, err := h.store.ListOrdersByCanteen(r.Context(), canID)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	h.writeOrderList(w, orders)
}

// Mine returns the authenticated student's own orders.
func (h *OrderHandler) Mine(w http.ResponseWriter, r *http.Request) {
	canID := chi.URLParam(r, "canID")
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	orders, err := h.store.ListOrdersByStudent(r.Context(), database.ListOrdersByStudentParams{
		CanID:     canID,
		StudentID: claims.UserID,
	})
	if err != nil {
		log.Printf("ERROR: list student orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	h.writeOrderList(w, orders)
}

func (h *OrderHandler) writeOrderList(w http.ResponseWriter, orders []database.Order) {
	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o, nil))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"orders": resp})
}

// Get returns one order with its lines. Students can only read their own.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	canID := chi.URLParam(r, "canID")
	orderID := chi.URLParam(r, "orderID")

	result, ok := h.fetchForCaller(w, r, canID, orderID)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toOrderResultResponse(result))
}

// QRCode renders the order's signed pickup token as a PNG for scanning.
func (h *OrderHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	canID := chi.URLParam(r, "canID")
	orderID := chi.URLParam(r, "orderID")

	result, ok := h.fetchForCaller(w, r, canID, orderID)
	if !ok {
		return
	}
	if !result.Order.QrToken.Valid {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order has no qr token yet"})
		return
	}

	png, err := qrcode.Encode(result.Order.QrToken.String, qrcode.Medium, 256)
	if err != nil {
		log.Printf("ERROR: encode qr png: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		log.Printf("ERROR: write qr png: %v", err)
	}
}

// fetchForCaller loads the order and enforces that students only see their
// own orders. Admin and staff see everything in their canteen.
func (h *OrderHandler) fetchForCaller(w http.ResponseWriter, r *http.Request, canID, orderID string) (*service.OrderResult, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return nil, false
	}

	result, err := h.svc.Get(r.Context(), canID, orderID)
	if err != nil {
		writeOrderError(w, err)
		return nil, false
	}
	if claims.Role == enum.RoleStudent && result.Order.StudentID != claims.UserID {
		// Report not-found rather than confirming the order exists.
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return nil, false
	}
	return result, true
}

// UpdateStatus is the admin override: any status, any direction.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	canID := chi.URLParam(r, "canID")
	orderID := chi.URLParam(r, "orderID")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	result, err := h.svc.SetStatus(r.Context(), canID, orderID, req.Status)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	resp := toOrderResultResponse(result)
	h.broadcast(canID, enum.EventOrderUpdated, resp)
	writeJSON(w, http.StatusOK, resp)
}

// MarkReady flips the order to Ready and backfills pickup tokens if needed.
func (h *OrderHandler) MarkReady(w http.ResponseWriter, r *http.Request) {
	canID := chi.URLParam(r, "canID")
	orderID := chi.URLParam(r, "orderID")

	result, err := h.svc.MarkReady(r.Context(), canID, orderID)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	resp := toOrderResultResponse(result)
	h.broadcast(canID, enum.EventOrderUpdated, resp)
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) broadcast(canID, eventType string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: marshal %s event: %v", eventType, err)
		return
	}
	h.hub.BroadcastToCanteen(canID, ws.Event{Type: eventType, Payload: raw})
}

// writeOrderError maps order service errors to HTTP responses.
func writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyItems),
		errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrInvalidFoodID),
		errors.Is(err, service.ErrInvalidOrderStatus):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrStudentBanned):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrStudentNotFound),
		errors.Is(err, service.ErrFoodNotFound),
		errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrOutOfStock):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, token.ErrExhausted):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "could not allocate pickup tokens, try again"})
	default:
		log.Printf("ERROR: order operation: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
