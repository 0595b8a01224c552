package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// DashboardStore defines the count queries behind the admin dashboard.
// Satisfied by *database.Queries; narrow interface for testability.
type DashboardStore interface {
	CountStudentsByCanteen(ctx context.Context, canID string) (int64, error)
	CountFoodsByCanteen(ctx context.Context, canID string) (int64, error)
	CountOrdersByCanteen(ctx context.Context, canID string) (int64, error)
}

// DashboardHandler serves the admin's summary counters.
type DashboardHandler struct {
	store DashboardStore
}

func NewDashboardHandler(store DashboardStore) *DashboardHandler {
	return &DashboardHandler{store: store}
}

// RegisterRoutes registers dashboard endpoints on the given Chi router.
// Expected to be mounted inside a canteen-scoped subrouter: /canteens/{canID}/dashboard
func (h *DashboardHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Summary)
}

type dashboardResponse struct {
	Students int64 `json:"students"`
	Foods    int64 `json:"foods"`
	Orders   int64 `json:"orders"`
}

func (h *DashboardHandler) Summary(w http.ResponseWriter, r *http.Request) {
	canID := chi.URLParam(r, "canID")
	ctx := r.Context()

	students, err := h.store.CountStudentsByCanteen(ctx, canID)
	if err != nil {
		log.Printf("ERROR: count students: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	foods, err := h.store.CountFoodsByCanteen(ctx, canID)
	if err != nil {
		log.Printf("ERROR: count foods: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	orders, err := h.store.CountOrdersByCanteen(ctx, canID)
	if err != nil {
		log.Printf("ERROR: count orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dashboardResponse{Students: students, Foods: foods, Orders: orders})
}
