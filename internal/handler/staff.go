package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/campusbites/api/internal/database"
	"github.com/campusbites/api/internal/enum"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// StaffStore defines the database methods needed by staff admin handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type StaffStore interface {
	ListStaffByCanteen(ctx context.Context, canID string) ([]database.Staff, error)
	UpdateStaffStatus(ctx context.Context, arg database.UpdateStaffStatusParams) (database.Staff, error)
}

// StaffHandler handles the admin's staff approval endpoints.
type StaffHandler struct {
	store StaffStore
}

func NewStaffHandler(store StaffStore) *StaffHandler {
	return &StaffHandler{store: store}
}

// RegisterRoutes registers staff endpoints on the given Chi router.
// Expected to be mounted inside a canteen-scoped subrouter: /canteens/{canID}/staff
func (h *StaffHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Patch("/{id}/approve", h.Approve)
	r.Patch("/{id}/decline", h.Decline)
}

type staffResponse struct {
	ID     uuid.UUID `json:"id"`
	CanID  string    `json:"canID"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	Status string    `json:"status"`
}

func toStaffResponse(s database.Staff) staffResponse {
	return staffResponse{ID: s.ID, CanID: s.CanID, Name: s.Name, Email: s.Email, Status: s.Status}
}

func (h *StaffHandler) List(w http.ResponseWriter, r *http.Request) {
	canID := chi.URLParam(r, "canID")

	members, err := h.store.ListStaffByCanteen(r.Context(), canID)
	if err != nil {
		log.Printf("ERROR: list staff: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]staffResponse, 0, len(members))
	for _, s := range members {
		resp = append(resp, toStaffResponse(s))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"staff": resp})
}

func (h *StaffHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, enum.StaffStatusApproved)
}

func (h *StaffHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, enum.StaffStatusDeclined)
}

func (h *StaffHandler) setStatus(w http.ResponseWriter, r *http.Request, status string) {
	canID := chi.URLParam(r, "canID")
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid staff ID"})
		return
	}

	staff, err := h.store.UpdateStaffStatus(r.Context(), database.UpdateStaffStatusParams{
		ID:     id,
		CanID:  canID,
		Status: status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "staff not found"})
			return
		}
		log.Printf("ERROR: update staff status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toStaffResponse(staff))
}
