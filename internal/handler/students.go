package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/campusbites/api/internal/database"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// StudentStore defines the database methods needed by student admin handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type StudentStore interface {
	ListStudentsByCanteen(ctx context.Context, canID string) ([]database.Student, error)
	SetStudentBanned(ctx context.Context, arg database.SetStudentBannedParams) (database.Student, error)
	DeleteStudent(ctx context.Context, arg database.DeleteStudentParams) (database.Student, error)
}

// StudentHandler handles the admin's student roster endpoints.
type StudentHandler struct {
	store StudentStore
}

func NewStudentHandler(store StudentStore) *StudentHandler {
	return &StudentHandler{store: store}
}

// RegisterRoutes registers student endpoints on the given Chi router.
// Expected to be mounted inside a canteen-scoped subrouter: /canteens/{canID}/students
func (h *StudentHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Patch("/{id}/ban", h.SetBanned)
	r.Delete("/{id}", h.Delete)
}

type studentResponse struct {
	ID              uuid.UUID `json:"id"`
	CanID           string    `json:"canID"`
	Name            string    `json:"name"`
	ClassSemester   string    `json:"classSemester,omitempty"`
	Mobile          string    `json:"mobile"`
	Email           string    `json:"email"`
	AdmissionNumber string    `json:"admissionNumber"`
	Banned          bool      `json:"banned"`
	BannedAt        string    `json:"bannedAt,omitempty"`
}

func toStudentResponse(s database.Student) studentResponse {
	resp := studentResponse{
		ID:              s.ID,
		CanID:           s.CanID,
		Name:            s.Name,
		ClassSemester:   s.ClassSemester,
		Mobile:          s.Mobile,
		Email:           s.Email,
		AdmissionNumber: s.AdmissionNumber,
		Banned:          s.Banned,
	}
	if s.BannedAt.Valid {
		resp.BannedAt = s.BannedAt.Time.UTC().Format(time.RFC3339)
	}
	return resp
}

func (h *StudentHandler) List(w http.ResponseWriter, r *http.Request) {
	canID := chi.URLParam(r, "canID")

	students, err := h.store.ListStudentsByCanteen(r.Context(), canID)
	if err != nil {
		log.Printf("ERROR: list students: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]studentResponse, 0, len(students))
	for _, s := range students {
		resp = append(resp, toStudentResponse(s))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"students": resp})
}

type setBannedRequest struct {
	Banned bool `json:"banned"`
}

// SetBanned toggles the student's banned flag. Banned students cannot log in
// or place orders; existing orders stay untouched.
func (h *StudentHandler) SetBanned(w http.ResponseWriter, r *http.Request) {
	canID := chi.URLParam(r, "canID")
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid student ID"})
		return
	}

	var req setBannedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	bannedAt := pgtype.Timestamptz{}
	if req.Banned {
		bannedAt = pgtype.Timestamptz{Time: time.Now(), Valid: true}
	}

	student, err := h.store.SetStudentBanned(r.Context(), database.SetStudentBannedParams{
		ID:       id,
		CanID:    canID,
		Banned:   req.Banned,
		BannedAt: bannedAt,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "student not found"})
			return
		}
		log.Printf("ERROR: set student banned: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toStudentResponse(student))
}

func (h *StudentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	canID := chi.URLParam(r, "canID")
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid student ID"})
		return
	}

	if _, err := h.store.DeleteStudent(r.Context(), database.DeleteStudentParams{ID: id, CanID: canID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "student not found"})
			return
		}
		log.Printf("ERROR: delete student: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "student deleted"})
}
