package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"

	"github.com/campusbites/api/internal/auth"
	"github.com/campusbites/api/internal/database"
	"github.com/campusbites/api/internal/enum"
	"github.com/campusbites/api/internal/token"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	emailRe  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	mobileRe = regexp.MustCompile(`^[0-9]{10}$`)
)

const minPasswordLen = 8

// validEmail applies the length and shape rules on top of the basic regexp:
// whole address at most 254 chars, local part at most 64, no "..".
func validEmail(s string) bool {
	if len(s) > 254 || strings.Contains(s, "..") || !emailRe.MatchString(s) {
		return false
	}
	local := s[:strings.Index(s, "@")]
	return len(local) <= 64
}

// normalizeMobile strips spaces, dashes and an optional +91 country prefix.
func normalizeMobile(s string) string {
	s = strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(s))
	if strings.HasPrefix(s, "+91") {
		s = s[3:]
	} else if len(s) == 12 && strings.HasPrefix(s, "91") {
		s = s[2:]
	}
	return s
}

// AuthStore defines the database methods needed by auth handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type AuthStore interface {
	CreateCanteen(ctx context.Context, arg database.CreateCanteenParams) (database.Canteen, error)
	GetCanteenByEmail(ctx context.Context, email string) (database.Canteen, error)
	GetCanteenByCanID(ctx context.Context, canID string) (database.Canteen, error)
	CanteenIDExists(ctx context.Context, canID string) (bool, error)
	CreateStudent(ctx context.Context, arg database.CreateStudentParams) (database.Student, error)
	GetStudentByEmail(ctx context.Context, email string) (database.Student, error)
	GetStudentByMobile(ctx context.Context, mobile string) (database.Student, error)
	CreateStaff(ctx context.Context, arg database.CreateStaffParams) (database.Staff, error)
	GetStaffByEmail(ctx context.Context, email string) (database.Staff, error)
}

// AuthHandler handles signup and login for all three roles.
type AuthHandler struct {
	store     AuthStore
	jwtSecret string
}

func NewAuthHandler(store AuthStore, jwtSecret string) *AuthHandler {
	return &AuthHandler{store: store, jwtSecret: jwtSecret}
}

// RegisterRoutes registers auth endpoints on the given Chi router.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/admin/signup", h.AdminSignup)
	r.Post("/auth/admin/login", h.AdminLogin)
	r.Post("/auth/students/signup", h.StudentSignup)
	r.Post("/auth/students/login", h.StudentLogin)
	r.Post("/auth/staff/signup", h.StaffSignup)
	r.Post("/auth/staff/login", h.StaffLogin)
}

// --- Request / Response types ---

type adminSignupRequest struct {
	CollegeName string `json:"collegeName"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

type studentSignupRequest struct {
	CanID           string `json:"canID"`
	Name            string `json:"name"`
	ClassSemester   string `json:"classSemester"`
	Mobile          string `json:"mobile"`
	Email           string `json:"email"`
	AdmissionNumber string `json:"admissionNumber"`
	Password        string `json:"password"`
}

type staffSignupRequest struct {
	CanID    string `json:"canID"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type userResponse struct {
	ID     uuid.UUID `json:"id"`
	CanID  string    `json:"canID"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
	Status string    `json:"status,omitempty"`
}

// --- Handlers ---

// AdminSignup registers a new canteen. The generated CAN- identifier is what
// students and staff use to attach themselves to the canteen.
func (h *AuthHandler) AdminSignup(w http.ResponseWriter, r *http.Request) {
	var req adminSignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.CollegeName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "collegeName is required"})
		return
	}
	if !validEmail(req.Email) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid email"})
		return
	}
	if len(req.Password) < minPasswordLen {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("ERROR: hash password: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	canID, err := token.Unique(r.Context(), token.CanteenIDAttempts, token.CanteenID, h.store.CanteenIDExists)
	if err != nil {
		log.Printf("ERROR: generate canteen id: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "could not allocate canteen id"})
		return
	}

	canteen, err := h.store.CreateCanteen(r.Context(), database.CreateCanteenParams{
		CanID:          canID,
		CollegeName:    req.CollegeName,
		Email:          req.Email,
		HashedPassword: string(hashed),
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "email already registered"})
			return
		}
		log.Printf("ERROR: create canteen: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.respondWithToken(w, http.StatusCreated, canteen.ID, canteen.CanID, canteen.CollegeName, canteen.Email, enum.RoleAdmin, "")
}

// AdminLogin authenticates a canteen admin by email and password.
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
		return
	}

	canteen, err := h.store.GetCanteenByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		log.Printf("ERROR: get canteen: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(canteen.HashedPassword), []byte(req.Password)); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	h.respondWithToken(w, http.StatusOK, canteen.ID, canteen.CanID, canteen.CollegeName, canteen.Email, enum.RoleAdmin, "")
}

// StudentSignup registers a student in an existing canteen.
func (h *AuthHandler) StudentSignup(w http.ResponseWriter, r *http.Request) {
	var req studentSignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" || req.AdmissionNumber == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and admissionNumber are required"})
		return
	}
	if !validEmail(req.Email) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid email"})
		return
	}
	req.Mobile = normalizeMobile(req.Mobile)
	if !mobileRe.MatchString(req.Mobile) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "mobile must be 10 digits"})
		return
	}
	if len(req.Password) < minPasswordLen {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
		return
	}

	if _, err := h.store.GetCanteenByCanID(r.Context(), req.CanID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "canteen not found"})
			return
		}
		log.Printf("ERROR: get canteen by can id: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("ERROR: hash password: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	student, err := h.store.CreateStudent(r.Context(), database.CreateStudentParams{
		CanID:           req.CanID,
		Name:            req.Name,
		ClassSemester:   req.ClassSemester,
		Mobile:          req.Mobile,
		Email:           req.Email,
		AdmissionNumber: req.AdmissionNumber,
		HashedPassword:  string(hashed),
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "email, mobile or admission number already registered"})
			return
		}
		log.Printf("ERROR: create student: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.respondWithToken(w, http.StatusCreated, student.ID, student.CanID, student.Name, student.Email, enum.RoleStudent, "")
}

// StudentLogin authenticates a student by email or mobile plus password.
func (h *AuthHandler) StudentLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if (req.Email == "" && req.Mobile == "") || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email or mobile, and password are required"})
		return
	}

	var (
		student database.Student
		err     error
	)
	if req.Email != "" {
		student, err = h.store.GetStudentByEmail(r.Context(), req.Email)
	} else {
		student, err = h.store.GetStudentByMobile(r.Context(), normalizeMobile(req.Mobile))
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		log.Printf("ERROR: get student: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(student.HashedPassword), []byte(req.Password)); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}
	if student.Banned {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "account is banned"})
		return
	}

	h.respondWithToken(w, http.StatusOK, student.ID, student.CanID, student.Name, student.Email, enum.RoleStudent, "")
}

// StaffSignup registers a staff member; the account stays Pending until the
// canteen admin approves it.
func (h *AuthHandler) StaffSignup(w http.ResponseWriter, r *http.Request) {
	var req staffSignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if !validEmail(req.Email) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid email"})
		return
	}
	if len(req.Password) < minPasswordLen {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 8 characters"})
		return
	}

	if _, err := h.store.GetCanteenByCanID(r.Context(), req.CanID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "canteen not found"})
			return
		}
		log.Printf("ERROR: get canteen by can id: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("ERROR: hash password: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	staff, err := h.store.CreateStaff(r.Context(), database.CreateStaffParams{
		CanID:          req.CanID,
		Name:           req.Name,
		Email:          req.Email,
		HashedPassword: string(hashed),
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "email already registered"})
			return
		}
		log.Printf("ERROR: create staff: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// No token yet: the account is not usable until approved.
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user": userResponse{
			ID:     staff.ID,
			CanID:  staff.CanID,
			Name:   staff.Name,
			Email:  staff.Email,
			Role:   enum.RoleStaff,
			Status: staff.Status,
		},
	})
}

// StaffLogin authenticates an approved staff member.
func (h *AuthHandler) StaffLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
		return
	}

	staff, err := h.store.GetStaffByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		log.Printf("ERROR: get staff: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(staff.HashedPassword), []byte(req.Password)); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}
	if staff.Status != enum.StaffStatusApproved {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "account pending approval"})
		return
	}

	h.respondWithToken(w, http.StatusOK, staff.ID, staff.CanID, staff.Name, staff.Email, enum.RoleStaff, staff.Status)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, status int, id uuid.UUID, canID, name, email, role, staffStatus string) {
	tok, err := auth.GenerateToken(h.jwtSecret, id, canID, role)
	if err != nil {
		log.Printf("ERROR: generate token: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, status, tokenResponse{
		Token: tok,
		User: userResponse{
			ID:     id,
			CanID:  canID,
			Name:   name,
			Email:  email,
			Role:   role,
			Status: staffStatus,
		},
	})
}
