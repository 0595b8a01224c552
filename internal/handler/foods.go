package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/campusbites/api/internal/database"
	"github.com/campusbites/api/internal/enum"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// FoodStore defines the database methods needed by food handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type FoodStore interface {
	CreateFood(ctx context.Context, arg database.CreateFoodParams) (database.Food, error)
	GetFood(ctx context.Context, arg database.GetFoodParams) (database.Food, error)
	ListFoodsByCanteen(ctx context.Context, canID string) ([]database.Food, error)
	UpdateFood(ctx context.Context, arg database.UpdateFoodParams) (database.Food, error)
	DeleteFood(ctx context.Context, arg database.DeleteFoodParams) (database.Food, error)
}

// FoodHandler handles menu management endpoints.
type FoodHandler struct {
	store FoodStore
}

func NewFoodHandler(store FoodStore) *FoodHandler {
	return &FoodHandler{store: store}
}

// RegisterRoutes registers food endpoints on the given Chi router.
// Expected to be mounted inside a canteen-scoped subrouter: /canteens/{canID}/foods
func (h *FoodHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type foodRequest struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Category string `json:"category"`
	InStock  *bool  `json:"inStock"`
	ImageURL string `json:"imageUrl"`
}

type foodResponse struct {
	ID       uuid.UUID `json:"id"`
	CanID    string    `json:"canID"`
	Name     string    `json:"name"`
	Price    string    `json:"price"`
	Category string    `json:"category"`
	InStock  bool      `json:"inStock"`
	ImageURL string    `json:"imageUrl,omitempty"`
}

func toFoodResponse(f database.Food) foodResponse {
	return foodResponse{
		ID:       f.ID,
		CanID:    f.CanID,
		Name:     f.Name,
		Price:    numericString(f.Price),
		Category: f.Category,
		InStock:  f.InStock,
		ImageURL: f.ImageURL,
	}
}

func parseFoodRequest(r *http.Request) (foodRequest, pgtype.Numeric, string, bool) {
	var req foodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, pgtype.Numeric{}, "invalid request body", false
	}
	if req.Name == "" {
		return req, pgtype.Numeric{}, "name is required", false
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		return req, pgtype.Numeric{}, "invalid price", false
	}
	req.Category = normalizeCategory(req.Category)
	if !isValidFoodCategory(req.Category) {
		return req, pgtype.Numeric{}, "invalid category", false
	}
	req.ImageURL = strings.TrimSpace(req.ImageURL)
	var n pgtype.Numeric
	_ = n.Scan(price.StringFixed(2))
	return req, n, "", true
}

// normalizeCategory folds case and the plural forms clients tend to send.
func normalizeCategory(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "foods":
		return enum.FoodCategoryFood
	case "drinks", "beverage", "beverages":
		return enum.FoodCategoryDrink
	case "snacks":
		return enum.FoodCategorySnack
	}
	return s
}

func isValidFoodCategory(s string) bool {
	switch s {
	case enum.FoodCategoryFood, enum.FoodCategoryDrink, enum.FoodCategorySnack:
		return true
	}
	return false
}

// --- Handlers ---

func (h *FoodHandler) List(w http.ResponseWriter, r *http.Request) {
	canID := chi.URLParam(r, "canID")

	foods, err := h.store.ListFoodsByCanteen(r.Context(), canID)
	if err != nil {
		log.Printf("ERROR: list foods: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]foodResponse, 0, len(foods))
	for _, f := range foods {
		resp = append(resp, toFoodResponse(f))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"foods": resp})
}

func (h *FoodHandler) Create(w http.ResponseWriter, r *http.Request) {
	canID := chi.URLParam(r, "canID")

	req, price, msg, ok := parseFoodRequest(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}
	inStock := true
	if req.InStock != nil {
		inStock = *req.InStock
	}

	food, err := h.store.CreateFood(r.Context(), database.CreateFoodParams{
		CanID:    canID,
		Name:     req.Name,
		Price:    price,
		Category: req.Category,
		InStock:  inStock,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		log.Printf("ERROR: create food: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, toFoodResponse(food))
}

func (h *FoodHandler) Get(w http.ResponseWriter, r *http.Request) {
	canID := chi.URLParam(r, "canID")
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid food ID"})
		return
	}

	food, err := h.store.GetFood(r.Context(), database.GetFoodParams{ID: id, CanID: canID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "food not found"})
			return
		}
		log.Printf("ERROR: get food: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toFoodResponse(food))
}

func (h *FoodHandler) Update(w http.ResponseWriter, r *http.Request) {
	canID := chi.URLParam(r, "canID")
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid food ID"})
		return
	}

	req, price, msg, ok := parseFoodRequest(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}
	inStock := true
	if req.InStock != nil {
		inStock = *req.InStock
	}

	food, err := h.store.UpdateFood(r.Context(), database.UpdateFoodParams{
		ID:       id,
		CanID:    canID,
		Name:     req.Name,
		Price:    price,
		Category: req.Category,
		InStock:  inStock,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "food not found"})
			return
		}
		log.Printf("ERROR: update food: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toFoodResponse(food))
}

func (h *FoodHandler) Delete(w http.ResponseWriter, r *http.Request) {
	canID := chi.URLParam(r, "canID")
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid food ID"})
		return
	}

	if _, err := h.store.DeleteFood(r.Context(), database.DeleteFoodParams{ID: id, CanID: canID}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "food not found"})
			return
		}
		log.Printf("ERROR: delete food: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "food deleted"})
}
