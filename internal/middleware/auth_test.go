package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/campusbites/api/internal/auth"
	"github.com/campusbites/api/internal/enum"
	"github.com/campusbites/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const testSecret = "test-secret"

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticateMissingHeader(t *testing.T) {
	h := middleware.Authenticate(testSecret)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthenticateBadScheme(t *testing.T) {
	h := middleware.Authenticate(testSecret)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthenticateValidToken(t *testing.T) {
	token, err := auth.GenerateToken(testSecret, uuid.New(), "CAN-AAAAAAAA", enum.RoleStudent)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var gotClaims *auth.Claims
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = middleware.ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := middleware.Authenticate(testSecret)(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotClaims == nil || gotClaims.CanID != "CAN-AAAAAAAA" {
		t.Fatalf("claims not propagated: %+v", gotClaims)
	}
}

func routeWithCanteenGuard(secret string) http.Handler {
	r := chi.NewRouter()
	r.Route("/canteens/{canID}", func(r chi.Router) {
		r.Use(middleware.Authenticate(secret))
		r.With(middleware.RequireCanteen).Get("/ping", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})
	return r
}

func TestRequireCanteenMatch(t *testing.T) {
	token, err := auth.GenerateToken(testSecret, uuid.New(), "CAN-AAAAAAAA", enum.RoleAdmin)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/canteens/CAN-AAAAAAAA/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	routeWithCanteenGuard(testSecret).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireCanteenMismatch(t *testing.T) {
	token, err := auth.GenerateToken(testSecret, uuid.New(), "CAN-AAAAAAAA", enum.RoleAdmin)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/canteens/CAN-BBBBBBBB/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	routeWithCanteenGuard(testSecret).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestRequireRole(t *testing.T) {
	token, err := auth.GenerateToken(testSecret, uuid.New(), "CAN-AAAAAAAA", enum.RoleStudent)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	h := middleware.Authenticate(testSecret)(middleware.RequireRole(enum.RoleAdmin, enum.RoleStaff)(okHandler()))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}

	h2 := middleware.Authenticate(testSecret)(middleware.RequireRole(enum.RoleStudent)(okHandler()))
	rec2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.Header.Set("Authorization", "Bearer "+token)
	h2.ServeHTTP(rec2, req2)

	if rec2.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec2.Code, http.StatusOK)
	}
}
