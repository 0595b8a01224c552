package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/campusbites/api/internal/database"
	"github.com/campusbites/api/internal/enum"
	"github.com/campusbites/api/internal/handler"
	"github.com/campusbites/api/internal/middleware"
	"github.com/campusbites/api/internal/service"
	"github.com/campusbites/api/internal/token"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type mockPickupService struct {
	manualFn func(ctx context.Context, req service.ManualPickupRequest) (database.Order, error)
	qrFn     func(ctx context.Context, canID, tokenStr string) (database.Order, error)
}

func (m *mockPickupService) VerifyAndDeliver(ctx context.Context, req service.ManualPickupRequest) (database.Order, error) {
	if m.manualFn != nil {
		return m.manualFn(ctx, req)
	}
	return database.Order{}, service.ErrPickupNotFound
}

func (m *mockPickupService) VerifyAndDeliverQR(ctx context.Context, canID, tokenStr string) (database.Order, error) {
	if m.qrFn != nil {
		return m.qrFn(ctx, canID, tokenStr)
	}
	return database.Order{}, service.ErrPickupNotFound
}

func setupPickupRouter(svc *mockPickupService, hub *mockHub) *chi.Mux {
	if hub == nil {
		hub = &mockHub{}
	}
	h := handler.NewPickupHandler(svc, hub)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/canteens/{canID}/pickup", h.RegisterRoutes)
	return r
}

func manualBody() map[string]string {
	return map[string]string{
		"orderId":    "ORD-1757000000000-4821",
		"dailyToken": "1042",
		"orderDate":  "2026-03-14",
	}
}

func TestManualPickup_DeliversOrder(t *testing.T) {
	hub := &mockHub{}
	svc := &mockPickupService{
		manualFn: func(ctx context.Context, req service.ManualPickupRequest) (database.Order, error) {
			if req.CanID != testCanID {
				t.Errorf("expected canID %s, got %s", testCanID, req.CanID)
			}
			if req.OrderID != "ORD-1757000000000-4821" || req.DailyToken != "1042" || req.OrderDate != "2026-03-14" {
				t.Errorf("request not forwarded: %+v", req)
			}
			return orderFixture(uuid.New(), enum.OrderStatusDelivered), nil
		},
	}
	router := setupPickupRouter(svc, hub)

	rr := doAuthRequest(t, router, http.MethodPost, "/canteens/"+testCanID+"/pickup/verify", manualBody(), staffClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeJSON(t, rr)
	if resp["status"] != enum.OrderStatusDelivered {
		t.Errorf("expected Delivered status, got %v", resp["status"])
	}
	if got := hub.eventTypes(); len(got) != 1 || got[0] != enum.EventOrderUpdated {
		t.Errorf("expected one orderUpdated broadcast, got %v", got)
	}
}

func TestManualPickup_MissingFields(t *testing.T) {
	router := setupPickupRouter(&mockPickupService{}, nil)

	body := manualBody()
	body["dailyToken"] = ""
	rr := doAuthRequest(t, router, http.MethodPost, "/canteens/"+testCanID+"/pickup/verify", body, staffClaims())

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestManualPickup_ErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"bad date", service.ErrInvalidDate, http.StatusBadRequest},
		{"no matching order", service.ErrPickupNotFound, http.StatusNotFound},
		{"already delivered", service.ErrAlreadyDelivered, http.StatusConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockPickupService{
				manualFn: func(ctx context.Context, req service.ManualPickupRequest) (database.Order, error) {
					return database.Order{}, tc.err
				},
			}
			router := setupPickupRouter(svc, nil)

			rr := doAuthRequest(t, router, http.MethodPost, "/canteens/"+testCanID+"/pickup/verify", manualBody(), staffClaims())

			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d: %s", tc.wantCode, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestManualPickup_AlreadyDeliveredReturnsOrder(t *testing.T) {
	hub := &mockHub{}
	svc := &mockPickupService{
		manualFn: func(ctx context.Context, req service.ManualPickupRequest) (database.Order, error) {
			return orderFixture(uuid.New(), enum.OrderStatusDelivered), service.ErrAlreadyDelivered
		},
	}
	router := setupPickupRouter(svc, hub)

	rr := doAuthRequest(t, router, http.MethodPost, "/canteens/"+testCanID+"/pickup/verify", manualBody(), staffClaims())

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeJSON(t, rr)
	if resp["error"] == nil {
		t.Error("expected error message in conflict body")
	}
	order, ok := resp["order"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected the delivered order in the conflict body, got %v", resp["order"])
	}
	if order["orderId"] != "ORD-1757000000000-4821" {
		t.Errorf("expected delivered order id, got %v", order["orderId"])
	}
	if got := hub.eventTypes(); len(got) != 0 {
		t.Errorf("expected no broadcast for an already delivered order, got %v", got)
	}
}

func TestQRPickup_DeliversOrder(t *testing.T) {
	hub := &mockHub{}
	svc := &mockPickupService{
		qrFn: func(ctx context.Context, canID, tokenStr string) (database.Order, error) {
			if tokenStr != "signed.jwt.token" {
				t.Errorf("token not forwarded: %s", tokenStr)
			}
			return orderFixture(uuid.New(), enum.OrderStatusDelivered), nil
		},
	}
	router := setupPickupRouter(svc, hub)

	body := map[string]string{"token": "signed.jwt.token"}
	rr := doAuthRequest(t, router, http.MethodPost, "/canteens/"+testCanID+"/pickup/scan", body, staffClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := hub.eventTypes(); len(got) != 1 || got[0] != enum.EventOrderUpdated {
		t.Errorf("expected one orderUpdated broadcast, got %v", got)
	}
}

func TestQRPickup_MissingToken(t *testing.T) {
	router := setupPickupRouter(&mockPickupService{}, nil)

	rr := doAuthRequest(t, router, http.MethodPost, "/canteens/"+testCanID+"/pickup/scan", map[string]string{}, staffClaims())

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestQRPickup_ErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"expired token", token.ErrQRExpired, http.StatusUnauthorized},
		{"garbage token", token.ErrQRInvalid, http.StatusUnauthorized},
		{"wrong canteen", service.ErrWrongCanteen, http.StatusForbidden},
		{"order gone", service.ErrPickupNotFound, http.StatusNotFound},
		{"already delivered", service.ErrAlreadyDelivered, http.StatusConflict},
		{"not ready yet", service.ErrNotReady, http.StatusConflict},
		{"stale token", service.ErrStaleQRToken, http.StatusConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hub := &mockHub{}
			svc := &mockPickupService{
				qrFn: func(ctx context.Context, canID, tokenStr string) (database.Order, error) {
					return database.Order{}, tc.err
				},
			}
			router := setupPickupRouter(svc, hub)

			body := map[string]string{"token": "signed.jwt.token"}
			rr := doAuthRequest(t, router, http.MethodPost, "/canteens/"+testCanID+"/pickup/scan", body, staffClaims())

			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d: %s", tc.wantCode, rr.Code, rr.Body.String())
			}
			if got := hub.eventTypes(); len(got) != 0 {
				t.Errorf("expected no broadcast on failure, got %v", got)
			}
		})
	}
}
