package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/campusbites/api/internal/auth"
	"github.com/campusbites/api/internal/database"
	"github.com/campusbites/api/internal/enum"
	"github.com/campusbites/api/internal/handler"
	"github.com/campusbites/api/internal/middleware"
	"github.com/campusbites/api/internal/service"
	"github.com/campusbites/api/internal/token"
	"github.com/campusbites/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// --- Shared test helpers for the handler package ---

const (
	testJWTSecret = "test-secret-for-handlers"
	testCanID     = "CAN-7Q2XK9TB"
)

func studentClaims() *auth.Claims {
	return &auth.Claims{UserID: uuid.New(), CanID: testCanID, Role: enum.RoleStudent}
}

func staffClaims() *auth.Claims {
	return &auth.Claims{UserID: uuid.New(), CanID: testCanID, Role: enum.RoleStaff}
}

func adminClaims() *auth.Claims {
	return &auth.Claims{UserID: uuid.New(), CanID: testCanID, Role: enum.RoleAdmin}
}

// doAuthRequest issues a request with a real bearer token minted from claims.
func doAuthRequest(t *testing.T, router http.Handler, method, path string, body interface{}, claims *auth.Claims) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	if claims != nil {
		tok, err := auth.GenerateToken(testJWTSecret, claims.UserID, claims.CanID, claims.Role)
		if err != nil {
			t.Fatalf("generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

// makeNumeric builds a pgtype.Numeric for whole paise, e.g. 12050 -> 120.50.
func makeNumeric(paise int64) pgtype.Numeric {
	return pgtype.Numeric{Int: big.NewInt(paise), Exp: -2, Valid: true}
}

// mockHub records broadcasts so tests can assert on realtime events.
type mockHub struct {
	mu     sync.Mutex
	events []ws.Event
	canIDs []string
}

func (m *mockHub) BroadcastToCanteen(canID string, event ws.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canIDs = append(m.canIDs, canID)
	m.events = append(m.events, event)
}

func (m *mockHub) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]string, 0, len(m.events))
	for _, e := range m.events {
		types = append(types, e.Type)
	}
	return types
}

// --- Order mocks ---

type mockOrderService struct {
	createFn    func(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error)
	getFn       func(ctx context.Context, canID, orderID string) (*service.OrderResult, error)
	markReadyFn func(ctx context.Context, canID, orderID string) (*service.OrderResult, error)
	setStatusFn func(ctx context.Context, canID, orderID, status string) (*service.OrderResult, error)
}

func (m *mockOrderService) Create(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error) {
	if m.createFn != nil {
		return m.createFn(ctx, req)
	}
	return nil, service.ErrOrderNotFound
}

func (m *mockOrderService) Get(ctx context.Context, canID, orderID string) (*service.OrderResult, error) {
	if m.getFn != nil {
		return m.getFn(ctx, canID, orderID)
	}
	return nil, service.ErrOrderNotFound
}

func (m *mockOrderService) MarkReady(ctx context.Context, canID, orderID string) (*service.OrderResult, error) {
	if m.markReadyFn != nil {
		return m.markReadyFn(ctx, canID, orderID)
	}
	return nil, service.ErrOrderNotFound
}

func (m *mockOrderService) SetStatus(ctx context.Context, canID, orderID, status string) (*service.OrderResult, error) {
	if m.setStatusFn != nil {
		return m.setStatusFn(ctx, canID, orderID, status)
	}
	return nil, service.ErrOrderNotFound
}

type mockOrderListStore struct {
	listByCanteenFn func(ctx context.Context, canID string) ([]database.Order, error)
	listByStudentFn func(ctx context.Context, arg database.ListOrdersByStudentParams) ([]database.Order, error)
}

func (m *mockOrderListStore) ListOrdersByCanteen(ctx context.Context, canID string) ([]database.Order, error) {
	if m.listByCanteenFn != nil {
		return m.listByCanteenFn(ctx, canID)
	}
	return []database.Order{}, nil
}

func (m *mockOrderListStore) ListOrdersByStudent(ctx context.Context, arg database.ListOrdersByStudentParams) ([]database.Order, error) {
	if m.listByStudentFn != nil {
		return m.listByStudentFn(ctx, arg)
	}
	return []database.Order{}, nil
}

func setupOrderRouter(svc *mockOrderService, store *mockOrderListStore, hub *mockHub) *chi.Mux {
	if store == nil {
		store = &mockOrderListStore{}
	}
	if hub == nil {
		hub = &mockHub{}
	}
	h := handler.NewOrderHandler(svc, store, hub)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/canteens/{canID}/orders", h.RegisterRoutes)
	return r
}

func orderFixture(studentID uuid.UUID, status string) database.Order {
	return database.Order{
		ID:          uuid.New(),
		OrderID:     "ORD-1757000000000-4821",
		CanID:       testCanID,
		StudentID:   studentID,
		OrderDate:   pgtype.Date{Valid: false},
		DailyToken:  pgtype.Text{String: "1042", Valid: true},
		PickupToken: pgtype.Text{String: "0937", Valid: true},
		QrToken:     pgtype.Text{String: "signed.jwt.token", Valid: true},
		Total:       makeNumeric(12050),
		Status:      status,
	}
}

func resultFixture(studentID uuid.UUID, status string) *service.OrderResult {
	order := orderFixture(studentID, status)
	return &service.OrderResult{
		Order: order,
		Items: []database.OrderItemDetail{
			{ID: uuid.New(), FoodID: uuid.New(), FoodName: "Masala Dosa", Quantity: 2, UnitPrice: makeNumeric(6025)},
		},
	}
}

// --- Tests ---

func TestCreateOrder_StudentPlacesOrder(t *testing.T) {
	claims := studentClaims()
	hub := &mockHub{}
	svc := &mockOrderService{
		createFn: func(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error) {
			if req.CanID != testCanID {
				t.Errorf("expected canID %s, got %s", testCanID, req.CanID)
			}
			if req.StudentID != claims.UserID {
				t.Errorf("expected student id from token, got %s", req.StudentID)
			}
			if len(req.Items) != 1 || req.Items[0].Quantity != 2 {
				t.Errorf("unexpected items: %+v", req.Items)
			}
			return resultFixture(claims.UserID, enum.OrderStatusPreparing), nil
		},
	}
	router := setupOrderRouter(svc, nil, hub)

	body := map[string]interface{}{
		"items": []map[string]interface{}{{"foodId": uuid.NewString(), "quantity": 2}},
	}
	rr := doAuthRequest(t, router, http.MethodPost, "/canteens/"+testCanID+"/orders/", body, claims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeJSON(t, rr)
	if resp["orderId"] != "ORD-1757000000000-4821" {
		t.Errorf("expected orderId in response, got %v", resp["orderId"])
	}
	if resp["total"] != "120.50" {
		t.Errorf("expected total 120.50, got %v", resp["total"])
	}
	if got := hub.eventTypes(); len(got) != 1 || got[0] != enum.EventNewOrder {
		t.Errorf("expected one newOrder broadcast, got %v", got)
	}
}

func TestCreateOrder_RejectsNonStudent(t *testing.T) {
	router := setupOrderRouter(&mockOrderService{}, nil, nil)

	body := map[string]interface{}{"items": []map[string]interface{}{}}
	rr := doAuthRequest(t, router, http.MethodPost, "/canteens/"+testCanID+"/orders/", body, staffClaims())

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestCreateOrder_RequiresAuth(t *testing.T) {
	router := setupOrderRouter(&mockOrderService{}, nil, nil)

	rr := doAuthRequest(t, router, http.MethodPost, "/canteens/"+testCanID+"/orders/", map[string]interface{}{}, nil)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestCreateOrder_ServiceErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"empty items", service.ErrEmptyItems, http.StatusBadRequest},
		{"invalid quantity", service.ErrInvalidQuantity, http.StatusBadRequest},
		{"banned student", service.ErrStudentBanned, http.StatusForbidden},
		{"food not found", service.ErrFoodNotFound, http.StatusNotFound},
		{"out of stock", service.ErrOutOfStock, http.StatusConflict},
		{"tokens exhausted", token.ErrExhausted, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			hub := &mockHub{}
			svc := &mockOrderService{
				createFn: func(ctx context.Context, req service.CreateOrderRequest) (*service.OrderResult, error) {
					return nil, tc.err
				},
			}
			router := setupOrderRouter(svc, nil, hub)

			body := map[string]interface{}{"items": []map[string]interface{}{{"foodId": uuid.NewString(), "quantity": 1}}}
			rr := doAuthRequest(t, router, http.MethodPost, "/canteens/"+testCanID+"/orders/", body, studentClaims())

			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d: %s", tc.wantCode, rr.Code, rr.Body.String())
			}
			if got := hub.eventTypes(); len(got) != 0 {
				t.Errorf("expected no broadcast on failure, got %v", got)
			}
		})
	}
}

func TestListOrders_StaffSeesCanteen(t *testing.T) {
	store := &mockOrderListStore{
		listByCanteenFn: func(ctx context.Context, canID string) ([]database.Order, error) {
			if canID != testCanID {
				t.Errorf("expected canID %s, got %s", testCanID, canID)
			}
			return []database.Order{orderFixture(uuid.New(), enum.OrderStatusReady)}, nil
		},
	}
	router := setupOrderRouter(&mockOrderService{}, store, nil)

	rr := doAuthRequest(t, router, http.MethodGet, "/canteens/"+testCanID+"/orders/", nil, staffClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeJSON(t, rr)
	orders, ok := resp["orders"].([]interface{})
	if !ok || len(orders) != 1 {
		t.Fatalf("expected one order in response, got %v", resp["orders"])
	}
}

func TestListOrders_RejectsStudent(t *testing.T) {
	router := setupOrderRouter(&mockOrderService{}, nil, nil)

	rr := doAuthRequest(t, router, http.MethodGet, "/canteens/"+testCanID+"/orders/", nil, studentClaims())

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestMineOrders_ScopedToCaller(t *testing.T) {
	claims := studentClaims()
	store := &mockOrderListStore{
		listByStudentFn: func(ctx context.Context, arg database.ListOrdersByStudentParams) ([]database.Order, error) {
			if arg.StudentID != claims.UserID {
				t.Errorf("expected caller's student id, got %s", arg.StudentID)
			}
			if arg.CanID != testCanID {
				t.Errorf("expected canID %s, got %s", testCanID, arg.CanID)
			}
			return []database.Order{orderFixture(claims.UserID, enum.OrderStatusPreparing)}, nil
		},
	}
	router := setupOrderRouter(&mockOrderService{}, store, nil)

	rr := doAuthRequest(t, router, http.MethodGet, "/canteens/"+testCanID+"/orders/mine", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestGetOrder_StudentCannotReadOthers(t *testing.T) {
	otherStudent := uuid.New()
	svc := &mockOrderService{
		getFn: func(ctx context.Context, canID, orderID string) (*service.OrderResult, error) {
			return resultFixture(otherStudent, enum.OrderStatusPreparing), nil
		},
	}
	router := setupOrderRouter(svc, nil, nil)

	rr := doAuthRequest(t, router, http.MethodGet, "/canteens/"+testCanID+"/orders/ORD-1757000000000-4821", nil, studentClaims())

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another student's order, got %d", rr.Code)
	}
}

func TestGetOrder_StaffReadsAny(t *testing.T) {
	svc := &mockOrderService{
		getFn: func(ctx context.Context, canID, orderID string) (*service.OrderResult, error) {
			if orderID != "ORD-1757000000000-4821" {
				t.Errorf("unexpected orderID %s", orderID)
			}
			return resultFixture(uuid.New(), enum.OrderStatusReady), nil
		},
	}
	router := setupOrderRouter(svc, nil, nil)

	rr := doAuthRequest(t, router, http.MethodGet, "/canteens/"+testCanID+"/orders/ORD-1757000000000-4821", nil, staffClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeJSON(t, rr)
	if resp["status"] != enum.OrderStatusReady {
		t.Errorf("expected status Ready, got %v", resp["status"])
	}
}

func TestQRCode_RendersPNG(t *testing.T) {
	claims := studentClaims()
	svc := &mockOrderService{
		getFn: func(ctx context.Context, canID, orderID string) (*service.OrderResult, error) {
			return resultFixture(claims.UserID, enum.OrderStatusReady), nil
		},
	}
	router := setupOrderRouter(svc, nil, nil)

	rr := doAuthRequest(t, router, http.MethodGet, "/canteens/"+testCanID+"/orders/ORD-1757000000000-4821/qr.png", nil, claims)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %s", ct)
	}
	if rr.Body.Len() == 0 {
		t.Error("expected PNG bytes in body")
	}
}

func TestQRCode_MissingToken(t *testing.T) {
	claims := studentClaims()
	svc := &mockOrderService{
		getFn: func(ctx context.Context, canID, orderID string) (*service.OrderResult, error) {
			result := resultFixture(claims.UserID, enum.OrderStatusPreparing)
			result.Order.QrToken = pgtype.Text{}
			return result, nil
		},
	}
	router := setupOrderRouter(svc, nil, nil)

	rr := doAuthRequest(t, router, http.MethodGet, "/canteens/"+testCanID+"/orders/ORD-1757000000000-4821/qr.png", nil, claims)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when order has no qr token, got %d", rr.Code)
	}
}

func TestUpdateStatus_AdminOverride(t *testing.T) {
	hub := &mockHub{}
	svc := &mockOrderService{
		setStatusFn: func(ctx context.Context, canID, orderID, status string) (*service.OrderResult, error) {
			if status != enum.OrderStatusPreparing {
				t.Errorf("expected status Preparing, got %s", status)
			}
			return resultFixture(uuid.New(), status), nil
		},
	}
	router := setupOrderRouter(svc, nil, hub)

	body := map[string]string{"status": enum.OrderStatusPreparing}
	rr := doAuthRequest(t, router, http.MethodPatch, "/canteens/"+testCanID+"/orders/ORD-1757000000000-4821/status", body, adminClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := hub.eventTypes(); len(got) != 1 || got[0] != enum.EventOrderUpdated {
		t.Errorf("expected one orderUpdated broadcast, got %v", got)
	}
}

func TestUpdateStatus_RejectsStaff(t *testing.T) {
	router := setupOrderRouter(&mockOrderService{}, nil, nil)

	body := map[string]string{"status": enum.OrderStatusReady}
	rr := doAuthRequest(t, router, http.MethodPatch, "/canteens/"+testCanID+"/orders/ORD-1757000000000-4821/status", body, staffClaims())

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestMarkReady_BroadcastsUpdate(t *testing.T) {
	hub := &mockHub{}
	svc := &mockOrderService{
		markReadyFn: func(ctx context.Context, canID, orderID string) (*service.OrderResult, error) {
			return resultFixture(uuid.New(), enum.OrderStatusReady), nil
		},
	}
	router := setupOrderRouter(svc, nil, hub)

	rr := doAuthRequest(t, router, http.MethodPost, "/canteens/"+testCanID+"/orders/ORD-1757000000000-4821/ready", nil, staffClaims())

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	resp := decodeJSON(t, rr)
	if resp["status"] != enum.OrderStatusReady {
		t.Errorf("expected status Ready, got %v", resp["status"])
	}
	if got := hub.eventTypes(); len(got) != 1 || got[0] != enum.EventOrderUpdated {
		t.Errorf("expected one orderUpdated broadcast, got %v", got)
	}
}

func TestMarkReady_NotFound(t *testing.T) {
	svc := &mockOrderService{
		markReadyFn: func(ctx context.Context, canID, orderID string) (*service.OrderResult, error) {
			return nil, service.ErrOrderNotFound
		},
	}
	router := setupOrderRouter(svc, nil, nil)

	rr := doAuthRequest(t, router, http.MethodPost, "/canteens/"+testCanID+"/orders/ORD-gone/ready", nil, staffClaims())

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
