package router

import (
	"log"
	"net/http"

	"github.com/campusbites/api/internal/config"
	"github.com/campusbites/api/internal/database"
	"github.com/campusbites/api/internal/enum"
	"github.com/campusbites/api/internal/gateway"
	"github.com/campusbites/api/internal/handler"
	mw "github.com/campusbites/api/internal/middleware"
	"github.com/campusbites/api/internal/service"
	"github.com/campusbites/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication, canteen scoping, and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173", // web dev server
			"http://localhost:3000",
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket feed for kitchen dashboards (handles auth internally via query param)
	r.Get("/ws/canteens/{canID}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	// Services shared across canteen-scoped routes
	newOrderStore := func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}
	orderService := service.NewOrderService(pool, newOrderStore, cfg.QRSecret, cfg.QRTokenTTL)
	gw := gateway.NewRazorpay(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	paymentService := service.NewPaymentService(queries, queries, gw, orderService)
	pickupService := service.NewPickupService(queries, cfg.QRSecret)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		r.Route("/canteens/{canID}", func(r chi.Router) {
			r.Use(mw.RequireCanteen)

			// Menu: reads are open to everyone in the canteen, writes are admin-only
			foodHandler := handler.NewFoodHandler(queries)
			r.Route("/foods", func(r chi.Router) {
				r.Get("/", foodHandler.List)
				r.Get("/{id}", foodHandler.Get)
				r.Group(func(r chi.Router) {
					r.Use(mw.RequireRole(enum.RoleAdmin))
					r.Post("/", foodHandler.Create)
					r.Put("/{id}", foodHandler.Update)
					r.Delete("/{id}", foodHandler.Delete)
				})
			})

			// Admin-only management
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireRole(enum.RoleAdmin))

				studentHandler := handler.NewStudentHandler(queries)
				r.Route("/students", studentHandler.RegisterRoutes)

				staffHandler := handler.NewStaffHandler(queries)
				r.Route("/staff", staffHandler.RegisterRoutes)

				dashboardHandler := handler.NewDashboardHandler(queries)
				r.Route("/dashboard", dashboardHandler.RegisterRoutes)
			})

			// Orders (per-route role checks inside)
			orderHandler := handler.NewOrderHandler(orderService, queries, hub)
			r.Route("/orders", orderHandler.RegisterRoutes)

			// Prepaid checkout
			paymentHandler := handler.NewPaymentHandler(paymentService, hub)
			r.Route("/payments", paymentHandler.RegisterRoutes)

			// Counter pickup (admin and staff)
			pickupHandler := handler.NewPickupHandler(pickupService, hub)
			r.Route("/pickup", func(r chi.Router) {
				r.Use(mw.RequireRole(enum.RoleAdmin, enum.RoleStaff))
				pickupHandler.RegisterRoutes(r)
			})
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
