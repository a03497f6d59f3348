// Package http exposes the JSON API: auth, trips, expenses, settlements,
// notifications and reports.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"tripsplit/internal/auth"
	"tripsplit/internal/cache"
	"tripsplit/internal/core"
	applog "tripsplit/internal/log"
	"tripsplit/internal/services"
)

// Stores the handlers use directly, outside the service layer.
type (
	UserStore interface {
		CreateUser(ctx context.Context, u core.User) (int64, error)
		GetUser(ctx context.Context, id int64) (*core.User, error)
		GetUserByEmail(ctx context.Context, email string) (*core.User, error)
	}

	NotificationStore interface {
		ListUserNotifications(ctx context.Context, userID int64) ([]core.Notification, error)
		MarkNotificationRead(ctx context.Context, id, userID int64) error
	}
)

type Server struct {
	*http.Server

	users         UserStore
	notifications NotificationStore
	trips         *services.TripService
	expenses      *services.ExpenseService
	settlements   *services.SettlementService
	reports       *services.ReportService
	tokens        *auth.Manager

	// Report responses are cached briefly and dropped on writes to the trip
	reportCache *cache.LRU[*core.TripReport]
	limiter     *rateLimiter
}

type Options struct {
	Addr               string
	Users              UserStore
	Notifications      NotificationStore
	Trips              *services.TripService
	Expenses           *services.ExpenseService
	Settlements        *services.SettlementService
	Reports            *services.ReportService
	Tokens             *auth.Manager
	CORSAllowedOrigins []string
	Logger             *applog.Logger
}

func NewServer(opts Options) *Server {
	s := &Server{
		users:         opts.Users,
		notifications: opts.Notifications,
		trips:         opts.Trips,
		expenses:      opts.Expenses,
		settlements:   opts.Settlements,
		reports:       opts.Reports,
		tokens:        opts.Tokens,
		reportCache:   cache.NewLRU[*core.TripReport](128, time.Minute),
		limiter:       newRateLimiter(20, time.Minute),
	}

	router := mux.NewRouter()

	// Public endpoints
	router.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/api/auth/register", s.limiter.wrap(s.handleRegister)).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", s.limiter.wrap(s.handleLogin)).Methods(http.MethodPost)

	// Protected endpoints
	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.authMiddleware)

	api.HandleFunc("/trips", s.handleCreateTrip).Methods(http.MethodPost)
	api.HandleFunc("/trips", s.handleListTrips).Methods(http.MethodGet)
	api.HandleFunc("/trips/{tripID}", s.handleGetTrip).Methods(http.MethodGet)
	api.HandleFunc("/trips/{tripID}", s.handleUpdateTrip).Methods(http.MethodPut)
	api.HandleFunc("/trips/{tripID}", s.handleDeleteTrip).Methods(http.MethodDelete)
	api.HandleFunc("/trips/{tripID}/members", s.handleAddTripMember).Methods(http.MethodPost)

	api.HandleFunc("/trips/{tripID}/expenses", s.handleCreateExpense).Methods(http.MethodPost)
	api.HandleFunc("/trips/{tripID}/expenses", s.handleListExpenses).Methods(http.MethodGet)
	api.HandleFunc("/expenses/{expenseID}", s.handleDeleteExpense).Methods(http.MethodDelete)

	api.HandleFunc("/trips/{tripID}/settlements", s.handleSuggestedSettlements).Methods(http.MethodGet)
	api.HandleFunc("/trips/{tripID}/settlements", s.handleRecordSettlement).Methods(http.MethodPost)
	api.HandleFunc("/trips/{tripID}/settlements/history", s.handleSettlementHistory).Methods(http.MethodGet)

	api.HandleFunc("/trips/{tripID}/report", s.handleTripReport).Methods(http.MethodGet)
	api.HandleFunc("/trips/{tripID}/report/export", s.handleExportReport).Methods(http.MethodPost)

	api.HandleFunc("/notifications", s.handleListNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications/{notificationID}/read", s.handleMarkNotificationRead).Methods(http.MethodPost)

	var handler http.Handler = router
	handler = securityHeaders(handler)
	handler = cors.New(cors.Options{
		AllowedOrigins:   opts.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(handler)
	if opts.Logger != nil {
		handler = applog.RequestIDMiddleware(func(*http.Request) string { return generateRequestID() })(handler)
		handler = applog.Middleware(opts.Logger)(handler)
	}

	s.Server = &http.Server{
		Addr:           opts.Addr,
		Handler:        handler,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 16, // 64KB
	}
	return s
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// securityHeaders sets the usual hardening headers on every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
