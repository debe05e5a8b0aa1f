package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"warungpos/backend/internal/logger"
	"warungpos/backend/internal/service"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/syncqueue"
)

const maxBodyBytes = 1 << 20

type Options struct {
	AllowedOrigin string
	// CallbackToken guards the payment callback; the endpoint answers 503 while it is empty.
	CallbackToken string
	Logger        *logger.Logger
}

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	callbackToken string
	loginLimiter  *attemptLimiter
	log           *logger.Logger
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: opts.AllowedOrigin,
		callbackToken: strings.TrimSpace(opts.CallbackToken),
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		log:           opts.Logger.WithComponent("httpapi"),
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(a.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{a.allowedOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Callback-Token", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(limitBody)
	r.Use(func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) })

	r.Get("/healthz", a.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", a.handleLogin)
		r.Post("/payment/callback", a.handlePaymentCallback)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)

			r.Get("/auth/me", a.handleMe)

			r.Get("/stores", a.handleListStores)
			r.Post("/stores", a.handleCreateStore)
			r.Route("/stores/{storeID}", func(r chi.Router) {
				r.Get("/", a.handleGetStore)
				r.Put("/", a.handleUpdateStore)
				r.Get("/dashboard", a.handleDashboard)
				r.Get("/reports/sales", a.handleSalesReport)
				r.Get("/products", a.handleListProducts)
				r.Post("/products", a.handleCreateProduct)
				r.Get("/products/low-stock", a.handleLowStock)
				r.Get("/customers", a.handleListCustomers)
				r.Post("/customers", a.handleCreateCustomer)
				r.Get("/transactions", a.handleListTransactions)
				r.Post("/transactions", a.handlePostSale)
				r.Post("/transactions/sync", a.handleOfflineSync)
				r.Get("/debts", a.handleListDebts)
				r.Get("/cashflow", a.handleListCashFlow)
				r.Post("/cashflow", a.handleCreateCashFlow)
				r.Get("/audit-logs", a.handleAuditLogs)
			})

			r.Put("/products/{productID}", a.handleUpdateProduct)
			r.Delete("/products/{productID}", a.handleDeleteProduct)
			r.Post("/products/{productID}/stock", a.handleAdjustStock)
			r.Get("/products/{productID}/movements", a.handleStockMovements)

			r.Put("/customers/{customerID}", a.handleUpdateCustomer)
			r.Delete("/customers/{customerID}", a.handleDeleteCustomer)
			r.Get("/customers/{customerID}/debts", a.handleCustomerDebts)

			r.Get("/transactions/{transactionID}", a.handleGetTransaction)
			r.Put("/transactions/{transactionID}", a.handleUpdateTransaction)

			r.Put("/debts/{debtID}", a.handleUpdateDebt)
			r.Post("/debts/{debtID}/payments", a.handleDebtPayment)
			r.Post("/debts/{debtID}/reminder", a.handleDebtReminder)

			r.Put("/cashflow/{entryID}", a.handleUpdateCashFlow)
			r.Delete("/cashflow/{entryID}", a.handleDeleteCashFlow)

			r.Get("/sync/dead-letters", a.handleDeadLetters)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
	})

	return r
}

func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		ctx := service.WithActor(r.Context(), actor)
		ctx = logger.WithLogger(ctx, logger.FromContext(ctx).With("user_id", actor.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

// decodeOrReject writes the error response itself and reports whether the
// handler may continue.
func decodeOrReject(w http.ResponseWriter, r *http.Request, dest any) bool {
	err := decodeJSON(r, dest)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, errors.New("request body too large"))
		return false
	}
	writeError(w, http.StatusBadRequest, err)
	return false
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

// statusFor maps service and repository errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInsufficientStock), errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, syncqueue.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		logger.Error(r.Context(), "request failed", "status", status, "path", r.URL.Path, "error", err)
	}
	writeError(w, status, err)
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies never carry the underlying error.
	msg := err.Error()
	if status >= 500 {
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
