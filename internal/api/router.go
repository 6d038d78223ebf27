package api

import (
	"net/http"
	"time"

	"github.com/example/petshop-checkout/internal/api/middleware"
	"github.com/example/petshop-checkout/internal/auth"
	"github.com/example/petshop-checkout/internal/metrics"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Handlers   *Handlers
	JWTService *auth.JWTService
	// Metrics and MetricsHandler are optional
	Metrics        *metrics.ServerMetrics
	MetricsHandler http.Handler
	Logger         *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := cfg.Handlers

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(withLogging(logger.Named("http")))
	r.Use(chimw.Recoverer)
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Shopper(cfg.JWTService))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/{identity}", h.GetCart)
			r.Post("/add", h.AddToCart)
			r.Put("/update", h.UpdateCartItem)
			r.Delete("/item/{identity}/{productId}", h.RemoveFromCart)
			r.Delete("/clear/{identity}", h.ClearCart)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.PlaceOrder)
			r.Get("/", h.ListOrders)
			r.Get("/{orderId}", h.GetOrder)
			r.Get("/{orderId}/invoices", h.ListOrderInvoices)
		})

		r.Route("/invoices", func(r chi.Router) {
			r.Get("/download/{invoiceId}", h.DownloadInvoice)
			r.Get("/{invoiceId}", h.GetInvoice)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.Admin(cfg.JWTService))

		r.Get("/orders", h.AdminListOrders)
		r.Post("/orders/{orderId}/{action}", h.AdminUpdateOrder)
	})

	return r
}

func withLogging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("request",
				zap.String("request_id", chimw.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}
