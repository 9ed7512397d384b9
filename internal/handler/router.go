package handler

import (
	"net/http"
	"time"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/observability"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services bundles everything the router needs.
type Services struct {
	Auth      *service.AuthService
	Catalog   *service.CatalogService
	Orders    *service.OrderService
	Analytics *service.AnalyticsService
	Rules     *service.RuleEngine
	Recommend *service.RecommendationService
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svcs Services, metrics *observability.Metrics, frontendURL string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{frontendURL, "http://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svcs.Catalog, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API ---
	r.Route("/api", func(r chi.Router) {

		// Authentication
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", registerHandler(svcs.Auth, logger))
			r.Post("/login", loginHandler(svcs.Auth, logger))
		})

		// Catalog: categories
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", listCategoriesHandler(svcs.Catalog, logger))
			r.Get("/{categoryId}", getCategoryHandler(svcs.Catalog, logger))
			r.Post("/", createCategoryHandler(svcs.Catalog, logger))
			r.Put("/{categoryId}", updateCategoryHandler(svcs.Catalog, logger))
			r.Delete("/{categoryId}", deleteCategoryHandler(svcs.Catalog, logger))
		})

		// Catalog: items
		r.Route("/items", func(r chi.Router) {
			r.Get("/", listItemsHandler(svcs.Catalog, logger))
			r.Get("/{itemId}", getItemHandler(svcs.Catalog, logger))
			r.Post("/", createItemHandler(svcs.Catalog, logger))
			r.Put("/{itemId}", updateItemHandler(svcs.Catalog, logger))
			r.Delete("/{itemId}", deleteItemHandler(svcs.Catalog, logger))
		})

		// Orders & payments
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", createOrderHandler(svcs.Orders, logger))
			r.Get("/user/{userId}", listUserOrdersHandler(svcs.Orders, logger))
			r.Get("/payment-status/{sourceId}", paymentStatusHandler(svcs.Orders, logger))
			r.Post("/paymongo/webhook", paymongoWebhookHandler(svcs.Orders, logger))
			r.Post("/paypal/webhook", paypalWebhookHandler(logger))
			r.Post("/paypal/capture/{orderId}", capturePayPalHandler(svcs.Orders, logger))
			r.Put("/{orderId}/status", updateOrderStatusHandler(svcs.Orders, logger))
			r.Put("/{orderId}/payment", updatePaymentStatusHandler(svcs.Orders, logger))
			r.Get("/{orderId}", getOrderHandler(svcs.Orders, logger))
			r.Delete("/{orderId}", deleteOrderHandler(svcs.Orders, logger))

			// Admin-only order operations
			r.Group(func(r chi.Router) {
				r.Use(JWTAuthMiddleware(svcs.Auth, logger))
				r.Use(RequireRole("admin", logger))
				r.Get("/admin", listAllOrdersHandler(svcs.Orders, logger))
				r.Post("/regenerate-analytics", regenerateAnalyticsHandler(svcs.Analytics, logger))
			})
		})

		// Analytics
		r.Route("/analytics", func(r chi.Router) {
			r.Get("/customer/{userId}", getCustomerAnalyticsHandler(svcs.Analytics, logger))
			r.Post("/customer/{userId}/purchase", recordPurchaseHandler(svcs.Analytics, logger))
			r.Get("/global", globalAnalyticsHandler(svcs.Analytics, logger))
			r.Get("/association-rules", associationRulesHandler(svcs.Rules, logger))
			r.Get("/popular-combinations", popularCombinationsHandler(svcs.Rules, logger))
			r.Get("/engine", engineMetricsHandler(metrics, logger))
		})

		// Recommendations
		r.Post("/recommendations", recommendHandler(svcs.Recommend, logger))
	})

	return r
}

// healthzHandler reports liveness plus a best-effort store probe.
func healthzHandler(catalog *service.CatalogService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		storeStatus := "healthy"
		var latency int64

		if catalog != nil {
			start := time.Now()
			if _, err := catalog.ListCategories(r.Context()); err != nil {
				storeStatus = "degraded"
				status = "degraded"
				logger.Warn("healthz: store probe failed", zap.Error(err))
			}
			latency = time.Since(start).Milliseconds()
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status":    status,
			"timestamp": time.Now().Format(time.RFC3339),
			"services": map[string]any{
				"store": map[string]any{"status": storeStatus, "latencyMs": latency},
			},
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
