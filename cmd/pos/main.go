package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JudeTiangan/AI-POS-Thesis/internal/config"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/domain"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/handler"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/cache"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/client"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/observability"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/resilience"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/infra/supabase"
	"github.com/JudeTiangan/AI-POS-Thesis/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
		zap.String("gemini_model", cfg.GeminiModel),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "ai-pos-backend")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	catalogCache := cache.New[[]domain.Item](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("external-apis")

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	store := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		cb,
		resilienceCfg,
		logger,
	)

	suggester := client.NewGeminiClient(httpClient, "", cfg.GeminiAPIKey, cfg.GeminiModel, cb, resilienceCfg, metrics)
	gcash := client.NewPayMongoClient(httpClient, "", cfg.PayMongoSecretKey, cfg.PayMongoWebhookSecret, cfg.FrontendURL, cb, resilienceCfg)
	paypal := client.NewPayPalClient(httpClient, cfg.PayPalBaseURL, cfg.PayPalClientID, cfg.PayPalClientSecret, cfg.FrontendURL, cb, resilienceCfg)

	// --- Services ---
	ruleEngine := service.NewRuleEngine(store, logger)
	analyticsSvc := service.NewAnalyticsService(store, store, store, ruleEngine, cfg.MaxConcurrency, logger)
	catalogSvc := service.NewCatalogService(store, catalogCache, logger)
	orderSvc := service.NewOrderService(store, store, analyticsSvc, gcash, paypal, metrics, logger)
	authSvc := service.NewAuthService(store, cfg.JWTSecret, cfg.JWTAccessTTL, logger)
	recommendSvc := service.NewRecommendationService(store, store, suggester, catalogCache, metrics, cfg.SuggesterTimeout, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Auth:      authSvc,
		Catalog:   catalogSvc,
		Orders:    orderSvc,
		Analytics: analyticsSvc,
		Rules:     ruleEngine,
		Recommend: recommendSvc,
	}, metrics, cfg.FrontendURL, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
