package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/linksight/linksight/internal"
	"github.com/linksight/linksight/internal/auth"
	"github.com/linksight/linksight/internal/billing"
	"github.com/linksight/linksight/internal/handler"
	"github.com/linksight/linksight/internal/metrics"
	"github.com/linksight/linksight/internal/middleware"
	"github.com/linksight/linksight/internal/repository"
	"github.com/linksight/linksight/internal/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// rateLimitCleanupInterval is how often idle rate limit buckets are swept.
const rateLimitCleanupInterval = 5 * time.Minute

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(ctx, db, logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repository
	repo := repository.New(db)

	// Initialize services
	registry := service.NewLimitRegistry(repo, cfg.PremiumLimitsCacheTTL, logger)
	if err := registry.Warm(ctx); err != nil {
		// Lookups load on demand, so a cold cache is not fatal.
		logger.Warn("Premium limit cache warm-up failed", "error", err)
	}

	userService := service.NewUserService(repo, logger)
	premiumService := service.NewPremiumService(repo, registry, logger)

	var billingService billing.Service
	if cfg.BillingEnabled() {
		billingService = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, billing.PriceConfig{
			ProMonthlyPriceID:      cfg.StripeProMonthlyPriceID,
			ProYearlyPriceID:       cfg.StripeProYearlyPriceID,
			BusinessMonthlyPriceID: cfg.StripeBusinessMonthlyPriceID,
			BusinessYearlyPriceID:  cfg.StripeBusinessYearlyPriceID,
		})
	} else {
		logger.Warn("Stripe is not configured; webhook events will be ignored")
	}

	// SIGHUP reloads premium limits after the seed table changes.
	go func() {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				if err := registry.Refresh(ctx); err != nil {
					logger.Error("Premium limit reload failed", "error", err)
				}
			}
		}
	}()

	// Initialize middleware
	isSecure := !cfg.IsDevelopment()
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer)
	authMw := middleware.NewAuthMiddleware(tokens, userService, logger)

	limiter := middleware.NewRateLimiter(cfg.PremiumRateLimitPerMinute, cfg.PremiumRateLimitBurst, 0)
	rateLimitMw := middleware.NewRateLimitMiddleware(limiter, logger)
	go func() {
		ticker := time.NewTicker(rateLimitCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Cleanup()
			}
		}
	}()

	// Initialize handlers
	premiumHandler := handler.NewPremiumHandler(premiumService, logger)
	webhookHandler := handler.NewWebhookHandler(billingService, userService, logger)
	systemHandler := handler.NewSystemHandler(db, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check and JSON 404 for unknown API paths
	systemHandler.RegisterRoutes(mux)

	// Metrics (optionally behind basic auth)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))
	if cfg.MetricsUsername == "" && cfg.MetricsPassword == "" {
		logger.Warn("Metrics endpoint is unprotected; set METRICS_USERNAME and METRICS_PASSWORD")
	}

	// Stripe webhooks (public, signature verified)
	webhookHandler.RegisterRoutes(mux)

	// Premium API (bearer auth, rate-limited action recording)
	premiumHandler.RegisterRoutes(mux, authMw.Authenticated, rateLimitMw.Limit)

	// Global middleware, outermost first
	requestLogger := middleware.NewRequestLoggingMiddleware(logger)
	securityHeaders := middleware.NewSecurityHeadersMiddleware(isSecure)
	root := middleware.Stack(
		metrics.Middleware(mux),
		requestLogger.Handler,
		securityHeaders.Handler,
		middleware.CORS(cfg.CORSAllowedOrigins, cfg.IsDevelopment() && cfg.LogLevel == "debug"),
	)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal or listener failure
	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
