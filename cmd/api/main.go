package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mkessler/hypercloud/internal/auth"
	"github.com/mkessler/hypercloud/internal/config"
	"github.com/mkessler/hypercloud/internal/database"
	"github.com/mkessler/hypercloud/internal/handlers"
	"github.com/mkessler/hypercloud/internal/lock"
	middlewareCustom "github.com/mkessler/hypercloud/internal/middleware"
	"github.com/mkessler/hypercloud/internal/repositories"
	"github.com/mkessler/hypercloud/internal/routes"
	"github.com/mkessler/hypercloud/internal/services"
	pkghttp "github.com/mkessler/hypercloud/pkg/http"
	pkglogger "github.com/mkessler/hypercloud/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	userRepo := repositories.NewUserRepository(db)

	// Session tokens and cookie transport
	sessionManager := auth.NewSessionManager(cfg.Session.Secret, cfg.Session.TTL)
	cookieConfig := auth.CookieConfig{
		Domain: cfg.Session.CookieDomain,
		Secure: cfg.CookieSecure(),
		MaxAge: int(cfg.Session.TTL.Seconds()),
	}

	auditLogger := pkglogger.NewAuditLogger(logger)

	// Timing delay pads failed logins
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   100,
		RandomDelayMs: 100,
	})

	// Verification mailer: SES in deployed environments, log-only locally
	var mailer services.Mailer
	if cfg.Server.Env == "development" {
		mailer = services.NewLogMailer(logger)
	} else {
		mailer, err = services.NewAWSSESMailer(cfg.Email.AWSRegion, cfg.Email.FromEmail, cfg.Server.Brandname, logger)
		if err != nil {
			logger.Error("failed to initialize mailer", slog.Any("error", err))
			os.Exit(1)
		}
	}

	policy := services.RegistrationPolicy{
		Open:    cfg.Registration.Open,
		Allowed: cfg.Registration.Allowed,
	}

	authService := services.NewAuthService(
		userRepo,
		lock.NewManager(),
		sessionManager,
		mailer,
		timingDelay,
		policy,
		cfg.Server.Hostname,
		cfg.Server.Env,
		logger,
		auditLogger,
	)
	proofService := services.NewProofService(cfg.Session.Secret)
	userService := services.NewUserService(userRepo, proofService, logger, auditLogger)

	authHandler := handlers.NewAuthHandler(authService, cookieConfig)
	userHandler := handlers.NewUserHandler(userService)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(&middlewareCustom.CORSConfig{AllowedOrigins: cfg.Server.AllowedOrigins}))
	router.Use(middlewareCustom.SecureLogger(logger, &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, userHandler, sessionManager)

	// Health check with database
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.HealthCheck(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","database":"up"}`))
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
