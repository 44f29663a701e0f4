package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	"school_portal_echo/internal/config"
	"school_portal_echo/internal/handlers"
	authMiddleware "school_portal_echo/internal/middleware"
	"school_portal_echo/internal/models"
	"school_portal_echo/internal/notifications"
	"school_portal_echo/internal/payments"
	"school_portal_echo/internal/services"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()

	// Initialize Firebase
	authClient, err := services.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
	if err != nil {
		logger.Warn("firebase initialization failed, staff endpoints will reject requests", "err", err)
		authClient = nil
	}

	// Initialize Database
	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		db, err = services.InitDB(cfg.DatabaseURL, cfg.IsProduction())
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}

		// Run auto-migration
		if err := services.AutoMigrate(db); err != nil {
			log.Fatalf("Failed to run database migrations: %v", err)
		}
	} else {
		logger.Warn("DATABASE_URL not set, staff features disabled")
	}

	store, err := newStore(cfg, db)
	if err != nil {
		log.Fatalf("Failed to open payment store: %v", err)
	}

	// Redis is optional: it serializes reconciliation and fans out notifications
	var cache *services.RedisCache
	if cfg.RedisURL != "" {
		cache, err = services.NewRedisCache(cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, running without reconcile lock", "err", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	var publisher payments.Publisher = payments.LogPublisher{Logger: logger}
	var notifier *notifications.Publisher
	if db != nil {
		notifier = notifications.NewPublisher(db, cache, logger)
		publisher = notifier
	}

	var locker payments.Locker
	if cache != nil {
		locker = cache
	}

	verifier := payments.NewVerifier(services.NewPaystackService(cfg.Paystack), store, publisher, locker, payments.VerifierConfig{
		PlatformSharePercent: cfg.Split.PlatformSharePercent,
		SplitCode:            cfg.Split.SplitCode,
		SubaccountCode:       cfg.Split.SubaccountCode,
		CurrencySymbol:       cfg.CurrencySymbol,
	}, logger)
	manual := payments.NewManualRecorder(store, publisher, cfg.CurrencySymbol, logger)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewRequestValidator()
	e.HTTPErrorHandler = authMiddleware.JSONErrorHandler(logger)

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Initialize handlers
	paymentHandler := handlers.NewPaymentHandler(verifier, manual, store, cfg.Split.PlatformSharePercent, logger)

	// Public routes
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/api/payments/verify", paymentHandler.VerifyPayment)

	if db != nil {
		var sessions authMiddleware.SessionVerifier
		var issuer handlers.SessionIssuer
		if authClient != nil {
			sessions = authClient
			issuer = authClient
		}

		authHandler := handlers.NewAuthHandler(issuer, db, cfg.IsProduction())
		e.POST("/api/auth/login", authHandler.HandleLogin)
		e.POST("/api/auth/logout", authHandler.HandleLogout)

		// Protected routes
		protected := e.Group("/api", authMiddleware.RequireAuth(sessions, db))
		protected.GET("/me", authHandler.Me)

		var recipientCache handlers.RecipientCache
		if notifier != nil {
			recipientCache = notifier
		}
		prefHandler := handlers.NewUserPreferenceHandler(db, recipientCache, payments.PaymentNotificationRoles, logger)
		protected.GET("/users/:id/preference", prefHandler.GetUserPreference)
		protected.PUT("/users/:id/preference", prefHandler.UpdateUserPreference)

		// Settlement routes
		staff := protected.Group("", authMiddleware.RequireRole(handlers.StaffRoles()...))
		staff.POST("/payments/manual", paymentHandler.RecordManualPayment)
		staff.GET("/payments/:reference", paymentHandler.GetPayment)
		staff.GET("/receipts/:paymentId", paymentHandler.GetReceipt)
		staff.GET("/notifications", handlers.NewNotificationHandler(db).ListNotifications)

		admin := protected.Group("", authMiddleware.RequireRole(models.RoleAdmin, models.RoleSuperAdmin))
		admin.POST("/payments/ledger/backfill", paymentHandler.BackfillLedger)
	}

	// Start server
	go func() {
		logger.Info("server starting", "port", cfg.Port, "env", cfg.AppEnv)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "err", err)
	}
}

// newStore picks the database store when DATABASE_URL is set, otherwise the
// file backed store when PAYMENTS_STORE_FILE is set, otherwise memory.
func newStore(cfg *config.Config, db *gorm.DB) (payments.Store, error) {
	switch {
	case db != nil:
		return payments.NewGormStore(db), nil
	case cfg.StoreFile != "":
		return payments.NewFileStore(cfg.StoreFile)
	default:
		slog.Warn("no DATABASE_URL or PAYMENTS_STORE_FILE, payments are kept in memory only")
		return payments.NewMemoryStore(), nil
	}
}
