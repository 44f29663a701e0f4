package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"school_portal_echo/internal/config"
	"school_portal_echo/internal/payments"
	"school_portal_echo/internal/services"
	"school_portal_echo/internal/tasks"
)

const tickInterval = 5 * time.Minute

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize Database
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	db, err := services.InitDB(cfg.DatabaseURL, cfg.IsProduction())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	deps := &tasks.Deps{
		DB:                   db,
		Store:                payments.NewGormStore(db),
		Messenger:            services.NewWahaService(cfg.Waha),
		PlatformSharePercent: cfg.Split.PlatformSharePercent,
		Logger:               logger,
	}
	if cfg.Mail.Configured() {
		deps.Mailer = services.NewEmailService(cfg.Mail)
	} else {
		logger.Warn("SMTP is not configured, email notifications will fail")
	}

	// Initialize Task Registry
	tasks.DefineTasks(tasks.GlobalRegistry)
	runner := tasks.NewRunner(tasks.GlobalRegistry, deps)

	// Create context that cancels on interrupt
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("worker started", "tasks", tasks.GlobalRegistry.Names(), "interval", tickInterval.String())

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	// Run once on start, then every tick
	processScheduledTasks(ctx, logger, runner)

	for {
		select {
		case <-ticker.C:
			processScheduledTasks(ctx, logger, runner)
		case <-ctx.Done():
			logger.Info("shutting down worker")
			return
		}
	}
}

func processScheduledTasks(ctx context.Context, logger *slog.Logger, runner *tasks.Runner) {
	ran, err := runner.ProcessDue(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "error processing tasks", "err", err)
		return
	}
	if ran > 0 {
		logger.InfoContext(ctx, "processed scheduled tasks", "count", ran)
	}
}
