package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segyhp/premium-engine/internal/app"
	"github.com/segyhp/premium-engine/internal/config"
	"github.com/segyhp/premium-engine/internal/logging"
	"github.com/segyhp/premium-engine/internal/service"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const jobTimeout = 5 * time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Logging, cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	logger = logger.Named("scheduler")

	application, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}
	defer application.Close()

	// Initialize cron scheduler
	c := cron.New(
		cron.WithLocation(cfg.Location()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger), cron.Recover(cron.DefaultLogger)),
	)

	// Schedule tasks
	if err := setupCronJobs(c, cfg, application.Service, logger); err != nil {
		logger.Fatal("failed to schedule jobs", zap.Error(err))
	}

	// Start the scheduler
	c.Start()
	logger.Info("scheduler started", zap.String("overdue_spec", cfg.Scheduler.OverdueSpec), zap.String("timezone", cfg.Scheduler.Timezone))

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down scheduler")
	<-c.Stop().Done()
	logger.Info("scheduler stopped")
}

func setupCronJobs(c *cron.Cron, cfg *config.Config, premiumService *service.PremiumService, logger *zap.Logger) error {
	// Marks emitted installments past their due date as OVERDUE
	_, err := c.AddFunc(cfg.Scheduler.OverdueSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		markOverdue(ctx, premiumService, logger)
	})
	return err
}

func markOverdue(ctx context.Context, premiumService *service.PremiumService, logger *zap.Logger) {
	start := time.Now()
	result, err := premiumService.MarkOverdue(ctx)
	if err != nil {
		logger.Error("overdue job failed", zap.Error(err))
		return
	}
	logger.Info("overdue job finished",
		zap.Int64("marked", result.Marked),
		zap.Time("as_of", result.AsOf),
		zap.Duration("duration", time.Since(start)),
	)
}
