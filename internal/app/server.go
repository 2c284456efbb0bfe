// internal/app/server.go
package app

import (
	"context"
	"fmt"

	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/config"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/db"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/gateway/stripe"
	billingHandler "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/handlers/billing"
	subscriptionHandler "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/handlers/subscription"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/middleware"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/pkg/lock"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/repository/postgres"
	billingUsecase "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/service/billing"
	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/service/email"
	metricsUsecase "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/service/metrics"
	paymentUsecase "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/service/payment"
	reminderUsecase "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/service/reminder"
	subscriptionUsecase "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/service/subscription"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger

	pool      *pgxpool.Pool
	scheduler *Scheduler

	billingService  *billingUsecase.BillingService
	reminderService *reminderUsecase.ReminderService
	retryService    *paymentUsecase.RetryService
}

func NewServer() *Server {
	cfg := config.Load()
	engine := gin.Default()
	return &Server{cfg: cfg, engine: engine}
}

func (s *Server) Start() error {
	ctx := context.Background()

	// ----- Logger -----
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	s.logger = logger

	// ----- PostgreSQL -----
	pool, err := db.ConnectDB(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	s.pool = pool

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       s.cfg.RedisDB,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis", zap.String("addr", s.cfg.RedisAddr))

	// ----- Email -----
	emailSender := email.NewEmailSender(
		s.cfg.SMTPHost,
		s.cfg.SMTPPort,
		s.cfg.SMTPUser,
		s.cfg.SMTPPass,
		s.cfg.SMTPFromName,
		s.cfg.SMTPSecure,
	)

	// ----- Payment gateway -----
	gateway := stripe.New(s.cfg.StripeAPIKey)

	// ----- Repositories -----
	subscriptionRepo := postgres.NewSubscriptionRepository(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool)
	clientRepo := postgres.NewClientRepository(pool)
	packageRepo := postgres.NewPackageRepository(pool)

	// ----- Locks -----
	locker := lock.NewRedisLocker(redisClient)

	// ----- Services (Usecases) -----
	lifecycleService := subscriptionUsecase.NewLifecycleService(subscriptionRepo, clientRepo, packageRepo, logger).
		WithDefaultMaxRetries(s.cfg.MaxRetries)
	billingService := billingUsecase.NewBillingService(subscriptionRepo, invoiceRepo, packageRepo, locker, logger)
	reminderService := reminderUsecase.NewReminderService(subscriptionRepo, clientRepo, packageRepo, emailSender, logger)
	retryService := paymentUsecase.NewRetryService(subscriptionRepo, gateway, s.cfg.GatewayTimeout, logger)
	metricsService := metricsUsecase.NewMetricsService(subscriptionRepo, logger)

	s.billingService = billingService
	s.reminderService = reminderService
	s.retryService = retryService

	// ----- Handlers -----
	subscriptionHandlerInst := subscriptionHandler.NewSubscriptionHandler(lifecycleService)
	billingHandlerInst := billingHandler.NewBillingHandler(billingService, reminderService, retryService, metricsService)

	// ----- Middlewares -----
	s.engine.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
	)

	// ----- Router -----
	handlers := &Handlers{
		SubscriptionHandler: subscriptionHandlerInst,
		BillingHandler:      billingHandlerInst,
	}
	SetupRouter(s.engine, handlers)

	// ----- Scheduler -----
	s.scheduler = NewScheduler(s.cfg, billingService, reminderService, retryService, logger)
	if err := s.scheduler.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	logger.Info("server starting", zap.String("addr", s.cfg.HTTPAddr))
	return s.engine.Run(s.cfg.HTTPAddr)
}

// RunOnce executes the three billing engines a single time and returns. Used
// by the -run-once flag for testing and manual catch-up runs.
func (s *Server) RunOnce(ctx context.Context, tenantID int64) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()
	s.logger = logger

	pool, err := db.ConnectDB(ctx, s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pool.Close()

	redisClient, err := db.NewRedisClient(db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		DB:       s.cfg.RedisDB,
		PoolSize: 10,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	subscriptionRepo := postgres.NewSubscriptionRepository(pool)
	invoiceRepo := postgres.NewInvoiceRepository(pool)
	clientRepo := postgres.NewClientRepository(pool)
	packageRepo := postgres.NewPackageRepository(pool)
	locker := lock.NewRedisLocker(redisClient)
	emailSender := email.NewEmailSender(
		s.cfg.SMTPHost, s.cfg.SMTPPort, s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPFromName, s.cfg.SMTPSecure,
	)
	gateway := stripe.New(s.cfg.StripeAPIKey)

	billingService := billingUsecase.NewBillingService(subscriptionRepo, invoiceRepo, packageRepo, locker, logger)
	reminderService := reminderUsecase.NewReminderService(subscriptionRepo, clientRepo, packageRepo, emailSender, logger)
	retryService := paymentUsecase.NewRetryService(subscriptionRepo, gateway, s.cfg.GatewayTimeout, logger)

	billingResult, err := billingService.ProcessDueSubscriptions(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("billing run failed: %w", err)
	}
	logger.Info("billing run completed",
		zap.Int("processed", billingResult.Processed),
		zap.Int("expired", billingResult.Expired),
		zap.Int("failed", billingResult.Failed),
	)

	reminderResult, err := reminderService.Run(ctx, tenantID, s.cfg.ReminderDaysBefore)
	if err != nil {
		return fmt.Errorf("reminder run failed: %w", err)
	}
	logger.Info("reminder run completed",
		zap.Int("sent", reminderResult.Sent),
		zap.Int("skipped", reminderResult.Skipped),
	)

	retryResult, err := retryService.RunPending(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("retry run failed: %w", err)
	}
	logger.Info("retry run completed",
		zap.Int("attempted", retryResult.Attempted),
		zap.Int("succeeded", retryResult.Succeeded),
		zap.Int("failed", retryResult.Failed),
	)

	return nil
}

// Shutdown stops the scheduler and closes the connection pool.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.scheduler != nil {
		s.scheduler.Stop(ctx)
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.logger != nil {
		s.logger.Info("server stopped")
	}
	return nil
}
