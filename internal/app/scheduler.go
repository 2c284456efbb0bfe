// internal/app/scheduler.go
package app

import (
	"context"
	"fmt"

	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/config"
	billingUsecase "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/service/billing"
	paymentUsecase "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/service/payment"
	reminderUsecase "github.com/LucaBras1/VertiGo-SaaS-sub009/internal/service/reminder"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// allTenants runs a batch across every tenant.
const allTenants int64 = 0

// Scheduler drives the three billing engines on cron schedules. Jobs cover
// all tenants in one pass; per-item failures are logged, never fatal.
type Scheduler struct {
	cfg             config.AppConfig
	cron            *cron.Cron
	billingService  *billingUsecase.BillingService
	reminderService *reminderUsecase.ReminderService
	retryService    *paymentUsecase.RetryService
	logger          *zap.Logger
}

func NewScheduler(
	cfg config.AppConfig,
	billingService *billingUsecase.BillingService,
	reminderService *reminderUsecase.ReminderService,
	retryService *paymentUsecase.RetryService,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		cfg:             cfg,
		cron:            cron.New(),
		billingService:  billingService,
		reminderService: reminderService,
		retryService:    retryService,
		logger:          logger,
	}
}

func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.cfg.BillingSchedule, func() {
		result, err := s.billingService.ProcessDueSubscriptions(context.Background(), allTenants)
		if err != nil {
			s.logger.Error("scheduled billing run failed", zap.Error(err))
			return
		}
		s.logger.Info("scheduled billing run completed",
			zap.Int("processed", result.Processed),
			zap.Int("expired", result.Expired),
			zap.Int("failed", result.Failed),
		)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule billing run: %w", err)
	}

	_, err = s.cron.AddFunc(s.cfg.ReminderSchedule, func() {
		result, err := s.reminderService.Run(context.Background(), allTenants, s.cfg.ReminderDaysBefore)
		if err != nil {
			s.logger.Error("scheduled reminder run failed", zap.Error(err))
			return
		}
		s.logger.Info("scheduled reminder run completed",
			zap.Int("sent", result.Sent),
			zap.Int("skipped", result.Skipped),
		)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reminder run: %w", err)
	}

	_, err = s.cron.AddFunc(s.cfg.RetrySchedule, func() {
		result, err := s.retryService.RunPending(context.Background(), allTenants)
		if err != nil {
			s.logger.Error("scheduled retry run failed", zap.Error(err))
			return
		}
		s.logger.Info("scheduled retry run completed",
			zap.Int("attempted", result.Attempted),
			zap.Int("succeeded", result.Succeeded),
			zap.Int("failed", result.Failed),
		)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retry run: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("billing_schedule", s.cfg.BillingSchedule),
		zap.String("reminder_schedule", s.cfg.ReminderSchedule),
		zap.String("retry_schedule", s.cfg.RetrySchedule),
	)
	return nil
}

// Stop halts scheduling and waits for running jobs, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out with jobs still running")
	}
}
