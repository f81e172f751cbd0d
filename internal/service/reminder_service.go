package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/craftlearn/academy-billing-api/internal/models"
	"github.com/craftlearn/academy-billing-api/pkg/jobs"
)

type reminderDueRepository interface {
	ListPendingInWindow(ctx context.Context, cutoff time.Time) ([]models.PaymentDue, error)
}

type reminderObserver interface {
	ObserveReminderSent()
}

// ReminderConfig controls the reminder sweep.
type ReminderConfig struct {
	Interval   time.Duration
	WindowDays int
	Workers    int
	Retries    int
}

// ReminderService periodically sweeps pending dues whose payment window has
// opened and dispatches one reminder job per due. Dispatch is logged; wiring
// an email or SMS sender only needs a new job handler.
type ReminderService struct {
	dues    reminderDueRepository
	queue   *jobs.Queue
	metrics reminderObserver
	logger  *zap.Logger
	config  ReminderConfig

	cancel context.CancelFunc
	done   chan struct{}
}

// NewReminderService constructs the reminder sweep and its worker queue.
func NewReminderService(dues reminderDueRepository, metrics reminderObserver, logger *zap.Logger, config ReminderConfig) *ReminderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Interval <= 0 {
		config.Interval = time.Hour
	}
	if config.WindowDays <= 0 {
		config.WindowDays = DefaultPaymentWindowDays
	}

	s := &ReminderService{
		dues:    dues,
		metrics: metrics,
		logger:  logger,
		config:  config,
	}
	s.queue = jobs.NewQueue("payment-reminders", s.handleReminder, jobs.QueueConfig{
		Workers:    config.Workers,
		MaxRetries: config.Retries,
		Logger:     logger,
	})
	return s
}

// Start launches the queue workers and the sweep loop.
func (s *ReminderService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.queue.Start(ctx)

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
	s.logger.Info("reminder sweep started", zap.Duration("interval", s.config.Interval))
}

// Stop halts the sweep loop and drains the queue workers.
func (s *ReminderService) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	s.queue.Stop()
}

// Sweep enqueues a reminder for every pending due inside the payment window.
func (s *ReminderService) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().AddDate(0, 0, s.config.WindowDays)
	dues, err := s.dues.ListPendingInWindow(ctx, cutoff)
	if err != nil {
		s.logger.Error("reminder sweep failed to list dues", zap.Error(err))
		return
	}
	for _, due := range dues {
		job := jobs.Job{
			ID:      fmt.Sprintf("remind-%s-%s", due.ID, time.Now().UTC().Format("2006-01-02")),
			Type:    "payment_reminder",
			Payload: due,
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("failed to enqueue reminder", zap.String("due_id", due.ID), zap.Error(err))
		}
	}
	if len(dues) > 0 {
		s.logger.Info("reminder sweep complete", zap.Int("dues", len(dues)))
	}
}

func (s *ReminderService) handleReminder(ctx context.Context, job jobs.Job) error {
	due, ok := job.Payload.(models.PaymentDue)
	if !ok {
		return fmt.Errorf("unexpected reminder payload %T", job.Payload)
	}
	s.logger.Info("payment reminder",
		zap.String("due_id", due.ID),
		zap.String("enrollment_id", due.EnrollmentID),
		zap.Int("installment", due.InstallmentNumber),
		zap.Time("due_date", due.DueDate),
	)
	if s.metrics != nil {
		s.metrics.ObserveReminderSent()
	}
	return nil
}
