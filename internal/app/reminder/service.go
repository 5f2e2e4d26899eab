package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/YelzhanWeb/pickup/internal/adapter/logger"
	"github.com/YelzhanWeb/pickup/internal/domain"
	"github.com/YelzhanWeb/pickup/internal/interfaces"
)

// Acknowledger records that a notification effect was handed off.
type Acknowledger interface {
	Acknowledge(ctx context.Context, orderID string, kind domain.EffectKind) (domain.Order, error)
}

// Report summarizes one sweep. Skipped counts listed orders that staff moved on
// before the reminder went out.
type Report struct {
	Scanned int
	Sent    int
	Skipped int
	Failed  int
}

type Service struct {
	repo        interfaces.OrderRepository
	gateway     interfaces.NotificationGateway
	acks        Acknowledger
	machine     *domain.Machine
	logger      logger.Logger
	threshold   time.Duration
	interval    time.Duration
	concurrency int
}

func NewService(
	repo interfaces.OrderRepository,
	gateway interfaces.NotificationGateway,
	acks Acknowledger,
	machine *domain.Machine,
	logger logger.Logger,
	threshold time.Duration,
	interval time.Duration,
	concurrency int,
) *Service {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		repo:        repo,
		gateway:     gateway,
		acks:        acks,
		machine:     machine,
		logger:      logger,
		threshold:   threshold,
		interval:    interval,
		concurrency: concurrency,
	}
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("reminder_sweeper_started", fmt.Sprintf("Sweeping every %s", s.interval), "", map[string]interface{}{
		"threshold": s.threshold.String(),
	})

	s.sweepAndLog(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reminder_sweeper_stopped", "Reminder sweeper stopped", "", nil)
			return nil
		case <-ticker.C:
			s.sweepAndLog(ctx)
		}
	}
}

func (s *Service) sweepAndLog(ctx context.Context) {
	report, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("reminder_sweep_failed", "Failed to list ready orders", "", nil, err)
		return
	}
	if report.Scanned == 0 {
		return
	}
	s.logger.Info("reminder_sweep_finished", "Reminder sweep finished", "", map[string]interface{}{
		"scanned": report.Scanned,
		"sent":    report.Sent,
		"skipped": report.Skipped,
		"failed":  report.Failed,
	})
}

// Sweep reminds every ready order older than the threshold that has not been
// reminded yet. A failed order is left for the next sweep.
func (s *Service) Sweep(ctx context.Context) (Report, error) {
	cutoff := s.machine.Now().Add(-s.threshold)

	orders, err := s.repo.ListReadyOlderThan(ctx, cutoff)
	if err != nil {
		return Report{}, err
	}

	var sent, skipped, failed atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, order := range orders {
		g.Go(func() error {
			err := s.remind(gctx, order.ID)
			if errors.Is(err, domain.ErrReminderNotDue) {
				skipped.Add(1)
				s.logger.Debug("reminder_skipped", err.Error(), "", map[string]interface{}{
					"order_id": order.ID,
				})
				return nil
			}
			if err != nil {
				failed.Add(1)
				s.logger.Error("reminder_failed", "Failed to send reminder", "", map[string]interface{}{
					"order_id": order.ID,
				}, err)
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return Report{
		Scanned: len(orders),
		Sent:    int(sent.Load()),
		Skipped: int(skipped.Load()),
		Failed:  int(failed.Load()),
	}, nil
}

// remind re-reads the order so a pickup or cancellation that landed after the
// listing suppresses the reminder.
func (s *Service) remind(ctx context.Context, orderID string) error {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to reload order: %w", err)
	}

	effect, err := s.machine.Reminder(order, s.threshold)
	if err != nil {
		return err
	}

	if err := s.gateway.Send(ctx, effect); err != nil {
		return err
	}

	if _, err := s.acks.Acknowledge(ctx, order.ID, domain.EffectReminder); err != nil {
		return fmt.Errorf("reminder sent but not recorded: %w", err)
	}

	s.logger.Debug("reminder_sent", "Reminder handed off", "", map[string]interface{}{
		"order_id": order.ID,
	})
	return nil
}
