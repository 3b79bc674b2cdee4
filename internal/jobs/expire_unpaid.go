// Package jobs runs scheduled maintenance against the order lifecycle.
package jobs

import (
	"context"
	"time"

	"storefront-be/internal/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const DefaultExpirySchedule = "@every 1m"

// Expirer cancels pending orders whose payment window has passed.
type Expirer interface {
	ExpireUnpaid(ctx context.Context, olderThan time.Duration) (int, error)
}

// UnpaidExpiryJob periodically releases stock held by abandoned checkouts.
type UnpaidExpiryJob struct {
	orders   Expirer
	ttl      time.Duration
	schedule string
	timeout  time.Duration
	cron     *cron.Cron
	log      *zap.Logger
}

func NewUnpaidExpiryJob(orders Expirer, ttl time.Duration, schedule string) *UnpaidExpiryJob {
	if schedule == "" {
		schedule = DefaultExpirySchedule
	}
	log := logger.L().With(zap.String("component", "unpaid_expiry_job"))
	return &UnpaidExpiryJob{
		orders:   orders,
		ttl:      ttl,
		schedule: schedule,
		timeout:  30 * time.Second,
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DiscardLogger),
			cron.Recover(cron.DiscardLogger),
		)),
		log: log,
	}
}

func (j *UnpaidExpiryJob) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, j.Run); err != nil {
		return err
	}
	j.cron.Start()
	j.log.Info("unpaid expiry job started",
		zap.String("schedule", j.schedule),
		zap.Duration("ttl", j.ttl),
	)
	return nil
}

// Run performs a single sweep.
func (j *UnpaidExpiryJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	n, err := j.orders.ExpireUnpaid(ctx, j.ttl)
	if err != nil {
		j.log.Error("unpaid expiry sweep failed", zap.Int("cancelled", n), zap.Error(err))
		return
	}
	if n > 0 {
		j.log.Info("expired unpaid orders", zap.Int("cancelled", n))
	}
}

// Stop waits for a running sweep to finish.
func (j *UnpaidExpiryJob) Stop() {
	<-j.cron.Stop().Done()
	j.log.Info("unpaid expiry job stopped")
}
