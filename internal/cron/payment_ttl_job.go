package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
)

const (
	paymentTTLJobName   = "payment-ttl"
	paymentTTLBatchSize = 200
	paymentTTLMaxBatch  = 25
)

type staleExpirer interface {
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// PaymentTTLJobParams configure the pending payment expiry job.
type PaymentTTLJobParams struct {
	Logger  *logger.Logger
	Expirer staleExpirer
	TTL     time.Duration
	Metrics *metrics.CronJobMetrics
}

// NewPaymentTTLJob builds the job that fails orders whose payment never
// arrived within TTL.
func NewPaymentTTLJob(params PaymentTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Expirer == nil {
		return nil, fmt.Errorf("stale order expirer required")
	}
	if params.TTL <= 0 {
		return nil, fmt.Errorf("payment ttl must be positive")
	}
	return &paymentTTLJob{
		logg:    params.Logger,
		expirer: params.Expirer,
		ttl:     params.TTL,
		metrics: params.Metrics,
		now:     time.Now,
	}, nil
}

type paymentTTLJob struct {
	logg    *logger.Logger
	expirer staleExpirer
	ttl     time.Duration
	metrics *metrics.CronJobMetrics
	now     func() time.Time
}

func (j *paymentTTLJob) Name() string { return paymentTTLJobName }

func (j *paymentTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	total := 0
	for batch := 0; batch < paymentTTLMaxBatch; batch++ {
		n, err := j.expirer.ExpireStale(ctx, cutoff, paymentTTLBatchSize)
		total += n
		if err != nil {
			j.report(ctx, total)
			return fmt.Errorf("expire stale payments: %w", err)
		}
		if n < paymentTTLBatchSize {
			break
		}
	}
	j.report(ctx, total)
	return nil
}

func (j *paymentTTLJob) report(ctx context.Context, expired int) {
	if j.metrics != nil {
		j.metrics.AddAffected(paymentTTLJobName, expired)
	}
	if expired > 0 {
		j.logg.Info(j.logg.WithField(ctx, "expired", expired), "expired unpaid orders")
	}
}
