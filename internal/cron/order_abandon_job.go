package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	defaultOrderTTL     = 30 * time.Minute
	defaultAbandonBatch = 100
)

type abandonedOrderReader interface {
	FindAbandoned(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type orderExpirer interface {
	Expire(ctx context.Context, orderID uuid.UUID) (checkout.ExpireOutcome, error)
}

// OrderAbandonJobParams configure the abandoned order sweep.
type OrderAbandonJobParams struct {
	Logger    *logger.Logger
	Orders    abandonedOrderReader
	Expirer   orderExpirer
	TTL       time.Duration
	BatchSize int
}

// NewOrderAbandonJob builds the job that returns the stock of pending orders
// nobody paid for within TTL. Each order is reconciled with the gateway first.
func NewOrderAbandonJob(params OrderAbandonJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("abandoned order reader required")
	}
	if params.Expirer == nil {
		return nil, fmt.Errorf("order expirer required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultOrderTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultAbandonBatch
	}
	return &orderAbandonJob{
		logg:    params.Logger,
		orders:  params.Orders,
		expirer: params.Expirer,
		ttl:     ttl,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type orderAbandonJob struct {
	logg    *logger.Logger
	orders  abandonedOrderReader
	expirer orderExpirer
	ttl     time.Duration
	batch   int
	now     func() time.Time
}

func (j *orderAbandonJob) Name() string { return "order-abandon" }

func (j *orderAbandonJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.orders.FindAbandoned(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("find abandoned orders: %w", err)
	}

	counts := map[checkout.ExpireOutcome]int{}
	var errs error
	for _, order := range stale {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		outcome, err := j.expirer.Expire(ctx, order.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		counts[outcome]++
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":   cutoff,
		"found":    len(stale),
		"released": counts[checkout.ExpireReleased],
		"settled":  counts[checkout.ExpireSettled],
		"skipped":  counts[checkout.ExpireSkipped],
		"failed":   len(multierr.Errors(errs)),
	}), "cron.order_abandon_summary")
	return errs
}
