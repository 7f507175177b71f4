package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	defaultReconcileAfter = 2 * time.Minute
	defaultReconcileBatch = 100
)

type reconcileCandidates interface {
	ReconcilableOrderIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

type orderReconciler interface {
	Reconcile(ctx context.Context, orderID uuid.UUID) (*payments.ReconcileResult, error)
}

// PaymentReconcileJobParams configure the settlement sweep.
type PaymentReconcileJobParams struct {
	Logger     *logger.Logger
	Candidates reconcileCandidates
	Reconciler orderReconciler
	// After is how long an intent must sit untouched before the sweep asks
	// the gateway about it.
	After     time.Duration
	BatchSize int
}

// NewPaymentReconcileJob builds the job that settles orders whose payment
// succeeded at the gateway but whose settle call never completed.
func NewPaymentReconcileJob(params PaymentReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Candidates == nil {
		return nil, fmt.Errorf("reconcile candidate source required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	after := params.After
	if after <= 0 {
		after = defaultReconcileAfter
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	return &paymentReconcileJob{
		logg:       params.Logger,
		candidates: params.Candidates,
		reconciler: params.Reconciler,
		after:      after,
		batch:      batch,
		now:        time.Now,
	}, nil
}

type paymentReconcileJob struct {
	logg       *logger.Logger
	candidates reconcileCandidates
	reconciler orderReconciler
	after      time.Duration
	batch      int
	now        func() time.Time
}

func (j *paymentReconcileJob) Name() string { return "payment-reconcile" }

func (j *paymentReconcileJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.after)
	ids, err := j.candidates.ReconcilableOrderIDs(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("list reconcilable orders: %w", err)
	}

	outcomes := map[payments.ReconcileOutcome]int{}
	var errs error
	for _, id := range ids {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		result, err := j.reconciler.Reconcile(ctx, id)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", id, err))
			continue
		}
		outcomes[result.Outcome]++
		if result.Outcome == payments.ReconcileSettled {
			j.logg.Info(j.logg.WithOrderID(ctx, id.String()), "cron.payment_settled_out_of_band")
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(ids),
		"settled":    outcomes[payments.ReconcileSettled],
		"declined":   outcomes[payments.ReconcileDeclined],
		"processing": outcomes[payments.ReconcileProcessing],
		"failed":     len(multierr.Errors(errs)),
	}), "cron.payment_reconcile_summary")
	return errs
}
