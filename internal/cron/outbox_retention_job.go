package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const outboxRetentionDays = 30

type publishedEventPurger interface {
	DeletePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type deadLetterPurger interface {
	DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	Events      publishedEventPurger
	DeadLetters deadLetterPurger
	Retention   int
}

// NewOutboxRetentionJob builds the job that deletes published outbox rows
// and dead letters older than the retention window.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Events == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = outboxRetentionDays
	}
	return &outboxRetentionJob{
		logg:        params.Logger,
		events:      params.Events,
		deadLetters: params.DeadLetters,
		retention:   retention,
		now:         time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	events      publishedEventPurger
	deadLetters deadLetterPurger
	retention   int
	now         func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)

	var errs error
	published, err := j.events.DeletePublishedBefore(ctx, cutoff)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("purge published events: %w", err))
	}
	var dead int64
	if j.deadLetters != nil {
		dead, err = j.deadLetters.DeleteFailedBefore(ctx, cutoff)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("purge dead letters: %w", err))
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":              cutoff,
		"retention_days":      j.retention,
		"published_deleted":   published,
		"dead_letter_deleted": dead,
	}), "cron.outbox_retention_summary")
	return errs
}
