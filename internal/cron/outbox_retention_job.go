package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/retailhive/retailhive-backend/pkg/logger"
)

const (
	defaultRetentionDays  = 30
	defaultParkedAttempts = 10
	defaultPruneBatch     = 500
	outboxRetentionName   = "outbox-retention"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPruner interface {
	PruneDelivered(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttempts, limit int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxPruner
	// Retention is in days.
	Retention int
	// MinAttempts is the attempt count at which an unpublished row counts as
	// parked. Keep it equal to the publisher's max attempts.
	MinAttempts int
	// BatchSize bounds the rows deleted per transaction.
	BatchSize int
}

// OutboxRetentionJob deletes published and parked outbox rows past the
// retention window, one bounded transaction at a time.
type OutboxRetentionJob struct {
	logg        *logger.Logger
	db          txRunner
	repo        outboxPruner
	retention   time.Duration
	minAttempts int
	batch       int
	now         func() time.Time
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (*OutboxRetentionJob, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	days := params.Retention
	if days <= 0 {
		days = defaultRetentionDays
	}
	job := &OutboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		retention:   time.Duration(days) * 24 * time.Hour,
		minAttempts: params.MinAttempts,
		batch:       params.BatchSize,
		now:         time.Now,
	}
	if job.minAttempts <= 0 {
		job.minAttempts = defaultParkedAttempts
	}
	if job.batch <= 0 {
		job.batch = defaultPruneBatch
	}
	return job, nil
}

func (j *OutboxRetentionJob) Name() string { return outboxRetentionName }

func (j *OutboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)

	var total int64
	for batches := 0; ; batches++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		var removed int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			n, err := j.repo.PruneDelivered(ctx, tx, cutoff, j.minAttempts, j.batch)
			removed = n
			return err
		})
		if err != nil {
			return fmt.Errorf("prune outbox batch %d: %w", batches+1, err)
		}
		total += removed
		if removed < int64(j.batch) {
			j.logg.Info(j.logg.WithFields(ctx, map[string]any{
				"cutoff":       cutoff,
				"min_attempts": j.minAttempts,
				"batches":      batches + 1,
				"rows_deleted": total,
			}), "outbox retention cleanup complete")
			return nil
		}
	}
}
