package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"form-relay/pkg/apperrors"
	"form-relay/pkg/mapping"
	"form-relay/pkg/storage/backup"
)

const redriveBatchSize = 50

// RedriveService re-runs the CRM sync for backed up submissions whose sync
// never completed. It relies on the sync's lookup-before-create steps to
// avoid duplicating contacts and leads.
type RedriveService struct {
	store       backup.Redriver
	forms       *mapping.Registry
	crm         CRMSyncService
	minAge      time.Duration
	maxAttempts int
	logger      *zap.Logger
	now         func() time.Time
}

func NewRedriveService(store backup.Redriver, forms *mapping.Registry, crm CRMSyncService, minAge time.Duration, maxAttempts int, logger *zap.Logger) *RedriveService {
	return &RedriveService{
		store:       store,
		forms:       forms,
		crm:         crm,
		minAge:      minAge,
		maxAttempts: maxAttempts,
		logger:      logger,
		now:         time.Now,
	}
}

// RunOnce processes one batch and returns how many submissions were synced
func (r *RedriveService) RunOnce(ctx context.Context) (int, error) {
	rows, err := r.store.Pending(ctx, r.now().Add(-r.minAge), r.maxAttempts, redriveBatchSize)
	if err != nil {
		return 0, fmt.Errorf("error listing pending submissions: %w", err)
	}

	synced := 0
	table := r.forms.Current()
	for _, row := range rows {
		log := r.logger.With(zap.String("backup_id", row.ID), zap.String("form", row.Form))

		if err := r.store.MarkAttempt(ctx, row.ID); err != nil {
			log.Warn("Error marking redrive attempt", zap.Error(err))
			continue
		}

		raw, err := row.Raw()
		if err != nil {
			r.record(ctx, log, row.ID, apperrors.Validation("stored submission is unreadable: %v", err))
			continue
		}

		rec, err := table.Standardize(raw.Fields, raw.Form)
		if err != nil {
			r.record(ctx, log, row.ID, err)
			continue
		}

		result, syncErr := r.crm.Sync(ctx, raw.Origin, rec)
		if err := r.store.RecordSync(ctx, row.ID, result, syncErr); err != nil {
			log.Warn("Error recording sync status", zap.Error(err))
		}
		if syncErr != nil {
			log.Warn("Redrive sync failed", zap.Error(syncErr))
			continue
		}
		synced++
	}

	if len(rows) > 0 {
		r.logger.Info("Redrive pass finished", zap.Int("pending", len(rows)), zap.Int("synced", synced))
	}
	return synced, nil
}

func (r *RedriveService) record(ctx context.Context, log *zap.Logger, id string, err error) {
	log.Warn("Redrive skipped submission", zap.Error(err))
	if recErr := r.store.RecordSync(ctx, id, nil, err); recErr != nil {
		log.Warn("Error recording sync status", zap.Error(recErr))
	}
}

// StartRedriveJob schedules RunOnce with a six-field (seconds first) cron spec.
// A pass still running when the next one is due is skipped.
// The caller stops the returned cron on shutdown.
func StartRedriveJob(schedule string, r *RedriveService) (*cron.Cron, error) {
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	_, err := c.AddFunc(schedule, func() {
		if _, err := r.RunOnce(context.Background()); err != nil {
			r.logger.Error("Redrive pass failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid redrive schedule %q: %w", schedule, err)
	}

	c.Start()
	return c, nil
}
