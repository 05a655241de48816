package backup

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"form-relay/pkg/clients/airtable"
	"form-relay/pkg/config"
	"form-relay/pkg/models"
)

// Sync states of a backed up submission
const (
	StatusPending = "pending"
	StatusSynced  = "synced"
	StatusFailed  = "failed"
)

// Store appends raw submissions to durable storage.
// Append failures are persistence errors.
type Store interface {
	Append(ctx context.Context, raw models.RawSubmission) (string, error)
	Close() error
}

// SyncRecorder is implemented by stores that keep CRM sync bookkeeping next to the backup
type SyncRecorder interface {
	RecordSync(ctx context.Context, id string, result *models.SyncResult, syncErr error) error
}

// Redriver is implemented by stores that can list submissions whose CRM sync never completed
type Redriver interface {
	SyncRecorder
	Pending(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]Submission, error)
	MarkAttempt(ctx context.Context, id string) error
}

// Open builds the store selected by cfg.BackupDriver
func Open(cfg *config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.BackupDriver {
	case "postgres", "sqlite":
		db, err := InitDB(cfg.BackupDriver, cfg.BackupDSN)
		if err != nil {
			return nil, err
		}
		store, err := NewSQLStore(db, cfg.BackupTable)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "airtable":
		httpClient := &http.Client{Timeout: cfg.HTTPClientTimeout}
		client := airtable.NewClient(cfg.AirtableAPIKey, cfg.AirtableBaseID, "", httpClient, logger)
		return NewAirtableStore(client, cfg.AirtableTable), nil
	default:
		return nil, fmt.Errorf("unknown backup driver %q", cfg.BackupDriver)
	}
}
