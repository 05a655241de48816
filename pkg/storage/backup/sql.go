package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"form-relay/pkg/apperrors"
	"form-relay/pkg/models"
)

// Submission is one row of the backup table
type Submission struct {
	ID              string    `gorm:"column:id;primaryKey;type:varchar(36)"`
	Data            string    `gorm:"column:data;type:text;not null"`
	Form            string    `gorm:"column:form;type:varchar(255);index"`
	Source          string    `gorm:"column:source;type:varchar(255)"`
	SyncStatus      string    `gorm:"column:sync_status;type:varchar(16);not null;default:pending;index"`
	SyncSteps       string    `gorm:"column:sync_steps;type:text"`
	SyncError       string    `gorm:"column:sync_error;type:text"`
	ContactID       *int64    `gorm:"column:contact_id"`
	LeadID          string    `gorm:"column:lead_id;type:varchar(64)"`
	RedriveAttempts int       `gorm:"column:redrive_attempts;not null;default:0"`
	CreatedAt       time.Time `gorm:"index"`
	UpdatedAt       time.Time
}

// Raw decodes the stored submission
func (s *Submission) Raw() (models.RawSubmission, error) {
	var raw models.RawSubmission
	if err := json.Unmarshal([]byte(s.Data), &raw); err != nil {
		return models.RawSubmission{}, err
	}
	return raw, nil
}

// InitDB opens the backup database.
// postgres dsn: "host=localhost user=postgres password=root dbname=mydb port=5432 sslmode=disable"
// sqlite dsn: a file path or "file::memory:"
func InitDB(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect db failed: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if driver == "sqlite" {
		// one connection so in-memory databases are shared
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

// SQLStore keeps backups in a gorm-managed table
type SQLStore struct {
	db    *gorm.DB
	table string
}

// NewSQLStore migrates the backup table and returns a store writing to it
func NewSQLStore(db *gorm.DB, table string) (*SQLStore, error) {
	if table == "" {
		table = "form_submissions"
	}
	if err := db.Table(table).AutoMigrate(&Submission{}); err != nil {
		return nil, fmt.Errorf("migrate %s failed: %w", table, err)
	}
	return &SQLStore{db: db, table: table}, nil
}

func (s *SQLStore) tx(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.table)
}

func (s *SQLStore) Append(ctx context.Context, raw models.RawSubmission) (string, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return "", apperrors.Persistence("error saving submission backup", err)
	}

	row := &Submission{
		ID:         uuid.NewString(),
		Data:       string(data),
		Form:       raw.Form,
		Source:     raw.Source,
		SyncStatus: StatusPending,
	}
	if err := s.tx(ctx).Create(row).Error; err != nil {
		return "", apperrors.Persistence("error saving submission backup", err)
	}
	return row.ID, nil
}

func (s *SQLStore) RecordSync(ctx context.Context, id string, result *models.SyncResult, syncErr error) error {
	updates := map[string]any{
		"sync_status": StatusSynced,
		"sync_error":  "",
		"updated_at":  time.Now(),
	}
	if syncErr != nil {
		updates["sync_status"] = StatusFailed
		updates["sync_error"] = syncErr.Error()
	}
	if result != nil {
		steps := make([]string, len(result.Completed))
		for i, step := range result.Completed {
			steps[i] = string(step)
		}
		updates["sync_steps"] = strings.Join(steps, ",")
		if result.ContactID != 0 {
			updates["contact_id"] = result.ContactID
		}
		if result.LeadID != "" {
			updates["lead_id"] = result.LeadID
		}
		if syncErr == nil && result.NoteError != "" {
			updates["sync_error"] = "note: " + result.NoteError
		}
	}

	return s.tx(ctx).Where("id = ?", id).Updates(updates).Error
}

// Pending lists submissions created before olderThan whose sync is pending or failed
// and that have been re-driven fewer than maxAttempts times, oldest first
func (s *SQLStore) Pending(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]Submission, error) {
	var rows []Submission
	err := s.tx(ctx).
		Where("sync_status IN ? AND redrive_attempts < ? AND created_at < ?",
			[]string{StatusPending, StatusFailed}, maxAttempts, olderThan).
		Order("created_at").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (s *SQLStore) MarkAttempt(ctx context.Context, id string) error {
	return s.tx(ctx).Where("id = ?", id).
		Updates(map[string]any{
			"redrive_attempts": gorm.Expr("redrive_attempts + 1"),
			"updated_at":       time.Now(),
		}).Error
}

// Get returns one backup row
func (s *SQLStore) Get(ctx context.Context, id string) (*Submission, error) {
	var row Submission
	if err := s.tx(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
