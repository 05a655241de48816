package services

import (
	"context"

	"go.uber.org/zap"

	"form-relay/pkg/apperrors"
	"form-relay/pkg/clients/recaptcha"
	"form-relay/pkg/mapping"
	"form-relay/pkg/models"
	"form-relay/pkg/storage/backup"
	"form-relay/pkg/utils"
)

// SpamCheckFailedMessage is returned to the client when the challenge token is rejected
const SpamCheckFailedMessage = "reCAPTCHA validation failed, please try again"

// Submission is one form post as received by the endpoint
type Submission struct {
	models.Origin
	Token    string
	RemoteIP string
	Fields   map[string]string
}

// SubmissionService defines the interface for handling form submissions
type SubmissionService interface {
	ProcessSubmission(ctx context.Context, sub Submission) (*models.SyncResult, error)
}

type submissionServiceImpl struct {
	forms  *mapping.Registry
	spam   recaptcha.Client
	store  backup.Store
	crm    CRMSyncService
	logger *zap.Logger
}

// NewSubmissionService creates a new submission service
func NewSubmissionService(
	forms *mapping.Registry,
	spam recaptcha.Client,
	store backup.Store,
	crm CRMSyncService,
	logger *zap.Logger,
) SubmissionService {
	return &submissionServiceImpl{
		forms:  forms,
		spam:   spam,
		store:  store,
		crm:    crm,
		logger: logger,
	}
}

// ProcessSubmission handles the entire submission workflow: form lookup, spam check,
// field mapping, backup, CRM sync. Each stage runs only if the previous one succeeded.
func (s *submissionServiceImpl) ProcessSubmission(ctx context.Context, sub Submission) (*models.SyncResult, error) {
	log := s.logger.With(zap.String("form", sub.Form), zap.String("source", sub.Source))

	// Resolve the table once so a reload mid-request cannot change the mapping
	table := s.forms.Current()
	if _, err := table.Lookup(sub.Form); err != nil {
		log.Error("Submission for unmapped form", zap.Error(err))
		return nil, err
	}

	ok, err := s.spam.Verify(ctx, sub.Token, sub.RemoteIP)
	if err != nil {
		log.Warn("Error verifying reCAPTCHA token", zap.Error(err))
	}
	if err != nil || !ok {
		return nil, apperrors.SpamCheck(SpamCheckFailedMessage, nil)
	}

	rec, err := table.Standardize(sub.Fields, sub.Form)
	if err != nil {
		log.Info("Rejected submission", zap.Error(err))
		return nil, err
	}
	log = log.With(zap.String("email_fp", utils.Fingerprint(rec.Email)))

	backupID, err := s.store.Append(ctx, rawRecord(sub))
	if err != nil {
		if apperrors.KindOf(err) != apperrors.KindPersistence {
			err = apperrors.Persistence("error saving submission backup", err)
		}
		log.Error("Error saving submission backup", zap.Error(err))
		return nil, err
	}

	result, syncErr := s.crm.Sync(ctx, sub.Origin, rec)
	if recorder, ok := s.store.(backup.SyncRecorder); ok {
		// The request context may already be gone; bookkeeping should still land
		if err := recorder.RecordSync(context.WithoutCancel(ctx), backupID, result, syncErr); err != nil {
			log.Warn("Error recording sync status", zap.String("backup_id", backupID), zap.Error(err))
		}
	}
	if syncErr != nil {
		var completed []models.SyncStep
		if result != nil {
			completed = result.Completed
		}
		log.Error("CRM sync failed",
			zap.String("backup_id", backupID),
			zap.Any("completed", completed),
			zap.Error(syncErr))
		return result, syncErr
	}

	log.Info("Processed submission", zap.String("backup_id", backupID))
	return result, nil
}

// rawRecord keeps every non-empty field under its original name
func rawRecord(sub Submission) models.RawSubmission {
	fields := make(map[string]string, len(sub.Fields))
	for k, v := range sub.Fields {
		if v != "" {
			fields[k] = v
		}
	}
	return models.RawSubmission{Origin: sub.Origin, Fields: fields}
}
