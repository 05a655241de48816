package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"form-relay/pkg/apperrors"
	"form-relay/pkg/mapping"
	"form-relay/pkg/models"
	"form-relay/pkg/storage/backup"
)

const submissionForms = `
forms:
  contact:
    email: Email
    fullName: name
    phone: Phone
`

type pipeline struct {
	spam  *fakeSpam
	store *fakeStore
	crm   *fakeCRM
	svc   SubmissionService
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	table, err := mapping.Parse([]byte(submissionForms))
	require.NoError(t, err)

	p := &pipeline{
		spam:  &fakeSpam{ok: true},
		store: newFakeStore(),
		crm:   newFakeCRM(),
	}
	syncer := NewCRMSyncService(p.crm, testSettings, zap.NewNop())
	p.svc = NewSubmissionService(mapping.NewRegistry(table), p.spam, p.store, syncer, zap.NewNop())
	return p
}

func janeSubmission() Submission {
	return Submission{
		Origin: models.Origin{Form: "contact", Source: "homepage"},
		Token:  "valid-token",
		Fields: map[string]string{"Email": "a@x.com", "name": "Jane Doe", "Phone": ""},
	}
}

func TestProcessSubmissionHappyPath(t *testing.T) {
	p := newPipeline(t)

	result, err := p.svc.ProcessSubmission(context.Background(), janeSubmission())
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, []string{"valid-token"}, p.spam.tokens)

	require.Len(t, p.store.appended, 1)
	assert.Equal(t, models.RawSubmission{
		Origin: models.Origin{Form: "contact", Source: "homepage"},
		Fields: map[string]string{"Email": "a@x.com", "name": "Jane Doe"},
	}, p.store.appended[0], "empty fields are not backed up")

	assert.Equal(t, []string{"a@x.com"}, p.crm.personSearches)
	assert.Len(t, p.crm.createdPersons, 1)
	assert.Len(t, p.crm.createdLeads, 1)
	assert.Len(t, p.crm.notes, 1)

	require.Len(t, p.store.records, 1)
	assert.Equal(t, "backup-1", p.store.records[0].ID)
	assert.NoError(t, p.store.records[0].Err)
	assert.Same(t, result, p.store.records[0].Result)
}

func TestProcessSubmissionUnknownFormMakesNoCalls(t *testing.T) {
	p := newPipeline(t)
	sub := janeSubmission()
	sub.Form = "careers"

	_, err := p.svc.ProcessSubmission(context.Background(), sub)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConfiguration, apperrors.KindOf(err))

	assert.Zero(t, p.spam.calls())
	assert.Zero(t, p.store.appends())
	assert.Zero(t, p.crm.calls())
}

func TestProcessSubmissionSpamRejected(t *testing.T) {
	p := newPipeline(t)
	p.spam.ok = false

	_, err := p.svc.ProcessSubmission(context.Background(), janeSubmission())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindSpamCheck, apperrors.KindOf(err))
	assert.Equal(t, SpamCheckFailedMessage, err.Error())

	assert.Zero(t, p.store.appends())
	assert.Zero(t, p.crm.calls())
}

func TestProcessSubmissionSpamServiceDown(t *testing.T) {
	p := newPipeline(t)
	p.spam.ok = true
	p.spam.err = errBoom

	_, err := p.svc.ProcessSubmission(context.Background(), janeSubmission())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindSpamCheck, apperrors.KindOf(err))
	assert.Zero(t, p.store.appends())
	assert.Zero(t, p.crm.calls())
}

func TestProcessSubmissionValidationStopsBeforeBackup(t *testing.T) {
	p := newPipeline(t)
	sub := janeSubmission()
	delete(sub.Fields, "Email")

	_, err := p.svc.ProcessSubmission(context.Background(), sub)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	assert.Zero(t, p.store.appends())
	assert.Zero(t, p.crm.calls())
}

func TestProcessSubmissionBackupFailureSkipsCRM(t *testing.T) {
	p := newPipeline(t)
	p.store.err = errBoom

	_, err := p.svc.ProcessSubmission(context.Background(), janeSubmission())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindPersistence, apperrors.KindOf(err))
	assert.ErrorIs(t, err, errBoom)
	assert.Zero(t, p.crm.calls())
}

func TestProcessSubmissionCRMFailureIsRecorded(t *testing.T) {
	p := newPipeline(t)
	p.crm.createLeadNil = true

	result, err := p.svc.ProcessSubmission(context.Background(), janeSubmission())
	require.Error(t, err)
	assert.Equal(t, apperrors.KindCrmWrite, apperrors.KindOf(err))
	assert.True(t, result.ContactCreated)

	require.Len(t, p.store.records, 1)
	assert.Error(t, p.store.records[0].Err)
	assert.True(t, p.store.records[0].Result.Has(models.StepCreateContact))
}

// appendOnlyStore has no sync bookkeeping
type appendOnlyStore struct{ appended int }

func (s *appendOnlyStore) Append(ctx context.Context, raw models.RawSubmission) (string, error) {
	s.appended++
	return "rec1", nil
}

func (s *appendOnlyStore) Close() error { return nil }

var _ backup.Store = (*appendOnlyStore)(nil)

func TestProcessSubmissionAppendOnlyStore(t *testing.T) {
	table, err := mapping.Parse([]byte(submissionForms))
	require.NoError(t, err)
	store := &appendOnlyStore{}
	crm := newFakeCRM()
	svc := NewSubmissionService(mapping.NewRegistry(table), &fakeSpam{ok: true}, store,
		NewCRMSyncService(crm, testSettings, zap.NewNop()), zap.NewNop())

	_, err = svc.ProcessSubmission(context.Background(), janeSubmission())
	require.NoError(t, err)
	assert.Equal(t, 1, store.appended)
	assert.Len(t, crm.notes, 1)
}
