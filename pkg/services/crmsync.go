package services

import (
	"context"

	"go.uber.org/zap"

	"form-relay/pkg/apperrors"
	"form-relay/pkg/clients/pipedrive"
	"form-relay/pkg/models"
	"form-relay/pkg/utils"
)

// CRMSettings are the ownership and visibility attributes stamped on created entities
type CRMSettings struct {
	OwnerID         int64
	PersonVisibleTo string
	LeadVisibleTo   string
}

// CRMSyncService pushes a canonical record into the CRM
type CRMSyncService interface {
	Sync(ctx context.Context, origin models.Origin, rec models.CanonicalRecord) (*models.SyncResult, error)
}

type crmSyncServiceImpl struct {
	crm      pipedrive.Client
	settings CRMSettings
	logger   *zap.Logger
}

// NewCRMSyncService creates a new CRM sync service
func NewCRMSyncService(crm pipedrive.Client, settings CRMSettings, logger *zap.Logger) CRMSyncService {
	return &crmSyncServiceImpl{
		crm:      crm,
		settings: settings,
		logger:   logger,
	}
}

// Sync finds or creates the contact, finds or creates its lead, then attaches a note
// to both. The returned result is non-nil even on error and lists the steps that completed.
// A failed note is recorded in the result but is not an error.
func (s *crmSyncServiceImpl) Sync(ctx context.Context, origin models.Origin, rec models.CanonicalRecord) (*models.SyncResult, error) {
	result := &models.SyncResult{}
	log := s.logger.With(zap.String("email_fp", utils.Fingerprint(rec.Email)), zap.String("form", origin.Form))

	person, err := s.findOrCreatePerson(ctx, rec, result)
	if err != nil {
		return result, err
	}
	result.ContactID = person.ID

	// Leads are titled after the contact as the CRM knows it
	title := person.Name
	if title == "" {
		title = rec.FullName
	}

	lead, err := s.findOrCreateLead(ctx, title, person.ID, result)
	if err != nil {
		return result, err
	}
	result.LeadID = lead.ID

	note := pipedrive.NewNote{
		Content:  RenderNote(origin, rec),
		LeadID:   lead.ID,
		PersonID: person.ID,
	}
	if err := s.crm.CreateNote(ctx, note); err != nil {
		log.Warn("Error adding CRM note, continuing", zap.Int64("person_id", person.ID), zap.String("lead_id", lead.ID), zap.Error(err))
		result.NoteError = err.Error()
	} else {
		result.Done(models.StepAddNote)
	}

	log.Info("CRM sync complete",
		zap.Int64("person_id", person.ID),
		zap.Bool("person_created", result.ContactCreated),
		zap.String("lead_id", lead.ID),
		zap.Bool("lead_created", result.LeadCreated))
	return result, nil
}

func (s *crmSyncServiceImpl) findOrCreatePerson(ctx context.Context, rec models.CanonicalRecord, result *models.SyncResult) (*pipedrive.Person, error) {
	person, err := s.crm.SearchPersonByEmail(ctx, rec.Email)
	if err != nil {
		return nil, apperrors.Upstream("error looking up CRM contact", err)
	}
	result.Done(models.StepFindContact)
	if person != nil {
		return person, nil
	}

	newPerson := pipedrive.NewPerson{
		Name:      rec.FullName,
		Emails:    []pipedrive.ContactValue{{Value: rec.Email, Primary: true, Label: "work"}},
		OwnerID:   s.settings.OwnerID,
		VisibleTo: s.settings.PersonVisibleTo,
	}
	if rec.Phone != "" {
		newPerson.Phones = []pipedrive.ContactValue{{Value: rec.Phone, Primary: true, Label: "mobile"}}
	}

	person, err = s.crm.CreatePerson(ctx, newPerson)
	if err != nil {
		return nil, apperrors.Upstream("error creating CRM contact", err)
	}
	if person == nil || person.ID == 0 {
		return nil, apperrors.CrmWrite("CRM contact creation returned no contact", nil)
	}
	result.ContactCreated = true
	result.Done(models.StepCreateContact)
	return person, nil
}

func (s *crmSyncServiceImpl) findOrCreateLead(ctx context.Context, title string, personID int64, result *models.SyncResult) (*pipedrive.Lead, error) {
	lead, err := s.crm.SearchLead(ctx, title, personID)
	if err != nil {
		return nil, apperrors.Upstream("error looking up CRM lead", err)
	}
	result.Done(models.StepFindLead)

	if lead == nil {
		lead, err = s.crm.CreateLead(ctx, pipedrive.NewLead{
			Title:     title,
			PersonID:  personID,
			OwnerID:   s.settings.OwnerID,
			VisibleTo: s.settings.LeadVisibleTo,
		})
		if err != nil {
			return nil, apperrors.Upstream("error creating CRM lead", err)
		}
		if lead != nil && lead.ID != "" {
			result.LeadCreated = true
			result.Done(models.StepCreateLead)
		}
	}

	if lead == nil || lead.ID == "" {
		return nil, apperrors.CrmWrite("CRM lead lookup or creation returned no lead id", nil)
	}
	return lead, nil
}
