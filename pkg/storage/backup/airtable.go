package backup

import (
	"context"
	"encoding/json"

	"form-relay/pkg/apperrors"
	"form-relay/pkg/clients/airtable"
	"form-relay/pkg/models"
)

// AirtableStore appends backups as Airtable records with a single "data" field.
// It keeps no sync bookkeeping.
type AirtableStore struct {
	client airtable.Client
	table  string
}

func NewAirtableStore(client airtable.Client, table string) *AirtableStore {
	return &AirtableStore{client: client, table: table}
}

func (s *AirtableStore) Append(ctx context.Context, raw models.RawSubmission) (string, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return "", apperrors.Persistence("error saving submission backup", err)
	}

	id, err := s.client.CreateRecord(ctx, s.table, map[string]any{"data": string(data)})
	if err != nil {
		return "", apperrors.Persistence("error saving submission backup", err)
	}
	return id, nil
}

func (s *AirtableStore) Close() error {
	return nil
}
