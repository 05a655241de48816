package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoteFieldsOrderAndOmission(t *testing.T) {
	rec := CanonicalRecord{
		Email:    "a@x.com",
		FullName: "Jane Doe",
		Company:  "Acme",
	}

	assert.Equal(t, []NoteField{
		{Label: "Name", Value: "Jane Doe"},
		{Label: "Email", Value: "a@x.com"},
		{Label: "Company", Value: "Acme"},
	}, rec.NoteFields())
}

func TestRawSubmissionFlattens(t *testing.T) {
	raw := RawSubmission{
		Origin: Origin{Form: "contact", Source: "homepage"},
		Fields: map[string]string{"Email": "a@x.com", "form": "spoofed"},
	}

	data, err := json.Marshal(raw)
	require.NoError(t, err)

	var flat map[string]string
	require.NoError(t, json.Unmarshal(data, &flat))
	assert.Equal(t, map[string]string{
		"form":   "contact",
		"source": "homepage",
		"Email":  "a@x.com",
	}, flat)

	var back RawSubmission
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, "contact", back.Form)
	assert.Equal(t, "homepage", back.Source)
	assert.Equal(t, map[string]string{"Email": "a@x.com"}, back.Fields)
}

func TestSyncResultSteps(t *testing.T) {
	var nilResult *SyncResult
	assert.False(t, nilResult.Has(StepFindContact))
	assert.False(t, nilResult.Linked())

	res := &SyncResult{}
	res.Done(StepFindContact)
	res.ContactID = 7
	assert.True(t, res.Has(StepFindContact))
	assert.False(t, res.Has(StepCreateLead))
	assert.False(t, res.Linked())

	res.LeadID = "lead-1"
	assert.True(t, res.Linked())
}
