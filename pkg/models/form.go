package models

import (
	"encoding/json"
	"fmt"
)

// UnknownOrigin is used when a submission names neither a form nor a source
const UnknownOrigin = "Unknown"

// Origin identifies the form and page a submission came from
type Origin struct {
	Form   string `json:"form"`
	Source string `json:"source"`
}

// CanonicalRecord is a form submission normalized to the contact fields the CRM cares about.
// Email and FullName are always set; the others are empty when absent.
type CanonicalRecord struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Phone    string `json:"phone,omitempty"`
	JobTitle string `json:"jobTitle,omitempty"`
	Company  string `json:"company,omitempty"`
	Message  string `json:"message,omitempty"`
}

// NoteField is one rendered line of a CRM note
type NoteField struct {
	Label string
	Value string
}

// NoteFields returns the record's present fields in note order
func (r CanonicalRecord) NoteFields() []NoteField {
	all := []NoteField{
		{Label: "Name", Value: r.FullName},
		{Label: "Email", Value: r.Email},
		{Label: "Phone", Value: r.Phone},
		{Label: "Job Title", Value: r.JobTitle},
		{Label: "Company", Value: r.Company},
		{Label: "Message", Value: r.Message},
	}

	fields := make([]NoteField, 0, len(all))
	for _, f := range all {
		if f.Value != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// RawSubmission is the submission exactly as received, used for the backup store.
// It serializes to a flat JSON object: {"form": .., "source": .., <field>: <value>, ...}.
type RawSubmission struct {
	Origin
	Fields map[string]string
}

func (r RawSubmission) MarshalJSON() ([]byte, error) {
	flat := make(map[string]string, len(r.Fields)+2)
	for k, v := range r.Fields {
		flat[k] = v
	}
	flat["form"] = r.Form
	flat["source"] = r.Source
	return json.Marshal(flat)
}

func (r *RawSubmission) UnmarshalJSON(data []byte) error {
	var flat map[string]string
	if err := json.Unmarshal(data, &flat); err != nil {
		return fmt.Errorf("error parsing raw submission: %w", err)
	}

	r.Form = flat["form"]
	r.Source = flat["source"]
	delete(flat, "form")
	delete(flat, "source")
	r.Fields = flat
	return nil
}
