package models

// SyncStep names one stage of the CRM sync
type SyncStep string

const (
	StepFindContact   SyncStep = "find_contact"
	StepCreateContact SyncStep = "create_contact"
	StepFindLead      SyncStep = "find_lead"
	StepCreateLead    SyncStep = "create_lead"
	StepAddNote       SyncStep = "add_note"
)

// SyncResult records how far a CRM sync got. It is filled in as steps
// complete, so after a failure it still describes the partial state.
type SyncResult struct {
	Completed      []SyncStep `json:"completed"`
	ContactID      int64      `json:"contact_id,omitempty"`
	ContactCreated bool       `json:"contact_created"`
	LeadID         string     `json:"lead_id,omitempty"`
	LeadCreated    bool       `json:"lead_created"`
	NoteError      string     `json:"note_error,omitempty"`
}

// Done marks a step as completed
func (r *SyncResult) Done(step SyncStep) {
	r.Completed = append(r.Completed, step)
}

// Has reports whether a step completed
func (r *SyncResult) Has(step SyncStep) bool {
	if r == nil {
		return false
	}
	for _, s := range r.Completed {
		if s == step {
			return true
		}
	}
	return false
}

// Linked reports whether both the contact and the lead exist
func (r *SyncResult) Linked() bool {
	return r != nil && r.ContactID != 0 && r.LeadID != ""
}
