package services

import (
	"fmt"
	"strings"

	"form-relay/pkg/models"
)

// RenderNote formats a submission as the text of a CRM note:
// a header naming the form and source, a blank line, then one "Label: value" line per field.
func RenderNote(origin models.Origin, rec models.CanonicalRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Form submission: %s (source: %s)\n", origin.Form, origin.Source)
	for _, f := range rec.NoteFields() {
		fmt.Fprintf(&b, "\n%s: %s", f.Label, f.Value)
	}
	return b.String()
}
