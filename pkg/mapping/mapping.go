package mapping

import (
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"form-relay/pkg/apperrors"
	"form-relay/pkg/models"
)

// FieldRef names the raw form field(s) a canonical field is read from.
// In YAML it is either a single string or a list of strings.
type FieldRef []string

func (f *FieldRef) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var name string
		if err := value.Decode(&name); err != nil {
			return err
		}
		*f = FieldRef{name}
		return nil
	default:
		var names []string
		if err := value.Decode(&names); err != nil {
			return err
		}
		*f = FieldRef(names)
		return nil
	}
}

// join trims every referenced value, drops blanks and joins the rest with a space
func (f FieldRef) join(raw map[string]string) string {
	parts := make([]string, 0, len(f))
	for _, name := range f {
		if v := strings.TrimSpace(raw[name]); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// first returns the first referenced value that is non-blank after trimming
func (f FieldRef) first(raw map[string]string) string {
	for _, name := range f {
		if v := strings.TrimSpace(raw[name]); v != "" {
			return v
		}
	}
	return ""
}

func (f FieldRef) empty() bool {
	for _, name := range f {
		if strings.TrimSpace(name) != "" {
			return false
		}
	}
	return true
}

// FormMapping maps canonical field names to the raw fields of one form
type FormMapping struct {
	Email    FieldRef `yaml:"email"`
	FullName FieldRef `yaml:"fullName"`
	Phone    FieldRef `yaml:"phone,omitempty"`
	JobTitle FieldRef `yaml:"jobTitle,omitempty"`
	Company  FieldRef `yaml:"company,omitempty"`
	Message  FieldRef `yaml:"message,omitempty"`
}

// Table holds the field mapping of every accepted form, keyed by form name
type Table struct {
	forms map[string]FormMapping
}

// NewTable builds a table from already validated mappings
func NewTable(forms map[string]FormMapping) *Table {
	copied := make(map[string]FormMapping, len(forms))
	for name, m := range forms {
		copied[name] = m
	}
	return &Table{forms: copied}
}

// Lookup returns the mapping for formName, or a configuration error if there is none
func (t *Table) Lookup(formName string) (FormMapping, error) {
	if t != nil {
		if m, ok := t.forms[formName]; ok {
			return m, nil
		}
	}
	return FormMapping{}, apperrors.Configuration("no field mapping configured for form %q", formName)
}

// Names returns the configured form names in sorted order
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.forms))
	for name := range t.forms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Standardize converts a raw submission of the named form into a canonical record
func (t *Table) Standardize(raw map[string]string, formName string) (models.CanonicalRecord, error) {
	m, err := t.Lookup(formName)
	if err != nil {
		return models.CanonicalRecord{}, err
	}

	rec := models.CanonicalRecord{
		Email:    m.Email.first(raw),
		FullName: m.FullName.join(raw),
		Phone:    m.Phone.first(raw),
		JobTitle: m.JobTitle.first(raw),
		Company:  m.Company.first(raw),
		Message:  m.Message.first(raw),
	}

	if rec.Email == "" {
		return models.CanonicalRecord{}, apperrors.Validation("email is required")
	}
	if rec.FullName == "" {
		return models.CanonicalRecord{}, apperrors.Validation("name is required")
	}
	return rec, nil
}
