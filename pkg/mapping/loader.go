package mapping

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type fileFormat struct {
	Forms map[string]FormMapping `yaml:"forms"`
}

// Parse reads a forms document and validates every entry
func Parse(data []byte) (*Table, error) {
	var doc fileFormat
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error parsing forms file: %w", err)
	}
	if len(doc.Forms) == 0 {
		return nil, fmt.Errorf("forms file defines no forms")
	}

	for name, m := range doc.Forms {
		if name == "" {
			return nil, fmt.Errorf("forms file contains an entry with an empty name")
		}
		if m.Email.empty() {
			return nil, fmt.Errorf("form %q: email mapping is required", name)
		}
		if m.FullName.empty() {
			return nil, fmt.Errorf("form %q: fullName mapping is required", name)
		}
	}

	return NewTable(doc.Forms), nil
}

// LoadFile reads and parses the forms file at path
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading forms file: %w", err)
	}
	return Parse(data)
}
