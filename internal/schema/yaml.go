package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseSpecYAML decodes a YAML mapping of column specifications. Document
// order is kept, which a plain map decode would lose.
//
// Example:
//
//	id: [INTEGER, REQUIRED]
//	name: STRING
//	tags: [STRING, REPEATED]
func ParseSpecYAML(data []byte) (Spec, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse schema YAML: %w", err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return Spec{}, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("schema YAML must be a mapping of column name to type, got line %d", root.Line)
	}

	spec := make(Spec, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]

		var raw any
		if err := value.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode column %q at line %d: %w", key.Value, value.Line, err)
		}
		spec = append(spec, Entry{Name: key.Value, Value: raw})
	}

	return spec, nil
}

// LoadSpecFile reads and parses a YAML column specification file
func LoadSpecFile(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return ParseSpecYAML(data)
}
