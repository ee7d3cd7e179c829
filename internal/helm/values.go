package helm

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Values represents helm chart values as a map.
type Values map[string]any

// Merge combines multiple Values maps with later maps taking precedence.
func Merge(valueMaps ...Values) Values {
	result := make(Values)
	for _, m := range valueMaps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// ToYAML converts values to YAML bytes.
func (v Values) ToYAML() ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)

	if err := encoder.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode values to YAML: %w", err)
	}

	return buf.Bytes(), nil
}

// FromYAML parses YAML bytes into Values.
func FromYAML(data []byte) (Values, error) {
	var values Values
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse YAML values: %w", err)
	}
	return values, nil
}

// DeepMerge combines values maps recursively: scalar conflicts resolve to
// the later map, nested maps are merged key by key instead of replaced.
func DeepMerge(valueMaps ...Values) Values {
	result := make(Values)
	for _, m := range valueMaps {
		for k, v := range m {
			existing, ok := result[k]
			if !ok {
				result[k] = v
				continue
			}
			existingMap := toValuesMap(existing)
			incomingMap := toValuesMap(v)
			if existingMap != nil && incomingMap != nil {
				result[k] = DeepMerge(existingMap, incomingMap)
				continue
			}
			result[k] = v
		}
	}
	return result
}

// toValuesMap converts a generic YAML map into Values, nil when v is not
// a map.
func toValuesMap(v any) Values {
	switch m := v.(type) {
	case Values:
		return m
	case map[string]any:
		return m
	default:
		return nil
	}
}
