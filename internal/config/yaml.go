package config

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// parseYAML decodes a YAML config. Parameter mappings are walked as nodes
// so declaration order survives.
func parseYAML(data []byte) (*rawConfig, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	raw := &rawConfig{General: map[string]any{}}
	if doc.Kind == 0 {
		// empty file
		return raw, nil
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, errors.New("top level must be a mapping")
	}

	top := doc.Content[0]
	for i := 0; i+1 < len(top.Content); i += 2 {
		key, val := top.Content[i], top.Content[i+1]
		var err error
		switch key.Value {
		case "general":
			err = val.Decode(&raw.General)
		case "hydrogeological_parameters":
			raw.Hydrogeological, err = parseYAMLParameters(val)
		case "heatpump_parameters":
			raw.HeatPumps, err = parseYAMLParameters(val)
		default:
			err = fmt.Errorf("unknown section %q (line %d)", key.Value, key.Line)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key.Value, err)
		}
	}
	return raw, nil
}

func parseYAMLParameters(node *yaml.Node) ([]rawParameter, error) {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("line %d: parameters must be a mapping of name to parameter", node.Line)
	}

	params := make([]rawParameter, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		var rp rawParameter
		if err := val.Decode(&rp); err != nil {
			return nil, fmt.Errorf("parameter %q (line %d): %w", key.Value, key.Line, err)
		}
		rp.Name = key.Value
		params = append(params, rp)
	}
	return params, nil
}
