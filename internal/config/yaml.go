package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// seedScalarKeys are tenant seed fields that are strings in the schema but
// that YAML happily reads as numbers: `id: -1001`, `cadence: 600`.
var seedScalarKeys = []string{"id", "cadence", "channel", "start_date", "timezone"}

// toJSON turns a YAML file into JSON so both formats go through the same
// strict decoder. Anything not named .yaml/.yml is returned as is.
func toJSON(name string, data []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
	default:
		return data, nil
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	v = stringKeys(v)
	if root, ok := v.(map[string]any); ok {
		quoteSeedScalars(root)
	}
	j, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("yaml to json: %w", err)
	}
	return j, nil
}

func stringKeys(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = stringKeys(v)
		}
		return m
	case map[string]any:
		for k, v := range x {
			x[k] = stringKeys(v)
		}
		return x
	case []any:
		for i := range x {
			x[i] = stringKeys(x[i])
		}
		return x
	default:
		return in
	}
}

func quoteSeedScalars(root map[string]any) {
	list, _ := root["tenants"].([]any)
	for _, item := range list {
		seed, ok := item.(map[string]any)
		if !ok {
			continue
		}
		for _, k := range seedScalarKeys {
			switch v := seed[k].(type) {
			case int, int64, uint64, float64:
				seed[k] = fmt.Sprint(v)
			}
		}
	}
}
