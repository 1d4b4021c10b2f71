package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"studyfeedback/domain/result"
)

// loadResults reads one result or a list of results from a JSON or YAML file
func loadResults(path string) ([]*result.EnrichedResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if isYAML(path) {
		return decodeYAMLResults(data)
	}
	return decodeJSONResults(data)
}

// loadResult reads exactly one result
func loadResult(path string) (*result.EnrichedResult, error) {
	results, err := loadResults(path)
	if err != nil {
		return nil, err
	}
	if len(results) != 1 {
		return nil, fmt.Errorf("%s: expected one result, found %d", path, len(results))
	}
	return results[0], nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func decodeJSONResults(data []byte) ([]*result.EnrichedResult, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []*result.EnrichedResult
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var one result.EnrichedResult
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, err
	}
	return []*result.EnrichedResult{&one}, nil
}

func decodeYAMLResults(data []byte) ([]*result.EnrichedResult, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
		var list []*result.EnrichedResult
		if err := node.Decode(&list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var one result.EnrichedResult
	if err := node.Decode(&one); err != nil {
		return nil, err
	}
	return []*result.EnrichedResult{&one}, nil
}

// encodeResults writes results as indented JSON or as YAML
func encodeResults(results []*result.EnrichedResult, format string) ([]byte, error) {
	switch format {
	case "yaml":
		return yaml.Marshal(results)
	case "json", "":
		return json.MarshalIndent(results, "", "  ")
	default:
		return nil, fmt.Errorf("unknown format %q (json or yaml)", format)
	}
}
