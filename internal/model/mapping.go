package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ProjectRule routes subjects containing Keyword to ProjectID.
type ProjectRule struct {
	Keyword   string `mapstructure:"keyword" yaml:"keyword"`
	ProjectID string `mapstructure:"project_id" yaml:"project_id"`
}

// ProjectMapping is an ordered keyword table. The first matching rule wins,
// so the order is the order the rules were declared in.
type ProjectMapping []ProjectRule

// ParseProjectMapping decodes a JSON object such as {"INVOICE": 7} into a
// ProjectMapping, keeping the keys in document order. Project ids may be
// numbers or strings; numbers keep their literal text.
func ParseProjectMapping(raw string) (ProjectMapping, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("reading project mapping: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("project mapping must be a JSON object")
	}

	var mapping ProjectMapping
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("reading project mapping key: %w", err)
		}
		keyword, _ := keyTok.(string)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf(
				"reading project id for %q: %w", keyword, err,
			)
		}

		projectID, err := projectIDFromJSON(value)
		if err != nil {
			return nil, fmt.Errorf(
				"project id for %q: %w", keyword, err,
			)
		}

		mapping = append(mapping, ProjectRule{
			Keyword:   keyword,
			ProjectID: projectID,
		})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("reading project mapping: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after project mapping")
	}

	return mapping, nil
}

// projectIDFromJSON accepts a JSON number or string.
func projectIDFromJSON(value json.RawMessage) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return "", err
	}

	switch id := v.(type) {
	case json.Number:
		return id.String(), nil
	case string:
		if strings.TrimSpace(id) == "" {
			return "", fmt.Errorf("empty project id")
		}
		return strings.TrimSpace(id), nil
	default:
		return "", fmt.Errorf("expected number or string, got %s", value)
	}
}
