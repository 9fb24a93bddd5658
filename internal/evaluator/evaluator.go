package evaluator

import (
	"encoding/json"
	"fmt"

	"github.com/oliveagle/jsonpath"
)

// Selector extracts the part of a JSON document that is compared between scans
type Selector struct {
	expression string
	pattern    *jsonpath.Compiled
}

// NewSelector compiles a JSONPath expression such as $.data.items[0].price
func NewSelector(expression string) (*Selector, error) {
	pattern, err := jsonpath.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONPath expression '%s': %w", expression, err)
	}
	return &Selector{expression: expression, pattern: pattern}, nil
}

// Extract parses body as JSON and returns the selected value in a stable form.
// Strings are returned as-is; everything else is re-encoded as JSON.
func (s *Selector) Extract(body []byte) ([]byte, error) {
	var jsonData interface{}
	if err := json.Unmarshal(body, &jsonData); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	result, err := s.pattern.Lookup(jsonData)
	if err != nil {
		return nil, fmt.Errorf("JSONPath expression '%s' returned no results: %w", s.expression, err)
	}

	if str, ok := result.(string); ok {
		return []byte(str), nil
	}
	if result == nil {
		return []byte(CoerceToString(result)), nil
	}

	// encoding/json sorts map keys, so equal values encode identically
	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode selected value: %w", err)
	}
	return encoded, nil
}

// Extract is a convenience wrapper for a one-off selection
func Extract(body []byte, expression string) ([]byte, error) {
	s, err := NewSelector(expression)
	if err != nil {
		return nil, err
	}
	return s.Extract(body)
}
