// Package variables flattens an enriched result's component data into named
// value series.
package variables

import (
	"encoding/json"
	"sort"
	"unicode/utf8"

	"studyfeedback/domain/result"
	"studyfeedback/internal/feedback/coerce"
)

// Type is the inferred type of a series
type Type string

const (
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeString  Type = "string"
)

// MaxDisplayRunes bounds the stringified form of array and object values
const MaxDisplayRunes = 100

// excludedFields are experiment-framework bookkeeping fields that never become variables
var excludedFields = map[string]struct{}{
	"trial_type":       {},
	"trial_index":      {},
	"time_elapsed":     {},
	"internal_node_id": {},
	"plugin_version":   {},
	"success":          {},
	"timeout":          {},
	"failed_images":    {},
	"failed_audio":     {},
	"failed_video":     {},
}

// IsExcluded reports whether name is a framework-internal field
func IsExcluded(name string) bool {
	_, ok := excludedFields[name]
	return ok
}

// ExcludedFields returns the exclusion set in sorted order
func ExcludedFields() []string {
	out := make([]string, 0, len(excludedFields))
	for name := range excludedFields {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Series is the ordered sequence of raw values observed for one variable
type Series struct {
	Name   string        `json:"name"`
	Type   Type          `json:"type"`
	Values []interface{} `json:"values"`
}

// Len returns the number of observed values
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Values)
}

// First returns the first observed value
func (s *Series) First() (interface{}, bool) {
	if s.Len() == 0 {
		return nil, false
	}
	return s.Values[0], true
}

// Last returns the most recent observed value
func (s *Series) Last() (interface{}, bool) {
	if s.Len() == 0 {
		return nil, false
	}
	return s.Values[len(s.Values)-1], true
}

// Set maps variable names to their series
type Set map[string]*Series

// Get looks up a series by name
func (s Set) Get(name string) (*Series, bool) {
	series, ok := s[name]
	return series, ok
}

// Has reports whether name was observed
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the variable names in sorted order
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Extract builds the variable set for one result. Nil results and empty
// components contribute nothing.
func Extract(r *result.EnrichedResult) Set {
	set := make(Set)
	fold(r, nil, func(name string, value interface{}, single bool) {
		series, ok := set[name]
		if single || !ok {
			// A response object replaces whatever earlier components recorded.
			set[name] = &Series{Name: name, Type: InferType(value), Values: []interface{}{value}}
			return
		}
		series.Values = append(series.Values, value)
	})
	return set
}

// Collect re-extracts one variable, visiting only the records accepted by keep.
// Filtering happens per record so several fields of the same trial are judged together.
func Collect(r *result.EnrichedResult, name string, keep func(result.Record) bool) []interface{} {
	if IsExcluded(name) {
		return nil
	}
	var values []interface{}
	fold(r, keep, func(field string, value interface{}, single bool) {
		if field != name {
			return
		}
		if single {
			values = []interface{}{value}
			return
		}
		values = append(values, value)
	})
	return values
}

// fold walks every record of every component. Single response objects are a
// sequence of one; visit learns which shape the record came from.
func fold(r *result.EnrichedResult, keep func(result.Record) bool, visit func(name string, value interface{}, single bool)) {
	if r == nil {
		return
	}
	for _, component := range r.ComponentResults {
		single := component.ParsedData.Shape() == result.ShapeSingle
		for _, record := range component.ParsedData.Records() {
			if record == nil {
				continue
			}
			if keep != nil && !keep(record) {
				continue
			}
			for _, name := range sortedKeys(record) {
				if IsExcluded(name) {
					continue
				}
				visit(name, record[name], single)
			}
		}
	}
}

func sortedKeys(record result.Record) []string {
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// InferType classifies a raw value. Arrays, objects and null fall back to string.
func InferType(v interface{}) Type {
	if _, ok := v.(bool); ok {
		return TypeBoolean
	}
	if coerce.IsNumeric(v) {
		if _, ok := coerce.ToNumber(v); ok {
			return TypeNumber
		}
	}
	return TypeString
}

// Display stringifies a raw value for output. Arrays and objects are JSON
// encoded and truncated.
func Display(v interface{}) string {
	switch v.(type) {
	case []interface{}, map[string]interface{}, result.Record:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return truncate(string(data), MaxDisplayRunes)
	}
	return coerce.String(v)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "…"
}
