package result

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"studyfeedback/domain/core"
)

// Record is one flat key/value row: a trial record or a single response object
type Record map[string]interface{}

// DataShape tags which variant a ParsedData holds
type DataShape int

const (
	// ShapeEmpty means the component produced no parsed data
	ShapeEmpty DataShape = iota
	// ShapeSequence holds repeated-structure trial records
	ShapeSequence
	// ShapeSingle holds one survey-style response object
	ShapeSingle
)

func (s DataShape) String() string {
	switch s {
	case ShapeSequence:
		return "sequence"
	case ShapeSingle:
		return "single"
	default:
		return "empty"
	}
}

// ParsedData is the tagged variant of a component's data: either a sequence of
// trial records or one flat response object.
type ParsedData struct {
	shape   DataShape
	records []Record
}

// Sequence wraps repeated trial records
func Sequence(records ...Record) ParsedData {
	return ParsedData{shape: ShapeSequence, records: records}
}

// Single wraps one response object
func Single(record Record) ParsedData {
	if record == nil {
		return ParsedData{}
	}
	return ParsedData{shape: ShapeSingle, records: []Record{record}}
}

// Shape returns the variant tag
func (p ParsedData) Shape() DataShape {
	return p.shape
}

// Records returns the records to scan. A single response object is a
// sequence of one.
func (p ParsedData) Records() []Record {
	return p.records
}

// MarshalJSON writes the sequence as an array and the single object as an object
func (p ParsedData) MarshalJSON() ([]byte, error) {
	switch p.shape {
	case ShapeSequence:
		if p.records == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(p.records)
	case ShapeSingle:
		return json.Marshal(p.records[0])
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON dispatches on the JSON token kind: array, object or null
func (p *ParsedData) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*p = ParsedData{}
		return nil
	}

	switch trimmed[0] {
	case '[':
		var records []Record
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return fmt.Errorf("parsedData sequence: %w", err)
		}
		*p = Sequence(records...)
	case '{':
		var record Record
		if err := json.Unmarshal(trimmed, &record); err != nil {
			return fmt.Errorf("parsedData object: %w", err)
		}
		*p = Single(record)
	default:
		return core.NewInvalidResultError("parsedData must be an array of records or an object")
	}
	return nil
}

// MarshalYAML mirrors the JSON encoding for YAML fixtures
func (p ParsedData) MarshalYAML() (interface{}, error) {
	switch p.shape {
	case ShapeSequence:
		return p.records, nil
	case ShapeSingle:
		return p.records[0], nil
	default:
		return nil, nil
	}
}

// UnmarshalYAML accepts a list of mappings or a single mapping
func (p *ParsedData) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	// Round-trip through JSON so YAML and JSON inputs share one set of value types.
	data, err := json.Marshal(normalizeYAML(raw))
	if err != nil {
		return fmt.Errorf("parsedData: %w", err)
	}
	return p.UnmarshalJSON(data)
}

func normalizeYAML(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}

// ComponentResult is the data captured by one screen/module of an experiment run
type ComponentResult struct {
	ComponentID string     `json:"componentId,omitempty" yaml:"componentId,omitempty"`
	Name        string     `json:"name,omitempty" yaml:"name,omitempty"`
	ParsedData  ParsedData `json:"parsedData" yaml:"parsedData"`
}

// EnrichedResult is one participant's complete experiment outcome
type EnrichedResult struct {
	ID               core.ResultID      `json:"id,omitempty" yaml:"id,omitempty"`
	StudyID          core.StudyID       `json:"studyId,omitempty" yaml:"studyId,omitempty"`
	ParticipantID    core.ParticipantID `json:"participantId,omitempty" yaml:"participantId,omitempty"`
	CompletedAt      *time.Time         `json:"completedAt,omitempty" yaml:"completedAt,omitempty"`
	ComponentResults []ComponentResult  `json:"componentResults" yaml:"componentResults"`
}

// NewEnrichedResult builds a result with a fresh id
func NewEnrichedResult(studyID core.StudyID, participantID core.ParticipantID, components ...ComponentResult) *EnrichedResult {
	return &EnrichedResult{
		ID:               core.ResultID(core.NewID()),
		StudyID:          studyID,
		ParticipantID:    participantID,
		ComponentResults: components,
	}
}

// Validate checks the structural shape the engine relies on
func (r *EnrichedResult) Validate() error {
	if r == nil {
		return core.NewInvalidResultError("result is nil")
	}
	for i, c := range r.ComponentResults {
		for j, rec := range c.ParsedData.Records() {
			if rec == nil {
				return core.NewInvalidResultError(fmt.Sprintf("component %d record %d is null", i, j))
			}
		}
	}
	return nil
}
