// Package predicate compiles `where:` filter clauses into record tests.
//
// A clause is a conjunction of at most MaxConditions simple comparisons joined
// by the word "and". Disjunction is not supported: a condition containing a
// bare "or" is treated as malformed and ignored.
package predicate

import (
	"regexp"
	"strings"

	"studyfeedback/domain/result"
	"studyfeedback/internal/feedback/coerce"
)

// MaxConditions caps how many conditions of a clause are honored
const MaxConditions = 3

// OpIn is the membership operator
const OpIn = "in"

// Predicate is a compiled test over one trial record or response object
type Predicate func(result.Record) bool

var (
	andSeparator = regexp.MustCompile(`(?i)\s+and\s+`)
	inForm       = regexp.MustCompile(`(?i)^([A-Za-z0-9_.]+)\s+in\s*\[(.*)\]$`)
	compareForm  = regexp.MustCompile(`^([A-Za-z0-9_.]+)\s*(==|!=|>=|<=|>|<)\s*(.+)$`)
	orKeyword    = regexp.MustCompile(`(?i)(^|\s)or(\s|$)`)
)

// Condition is one parsed sub-clause. Offsets are byte positions within the clause.
type Condition struct {
	Text   string
	Start  int
	End    int
	Field  string
	Op     string
	Value  interface{}
	Values []interface{}
	// FieldStart and FieldEnd locate Field; both are zero when the condition is malformed.
	FieldStart int
	FieldEnd   int
	// Valid is false when the text matches neither supported form.
	Valid bool
	// HasOr marks a condition that tried to use disjunction.
	HasOr bool
}

// Parse splits a clause into its conditions without applying the MaxConditions cap
func Parse(clause string) []Condition {
	if strings.TrimSpace(clause) == "" {
		return nil
	}

	var conditions []Condition
	start := 0
	for _, sep := range andSeparator.FindAllStringIndex(clause, -1) {
		conditions = appendCondition(conditions, clause, start, sep[0])
		start = sep[1]
	}
	conditions = appendCondition(conditions, clause, start, len(clause))
	return conditions
}

func appendCondition(conditions []Condition, clause string, start, end int) []Condition {
	segment := clause[start:end]
	trimmedLeft := strings.TrimLeft(segment, " \t\r\n")
	start += len(segment) - len(trimmedLeft)
	text := strings.TrimRight(trimmedLeft, " \t\r\n")
	if text == "" {
		return conditions
	}
	return append(conditions, parseCondition(text, start))
}

func parseCondition(text string, offset int) Condition {
	c := Condition{Text: text, Start: offset, End: offset + len(text)}
	if orKeyword.MatchString(text) {
		c.HasOr = true
		return c
	}

	if m := inForm.FindStringSubmatchIndex(text); m != nil {
		c.Field = text[m[2]:m[3]]
		c.FieldStart, c.FieldEnd = offset+m[2], offset+m[3]
		c.Op = OpIn
		c.Values = parseList(text[m[4]:m[5]])
		c.Valid = true
		return c
	}

	if m := compareForm.FindStringSubmatchIndex(text); m != nil {
		c.Field = text[m[2]:m[3]]
		c.FieldStart, c.FieldEnd = offset+m[2], offset+m[3]
		c.Op = text[m[4]:m[5]]
		c.Value = coerce.ParseLiteral(text[m[6]:m[7]])
		c.Valid = true
	}
	return c
}

func parseList(body string) []interface{} {
	var values []interface{}
	for _, item := range strings.Split(body, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		values = append(values, coerce.ParseLiteral(item))
	}
	return values
}

// Compile turns a clause into a Predicate. An empty clause yields nil, which
// callers treat as "keep every record". Malformed conditions are ignored and
// conditions past MaxConditions are dropped.
func Compile(clause string) Predicate {
	parsed := Parse(clause)
	if parsed == nil {
		return nil
	}
	if len(parsed) > MaxConditions {
		parsed = parsed[:MaxConditions]
	}

	conditions := make([]Condition, 0, len(parsed))
	for _, c := range parsed {
		if c.Valid {
			conditions = append(conditions, c)
		}
	}

	return func(record result.Record) (matched bool) {
		defer func() {
			if recover() != nil {
				matched = false
			}
		}()
		for _, c := range conditions {
			if !c.Matches(record) {
				return false
			}
		}
		return true
	}
}

// Matches evaluates one condition. A field that cannot be resolved never matches.
func (c Condition) Matches(record result.Record) bool {
	if !c.Valid {
		return false
	}
	value, ok := Lookup(record, c.Field)
	if !ok {
		return false
	}
	if c.Op == OpIn {
		for _, candidate := range c.Values {
			if coerce.Equal(value, candidate) {
				return true
			}
		}
		return false
	}
	return coerce.Compare(value, c.Op, c.Value)
}

// Lookup resolves a possibly dotted field path. An exact key wins over a nested path.
func Lookup(record result.Record, path string) (interface{}, bool) {
	if record == nil {
		return nil, false
	}
	if v, ok := record[path]; ok {
		return v, true
	}
	if !strings.Contains(path, ".") {
		return nil, false
	}

	var current interface{} = map[string]interface{}(record)
	for _, part := range strings.Split(path, ".") {
		var next interface{}
		var ok bool
		switch m := current.(type) {
		case map[string]interface{}:
			next, ok = m[part]
		case result.Record:
			next, ok = m[part]
		default:
			return nil, false
		}
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}
