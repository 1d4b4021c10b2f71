// Package validate statically checks a feedback template against the
// variables a result provides, without rendering it.
package validate

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"studyfeedback/domain/result"
	"studyfeedback/internal/feedback/expr"
	"studyfeedback/internal/feedback/predicate"
	"studyfeedback/internal/feedback/syntax"
	"studyfeedback/internal/feedback/variables"
)

// Kind classifies a diagnostic
type Kind string

const (
	KindVariable    Kind = "variable"
	KindStat        Kind = "stat"
	KindConditional Kind = "conditional"
	KindFilter      Kind = "filter"
	KindSyntax      Kind = "syntax"
)

// Severity of a diagnostic; only errors make a template invalid
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Diagnostic is one finding. Start and End are a half-open character range
// into the template.
type Diagnostic struct {
	Kind     Kind     `json:"kind"`
	Message  string   `json:"message"`
	Start    int      `json:"start"`
	End      int      `json:"end"`
	Severity Severity `json:"severity"`
}

// Report is the validator output
type Report struct {
	Errors  []Diagnostic `json:"errors"`
	IsValid bool         `json:"isValid"`
}

// reservedWords may appear in a where clause without being variables
var reservedWords = map[string]struct{}{
	"and": {}, "or": {}, "not": {}, "true": {}, "false": {},
}

// Validate checks template against the variables extracted from r
func Validate(template string, r *result.EnrichedResult) Report {
	return ValidateWith(template, variables.Extract(r))
}

// ValidateWith checks template against an extracted variable set
func ValidateWith(template string, vars variables.Set) Report {
	v := &validator{template: template, vars: vars}
	v.checkVariables()
	v.checkStatistics()
	v.checkConditionals()
	v.checkStructure()
	v.checkMalformed()
	return v.report()
}

type validator struct {
	template string
	vars     variables.Set
	diags    []Diagnostic
}

func (v *validator) add(kind Kind, severity Severity, span syntax.Span, format string, args ...interface{}) {
	v.diags = append(v.diags, Diagnostic{
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Start:    span.Start,
		End:      span.End,
		Severity: severity,
	})
}

func (v *validator) checkVariables() {
	for _, ref := range syntax.FindVarRefs(v.template) {
		if !v.vars.Has(ref.Name) {
			v.add(KindVariable, SeverityError, ref.Span, "unknown variable %q", ref.Name)
		}
		if ref.Modifier != "" && !syntax.IsModifier(ref.Modifier) {
			v.add(KindVariable, SeverityError, ref.Span, "invalid modifier %q: expected one of %s", ref.Modifier, strings.Join(syntax.Modifiers, ", "))
		}
		if ref.WhereStart >= 0 {
			v.checkWhere(ref.Where, ref.WhereStart, ref.Span)
		}
	}
}

func (v *validator) checkStatistics() {
	for _, ref := range syntax.FindStatRefs(v.template) {
		if !v.vars.Has(ref.Name) {
			v.add(KindStat, SeverityError, ref.Span, "unknown variable %q", ref.Name)
		}
		if !syntax.IsMetric(ref.Metric) {
			v.add(KindStat, SeverityError, ref.Span, "invalid metric %q: expected one of %s", ref.Metric, strings.Join(syntax.Metrics, ", "))
		}
		if ref.Scope != "" && !syntax.IsScope(ref.Scope) {
			v.add(KindStat, SeverityError, ref.Span, "invalid scope %q: expected one of %s", ref.Scope, strings.Join(syntax.Scopes, ", "))
		}
		if ref.WhereStart >= 0 {
			v.checkWhere(ref.Where, ref.WhereStart, ref.Span)
		}
	}
}

func (v *validator) checkConditionals() {
	for _, tag := range syntax.FindIfTags(v.template) {
		atoms := syntax.FindAtoms(tag.Condition)
		for _, atom := range atoms {
			if !v.vars.Has(atom.Name) {
				v.add(KindConditional, SeverityError, tag.Span, "unknown variable %q in condition", atom.Name)
			}
			if atom.Modifier != "" && !syntax.IsModifier(atom.Modifier) {
				v.add(KindConditional, SeverityError, tag.Span, "invalid modifier %q in condition", atom.Modifier)
			}
		}
		condition := strings.TrimSpace(tag.Condition)
		if condition == "" {
			v.add(KindConditional, SeverityError, tag.Span, "empty condition")
			continue
		}
		if _, err := expr.Parse(condition); err != nil {
			v.add(KindConditional, SeverityWarning, tag.Span, "condition will always be false: %v", err)
		}
	}
}

func (v *validator) checkWhere(where string, offset int, placeholder syntax.Span) {
	if strings.TrimSpace(where) == "" {
		v.add(KindFilter, SeverityError, placeholder, "empty where clause: expected at least one condition")
		return
	}
	for i, c := range predicate.Parse(where) {
		span := syntax.Span{Start: offset + c.Start, End: offset + c.End}
		switch {
		case i >= predicate.MaxConditions:
			v.add(KindFilter, SeverityWarning, span, "condition ignored: at most %d conditions are applied", predicate.MaxConditions)
			continue
		case c.HasOr:
			v.add(KindFilter, SeverityWarning, span, "'or' is not supported in where clauses; condition ignored")
			continue
		case !c.Valid:
			v.add(KindFilter, SeverityError, span, "malformed condition %q", c.Text)
			continue
		}

		head := c.Field
		if dot := strings.IndexByte(head, '.'); dot >= 0 {
			head = head[:dot]
		}
		if _, reserved := reservedWords[strings.ToLower(c.Field)]; reserved {
			continue
		}
		if v.vars.Has(c.Field) || v.vars.Has(head) || variables.IsExcluded(head) {
			continue
		}
		v.add(KindFilter, SeverityError, syntax.Span{Start: offset + c.FieldStart, End: offset + c.FieldEnd},
			"unknown field %q in where clause", c.Field)
	}
}

func (v *validator) checkStructure() {
	whole := syntax.Span{Start: 0, End: len(v.template)}

	open, close := syntax.CountBraces(v.template)
	if open != close {
		v.add(KindSyntax, SeverityError, whole, "unbalanced tags: %d '{{' but %d '}}'", open, close)
	}

	ifs, endifs := syntax.CountIfOpen(v.template), syntax.CountIfClose(v.template)
	if ifs != endifs {
		v.add(KindSyntax, SeverityError, whole, "unbalanced conditionals: %d '{{#if' but %d '{{/if}}'", ifs, endifs)
	}
}

// checkMalformed flags var/stat spans the placeholder grammar does not accept
func (v *validator) checkMalformed() {
	wellFormed := make(map[int]struct{})
	for _, ref := range syntax.FindVarRefs(v.template) {
		wellFormed[ref.Start] = struct{}{}
	}
	for _, ref := range syntax.FindStatRefs(v.template) {
		wellFormed[ref.Start] = struct{}{}
	}

	for _, span := range syntax.FindLoosePlaceholders(v.template) {
		if _, ok := wellFormed[span.Start]; ok {
			continue
		}
		v.add(KindSyntax, SeverityError, span, "malformed placeholder %q", v.template[span.Start:span.End])
	}
}

func (v *validator) report() Report {
	diags := make([]Diagnostic, 0, len(v.diags))
	valid := true
	for _, d := range v.diags {
		d.Start = charOffset(v.template, d.Start)
		d.End = charOffset(v.template, d.End)
		if d.Severity == SeverityError {
			valid = false
		}
		diags = append(diags, d)
	}
	sort.SliceStable(diags, func(i, j int) bool { return diags[i].Start < diags[j].Start })
	return Report{Errors: diags, IsValid: valid}
}

// charOffset converts a byte offset into a character offset
func charOffset(s string, byteOffset int) int {
	if byteOffset > len(s) {
		byteOffset = len(s)
	}
	return utf8.RuneCountInString(s[:byteOffset])
}
