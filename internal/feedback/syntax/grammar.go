// Package syntax holds the placeholder grammar shared by the renderer and the
// validator, so both read templates the same way.
package syntax

import (
	"regexp"
	"strings"
)

// Keyword sets
var (
	Modifiers = []string{"first", "last", "all"}
	Metrics   = []string{"avg", "median", "sd", "count"}
	Scopes    = []string{"within", "across"}
)

// Modifier, metric and scope names
const (
	ModifierFirst = "first"
	ModifierLast  = "last"
	ModifierAll   = "all"

	MetricAvg    = "avg"
	MetricMedian = "median"
	MetricSD     = "sd"
	MetricCount  = "count"

	ScopeWithin = "within"
	ScopeAcross = "across"
)

var (
	conditionalBlock = regexp.MustCompile(`(?s)\{\{\s*#if\s+(.+?)\s*\}\}(.*?)(?:\{\{\s*else\s*\}\}(.*?))?\{\{\s*/if\s*\}\}`)
	ifOpenTag        = regexp.MustCompile(`\{\{\s*#if\b([^}]*)\}\}`)
	ifOpenMarker     = regexp.MustCompile(`\{\{\s*#if\b`)
	ifCloseTag       = regexp.MustCompile(`\{\{\s*/if\s*\}\}`)

	varPlaceholder   = regexp.MustCompile(`\{\{\s*var:\s*([A-Za-z0-9_.]+)(?:\s*:\s*([A-Za-z]+))?\s*(?:\|\s*where:\s*(.*?))?\s*\}\}`)
	statPlaceholder  = regexp.MustCompile(`\{\{\s*stat:\s*([A-Za-z0-9_.]+)\.([A-Za-z]+)(?:\s*:\s*([A-Za-z]+))?\s*(?:\|\s*where:\s*(.*?))?\s*\}\}`)
	loosePlaceholder = regexp.MustCompile(`\{\{\s*(?:var|stat):[^}]*\}\}`)

	varAtom = regexp.MustCompile(`var:([A-Za-z0-9_.]+)(?::([A-Za-z]+))?`)
)

// Span is a half-open byte range into the template
type Span struct {
	Start int
	End   int
}

// VarRef is one `{{ var:name[:modifier] [| where: clause] }}` placeholder
type VarRef struct {
	Span
	Name     string
	Modifier string
	// Where is the raw filter clause; WhereStart is -1 when there is none.
	Where      string
	WhereStart int
}

// StatRef is one `{{ stat:name.metric[:scope] [| where: clause] }}` placeholder
type StatRef struct {
	Span
	Name       string
	Metric     string
	Scope      string
	Where      string
	WhereStart int
}

// Block is one `{{#if cond}}then{{else}}else{{/if}}` conditional
type Block struct {
	Span
	Condition string
	Then      string
	Else      string
	HasElse   bool
}

// IfTag is one opening `{{#if ...}}` tag
type IfTag struct {
	Span
	Condition      string
	ConditionStart int
}

// Atom is one `var:name[:modifier]` reference inside a condition
type Atom struct {
	Span
	Name     string
	Modifier string
}

// FindBlocks returns the conditional blocks in order. Blocks do not nest.
func FindBlocks(text string) []Block {
	var blocks []Block
	for _, m := range conditionalBlock.FindAllStringSubmatchIndex(text, -1) {
		b := Block{
			Span:      Span{Start: m[0], End: m[1]},
			Condition: text[m[2]:m[3]],
			Then:      text[m[4]:m[5]],
		}
		if m[6] >= 0 {
			b.Else = text[m[6]:m[7]]
			b.HasElse = true
		}
		blocks = append(blocks, b)
	}
	return blocks
}

// FindIfTags returns every opening tag, matched or not
func FindIfTags(text string) []IfTag {
	var tags []IfTag
	for _, m := range ifOpenTag.FindAllStringSubmatchIndex(text, -1) {
		tags = append(tags, IfTag{
			Span:           Span{Start: m[0], End: m[1]},
			Condition:      text[m[2]:m[3]],
			ConditionStart: m[2],
		})
	}
	return tags
}

// CountIfOpen counts `{{#if` markers
func CountIfOpen(text string) int {
	return len(ifOpenMarker.FindAllStringIndex(text, -1))
}

// CountIfClose counts closing `{{/if}}` tags
func CountIfClose(text string) int {
	return len(ifCloseTag.FindAllStringIndex(text, -1))
}

// CountBraces returns the number of `{{` and `}}` pairs
func CountBraces(text string) (open, close int) {
	return strings.Count(text, "{{"), strings.Count(text, "}}")
}

// FindVarRefs returns every well-formed var placeholder
func FindVarRefs(text string) []VarRef {
	var refs []VarRef
	for _, m := range varPlaceholder.FindAllStringSubmatchIndex(text, -1) {
		ref := VarRef{
			Span:       Span{Start: m[0], End: m[1]},
			Name:       text[m[2]:m[3]],
			WhereStart: -1,
		}
		if m[4] >= 0 {
			ref.Modifier = text[m[4]:m[5]]
		}
		if m[6] >= 0 {
			ref.Where = text[m[6]:m[7]]
			ref.WhereStart = m[6]
		}
		refs = append(refs, ref)
	}
	return refs
}

// FindStatRefs returns every well-formed stat placeholder
func FindStatRefs(text string) []StatRef {
	var refs []StatRef
	for _, m := range statPlaceholder.FindAllStringSubmatchIndex(text, -1) {
		ref := StatRef{
			Span:       Span{Start: m[0], End: m[1]},
			Name:       text[m[2]:m[3]],
			Metric:     text[m[4]:m[5]],
			WhereStart: -1,
		}
		if m[6] >= 0 {
			ref.Scope = text[m[6]:m[7]]
		}
		if m[8] >= 0 {
			ref.Where = text[m[8]:m[9]]
			ref.WhereStart = m[8]
		}
		refs = append(refs, ref)
	}
	return refs
}

// FindLoosePlaceholders returns every `{{ var:... }}` or `{{ stat:... }}` span,
// whether or not its body is well formed
func FindLoosePlaceholders(text string) []Span {
	var spans []Span
	for _, m := range loosePlaceholder.FindAllStringIndex(text, -1) {
		spans = append(spans, Span{Start: m[0], End: m[1]})
	}
	return spans
}

// FindAtoms returns the var references inside a condition expression
func FindAtoms(expr string) []Atom {
	var atoms []Atom
	for _, m := range varAtom.FindAllStringSubmatchIndex(expr, -1) {
		a := Atom{Span: Span{Start: m[0], End: m[1]}, Name: expr[m[2]:m[3]]}
		if m[4] >= 0 {
			a.Modifier = expr[m[4]:m[5]]
		}
		atoms = append(atoms, a)
	}
	return atoms
}

// IsModifier reports whether s is a known modifier
func IsModifier(s string) bool { return contains(Modifiers, s) }

// IsMetric reports whether s is a known metric
func IsMetric(s string) bool { return contains(Metrics, s) }

// IsScope reports whether s is a known scope
func IsScope(s string) bool { return contains(Scopes, s) }

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
