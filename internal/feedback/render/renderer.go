// Package render substitutes conditional blocks, variable placeholders and
// statistic placeholders in a feedback template.
package render

import (
	"sort"
	"strings"

	"studyfeedback/domain/result"
	"studyfeedback/internal"
	"studyfeedback/internal/feedback/expr"
	"studyfeedback/internal/feedback/predicate"
	"studyfeedback/internal/feedback/stats"
	"studyfeedback/internal/feedback/syntax"
	"studyfeedback/internal/feedback/variables"
)

// ValueSeparator joins the values of an all-values placeholder
const ValueSeparator = ", "

// Context carries the data a template is rendered against
type Context struct {
	// Result is the participant the feedback is for.
	Result *result.EnrichedResult
	// All is every result of the study; only across-scope statistics read it.
	All []*result.EnrichedResult
}

// Renderer turns templates into markdown. It holds no per-call state and is
// safe for concurrent use.
type Renderer struct {
	logger *internal.Logger
}

// New creates a renderer that reports degraded placeholders to logger
func New(logger *internal.Logger) *Renderer {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &Renderer{logger: logger}
}

var defaultRenderer = New(nil)

// Render renders with a renderer that does not log
func Render(template string, ctx Context) string {
	return defaultRenderer.Render(template, ctx)
}

// Render resolves every recognized placeholder. It never fails: a placeholder
// that cannot be resolved becomes the empty string.
func (r *Renderer) Render(template string, ctx Context) string {
	if !strings.Contains(template, "{{") {
		return template
	}
	vars := variables.Extract(ctx.Result)

	// Conditionals first, so placeholders inside the chosen branch are resolved below.
	text := r.renderConditionals(template, vars)
	return r.renderPlaceholders(text, ctx, vars)
}

func (r *Renderer) renderConditionals(text string, vars variables.Set) string {
	blocks := syntax.FindBlocks(text)
	if len(blocks) == 0 {
		return text
	}

	var sb strings.Builder
	cursor := 0
	for _, b := range blocks {
		sb.WriteString(text[cursor:b.Start])
		sb.WriteString(r.safely("if", b.Span, func() string {
			if expr.EvaluateWith(b.Condition, vars) {
				return b.Then
			}
			return b.Else
		}))
		cursor = b.End
	}
	sb.WriteString(text[cursor:])
	return sb.String()
}

type substitution struct {
	span    syntax.Span
	kind    string
	resolve func() string
}

// renderPlaceholders substitutes var and stat placeholders in a single pass so
// substituted participant data is never read as template syntax.
func (r *Renderer) renderPlaceholders(text string, ctx Context, vars variables.Set) string {
	var subs []substitution
	for _, ref := range syntax.FindVarRefs(text) {
		subs = append(subs, substitution{span: ref.Span, kind: "var", resolve: func() string {
			return resolveVar(ref, ctx, vars)
		}})
	}
	for _, ref := range syntax.FindStatRefs(text) {
		subs = append(subs, substitution{span: ref.Span, kind: "stat", resolve: func() string {
			return resolveStat(ref, ctx)
		}})
	}
	if len(subs) == 0 {
		return text
	}
	sort.SliceStable(subs, func(i, j int) bool { return subs[i].span.Start < subs[j].span.Start })

	var sb strings.Builder
	cursor := 0
	for _, s := range subs {
		if s.span.Start < cursor {
			continue
		}
		sb.WriteString(text[cursor:s.span.Start])
		out := r.safely(s.kind, s.span, s.resolve)
		if out == "" {
			r.logger.Trace("%s placeholder %q resolved empty", s.kind, text[s.span.Start:s.span.End])
		}
		sb.WriteString(out)
		cursor = s.span.End
	}
	sb.WriteString(text[cursor:])
	return sb.String()
}

func resolveVar(ref syntax.VarRef, ctx Context, vars variables.Set) string {
	var values []interface{}
	if strings.TrimSpace(ref.Where) != "" {
		values = variables.Collect(ctx.Result, ref.Name, predicate.Compile(ref.Where))
	} else if series, ok := vars.Get(ref.Name); ok {
		values = series.Values
	}
	if len(values) == 0 {
		return ""
	}

	switch ref.Modifier {
	case syntax.ModifierFirst:
		return variables.Display(values[0])
	case syntax.ModifierLast:
		return variables.Display(values[len(values)-1])
	case "", syntax.ModifierAll:
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = variables.Display(v)
		}
		return strings.Join(parts, ValueSeparator)
	default:
		return ""
	}
}

func resolveStat(ref syntax.StatRef, ctx Context) string {
	return stats.Compute(stats.Expression{
		Variable: ref.Name,
		Metric:   ref.Metric,
		Scope:    ref.Scope,
		Where:    ref.Where,
	}, ctx.Result, ctx.All).String()
}

// safely contains a failing placeholder to its own span
func (r *Renderer) safely(kind string, span syntax.Span, fn func() string) (out string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("%s placeholder at offset %d failed: %v", kind, span.Start, rec)
			out = ""
		}
	}()
	return fn()
}
