// Package stats computes descriptive statistics over a variable's values for
// one participant or across all participants of a study.
package stats

import (
	"strconv"

	mstats "github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats/scalar"

	"studyfeedback/domain/result"
	"studyfeedback/internal/feedback/coerce"
	"studyfeedback/internal/feedback/predicate"
	"studyfeedback/internal/feedback/syntax"
	"studyfeedback/internal/feedback/variables"
)

// DisplayPrecision is the number of decimals kept in rendered statistics
const DisplayPrecision = 2

// Expression describes one statistic request
type Expression struct {
	Variable string
	Metric   string
	// Scope is within or across; empty means within.
	Scope string
	// Where is an optional filter clause applied per record.
	Where string
}

// EffectiveScope resolves the default scope
func (e Expression) EffectiveScope() string {
	if e.Scope == "" {
		return syntax.ScopeWithin
	}
	return e.Scope
}

// Value is a computed statistic. Invalid values render as the empty string.
type Value struct {
	Number  float64
	Valid   bool
	Integer bool
}

// String formats the value for display
func (v Value) String() string {
	if !v.Valid {
		return ""
	}
	if v.Integer {
		return strconv.Itoa(int(v.Number))
	}
	return coerce.FormatNumber(v.Number)
}

// Compute evaluates expr against the current result, or against all when the
// scope is across. Across falls back to the current result when all is empty.
func Compute(expr Expression, current *result.EnrichedResult, all []*result.EnrichedResult) Value {
	if !syntax.IsMetric(expr.Metric) {
		return Value{}
	}

	var targets []*result.EnrichedResult
	switch expr.EffectiveScope() {
	case syntax.ScopeWithin:
		targets = []*result.EnrichedResult{current}
	case syntax.ScopeAcross:
		if len(all) > 0 {
			targets = all
		} else {
			targets = []*result.EnrichedResult{current}
		}
	default:
		return Value{}
	}

	filter := predicate.Compile(expr.Where)
	var raw []interface{}
	for _, r := range targets {
		raw = append(raw, variables.Collect(r, expr.Variable, filter)...)
	}

	if expr.Metric == syntax.MetricCount {
		return Value{Number: float64(Count(raw)), Valid: true, Integer: true}
	}
	return Summarize(expr.Metric, Numbers(raw))
}

// Count counts the non-null occurrences
func Count(raw []interface{}) int {
	n := 0
	for _, v := range raw {
		if v != nil {
			n++
		}
	}
	return n
}

// Numbers keeps the values that coerce to numbers
func Numbers(raw []interface{}) []float64 {
	nums := make([]float64, 0, len(raw))
	for _, v := range raw {
		if f, ok := coerce.ToNumber(v); ok {
			nums = append(nums, f)
		}
	}
	return nums
}

// Summarize applies a numeric metric. The standard deviation is the population
// form (divides by N).
func Summarize(metric string, nums []float64) Value {
	if len(nums) == 0 {
		return Value{}
	}

	var (
		x   float64
		err error
	)
	switch metric {
	case syntax.MetricAvg:
		x, err = mstats.Mean(nums)
	case syntax.MetricMedian:
		x, err = mstats.Median(nums)
	case syntax.MetricSD:
		x, err = mstats.StandardDeviationPopulation(nums)
	case syntax.MetricCount:
		return Value{Number: float64(len(nums)), Valid: true, Integer: true}
	default:
		return Value{}
	}
	if err != nil {
		return Value{}
	}
	return Value{Number: scalar.Round(x, DisplayPrecision), Valid: true}
}
