package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studyfeedback/domain/result"
)

func sample() *result.EnrichedResult {
	return &result.EnrichedResult{
		ComponentResults: []result.ComponentResult{
			{ParsedData: result.Sequence(
				result.Record{"correct": true, "rt": 100.0, "stimulus": "blue"},
				result.Record{"correct": false, "rt": 450.0, "stimulus": "red"},
			)},
			{ParsedData: result.Single(result.Record{"name": "Ada O'Neil", "score": 0.0})},
		},
	}
}

func TestEvaluate(t *testing.T) {
	data := sample()

	tests := []struct {
		expr string
		want bool
	}{
		{"var:correct == true", true},
		{"var:correct:last == true", false},
		{"var:correct:first == true", true},
		{"var:correct:all == true", true},
		{"var:rt > 50 and var:rt:last >= 450", true},
		{"var:rt > 50 && var:rt:last < 450", false},
		{"var:rt > 500 or var:stimulus == 'blue'", true},
		{`var:stimulus == "blue"`, true},
		{"not var:correct", false},
		{"!var:correct:last", true},
		{"not (var:rt > 500)", true},
		{"var:missing == null", true},
		{"var:missing", false},
		{"var:missing > 0", false},
		{"var:score", false},
		{"var:name == \"Ada O'Neil\"", true},
		{"var:rt != 100", false},
		{"var:rt === 100", true},
		{"var:rt > -1", true},
		{"true", true},
		{"null", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.expr, data))
		})
	}
}

func TestEvaluate_FailuresAreFalse(t *testing.T) {
	data := sample()

	for _, src := range []string{
		"",
		"var:rt >",
		"(var:rt > 1",
		"var:rt + 1 > 0",
		"alert(1)",
		"var:rt > 1; drop",
		"var:rt > 1 ? true : false",
		"var:stimulus == `blue`",
		"'unterminated",
		"var:rt = 100",
	} {
		assert.False(t, Evaluate(src, data), src)
	}
}

func TestEvaluate_SubstitutedValuesAreWhitelisted(t *testing.T) {
	data := &result.EnrichedResult{
		ComponentResults: []result.ComponentResult{
			{ParsedData: result.Single(result.Record{
				"injected": `" || true || "`,
				"comment":  "Great study?",
				"quoted":   `say "hi"`,
				"accent":   "café",
				"plain":    "Ada O'Neil, again",
				"list":     []interface{}{1.0, 2.0},
			})},
		},
	}

	for _, src := range []string{
		`var:injected == "x"`,
		`var:injected != "x"`,
		`var:comment != ""`,
		`var:quoted != "x"`,
		`var:accent != "x"`,
		`var:list != null`,
		`var:plain != "x" and not var:comment`,
	} {
		assert.False(t, Evaluate(src, data), src)
	}

	assert.True(t, Evaluate(`var:plain != "x"`, data))
	assert.True(t, Evaluate(`var:missing == null`, data))
}

func TestLiteralForm(t *testing.T) {
	assert.Equal(t, "null", literalForm(nil))
	assert.Equal(t, "true", literalForm(true))
	assert.Equal(t, "-1.5", literalForm(-1.5))
	assert.Equal(t, `"a<b"`, literalForm("a<b"))
	assert.Equal(t, `"say \"hi\""`, literalForm(`say "hi"`))
}

func TestParse_Precedence(t *testing.T) {
	node, err := Parse("var:a == 1 or var:b == 2 and not var:c")
	require.NoError(t, err)

	or, ok := node.(Logical)
	require.True(t, ok)
	assert.Equal(t, OpOr, or.Op)

	and, ok := or.Right.(Logical)
	require.True(t, ok)
	assert.Equal(t, OpAnd, and.Op)
	assert.IsType(t, Not{}, and.Right)
	assert.Equal(t, Comparison{Op: "==", Left: VarRef{Name: "a"}, Right: Literal{Value: 1.0}}, or.Left)
}

func TestSafe(t *testing.T) {
	assert.True(t, Safe("var:block.rt:last > 3 && (var:x != 'y')"))
	assert.False(t, Safe("var:x == [1]"))
	assert.False(t, Safe("var:x == 1; y"))
}
