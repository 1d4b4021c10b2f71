// Package coerce holds the literal parsing and loose comparison rules shared by
// where-clause predicates and conditional expressions.
package coerce

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Comparison operators understood by Compare
const (
	OpEq  = "=="
	OpNeq = "!="
	OpGt  = ">"
	OpLt  = "<"
	OpGte = ">="
	OpLte = "<="
)

// Operators lists every comparison operator, longest first so scanners can match greedily
var Operators = []string{OpEq, OpNeq, OpGte, OpLte, OpGt, OpLt}

// IsOperator reports whether op is a supported comparison operator
func IsOperator(op string) bool {
	for _, o := range Operators {
		if o == op {
			return true
		}
	}
	return false
}

// ToNumber converts numbers and numeric strings. Everything else fails.
func ToNumber(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, Finite(t)
	case float32:
		return float64(t), Finite(float64(t))
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		return ParseNumber(string(t))
	case string:
		return ParseNumber(t)
	default:
		return 0, false
	}
}

// ParseNumber parses a finite decimal number. "NaN", "inf" and "Infinity" are
// text, not numbers.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || !Finite(f) {
		return 0, false
	}
	return f, true
}

// Finite reports whether f is neither NaN nor infinite
func Finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// IsNumeric reports whether v is a Go number (not a numeric string)
func IsNumeric(v interface{}) bool {
	switch v.(type) {
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		return true
	}
	return false
}

// ParseLiteral reads a literal token: quoted strings (either quote style),
// true, false, null and bare numbers. Anything else is returned as the raw string.
func ParseLiteral(token string) interface{} {
	s := strings.TrimSpace(token)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if f, ok := ParseNumber(s); ok {
		return f
	}
	return s
}

// Compare applies op to lhs and rhs. Ordering operators compare numerically and
// are false when either side is not a number. Compare never panics.
func Compare(lhs interface{}, op string, rhs interface{}) bool {
	switch op {
	case OpEq:
		return Equal(lhs, rhs)
	case OpNeq:
		return !Equal(lhs, rhs)
	case OpGt, OpLt, OpGte, OpLte:
		l, ok := ToNumber(lhs)
		if !ok {
			return false
		}
		r, ok := ToNumber(rhs)
		if !ok {
			return false
		}
		switch op {
		case OpGt:
			return l > r
		case OpLt:
			return l < r
		case OpGte:
			return l >= r
		default:
			return l <= r
		}
	default:
		return false
	}
}

// Equal is loose equality: null equals only null, booleans equal only booleans,
// numeric operands compare as numbers, everything else by string form.
func Equal(lhs, rhs interface{}) bool {
	if lhs == nil || rhs == nil {
		return lhs == nil && rhs == nil
	}

	lb, lIsBool := lhs.(bool)
	rb, rIsBool := rhs.(bool)
	if lIsBool || rIsBool {
		if lIsBool && rIsBool {
			return lb == rb
		}
		// "true" from a CSV cell still equals the literal true
		return String(lhs) == String(rhs)
	}

	if l, ok := ToNumber(lhs); ok {
		if r, ok := ToNumber(rhs); ok {
			return l == r
		}
	}
	return String(lhs) == String(rhs)
}

// String renders a scalar the way it is displayed to participants
func String(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	}
	if f, ok := ToNumber(v); ok && IsNumeric(v) {
		return FormatNumber(f)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// FormatNumber prints integers without a fraction and other values in shortest form
func FormatNumber(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Truthy reports whether v counts as true in a conditional
func Truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	}
	if f, ok := ToNumber(v); ok && IsNumeric(v) {
		return f != 0
	}
	if f, ok := v.(float64); ok && math.IsNaN(f) {
		return false
	}
	return true
}
