package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokVar
	tokLiteral
	tokAnd
	tokOr
	tokNot
	tokCompare
	tokLParen
	tokRParen
	tokMinus
)

type token struct {
	kind     tokenKind
	text     string
	value    interface{}
	name     string
	modifier string
	pos      int
}

// lex splits a condition into tokens. Anything outside the condition grammar,
// including arithmetic, is an error.
func lex(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == '"' || c == '\'':
			s, next, err := lexString(src, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokLiteral, text: src[i:next], value: s, pos: i})
			i = next
		case c >= '0' && c <= '9' || c == '.' && i+1 < len(src) && isDigit(src[i+1]):
			next := i
			for next < len(src) && (isDigit(src[next]) || src[next] == '.' || src[next] == 'e' || src[next] == 'E') {
				next++
			}
			f, err := strconv.ParseFloat(src[i:next], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q at %d", src[i:next], i)
			}
			tokens = append(tokens, token{kind: tokLiteral, text: src[i:next], value: f, pos: i})
			i = next
		case c == '-':
			tokens = append(tokens, token{kind: tokMinus, text: "-", pos: i})
			i++
		case c == '&' || c == '|':
			if i+1 >= len(src) || src[i+1] != c {
				return nil, fmt.Errorf("unexpected %q at %d", c, i)
			}
			kind := tokAnd
			if c == '|' {
				kind = tokOr
			}
			tokens = append(tokens, token{kind: kind, text: src[i : i+2], pos: i})
			i += 2
		case c == '=' || c == '!' || c == '<' || c == '>':
			op, width := lexOperator(src[i:])
			switch {
			case op == "!":
				tokens = append(tokens, token{kind: tokNot, text: "!", pos: i})
			case op != "":
				tokens = append(tokens, token{kind: tokCompare, text: op, pos: i})
			default:
				return nil, fmt.Errorf("unexpected %q at %d", c, i)
			}
			i += width
		case isWordStart(c):
			next := i
			for next < len(src) && isWordChar(src[next]) {
				next++
			}
			word := src[i:next]
			if word == "var" && next < len(src) && src[next] == ':' {
				tok, end := lexVar(src, i)
				if tok.name == "" {
					return nil, fmt.Errorf("empty variable reference at %d", i)
				}
				tokens = append(tokens, tok)
				i = end
				continue
			}
			tok, err := keyword(word, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			i = next
		default:
			return nil, fmt.Errorf("unexpected %q at %d", c, i)
		}
	}
	return append(tokens, token{kind: tokEOF, pos: len(src)}), nil
}

func keyword(word string, pos int) (token, error) {
	switch strings.ToLower(word) {
	case "and":
		return token{kind: tokAnd, text: word, pos: pos}, nil
	case "or":
		return token{kind: tokOr, text: word, pos: pos}, nil
	case "not":
		return token{kind: tokNot, text: word, pos: pos}, nil
	}
	switch word {
	case "true":
		return token{kind: tokLiteral, text: word, value: true, pos: pos}, nil
	case "false":
		return token{kind: tokLiteral, text: word, value: false, pos: pos}, nil
	case "null":
		return token{kind: tokLiteral, text: word, value: nil, pos: pos}, nil
	}
	return token{}, fmt.Errorf("unknown identifier %q at %d", word, pos)
}

// lexVar reads var:name[:modifier] starting at pos
func lexVar(src string, pos int) (token, int) {
	i := pos + len("var:")
	start := i
	for i < len(src) && (isWordChar(src[i]) || src[i] == '.') {
		i++
	}
	tok := token{kind: tokVar, name: src[start:i], pos: pos}
	if i+1 < len(src) && src[i] == ':' && unicode.IsLetter(rune(src[i+1])) {
		j := i + 1
		for j < len(src) && unicode.IsLetter(rune(src[j])) {
			j++
		}
		tok.modifier = src[i+1 : j]
		i = j
	}
	tok.text = src[pos:i]
	return tok, i
}

func lexString(src string, pos int) (string, int, error) {
	quote := src[pos]
	var sb strings.Builder
	for i := pos + 1; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '\\' && i+1 < len(src):
			i++
			switch src[i] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte(src[i])
			}
		case c == quote:
			return sb.String(), i + 1, nil
		default:
			sb.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("unterminated string at %d", pos)
}

// lexOperator matches the longest comparison operator. The strict forms
// === and !== read as == and !=.
func lexOperator(s string) (string, int) {
	for _, op := range []string{"===", "!==", "==", "!=", ">=", "<="} {
		if strings.HasPrefix(s, op) {
			return op[:2], len(op)
		}
	}
	switch s[0] {
	case '>', '<':
		return s[:1], 1
	case '!':
		return "!", 1
	}
	return "", 0
}

func isDigit(c byte) bool     { return c >= '0' && c <= '9' }
func isWordStart(c byte) bool { return c == '_' || unicode.IsLetter(rune(c)) }
func isWordChar(c byte) bool  { return c == '_' || isDigit(c) || unicode.IsLetter(rune(c)) }
