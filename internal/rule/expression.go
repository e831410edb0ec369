// Package rule parses and evaluates audit rule conditions such as
//
//	amount >= 10000 AND direction == "outbound" AND NOT counterparty matches "^exch-"
//
// Every comparison is field OP literal. Fields and literal types are checked
// at parse time, so a typo in a profile is rejected when it loads.
package rule

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------
// AST nodes
// -----------------------------------------------------------------------

// Expr is the common interface for all AST nodes.
type Expr interface {
	exprNode()
}

// BinaryExpr represents AND / OR.
type BinaryExpr struct {
	Op    string // "AND" | "OR"
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}

// NotExpr represents NOT <expr>.
type NotExpr struct {
	Expr Expr
}

func (*NotExpr) exprNode() {}

// ComparisonExpr represents <field> <operator> <literal>.
type ComparisonExpr struct {
	Field string
	Op    Operator
	Value Value
	re    *regexp.Regexp
}

func (*ComparisonExpr) exprNode() {}

// -----------------------------------------------------------------------
// Tokenizer
// -----------------------------------------------------------------------

type tokenKind int

const (
	tokWord   tokenKind = iota // field name or keyword
	tokOp                      // ==, !=, >=, <=, >, <
	tokString                  // "…" or '…'
	tokNumber                  // 42 | -3.5
	tokBool                    // true | false
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	kind tokenKind
	val  string
	pos  int
}

func tokenize(expr string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(expr) {
		ch := expr[i]
		switch {
		case unicode.IsSpace(rune(ch)):
			i++
		case ch == '(':
			tokens = append(tokens, token{tokLParen, "(", i})
			i++
		case ch == ')':
			tokens = append(tokens, token{tokRParen, ")", i})
			i++
		case ch == '=' || ch == '!' || ch == '<' || ch == '>':
			if i+1 < len(expr) && expr[i+1] == '=' {
				tokens = append(tokens, token{tokOp, expr[i : i+2], i})
				i += 2
				continue
			}
			if ch == '=' || ch == '!' {
				return nil, fmt.Errorf("unexpected %q at position %d (use == or !=)", ch, i)
			}
			tokens = append(tokens, token{tokOp, string(ch), i})
			i++
		case ch == '"' || ch == '\'':
			var b strings.Builder
			j := i + 1
			for j < len(expr) && expr[j] != ch {
				// Only \" \' and \\ are escapes; other backslashes reach regexes intact.
				if expr[j] == '\\' && j+1 < len(expr) && (expr[j+1] == ch || expr[j+1] == '\\') {
					j++
				}
				b.WriteByte(expr[j])
				j++
			}
			if j >= len(expr) {
				return nil, fmt.Errorf("unterminated string starting at position %d", i)
			}
			tokens = append(tokens, token{tokString, b.String(), i})
			i = j + 1
		case unicode.IsDigit(rune(ch)) || (ch == '-' && i+1 < len(expr) && unicode.IsDigit(rune(expr[i+1]))):
			j := i + 1
			for j < len(expr) && (unicode.IsDigit(rune(expr[j])) || expr[j] == '.') {
				j++
			}
			tokens = append(tokens, token{tokNumber, expr[i:j], i})
			i = j
		case unicode.IsLetter(rune(ch)) || ch == '_':
			j := i
			for j < len(expr) && (unicode.IsLetter(rune(expr[j])) || unicode.IsDigit(rune(expr[j])) || expr[j] == '_') {
				j++
			}
			word := expr[i:j]
			switch strings.ToLower(word) {
			case "true", "false":
				tokens = append(tokens, token{tokBool, strings.ToLower(word), i})
			default:
				tokens = append(tokens, token{tokWord, word, i})
			}
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", ch, i)
		}
	}
	tokens = append(tokens, token{tokEOF, "", len(expr)})
	return tokens, nil
}

// -----------------------------------------------------------------------
// Recursive-descent parser
// -----------------------------------------------------------------------

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) consume() token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

func (p *parser) keyword(kw string) bool {
	t := p.peek()
	return t.kind == tokWord && strings.EqualFold(t.val, kw)
}

// Parse parses a condition into an AST.
func Parse(expr string) (Expr, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected %q at position %d after expression", t.val, t.pos)
	}
	return node, nil
}

// or_expr = and_expr ( "OR" and_expr )*
func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.keyword("OR") {
		p.consume()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

// and_expr = not_expr ( "AND" not_expr )*
func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.keyword("AND") {
		p.consume()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

// not_expr = "NOT" not_expr | "(" or_expr ")" | comparison
func (p *parser) parseNot() (Expr, error) {
	if p.keyword("NOT") {
		p.consume()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &NotExpr{Expr: inner}, nil
	}
	if p.peek().kind == tokLParen {
		p.consume()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if t := p.peek(); t.kind != tokRParen {
			return nil, fmt.Errorf("expected \")\" at position %d, got %q", t.pos, t.val)
		}
		p.consume()
		return inner, nil
	}
	return p.parseComparison()
}

// comparison = field operator literal
func (p *parser) parseComparison() (Expr, error) {
	t := p.peek()
	if t.kind != tokWord {
		return nil, fmt.Errorf("expected field name at position %d, got %q", t.pos, t.val)
	}
	name := strings.ToLower(t.val)
	kind, ok := fieldKinds[name]
	if !ok {
		return nil, fmt.Errorf("unknown field %q (known: %s)", t.val, strings.Join(FieldNames(), ", "))
	}
	p.consume()

	t = p.peek()
	var op Operator
	switch {
	case t.kind == tokOp:
		op = Operator(t.val)
	case t.kind == tokWord && strings.EqualFold(t.val, "contains"):
		op = OpContains
	case t.kind == tokWord && strings.EqualFold(t.val, "matches"):
		op = OpMatches
	default:
		return nil, fmt.Errorf("expected comparison operator after %s, got %q", name, t.val)
	}
	p.consume()

	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	cmp := &ComparisonExpr{Field: name, Op: op, Value: lit}
	if err := cmp.typeCheck(kind); err != nil {
		return nil, err
	}
	return cmp, nil
}

func (p *parser) parseLiteral() (Value, error) {
	t := p.consume()
	switch t.kind {
	case tokString:
		return String(t.val), nil
	case tokNumber:
		d, err := decimal.NewFromString(t.val)
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q at position %d", t.val, t.pos)
		}
		return Number(d), nil
	case tokBool:
		return Bool(t.val == "true"), nil
	case tokWord:
		return Value{}, fmt.Errorf("expected a literal at position %d, got %q (quote strings)", t.pos, t.val)
	default:
		return Value{}, fmt.Errorf("expected a literal at position %d, got %q", t.pos, t.val)
	}
}

func (c *ComparisonExpr) typeCheck(field Kind) error {
	switch c.Op {
	case OpEq, OpNeq:
		if c.Value.Kind != field {
			return fmt.Errorf("%s is a %s, cannot compare with %s %s", c.Field, field, c.Value.Kind, c.Value)
		}
	case OpGt, OpGte, OpLt, OpLte:
		if field != KindNumber || c.Value.Kind != KindNumber {
			return fmt.Errorf("%s %s needs a numeric field and literal", c.Field, c.Op)
		}
	case OpContains, OpMatches:
		if field != KindString || c.Value.Kind != KindString {
			return fmt.Errorf("%s %s needs a text field and a quoted literal", c.Field, c.Op)
		}
		if c.Op == OpMatches {
			re, err := regexp.Compile(c.Value.Str)
			if err != nil {
				return fmt.Errorf("%s matches: invalid regex %q: %w", c.Field, c.Value.Str, err)
			}
			c.re = re
		}
	default:
		return fmt.Errorf("unknown operator %q", c.Op)
	}
	return nil
}
