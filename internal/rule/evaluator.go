package rule

import (
	"fmt"
	"strings"
)

// Operator represents a comparison operator.
type Operator string

const (
	OpEq       Operator = "=="
	OpNeq      Operator = "!="
	OpGt       Operator = ">"
	OpGte      Operator = ">="
	OpLt       Operator = "<"
	OpLte      Operator = "<="
	OpContains Operator = "contains"
	OpMatches  Operator = "matches"
)

// Env provides field values for evaluation.
type Env interface {
	Lookup(field string) (Value, bool)
}

// Evaluate walks the AST and returns true/false or an error.
func Evaluate(expr Expr, env Env) (bool, error) {
	switch e := expr.(type) {
	case *BinaryExpr:
		left, err := Evaluate(e.Left, env)
		if err != nil {
			return false, err
		}
		switch e.Op {
		case "AND":
			if !left {
				return false, nil
			}
			return Evaluate(e.Right, env)
		case "OR":
			if left {
				return true, nil
			}
			return Evaluate(e.Right, env)
		}
		return false, fmt.Errorf("unknown binary op %q", e.Op)
	case *NotExpr:
		v, err := Evaluate(e.Expr, env)
		if err != nil {
			return false, err
		}
		return !v, nil
	case *ComparisonExpr:
		v, ok := env.Lookup(e.Field)
		if !ok {
			return false, fmt.Errorf("field %q not found", e.Field)
		}
		return compare(e, v)
	default:
		return false, fmt.Errorf("unknown expr type %T", expr)
	}
}

// compare applies c to a field value. Text equality and contains ignore case;
// matches uses the regex as written.
func compare(c *ComparisonExpr, v Value) (bool, error) {
	if v.Kind != c.Value.Kind {
		return false, fmt.Errorf("field %s is a %s, rule expects %s", c.Field, v.Kind, c.Value.Kind)
	}
	switch c.Op {
	case OpEq:
		return equal(v, c.Value), nil
	case OpNeq:
		return !equal(v, c.Value), nil
	case OpGt:
		return v.Num.GreaterThan(c.Value.Num), nil
	case OpGte:
		return v.Num.GreaterThanOrEqual(c.Value.Num), nil
	case OpLt:
		return v.Num.LessThan(c.Value.Num), nil
	case OpLte:
		return v.Num.LessThanOrEqual(c.Value.Num), nil
	case OpContains:
		return strings.Contains(strings.ToLower(v.Str), strings.ToLower(c.Value.Str)), nil
	case OpMatches:
		return c.re.MatchString(v.Str), nil
	}
	return false, fmt.Errorf("unknown operator: %s", c.Op)
}

func equal(a, b Value) bool {
	switch a.Kind {
	case KindString:
		return strings.EqualFold(a.Str, b.Str)
	case KindNumber:
		return a.Num.Equal(b.Num)
	case KindBool:
		return a.Bool == b.Bool
	}
	return false
}
