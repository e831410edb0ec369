package rule

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Kind is the type of a field or literal.
type Kind int

const (
	KindString Kind = iota + 1
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "text"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	}
	return "unknown"
}

// Value is a typed field value or literal. Numbers are decimals so amounts
// compare exactly.
type Value struct {
	Kind Kind
	Str  string
	Num  decimal.Decimal
	Bool bool
}

func String(s string) Value          { return Value{Kind: KindString, Str: s} }
func Number(d decimal.Decimal) Value { return Value{Kind: KindNumber, Num: d} }
func Bool(b bool) Value              { return Value{Kind: KindBool, Bool: b} }
func numberFromInt(n int) Value      { return Number(decimal.NewFromInt(int64(n))) }

func (v Value) String() string {
	switch v.Kind {
	case KindString:
		return strconv.Quote(v.Str)
	case KindNumber:
		return v.Num.String()
	case KindBool:
		return strconv.FormatBool(v.Bool)
	}
	return "<nil>"
}
