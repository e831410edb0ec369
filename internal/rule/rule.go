package rule

import (
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
)

// Rule is a named condition. Transactions that satisfy When are flagged at
// Severity (MEDIUM when empty).
type Rule struct {
	Name     string          `yaml:"name" json:"name"`
	When     string          `yaml:"when" json:"when"`
	Severity domain.Severity `yaml:"severity" json:"severity,omitempty"`
}

// Compiled is a parsed, type-checked Rule.
type Compiled struct {
	Rule
	expr Expr
}

// Compile parses r.When. Errors wrap domain.ErrInvalidInput.
func Compile(r Rule) (*Compiled, error) {
	if strings.TrimSpace(r.Name) == "" {
		return nil, domain.Invalidf("rule needs a name")
	}
	switch r.Severity {
	case "":
		r.Severity = domain.SeverityMedium
	case domain.SeverityLow, domain.SeverityMedium, domain.SeverityHigh, domain.SeverityCritical:
	default:
		return nil, domain.Invalidf("rule %q: unknown severity %q", r.Name, r.Severity)
	}
	expr, err := Parse(r.When)
	if err != nil {
		return nil, domain.Invalidf("rule %q: %v", r.Name, err)
	}
	return &Compiled{Rule: r, expr: expr}, nil
}

// CompileAll compiles rules in order and rejects repeated names.
func CompileAll(rules []Rule) ([]*Compiled, error) {
	out := make([]*Compiled, 0, len(rules))
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		c, err := Compile(r)
		if err != nil {
			return nil, err
		}
		if seen[c.Name] {
			return nil, domain.Invalidf("rule %q is defined twice", c.Name)
		}
		seen[c.Name] = true
		out = append(out, c)
	}
	return out, nil
}

// Match reports whether t satisfies the rule, reading time fields in loc.
func (c *Compiled) Match(t domain.Transaction, loc *time.Location) (bool, error) {
	return Evaluate(c.expr, TransactionEnv{Txn: t, Location: loc})
}
