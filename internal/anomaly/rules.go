package anomaly

import (
	"fmt"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
)

// Rules flags every transaction matching a user-defined condition, once per
// matching rule. With no rules configured it flags nothing. Time fields are
// read in the business-hours location.
type Rules struct{}

func (Rules) Method() Method { return MethodRule }

func (Rules) Detect(txns []domain.Transaction, cfg Config) ([]Flag, error) {
	if err := requirePopulation(txns); err != nil {
		return nil, err
	}
	loc := cfg.BusinessHours.Location
	flags := []Flag{}
	for _, t := range txns {
		for _, r := range cfg.Rules {
			ok, err := r.Match(t, loc)
			if err != nil {
				return nil, fmt.Errorf("rule %q on %s: %w", r.Name, t.ID, err)
			}
			if !ok {
				continue
			}
			flags = append(flags, Flag{
				TransactionID: t.ID,
				Method:        MethodRule,
				Score:         1,
				Reason:        fmt.Sprintf("rule %s: %s", r.Name, r.When),
				Severity:      r.Severity,
			})
		}
	}
	return flags, nil
}
