package anomaly

import (
	"fmt"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
)

// RoundNumber flags amounts at or above RoundFloor that are exact multiples
// of RoundUnit.
type RoundNumber struct{}

func (RoundNumber) Method() Method { return MethodRoundNumber }

func (RoundNumber) Detect(txns []domain.Transaction, cfg Config) ([]Flag, error) {
	if err := requirePopulation(txns); err != nil {
		return nil, err
	}
	if !cfg.RoundUnit.IsPositive() {
		return nil, domain.Invalidf("round unit %s must be positive", cfg.RoundUnit)
	}
	if cfg.RoundFloor.IsNegative() {
		return nil, domain.Invalidf("round floor %s must not be negative", cfg.RoundFloor)
	}

	var flags []Flag
	for _, t := range txns {
		if t.Amount.LessThan(cfg.RoundFloor) || !t.Amount.IsPositive() {
			continue
		}
		if !t.Amount.Mod(cfg.RoundUnit).IsZero() {
			continue
		}
		units := t.Amount.Div(cfg.RoundUnit)
		flags = append(flags, Flag{
			TransactionID: t.ID,
			Method:        MethodRoundNumber,
			Score:         units.InexactFloat64(),
			Reason:        fmt.Sprintf("amount %s is an exact multiple of %s", t.Amount, cfg.RoundUnit),
			Severity:      domain.SeverityLow,
		})
	}
	return flags, nil
}
