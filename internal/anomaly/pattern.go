package anomaly

import (
	"fmt"
	"math"
	"sort"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
)

func byTime(txns []domain.Transaction) []domain.Transaction {
	sorted := append([]domain.Transaction(nil), txns...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	return sorted
}

// RapidSuccession flags both sides of every pair of time-adjacent
// transactions less than RapidWindow apart.
type RapidSuccession struct{}

func (RapidSuccession) Method() Method { return MethodRapidSuccession }

func (RapidSuccession) Detect(txns []domain.Transaction, cfg Config) ([]Flag, error) {
	if err := requirePopulation(txns); err != nil {
		return nil, err
	}
	if cfg.RapidWindow <= 0 {
		return nil, domain.Invalidf("rapid succession window %s must be positive", cfg.RapidWindow)
	}

	sorted := byTime(txns)
	gap := make(map[string]float64)
	var order []string
	mark := func(id string, d float64) {
		prev, ok := gap[id]
		if !ok {
			order = append(order, id)
			gap[id] = d
			return
		}
		gap[id] = math.Min(prev, d)
	}
	for i := 1; i < len(sorted); i++ {
		d := sorted[i].Timestamp.Sub(sorted[i-1].Timestamp)
		if d >= cfg.RapidWindow {
			continue
		}
		mark(sorted[i-1].ID, d.Seconds())
		mark(sorted[i].ID, d.Seconds())
	}

	flags := make([]Flag, 0, len(order))
	for _, id := range order {
		flags = append(flags, Flag{
			TransactionID: id,
			Method:        MethodRapidSuccession,
			Score:         gap[id],
			Reason:        fmt.Sprintf("%.0fs from an adjacent transaction (window %s)", gap[id], cfg.RapidWindow),
			Severity:      domain.SeverityLow,
		})
	}
	return flags, nil
}

// Split flags runs of three time-adjacent transactions whose second and
// third amounts are within SplitTolerance of the first, a common pattern
// when one payment is broken up to stay below a review threshold.
type Split struct{}

func (Split) Method() Method { return MethodSplit }

func (Split) Detect(txns []domain.Transaction, cfg Config) ([]Flag, error) {
	if err := requirePopulation(txns); err != nil {
		return nil, err
	}
	tol := cfg.SplitTolerance
	if math.IsNaN(tol) || tol <= 0 || tol >= 1 {
		return nil, domain.Invalidf("split tolerance %v must lie in (0,1)", tol)
	}

	sorted := byTime(txns)
	seen := make(map[string]bool)
	var flags []Flag
	for i := 0; i+2 < len(sorted); i++ {
		base := sorted[i].Amount.InexactFloat64()
		if base <= 0 {
			continue
		}
		r1 := sorted[i+1].Amount.InexactFloat64() / base
		r2 := sorted[i+2].Amount.InexactFloat64() / base
		if math.Abs(r1-1) > tol || math.Abs(r2-1) > tol {
			continue
		}
		for _, t := range sorted[i : i+3] {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			flags = append(flags, Flag{
				TransactionID: t.ID,
				Method:        MethodSplit,
				Score:         math.Max(math.Abs(r1-1), math.Abs(r2-1)),
				Reason: fmt.Sprintf("part of a run of three similar amounts starting at %s (%s)",
					sorted[i].ID, sorted[i].Amount),
				Severity: domain.SeverityMedium,
			})
		}
	}
	return flags, nil
}
