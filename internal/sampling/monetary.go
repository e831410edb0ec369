package sampling

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
)

// MonetaryUnit performs systematic monetary unit sampling: the population is
// laid on a cumulative value line, cut every interval = total/sampleSize,
// and the transaction whose range contains each cut is selected.
//
// Cuts fall on exact multiples of the interval unless RandomStart is set,
// in which case the first cut is drawn uniformly from (0, interval] using
// Seed (non-reproducible when Seed is nil).
//
// A transaction wider than the interval can contain several cuts. It is
// selected once and the missing units are reported as Shortfall; the line
// is not walked again to make up the difference.
type MonetaryUnit struct {
	RandomStart bool
	Seed        *uint64
}

func (MonetaryUnit) Method() Method { return MethodMonetaryUnit }

type unit struct {
	pos   int
	upper decimal.Decimal
}

func (m MonetaryUnit) Select(population []domain.Transaction, sampleSize int) (*Selection, error) {
	index, err := validatePopulation(population)
	if err != nil {
		return nil, err
	}
	if sampleSize <= 0 {
		return nil, domain.Invalidf("sample size %d must be positive", sampleSize)
	}

	// Non-positive amounts occupy no range on the line.
	var line []unit
	total := decimal.Zero
	excluded := 0
	for i, t := range population {
		if !t.Amount.IsPositive() {
			excluded++
			continue
		}
		total = total.Add(t.Amount)
		line = append(line, unit{pos: i, upper: total})
	}
	if !total.IsPositive() {
		return nil, domain.Invalidf("total population value %s must be positive", total)
	}

	n := decimal.NewFromInt(int64(sampleSize))
	interval := total.Div(n)
	start := interval
	if m.RandomStart {
		u := newRand(m.Seed).Float64()
		start = interval.Mul(decimal.NewFromFloat(1 - u))
	}

	sel := &Selection{
		Method:       MethodMonetaryUnit,
		Requested:    sampleSize,
		Interval:     &interval,
		Start:        &start,
		Excluded:     excluded,
		Reproducible: !m.RandomStart || m.Seed != nil,
	}

	chosen := make(map[string]bool, min(sampleSize, len(line)))
	last := len(line) - 1
	j := 0
	for k := 0; k < sampleSize; {
		cut := start.Add(interval.Mul(decimal.NewFromInt(int64(k))))
		if cut.GreaterThan(total) {
			cut = total
		}
		for j < last && line[j].upper.LessThan(cut) {
			j++
		}
		t := population[line[j].pos]
		if !chosen[t.ID] {
			chosen[t.ID] = true
			sel.Items = append(sel.Items, t)
		}
		if j == last {
			break
		}
		// Cuts up to line[j].upper land on an already chosen item. Jump to
		// the one just below the first cut past it; the step back absorbs
		// rounding in the division.
		next := line[j].upper.Sub(start).Div(interval).Floor().IntPart()
		if next > int64(sampleSize) {
			break
		}
		k = max(k+1, int(next))
	}
	inPopulationOrder(sel.Items, index)

	if sel.Shortfall = sampleSize - len(sel.Items); sel.Shortfall > 0 {
		sel.Note = fmt.Sprintf("%d of %d selection points fell on already-selected transactions; %d distinct items drawn",
			sel.Shortfall, sampleSize, len(sel.Items))
	}
	return sel, nil
}
