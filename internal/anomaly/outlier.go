package anomaly

import (
	"fmt"
	"math"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/stats"
)

// ZScore flags amounts more than ZScoreThreshold sample standard deviations
// from the mean. Fewer than two transactions or a zero spread yield no
// flags.
type ZScore struct{}

func (ZScore) Method() Method { return MethodZScore }

func (ZScore) Detect(txns []domain.Transaction, cfg Config) ([]Flag, error) {
	if err := requirePopulation(txns); err != nil {
		return nil, err
	}
	th := cfg.ZScoreThreshold
	if math.IsNaN(th) || th <= 0 {
		return nil, domain.Invalidf("z-score threshold %v must be positive", th)
	}

	// Equal amounts can leave a float spread of ~1e-17; test it exactly.
	if constantAmounts(txns) {
		return nil, nil
	}
	xs := domain.FloatAmounts(txns)
	sd, ok := stats.SampleStdDev(xs)
	if !ok || sd == 0 {
		return nil, nil
	}
	mean := stats.Mean(xs)

	var flags []Flag
	for i, x := range xs {
		z := math.Abs(x-mean) / sd
		if z <= th {
			continue
		}
		flags = append(flags, Flag{
			TransactionID: txns[i].ID,
			Method:        MethodZScore,
			Score:         z,
			Reason:        fmt.Sprintf("|z| = %.2f exceeds %.2f (mean %.2f, sd %.2f)", z, th, mean, sd),
			Severity:      ratioSeverity(z / th),
		})
	}
	return flags, nil
}

// IQR flags amounts outside [Q1 − k·IQR, Q3 + k·IQR] with k = IQRMultiplier
// and linearly interpolated quartiles. Fewer than four transactions yield no
// flags. Amounts more than 2k·IQR outside the quartiles are HIGH severity.
type IQR struct{}

func (IQR) Method() Method { return MethodIQR }

const minIQRPopulation = 4

func (IQR) Detect(txns []domain.Transaction, cfg Config) ([]Flag, error) {
	if err := requirePopulation(txns); err != nil {
		return nil, err
	}
	k := cfg.IQRMultiplier
	if math.IsNaN(k) || k <= 0 {
		return nil, domain.Invalidf("IQR multiplier %v must be positive", k)
	}
	if len(txns) < minIQRPopulation {
		return nil, nil
	}

	xs := domain.FloatAmounts(txns)
	q1, _ := stats.Quantile(xs, 0.25)
	q3, _ := stats.Quantile(xs, 0.75)
	iqr := q3 - q1
	lower := q1 - k*iqr
	upper := q3 + k*iqr

	var flags []Flag
	for i, x := range xs {
		var dist float64
		var side string
		switch {
		case x < lower:
			dist, side = lower-x, "below lower"
		case x > upper:
			dist, side = x-upper, "above upper"
		default:
			continue
		}
		sev := domain.SeverityMedium
		if x < q1-2*k*iqr || x > q3+2*k*iqr {
			sev = domain.SeverityHigh
		}
		flags = append(flags, Flag{
			TransactionID: txns[i].ID,
			Method:        MethodIQR,
			Score:         dist,
			Reason: fmt.Sprintf("amount %.2f %s fence [%.2f, %.2f] (Q1 %.2f, Q3 %.2f, IQR %.2f)",
				x, side, lower, upper, q1, q3, iqr),
			Severity: sev,
		})
	}
	return flags, nil
}

func constantAmounts(txns []domain.Transaction) bool {
	for _, t := range txns[1:] {
		if !t.Amount.Equal(txns[0].Amount) {
			return false
		}
	}
	return true
}
