// Package benford tests the leading-digit distribution of a set of amounts
// against Benford's law.
package benford

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
)

type Conclusion string

const (
	ConclusionPass             Conclusion = "PASS"
	ConclusionFail             Conclusion = "FAIL"
	ConclusionInsufficientData Conclusion = "INSUFFICIENT_DATA"
)

// DegreesOfFreedom of the first-digit test: nine buckets, one constraint.
const DegreesOfFreedom = 8

// conformityScale maps χ² to the [0,1] conformity score.
const conformityScale = 50.0

// Config holds the test parameters.
type Config struct {
	// CriticalValue is the χ² cut-off; the default is the 0.05 level for 8
	// degrees of freedom.
	CriticalValue float64 `yaml:"critical_value" json:"critical_value"`
	// MinSample is the smallest number of non-zero amounts that yields a
	// conclusion.
	MinSample int `yaml:"min_sample" json:"min_sample"`
}

func DefaultConfig() Config {
	return Config{CriticalValue: 15.51, MinSample: 30}
}

func (c Config) Validate() error {
	if math.IsNaN(c.CriticalValue) || c.CriticalValue <= 0 {
		return domain.Invalidf("benford critical value %v must be positive", c.CriticalValue)
	}
	if c.MinSample < 1 {
		return domain.Invalidf("benford minimum sample %d must be at least 1", c.MinSample)
	}
	return nil
}

// Result is the outcome of one test. Maps are keyed by digit 1-9.
type Result struct {
	Counts           map[int]int     `json:"counts"`
	Observed         map[int]float64 `json:"observed"`
	Expected         map[int]float64 `json:"expected"`
	ChiSquare        float64         `json:"chi_square"`
	CriticalValue    float64         `json:"critical_value"`
	DegreesOfFreedom int             `json:"degrees_of_freedom"`
	ConformityScore  float64         `json:"conformity_score"`
	MAD              float64         `json:"mad"`
	SampleSize       int             `json:"sample_size"`
	Excluded         int             `json:"excluded"`
	Conclusion       Conclusion      `json:"conclusion"`
}

// Expected returns log10(1 + 1/d) for d in 1..9.
func Expected() map[int]float64 {
	out := make(map[int]float64, 9)
	for d := 1; d <= 9; d++ {
		out[d] = math.Log10(1 + 1/float64(d))
	}
	return out
}

// LeadingDigit returns the first significant digit of v, ignoring sign and
// leading zeros. ok is false for zero.
func LeadingDigit(v decimal.Decimal) (digit int, ok bool) {
	if v.IsZero() {
		return 0, false
	}
	for _, c := range v.Abs().String() {
		if c >= '1' && c <= '9' {
			return int(c - '0'), true
		}
	}
	return 0, false
}

// Analyze runs the first-digit test. Zero amounts are excluded. When fewer
// than cfg.MinSample amounts remain the returned Result carries the counts
// and ConclusionInsufficientData, and the error wraps
// domain.ErrInsufficientData.
func Analyze(amounts []decimal.Decimal, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(amounts) == 0 {
		return nil, domain.Invalidf("no amounts to analyze")
	}

	res := &Result{
		Counts:           make(map[int]int, 9),
		Observed:         make(map[int]float64, 9),
		Expected:         Expected(),
		CriticalValue:    cfg.CriticalValue,
		DegreesOfFreedom: DegreesOfFreedom,
	}
	for d := 1; d <= 9; d++ {
		res.Counts[d] = 0
		res.Observed[d] = 0
	}
	for _, a := range amounts {
		d, ok := LeadingDigit(a)
		if !ok {
			res.Excluded++
			continue
		}
		res.Counts[d]++
		res.SampleSize++
	}

	if res.SampleSize < cfg.MinSample {
		res.Conclusion = ConclusionInsufficientData
		return res, domain.Insufficientf("%d non-zero amounts, need at least %d", res.SampleSize, cfg.MinSample)
	}

	n := float64(res.SampleSize)
	var chi, absDev float64
	for d := 1; d <= 9; d++ {
		obs := float64(res.Counts[d])
		exp := res.Expected[d] * n
		chi += (obs - exp) * (obs - exp) / exp
		res.Observed[d] = obs / n
		absDev += math.Abs(res.Observed[d] - res.Expected[d])
	}
	res.ChiSquare = chi
	res.MAD = absDev / 9
	res.ConformityScore = math.Max(0, math.Min(1, 1-chi/conformityScale))

	res.Conclusion = ConclusionPass
	if chi > cfg.CriticalValue {
		res.Conclusion = ConclusionFail
	}
	return res, nil
}

// Summary is a one-line description of r for logs and reports.
func (r *Result) Summary() string {
	if r.Conclusion == ConclusionInsufficientData {
		return fmt.Sprintf("insufficient data: %d usable amounts", r.SampleSize)
	}
	return fmt.Sprintf("%s: chi-square %.2f vs critical %.2f over %d amounts", r.Conclusion, r.ChiSquare, r.CriticalValue, r.SampleSize)
}
