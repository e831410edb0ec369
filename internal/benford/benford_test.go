package benford

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
)

func TestLeadingDigit(t *testing.T) {
	tests := []struct {
		in    string
		digit int
		ok    bool
	}{
		{"123.45", 1, true},
		{"0.00047", 4, true},
		{"-987", 9, true},
		{"5", 5, true},
		{"0", 0, false},
		{"0.000", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, ok := LeadingDigit(decimal.RequireFromString(tt.in))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.digit, d)
		})
	}
}

func TestExpected_SumsToOne(t *testing.T) {
	var sum float64
	for _, p := range Expected() {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.InDelta(t, 0.30103, Expected()[1], 1e-5)
}

// benfordAmounts builds n amounts whose digit counts follow the log law as
// closely as rounding allows.
func benfordAmounts(n int) []decimal.Decimal {
	var out []decimal.Decimal
	for d, p := range Expected() {
		c := int(math.Round(p * float64(n)))
		for i := 0; i < c; i++ {
			// vary magnitude so only the leading digit is shared
			out = append(out, decimal.NewFromInt(int64(d)*int64(math.Pow10(i%4+1))+int64(i%7)))
		}
	}
	return out
}

func TestAnalyze_LogLawPasses(t *testing.T) {
	res, err := Analyze(benfordAmounts(1000), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, ConclusionPass, res.Conclusion)
	assert.Less(t, res.ChiSquare, res.CriticalValue)
	assert.Greater(t, res.ConformityScore, 0.9)
	assert.Less(t, res.MAD, 0.01)
	assert.Equal(t, DegreesOfFreedom, res.DegreesOfFreedom)
}

func TestAnalyze_UniformDigitsFail(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	amounts := make([]decimal.Decimal, 900)
	for i := range amounts {
		d := int64(i%9 + 1)
		amounts[i] = decimal.NewFromInt(d*1000 + r.Int64N(1000))
	}
	res, err := Analyze(amounts, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, ConclusionFail, res.Conclusion)
	assert.Greater(t, res.ChiSquare, res.CriticalValue)
	for d := 1; d <= 9; d++ {
		assert.Equal(t, 100, res.Counts[d])
		assert.InDelta(t, 1.0/9, res.Observed[d], 1e-12)
	}
}

func TestAnalyze_InsufficientData(t *testing.T) {
	amounts := make([]decimal.Decimal, 0, 35)
	for i := 1; i <= 29; i++ {
		amounts = append(amounts, decimal.NewFromInt(int64(i)))
	}
	for i := 0; i < 6; i++ {
		amounts = append(amounts, decimal.Zero)
	}

	res, err := Analyze(amounts, DefaultConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
	assert.NotErrorIs(t, err, domain.ErrInvalidInput)
	require.NotNil(t, res)
	assert.Equal(t, ConclusionInsufficientData, res.Conclusion)
	assert.Equal(t, 29, res.SampleSize)
	assert.Equal(t, 6, res.Excluded)
	assert.Zero(t, res.ChiSquare)
}

func TestAnalyze_MinSampleIsConfigurable(t *testing.T) {
	amounts := []decimal.Decimal{decimal.NewFromInt(1), decimal.NewFromInt(2), decimal.NewFromInt(13)}
	res, err := Analyze(amounts, Config{CriticalValue: 15.51, MinSample: 3})
	require.NoError(t, err)
	assert.NotEqual(t, ConclusionInsufficientData, res.Conclusion)
	assert.Equal(t, 2, res.Counts[1])
}

func TestAnalyze_InvalidInput(t *testing.T) {
	_, err := Analyze(nil, DefaultConfig())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = Analyze([]decimal.Decimal{decimal.NewFromInt(1)}, Config{CriticalValue: 0, MinSample: 30})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = Analyze([]decimal.Decimal{decimal.NewFromInt(1)}, Config{CriticalValue: 15.51, MinSample: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
