package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
)

func TestInherentRisk_AllValidPairs(t *testing.T) {
	for l := 1; l <= 5; l++ {
		for i := 1; i <= 5; i++ {
			got, err := InherentRisk(l, i)
			require.NoError(t, err)
			assert.Equal(t, l*i, got)

			swapped, err := InherentRisk(i, l)
			require.NoError(t, err)
			assert.Equal(t, got, swapped, "commutative for %d,%d", l, i)
			assert.LessOrEqual(t, got, MaxInherent)
		}
	}
}

func TestInherentRisk_OutOfRange(t *testing.T) {
	tests := []struct {
		name               string
		likelihood, impact int
	}{
		{"likelihood zero", 0, 3},
		{"likelihood six", 6, 3},
		{"impact zero", 3, 0},
		{"impact negative", 3, -2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InherentRisk(tt.likelihood, tt.impact)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestResidualRisk_Bounds(t *testing.T) {
	for inherent := 1; inherent <= 25; inherent++ {
		for _, ce := range []float64{0, 0.1, 0.33, 0.5, 0.75, 0.999, 1} {
			r, err := ResidualRisk(float64(inherent), ce)
			require.NoError(t, err)
			assert.LessOrEqual(t, r, float64(inherent))
			assert.GreaterOrEqual(t, r, 0.0)
		}
		full, _ := ResidualRisk(float64(inherent), 0)
		assert.Equal(t, float64(inherent), full)
		none, _ := ResidualRisk(float64(inherent), 1)
		assert.Equal(t, 0.0, none)
	}
}

func TestResidualRisk_RoundsToTwoDecimals(t *testing.T) {
	r, err := ResidualRisk(12, 1.0/3.0)
	require.NoError(t, err)
	assert.Equal(t, 8.0, r)

	r, err = ResidualRisk(7, 0.123)
	require.NoError(t, err)
	assert.Equal(t, 6.14, r)
}

func TestResidualRisk_Invalid(t *testing.T) {
	_, err := ResidualRisk(10, -0.01)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = ResidualRisk(10, 1.01)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = ResidualRisk(-1, 0.5)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRiskLevel(t *testing.T) {
	bands := DefaultLevelBands()
	cases := map[int]Level{
		1: LevelLow, 4: LevelLow,
		5: LevelMedium, 9: LevelMedium,
		10: LevelHigh, 16: LevelHigh,
		17: LevelCritical, 25: LevelCritical,
	}
	for score, want := range cases {
		assert.Equal(t, want, RiskLevel(score, bands), "score %d", score)
	}
}

func TestAssess(t *testing.T) {
	rs, err := Assess(4, 5, 0.6, DefaultLevelBands())
	require.NoError(t, err)
	assert.Equal(t, 20, rs.Inherent)
	assert.Equal(t, 8.0, rs.Residual)
	assert.Equal(t, LevelCritical, rs.Level)
	assert.Equal(t, LevelMedium, rs.ResidualLevel)

	_, err = Assess(4, 5, 0.6, LevelBands{Medium: 10, High: 5, Critical: 17})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAverageFactorRisk(t *testing.T) {
	avg, err := AverageFactorRisk(map[string]int{"complexity": 4, "volume": 3, "regulatory": 5})
	require.NoError(t, err)
	assert.Equal(t, 4.0, avg)

	_, err = AverageFactorRisk(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = AverageFactorRisk(map[string]int{"volume": 9})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAppetiteBreach(t *testing.T) {
	assert.True(t, AppetiteBreach(6, 4))
	assert.False(t, AppetiteBreach(4, 4))
}

func TestHeatmap(t *testing.T) {
	h := Heatmap([]RiskInput{
		{Name: "Hot wallet key compromise", Likelihood: 3, Impact: 5},
		{Name: "Stale price feed", Likelihood: 2, Impact: 2},
		{Name: "Bad row", Likelihood: 0, Impact: 4},
	}, DefaultLevelBands())

	assert.Equal(t, 2, h.Total)
	assert.Equal(t, []string{"Bad row"}, h.Rejected)
	require.Len(t, h.Matrix[2][4], 1)
	assert.Equal(t, 15, h.Matrix[2][4][0].Score)
	assert.Equal(t, LevelHigh, h.Matrix[2][4][0].Level)
	assert.Equal(t, 1, h.Counts[LevelHigh])
	assert.Equal(t, 1, h.Counts[LevelLow])
	assert.Equal(t, 0, h.Counts[LevelMedium])
}
