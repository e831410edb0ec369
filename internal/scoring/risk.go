// Package scoring implements the likelihood × impact risk model and the
// control-effectiveness adjustments applied to it.
package scoring

import (
	"math"
	"sort"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
)

const (
	minRating = 1
	maxRating = 5
	// MaxInherent is the largest possible likelihood × impact product.
	MaxInherent = maxRating * maxRating
)

// Level is the qualitative band of an inherent risk score.
type Level string

const (
	LevelLow      Level = "Low"
	LevelMedium   Level = "Medium"
	LevelHigh     Level = "High"
	LevelCritical Level = "Critical"
)

// LevelBands holds the lowest score of each band above Low.
type LevelBands struct {
	Medium   int `yaml:"medium" json:"medium"`
	High     int `yaml:"high" json:"high"`
	Critical int `yaml:"critical" json:"critical"`
}

// DefaultLevelBands: 1-4 Low, 5-9 Medium, 10-16 High, 17-25 Critical.
func DefaultLevelBands() LevelBands {
	return LevelBands{Medium: 5, High: 10, Critical: 17}
}

// Validate checks the bands are strictly increasing inside (1, 25].
func (b LevelBands) Validate() error {
	if !(minRating < b.Medium && b.Medium < b.High && b.High < b.Critical && b.Critical <= MaxInherent) {
		return domain.Invalidf("risk level bands must satisfy 1 < medium < high < critical <= 25, got %d/%d/%d",
			b.Medium, b.High, b.Critical)
	}
	return nil
}

// RiskScore is a fully assessed risk.
type RiskScore struct {
	Likelihood           int     `json:"likelihood"`
	Impact               int     `json:"impact"`
	Inherent             int     `json:"inherent"`
	ControlEffectiveness float64 `json:"control_effectiveness"`
	Residual             float64 `json:"residual"`
	Level                Level   `json:"level"`
	ResidualLevel        Level   `json:"residual_level"`
}

// InherentRisk returns likelihood × impact. Both operands must lie in [1,5].
func InherentRisk(likelihood, impact int) (int, error) {
	if likelihood < minRating || likelihood > maxRating {
		return 0, domain.Invalidf("likelihood %d outside [1,5]", likelihood)
	}
	if impact < minRating || impact > maxRating {
		return 0, domain.Invalidf("impact %d outside [1,5]", impact)
	}
	return likelihood * impact, nil
}

// ResidualRisk returns inherent × (1 − controlEffectiveness) rounded to two
// decimals. controlEffectiveness must lie in [0,1].
func ResidualRisk(inherent, controlEffectiveness float64) (float64, error) {
	if math.IsNaN(inherent) || math.IsInf(inherent, 0) || inherent < 0 {
		return 0, domain.Invalidf("inherent risk %v must be a non-negative number", inherent)
	}
	if math.IsNaN(controlEffectiveness) || controlEffectiveness < 0 || controlEffectiveness > 1 {
		return 0, domain.Invalidf("control effectiveness %v outside [0,1]", controlEffectiveness)
	}
	return round2(inherent * (1 - controlEffectiveness)), nil
}

// RiskLevel maps an inherent score onto bands. Scores below 1 are Low and
// above 25 Critical.
func RiskLevel(score int, bands LevelBands) Level {
	switch {
	case score >= bands.Critical:
		return LevelCritical
	case score >= bands.High:
		return LevelHigh
	case score >= bands.Medium:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Assess computes inherent, residual and their levels in one call.
// The residual level uses the residual rounded half-up to an integer.
func Assess(likelihood, impact int, controlEffectiveness float64, bands LevelBands) (RiskScore, error) {
	if err := bands.Validate(); err != nil {
		return RiskScore{}, err
	}
	inherent, err := InherentRisk(likelihood, impact)
	if err != nil {
		return RiskScore{}, err
	}
	residual, err := ResidualRisk(float64(inherent), controlEffectiveness)
	if err != nil {
		return RiskScore{}, err
	}
	return RiskScore{
		Likelihood:           likelihood,
		Impact:               impact,
		Inherent:             inherent,
		ControlEffectiveness: controlEffectiveness,
		Residual:             residual,
		Level:                RiskLevel(inherent, bands),
		ResidualLevel:        RiskLevel(int(math.Round(residual)), bands),
	}, nil
}

// AverageFactorRisk returns the mean of several 1-5 factor scores, e.g.
// complexity, volume and regulatory exposure of a process.
func AverageFactorRisk(factors map[string]int) (float64, error) {
	if len(factors) == 0 {
		return 0, domain.Invalidf("at least one risk factor is required")
	}
	names := make([]string, 0, len(factors))
	for name := range factors {
		names = append(names, name)
	}
	sort.Strings(names)

	total := 0
	for _, name := range names {
		v := factors[name]
		if v < minRating || v > maxRating {
			return 0, domain.Invalidf("factor %q score %d outside [1,5]", name, v)
		}
		total += v
	}
	return float64(total) / float64(len(factors)), nil
}

// AppetiteBreach reports whether score exceeds the maximum acceptable score
// of a risk appetite category.
func AppetiteBreach(score, maxAcceptable int) bool {
	return score > maxAcceptable
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
