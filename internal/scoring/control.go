package scoring

import (
	"math"
	"sort"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
)

// Rating is the ordered categorical result of control testing.
type Rating string

const (
	RatingIneffective      Rating = "Ineffective"
	RatingNeedsImprovement Rating = "Needs Improvement"
	RatingSatisfactory     Rating = "Satisfactory"
	RatingEffective        Rating = "Effective"
)

// Rank orders ratings from 0 (Ineffective) to 3 (Effective); -1 if unknown.
func (r Rating) Rank() int {
	switch r {
	case RatingIneffective:
		return 0
	case RatingNeedsImprovement:
		return 1
	case RatingSatisfactory:
		return 2
	case RatingEffective:
		return 3
	}
	return -1
}

// RatingBands are the inclusive lower bounds, on a 0-100 test score, of the
// three bands above Ineffective.
type RatingBands struct {
	NeedsImprovement float64 `yaml:"needs_improvement" json:"needs_improvement"`
	Satisfactory     float64 `yaml:"satisfactory" json:"satisfactory"`
	Effective        float64 `yaml:"effective" json:"effective"`
}

func DefaultRatingBands() RatingBands {
	return RatingBands{NeedsImprovement: 60, Satisfactory: 75, Effective: 90}
}

func (b RatingBands) Validate() error {
	if !(0 < b.NeedsImprovement && b.NeedsImprovement < b.Satisfactory &&
		b.Satisfactory < b.Effective && b.Effective <= 100) {
		return domain.Invalidf("rating bands must satisfy 0 < needs_improvement < satisfactory < effective <= 100, got %v/%v/%v",
			b.NeedsImprovement, b.Satisfactory, b.Effective)
	}
	return nil
}

// ControlEffectivenessRating maps a 0-100 test score to a Rating.
func ControlEffectivenessRating(score float64, bands RatingBands) (Rating, error) {
	if err := bands.Validate(); err != nil {
		return "", err
	}
	if math.IsNaN(score) || score < 0 || score > 100 {
		return "", domain.Invalidf("test score %v outside [0,100]", score)
	}
	switch {
	case score >= bands.Effective:
		return RatingEffective, nil
	case score >= bands.Satisfactory:
		return RatingSatisfactory, nil
	case score >= bands.NeedsImprovement:
		return RatingNeedsImprovement, nil
	default:
		return RatingIneffective, nil
	}
}

// TestResult is the outcome of one control test step.
type TestResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
}

// PassRate returns the share of passed tests in [0,1].
func PassRate(results []TestResult) (float64, error) {
	if len(results) == 0 {
		return 0, domain.Invalidf("at least one test result is required")
	}
	passed := 0
	for _, r := range results {
		if r.Passed {
			passed++
		}
	}
	return float64(passed) / float64(len(results)), nil
}

// CombinedEffectiveness averages the effectiveness of the controls
// mitigating one risk. Each value must lie in [0,1].
func CombinedEffectiveness(controls map[string]float64) (float64, error) {
	if len(controls) == 0 {
		return 0, domain.Invalidf("at least one control is required")
	}
	names := make([]string, 0, len(controls))
	for name := range controls {
		names = append(names, name)
	}
	sort.Strings(names)

	var sum float64
	for _, name := range names {
		v := controls[name]
		if math.IsNaN(v) || v < 0 || v > 1 {
			return 0, domain.Invalidf("control %q effectiveness %v outside [0,1]", name, v)
		}
		sum += v
	}
	return sum / float64(len(controls)), nil
}

// ControlGap returns max(0, expected − actual) for performances in [0,1].
func ControlGap(expected, actual float64) (float64, error) {
	if math.IsNaN(expected) || expected < 0 || expected > 1 {
		return 0, domain.Invalidf("expected performance %v outside [0,1]", expected)
	}
	if math.IsNaN(actual) || actual < 0 || actual > 1 {
		return 0, domain.Invalidf("actual performance %v outside [0,1]", actual)
	}
	return round2(math.Max(0, expected-actual)), nil
}
