package scoring

import "github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"

// RatedControl is one control as it enters a ControlSummary.
type RatedControl struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`
	Rating Rating  `json:"rating"`
}

// ControlSummaryData counts controls per rating and rates their average.
type ControlSummaryData struct {
	Counts        map[Rating]int `json:"counts"`
	Controls      []RatedControl `json:"controls"`
	Total         int            `json:"total"`
	AverageScore  float64        `json:"average_score"`
	OverallRating Rating         `json:"overall_rating"`
}

// ControlSummary rates each 0-100 control score and the average of all of
// them against bands.
func ControlSummary(controls []RatedControl, bands RatingBands) (ControlSummaryData, error) {
	if len(controls) == 0 {
		return ControlSummaryData{}, domain.Invalidf("at least one control is required")
	}
	s := ControlSummaryData{
		Counts: map[Rating]int{
			RatingIneffective: 0, RatingNeedsImprovement: 0, RatingSatisfactory: 0, RatingEffective: 0,
		},
		Controls: make([]RatedControl, len(controls)),
		Total:    len(controls),
	}
	var sum float64
	for i, c := range controls {
		r, err := ControlEffectivenessRating(c.Score, bands)
		if err != nil {
			return ControlSummaryData{}, err
		}
		c.Rating = r
		s.Controls[i] = c
		s.Counts[r]++
		sum += c.Score
	}
	s.AverageScore = round2(sum / float64(len(controls)))
	overall, err := ControlEffectivenessRating(s.AverageScore, bands)
	if err != nil {
		return ControlSummaryData{}, err
	}
	s.OverallRating = overall
	return s, nil
}
