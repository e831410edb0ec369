package scoring

// RiskInput is a register entry as handed over by the caller.
type RiskInput struct {
	Name       string `json:"name"`
	Likelihood int    `json:"likelihood"`
	Impact     int    `json:"impact"`
}

// HeatmapCell is one risk placed on the grid.
type HeatmapCell struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
	Level Level  `json:"level"`
}

// HeatmapData is a 5×5 likelihood (row) × impact (column) grid.
type HeatmapData struct {
	Matrix       [5][5][]HeatmapCell `json:"matrix"`
	Counts       map[Level]int       `json:"counts"`
	Total        int                 `json:"total"`
	Rejected     []string            `json:"rejected,omitempty"`
	LikelihoodAx [5]string           `json:"likelihood_labels"`
	ImpactAx     [5]string           `json:"impact_labels"`
}

var (
	likelihoodLabels = [5]string{"Rare", "Unlikely", "Possible", "Likely", "Almost Certain"}
	impactLabels     = [5]string{"Insignificant", "Minor", "Moderate", "Major", "Catastrophic"}
)

// Heatmap places each risk on the grid. Risks with out-of-range ratings are
// not clamped; their names are listed in Rejected instead.
func Heatmap(risks []RiskInput, bands LevelBands) HeatmapData {
	h := HeatmapData{
		Counts: map[Level]int{
			LevelLow: 0, LevelMedium: 0, LevelHigh: 0, LevelCritical: 0,
		},
		LikelihoodAx: likelihoodLabels,
		ImpactAx:     impactLabels,
	}
	for _, r := range risks {
		score, err := InherentRisk(r.Likelihood, r.Impact)
		if err != nil {
			h.Rejected = append(h.Rejected, r.Name)
			continue
		}
		lvl := RiskLevel(score, bands)
		h.Matrix[r.Likelihood-1][r.Impact-1] = append(h.Matrix[r.Likelihood-1][r.Impact-1],
			HeatmapCell{Name: r.Name, Score: score, Level: lvl})
		h.Counts[lvl]++
		h.Total++
	}
	return h
}
