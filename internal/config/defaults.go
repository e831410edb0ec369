package config

import (
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/anomaly"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/benford"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/scoring"
)

// Default returns a profile with every default applied.
func Default() *Profile {
	p := &Profile{Version: "1"}
	applyDefaults(p)
	return p
}

// applyDefaults fills zero values. Explicit values are never overwritten.
func applyDefaults(p *Profile) {
	if p.Engine.Workers == 0 {
		p.Engine.Workers = 8
	}
	if p.Engine.QueueDepth == 0 {
		p.Engine.QueueDepth = 256
	}
	if p.Engine.AnalysisTimeoutMs == 0 {
		p.Engine.AnalysisTimeoutMs = 10000
	}
	if p.Engine.MaxBatch == 0 {
		p.Engine.MaxBatch = 20
	}
	if p.Engine.MaxJobs == 0 {
		p.Engine.MaxJobs = 1000
	}

	if p.Logging.Level == "" {
		p.Logging.Level = "info"
	}
	if p.Logging.Format == "" {
		p.Logging.Format = "json"
	}

	if p.Scoring.LevelBands == (scoring.LevelBands{}) {
		p.Scoring.LevelBands = scoring.DefaultLevelBands()
	}
	if p.Scoring.RatingBands == (scoring.RatingBands{}) {
		p.Scoring.RatingBands = scoring.DefaultRatingBands()
	}

	if p.Sampling.DefaultMethod == "" {
		p.Sampling.DefaultMethod = "RANDOM"
	}
	if p.Sampling.DefaultSize == 0 {
		p.Sampling.DefaultSize = 25
	}
	if p.Sampling.StratifyBy == "" {
		p.Sampling.StratifyBy = "category"
	}

	ad := anomaly.DefaultConfig()
	a := &p.Anomaly
	if len(a.Methods) == 0 {
		for _, m := range anomaly.CoreMethods {
			a.Methods = append(a.Methods, string(m))
		}
	}
	if a.ZScoreThreshold == 0 {
		a.ZScoreThreshold = ad.ZScoreThreshold
	}
	if a.IQRMultiplier == 0 {
		a.IQRMultiplier = ad.IQRMultiplier
	}
	if a.RoundUnit == "" {
		a.RoundUnit = ad.RoundUnit.String()
	}
	if a.RoundFloor == "" {
		a.RoundFloor = ad.RoundFloor.String()
	}
	if a.BusinessHours.Start == 0 && a.BusinessHours.End == 0 {
		a.BusinessHours.Start = ad.BusinessHours.StartHour
		a.BusinessHours.End = ad.BusinessHours.EndHour
	}
	if a.BusinessHours.Timezone == "" {
		a.BusinessHours.Timezone = "UTC"
	}
	if a.BusinessHours.FlagWeekends == nil {
		v := ad.BusinessHours.FlagWeekends
		a.BusinessHours.FlagWeekends = &v
	}
	if a.RapidWindow == "" {
		a.RapidWindow = ad.RapidWindow.String()
	}
	if a.SplitTolerance == 0 {
		a.SplitTolerance = ad.SplitTolerance
	}

	bd := benford.DefaultConfig()
	if p.Benford.CriticalValue == 0 {
		p.Benford.CriticalValue = bd.CriticalValue
	}
	if p.Benford.MinSample == 0 {
		p.Benford.MinSample = bd.MinSample
	}

	r := &p.Reconciliation
	if r.Tolerance == "" {
		r.Tolerance = "0"
	}
	if len(r.CustodyAccountTypes) == 0 {
		r.CustodyAccountTypes = []string{domain.AccountTypeCustody}
	}
	if r.SeverityUSD == (SeverityConf{}) {
		r.SeverityUSD = SeverityConf{Medium: "1000", High: "10000", Critical: "100000"}
	}
}
