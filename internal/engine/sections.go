package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/anomaly"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/benford"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/config"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/pricing"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/reconcile"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/rule"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/sampling"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/scoring"
)

// Each function here takes the profile snapshot explicitly so one request
// never mixes thresholds from two profiles.

func sample(p *config.Profile, txns []domain.Transaction, params SamplingParams) (*sampling.Selection, error) {
	method := params.Method
	if method == "" {
		method = sampling.Method(p.Sampling.DefaultMethod)
	}
	size := params.Size
	if size == 0 {
		size = p.Sampling.DefaultSize
		if size > len(txns) && method != sampling.MethodMonetaryUnit {
			size = len(txns)
		}
	}

	var s sampling.Sampler
	switch method {
	case sampling.MethodStratified:
		by := params.StratifyBy
		if by == "" {
			by = p.Sampling.StratifyBy
		}
		key, err := config.StratumKey(by)
		if err != nil {
			return nil, err
		}
		s = sampling.Stratified{Key: key, Allocations: params.Allocations, Seed: params.Seed}
	case sampling.MethodMonetaryUnit:
		randomStart := p.Sampling.RandomStart
		if params.RandomStart != nil {
			randomStart = *params.RandomStart
		}
		s = sampling.MonetaryUnit{RandomStart: randomStart, Seed: params.Seed}
	default:
		var err error
		if s, err = sampling.New(method, params.Seed); err != nil {
			return nil, err
		}
	}
	return s.Select(txns, size)
}

func anomalyConfig(p *config.Profile, params AnomalyParams) (anomaly.Config, []anomaly.Method, error) {
	cfg, err := p.AnomalyConfig()
	if err != nil {
		return cfg, nil, err
	}
	if params.ZScoreThreshold != nil {
		cfg.ZScoreThreshold = *params.ZScoreThreshold
	}
	if params.IQRMultiplier != nil {
		cfg.IQRMultiplier = *params.IQRMultiplier
	}
	if params.RoundUnit != nil {
		cfg.RoundUnit = *params.RoundUnit
	}
	if params.RoundFloor != nil {
		cfg.RoundFloor = *params.RoundFloor
	}
	if params.StartHour != nil {
		cfg.BusinessHours.StartHour = *params.StartHour
	}
	if params.EndHour != nil {
		cfg.BusinessHours.EndHour = *params.EndHour
	}
	if params.Timezone != "" {
		loc, err := time.LoadLocation(params.Timezone)
		if err != nil {
			return cfg, nil, domain.Invalidf("unknown timezone %q", params.Timezone)
		}
		cfg.BusinessHours.Location = loc
	}
	if params.Holidays != nil {
		cfg.Holidays = params.Holidays
	}
	if params.Rules != nil {
		if cfg.Rules, err = rule.CompileAll(params.Rules); err != nil {
			return cfg, nil, err
		}
	}
	methods := params.Methods
	if len(methods) == 0 {
		methods = p.AnomalyMethods()
	}
	return cfg, methods, nil
}

func detect(p *config.Profile, registry *anomaly.Registry, txns []domain.Transaction, params AnomalyParams) (*anomaly.Report, error) {
	if len(txns) == 0 {
		return nil, domain.Invalidf("transaction population is empty")
	}
	cfg, methods, err := anomalyConfig(p, params)
	if err != nil {
		return nil, err
	}
	return registry.Run(txns, methods, cfg), nil
}

func benfordTest(p *config.Profile, amounts []decimal.Decimal, params BenfordParams) (*benford.Result, error) {
	cfg := p.BenfordConfig()
	if params.CriticalValue != nil {
		cfg.CriticalValue = *params.CriticalValue
	}
	if params.MinSample != nil {
		cfg.MinSample = *params.MinSample
	}
	return benford.Analyze(amounts, cfg)
}

func reconcileBalances(p *config.Profile, pairs []domain.BalancePair, params ReconcileParams) (*reconcile.Report, error) {
	book, err := p.PriceBook()
	if err != nil {
		return nil, err
	}
	if len(params.Prices) > 0 {
		extra, err := pricing.NewBook(params.Prices)
		if err != nil {
			return nil, err
		}
		book = book.Merge(extra)
	}
	opts, err := p.ReconcileOptions()
	if err != nil {
		return nil, err
	}
	if params.Tolerance != nil {
		opts.Tolerance = *params.Tolerance
	}
	if len(params.CustodyAccountTypes) > 0 {
		opts.CustodyAccountTypes = params.CustodyAccountTypes
	}
	return reconcile.Reconcile(pairs, book, opts)
}

func assessRisk(p *config.Profile, req RiskRequest) (*RiskAssessment, error) {
	ce := 0.0
	switch {
	case req.ControlEffectiveness != nil:
		ce = *req.ControlEffectiveness
	case len(req.Controls) > 0:
		var err error
		if ce, err = scoring.CombinedEffectiveness(req.Controls); err != nil {
			return nil, err
		}
	}
	score, err := scoring.Assess(req.Likelihood, req.Impact, ce, p.Scoring.LevelBands)
	if err != nil {
		return nil, err
	}
	out := &RiskAssessment{Name: req.Name, RiskScore: score, Category: req.Category}
	if len(req.Factors) > 0 {
		avg, err := scoring.AverageFactorRisk(req.Factors)
		if err != nil {
			return nil, err
		}
		out.FactorAverage = &avg
	}
	if req.Category != "" {
		if limit, ok := p.Scoring.Appetite[req.Category]; ok {
			out.Appetite = &limit
			out.AppetiteBreach = scoring.AppetiteBreach(score.Inherent, limit)
		}
	}
	return out, nil
}

func rateControl(p *config.Profile, req ControlRequest) (*ControlAssessment, error) {
	out := &ControlAssessment{Name: req.Name}
	if len(req.Tests) > 0 {
		rate, err := scoring.PassRate(req.Tests)
		if err != nil {
			return nil, err
		}
		out.PassRate = &rate
		out.Score = rate * 100
	}
	switch {
	case req.Score != nil:
		out.Score = *req.Score
	case out.PassRate == nil:
		return nil, domain.Invalidf("control %q needs a score or test results", req.Name)
	}
	rating, err := scoring.ControlEffectivenessRating(out.Score, p.Scoring.RatingBands)
	if err != nil {
		return nil, err
	}
	out.Rating = rating
	out.Deficient = rating.Rank() < scoring.RatingSatisfactory.Rank()
	if req.Expected != nil {
		gap, err := scoring.ControlGap(*req.Expected, out.Score/100)
		if err != nil {
			return nil, err
		}
		out.Gap = &gap
	}
	return out, nil
}

func summarizeControls(p *config.Profile, reqs []ControlRequest) (*scoring.ControlSummaryData, error) {
	rated := make([]scoring.RatedControl, 0, len(reqs))
	for _, req := range reqs {
		a, err := rateControl(p, req)
		if err != nil {
			return nil, err
		}
		rated = append(rated, scoring.RatedControl{Name: a.Name, Score: a.Score})
	}
	s, err := scoring.ControlSummary(rated, p.Scoring.RatingBands)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func heatmap(p *config.Profile, risks []scoring.RiskInput) (*scoring.HeatmapData, error) {
	if len(risks) == 0 {
		return nil, domain.Invalidf("no risks to place on the heatmap")
	}
	h := scoring.Heatmap(risks, p.Scoring.LevelBands)
	return &h, nil
}
