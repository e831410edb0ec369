package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/anomaly"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/pricing"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/rule"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/sampling"
)

// Validate checks a defaulted profile and reports every problem at once.
// The returned error wraps domain.ErrInvalidInput.
func Validate(p *Profile) error {
	if p.Version == "" {
		return domain.Invalidf("profile: version is required")
	}
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	e := p.Engine
	if e.Workers < 1 {
		add("engine.workers must be at least 1, got %d", e.Workers)
	}
	if e.QueueDepth < 1 {
		add("engine.queue_depth must be at least 1, got %d", e.QueueDepth)
	}
	if e.AnalysisTimeoutMs < 1 {
		add("engine.analysis_timeout_ms must be positive, got %d", e.AnalysisTimeoutMs)
	}
	if e.MaxBatch < 1 {
		add("engine.max_batch must be at least 1, got %d", e.MaxBatch)
	}
	if e.MaxJobs < 1 {
		add("engine.max_jobs must be at least 1, got %d", e.MaxJobs)
	}

	if _, err := zerolog.ParseLevel(p.Logging.Level); err != nil {
		add("logging.level %q is not a log level", p.Logging.Level)
	}
	if f := p.Logging.Format; f != "json" && f != "console" {
		add("logging.format must be json or console, got %q", f)
	}

	if err := p.Scoring.LevelBands.Validate(); err != nil {
		add("scoring.level_bands: %v", err)
	}
	if err := p.Scoring.RatingBands.Validate(); err != nil {
		add("scoring.rating_bands: %v", err)
	}
	for cat, limit := range p.Scoring.Appetite {
		if limit < 1 || limit > 25 {
			add("scoring.appetite[%s] must lie in [1,25], got %d", cat, limit)
		}
	}

	if _, err := sampling.New(sampling.Method(p.Sampling.DefaultMethod), nil); err != nil {
		add("sampling.default_method: %v", err)
	}
	if p.Sampling.DefaultSize < 1 {
		add("sampling.default_size must be at least 1, got %d", p.Sampling.DefaultSize)
	}
	if _, err := StratumKey(p.Sampling.StratifyBy); err != nil {
		add("sampling.stratify_by: %v", err)
	}

	a := p.Anomaly
	registry := anomaly.DefaultRegistry()
	for _, m := range a.Methods {
		if _, err := registry.Get(anomaly.Method(m)); err != nil {
			add("anomaly.methods: unknown method %q", m)
		}
	}
	if a.ZScoreThreshold <= 0 {
		add("anomaly.zscore_threshold must be positive, got %v", a.ZScoreThreshold)
	}
	if a.IQRMultiplier <= 0 {
		add("anomaly.iqr_multiplier must be positive, got %v", a.IQRMultiplier)
	}
	if d, err := decimal.NewFromString(a.RoundUnit); err != nil || !d.IsPositive() {
		add("anomaly.round_unit must be a positive decimal, got %q", a.RoundUnit)
	}
	if d, err := decimal.NewFromString(a.RoundFloor); err != nil || d.IsNegative() {
		add("anomaly.round_floor must be a non-negative decimal, got %q", a.RoundFloor)
	}
	if _, err := time.LoadLocation(a.BusinessHours.Timezone); err != nil {
		add("anomaly.business_hours.timezone %q: %v", a.BusinessHours.Timezone, err)
	}
	bh := anomaly.BusinessHours{StartHour: a.BusinessHours.Start, EndHour: a.BusinessHours.End, Location: time.UTC}
	if err := bh.Validate(); err != nil {
		add("anomaly.business_hours: %v", err)
	}
	for _, h := range a.Holidays {
		if _, err := time.Parse(time.DateOnly, h); err != nil {
			add("anomaly.holidays: %q is not a YYYY-MM-DD date", h)
		}
	}
	if d, err := time.ParseDuration(a.RapidWindow); err != nil || d <= 0 {
		add("anomaly.rapid_window must be a positive duration, got %q", a.RapidWindow)
	}
	if a.SplitTolerance <= 0 || a.SplitTolerance >= 1 {
		add("anomaly.split_tolerance must lie in (0,1), got %v", a.SplitTolerance)
	}
	if _, err := rule.CompileAll(a.Rules); err != nil {
		add("anomaly.rules: %v", err)
	}

	if p.Benford.CriticalValue <= 0 {
		add("benford.critical_value must be positive, got %v", p.Benford.CriticalValue)
	}
	if p.Benford.MinSample < 1 {
		add("benford.min_sample must be at least 1, got %d", p.Benford.MinSample)
	}

	r := p.Reconciliation
	if d, err := decimal.NewFromString(r.Tolerance); err != nil || d.IsNegative() {
		add("reconciliation.tolerance must be a non-negative decimal, got %q", r.Tolerance)
	}
	if _, err := severityBands(r.SeverityUSD); err != nil {
		add("reconciliation.severity_usd: %v", err)
	}
	if _, err := pricing.ParseBook(r.Prices); err != nil {
		add("reconciliation.prices: %v", err)
	}

	if len(errs) > 0 {
		return domain.Invalidf("profile validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
