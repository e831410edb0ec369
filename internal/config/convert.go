package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/anomaly"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/benford"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/pricing"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/reconcile"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/rule"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/sampling"
)

// The conversions below assume a validated profile; they still return
// errors so a hand-built Profile cannot panic.

// AnalysisTimeout is the per-analysis deadline for synchronous requests.
func (p *Profile) AnalysisTimeout() time.Duration {
	return time.Duration(p.Engine.AnalysisTimeoutMs) * time.Millisecond
}

// AnomalyConfig builds the detector configuration.
func (p *Profile) AnomalyConfig() (anomaly.Config, error) {
	a := p.Anomaly
	unit, err := decimal.NewFromString(a.RoundUnit)
	if err != nil {
		return anomaly.Config{}, domain.Invalidf("round unit %q: %v", a.RoundUnit, err)
	}
	floor, err := decimal.NewFromString(a.RoundFloor)
	if err != nil {
		return anomaly.Config{}, domain.Invalidf("round floor %q: %v", a.RoundFloor, err)
	}
	loc, err := time.LoadLocation(a.BusinessHours.Timezone)
	if err != nil {
		return anomaly.Config{}, domain.Invalidf("timezone %q: %v", a.BusinessHours.Timezone, err)
	}
	window, err := time.ParseDuration(a.RapidWindow)
	if err != nil {
		return anomaly.Config{}, domain.Invalidf("rapid window %q: %v", a.RapidWindow, err)
	}
	weekends := true
	if a.BusinessHours.FlagWeekends != nil {
		weekends = *a.BusinessHours.FlagWeekends
	}
	rules, err := rule.CompileAll(a.Rules)
	if err != nil {
		return anomaly.Config{}, err
	}
	return anomaly.Config{
		ZScoreThreshold: a.ZScoreThreshold,
		IQRMultiplier:   a.IQRMultiplier,
		RoundUnit:       unit,
		RoundFloor:      floor,
		BusinessHours: anomaly.BusinessHours{
			StartHour:    a.BusinessHours.Start,
			EndHour:      a.BusinessHours.End,
			Location:     loc,
			FlagWeekends: weekends,
		},
		Holidays:       append([]string(nil), a.Holidays...),
		RapidWindow:    window,
		SplitTolerance: a.SplitTolerance,
		Rules:          rules,
	}, nil
}

// AnomalyMethods returns the methods run when a request names none.
func (p *Profile) AnomalyMethods() []anomaly.Method {
	out := make([]anomaly.Method, len(p.Anomaly.Methods))
	for i, m := range p.Anomaly.Methods {
		out[i] = anomaly.Method(m)
	}
	return out
}

func (p *Profile) BenfordConfig() benford.Config {
	return benford.Config{CriticalValue: p.Benford.CriticalValue, MinSample: p.Benford.MinSample}
}

// PriceBook returns the static prices carried by the profile.
func (p *Profile) PriceBook() (pricing.Book, error) {
	return pricing.ParseBook(p.Reconciliation.Prices)
}

func (p *Profile) ReconcileOptions() (reconcile.Options, error) {
	r := p.Reconciliation
	tol, err := decimal.NewFromString(r.Tolerance)
	if err != nil {
		return reconcile.Options{}, domain.Invalidf("tolerance %q: %v", r.Tolerance, err)
	}
	bands, err := severityBands(r.SeverityUSD)
	if err != nil {
		return reconcile.Options{}, err
	}
	return reconcile.Options{
		Tolerance:           tol,
		CustodyAccountTypes: append([]string(nil), r.CustodyAccountTypes...),
		Severity:            bands,
	}, nil
}

// StratumKey resolves a stratify_by name.
func StratumKey(name string) (sampling.KeyFunc, error) {
	switch strings.ToLower(name) {
	case "category":
		return sampling.ByCategory, nil
	case "asset":
		return sampling.ByAsset, nil
	case "direction":
		return sampling.ByDirection, nil
	}
	return nil, domain.Invalidf("unknown stratum key %q (want category, asset or direction)", name)
}

func severityBands(c SeverityConf) (reconcile.SeverityBands, error) {
	var b reconcile.SeverityBands
	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"medium", c.Medium, &b.Medium},
		{"high", c.High, &b.High},
		{"critical", c.Critical, &b.Critical},
	} {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return b, domain.Invalidf("%s: %q is not a decimal", f.name, f.raw)
		}
		*f.dst = d
	}
	if err := b.Validate(); err != nil {
		return b, fmt.Errorf("severity bands: %w", err)
	}
	return b, nil
}
