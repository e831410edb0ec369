// Package reconcile compares recorded balances against observed balances
// per asset and account type, values the differences in USD and aggregates
// custody balances into a proof-of-reserves view.
package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/pricing"
)

type Status string

const (
	StatusReconciled Status = "RECONCILED"
	StatusVariance   Status = "VARIANCE"
)

// SeverityBands are the absolute USD differences at which a variance
// becomes MEDIUM, HIGH and CRITICAL. Smaller differences are LOW.
type SeverityBands struct {
	Medium   decimal.Decimal `json:"medium"`
	High     decimal.Decimal `json:"high"`
	Critical decimal.Decimal `json:"critical"`
}

func DefaultSeverityBands() SeverityBands {
	return SeverityBands{
		Medium:   decimal.NewFromInt(1_000),
		High:     decimal.NewFromInt(10_000),
		Critical: decimal.NewFromInt(100_000),
	}
}

func (b SeverityBands) Validate() error {
	if b.Medium.IsNegative() || b.Medium.GreaterThan(b.High) || b.High.GreaterThan(b.Critical) {
		return domain.Invalidf("severity bands must satisfy 0 <= medium <= high <= critical, got %s/%s/%s",
			b.Medium, b.High, b.Critical)
	}
	return nil
}

// Options tune a reconciliation run.
type Options struct {
	// Tolerance is the largest absolute native-unit difference still
	// treated as reconciled.
	Tolerance decimal.Decimal
	// CustodyAccountTypes select the pairs aggregated into proof of reserves.
	CustodyAccountTypes []string
	Severity            SeverityBands
}

func DefaultOptions() Options {
	return Options{
		Tolerance:           decimal.Zero,
		CustodyAccountTypes: []string{domain.AccountTypeCustody},
		Severity:            DefaultSeverityBands(),
	}
}

// Variance is the comparison of one balance pair.
type Variance struct {
	Asset        string          `json:"asset"`
	AccountType  string          `json:"account_type"`
	Recorded     decimal.Decimal `json:"recorded"`
	Observed     decimal.Decimal `json:"observed"`
	AbsoluteDiff decimal.Decimal `json:"absolute_diff"`
	// PercentDiff is AbsoluteDiff/Recorded as a fraction; nil when Recorded
	// is zero.
	PercentDiff      *decimal.Decimal `json:"percent_diff"`
	PercentUndefined bool             `json:"percent_undefined"`
	USDPrice         *decimal.Decimal `json:"usd_price,omitempty"`
	USDDiff          *decimal.Decimal `json:"usd_diff"`
	Unpriced         bool             `json:"unpriced"`
	Status           Status           `json:"status"`
	Severity         domain.Severity  `json:"severity"`
}

// ReserveLine aggregates custody balances of one asset.
type ReserveLine struct {
	Asset    string          `json:"asset"`
	Recorded decimal.Decimal `json:"recorded"`
	Observed decimal.Decimal `json:"observed"`
	// Coverage is Observed/Recorded; nil when Recorded is zero.
	Coverage          *decimal.Decimal `json:"coverage"`
	CoverageUndefined bool             `json:"coverage_undefined"`
	RecordedUSD       *decimal.Decimal `json:"recorded_usd"`
	ObservedUSD       *decimal.Decimal `json:"observed_usd"`
	Unpriced          bool             `json:"unpriced"`
}

// ProofOfReserves sums observed and recorded custody balances.
type ProofOfReserves struct {
	AccountTypes []string      `json:"account_types"`
	Assets       []ReserveLine `json:"assets"`
	// USD totals cover priced assets only.
	RecordedUSD       decimal.Decimal  `json:"recorded_usd"`
	ObservedUSD       decimal.Decimal  `json:"observed_usd"`
	Coverage          *decimal.Decimal `json:"coverage"`
	CoverageUndefined bool             `json:"coverage_undefined"`
	UnpricedAssets    []string         `json:"unpriced_assets"`
}

// Report is the result of Reconcile.
type Report struct {
	Variances []Variance `json:"variances"`
	// NetUSDDiff and GrossUSDDiff sum priced pairs only.
	NetUSDDiff      decimal.Decimal `json:"net_usd_diff"`
	GrossUSDDiff    decimal.Decimal `json:"gross_usd_diff"`
	Reconciled      int             `json:"reconciled"`
	WithVariance    int             `json:"with_variance"`
	UnpricedPairs   int             `json:"unpriced_pairs"`
	ProofOfReserves ProofOfReserves `json:"proof_of_reserves"`
}

// Reconcile computes per-pair variances in input order. A pair whose asset
// has no price in prices is reported with Unpriced set and left out of
// every USD total.
func Reconcile(pairs []domain.BalancePair, prices pricing.Book, opts Options) (*Report, error) {
	if len(pairs) == 0 {
		return nil, domain.Invalidf("no balance pairs to reconcile")
	}
	if opts.Tolerance.IsNegative() {
		return nil, domain.Invalidf("tolerance %s must not be negative", opts.Tolerance)
	}
	if err := opts.Severity.Validate(); err != nil {
		return nil, err
	}
	if len(opts.CustodyAccountTypes) == 0 {
		opts.CustodyAccountTypes = []string{domain.AccountTypeCustody}
	}
	for i, p := range pairs {
		if strings.TrimSpace(p.Asset) == "" {
			return nil, domain.Invalidf("pair %d has no asset", i)
		}
		if p.Recorded.IsNegative() || p.Observed.IsNegative() {
			return nil, domain.Invalidf("pair %d (%s/%s) has a negative balance", i, p.Asset, p.AccountType)
		}
	}

	rep := &Report{
		Variances:    make([]Variance, 0, len(pairs)),
		NetUSDDiff:   decimal.Zero,
		GrossUSDDiff: decimal.Zero,
	}
	for _, p := range pairs {
		v := compare(p, prices, opts)
		if v.Unpriced {
			rep.UnpricedPairs++
		} else {
			rep.NetUSDDiff = rep.NetUSDDiff.Add(*v.USDDiff)
			rep.GrossUSDDiff = rep.GrossUSDDiff.Add(v.USDDiff.Abs())
		}
		if v.Status == StatusReconciled {
			rep.Reconciled++
		} else {
			rep.WithVariance++
		}
		rep.Variances = append(rep.Variances, v)
	}
	rep.ProofOfReserves = proofOfReserves(pairs, prices, opts.CustodyAccountTypes)
	return rep, nil
}

func compare(p domain.BalancePair, prices pricing.Book, opts Options) Variance {
	diff := p.Observed.Sub(p.Recorded)
	v := Variance{
		Asset:        p.Asset,
		AccountType:  p.AccountType,
		Recorded:     p.Recorded,
		Observed:     p.Observed,
		AbsoluteDiff: diff,
		Status:       StatusReconciled,
	}
	if p.Recorded.IsZero() {
		v.PercentUndefined = true
	} else {
		pct := diff.Div(p.Recorded)
		v.PercentDiff = &pct
	}
	if price, ok := prices.Price(p.Asset); ok {
		usd := diff.Mul(price)
		v.USDPrice = &price
		v.USDDiff = &usd
	} else {
		v.Unpriced = true
	}
	if diff.Abs().GreaterThan(opts.Tolerance) {
		v.Status = StatusVariance
	}
	v.Severity = severity(v, opts.Severity)
	return v
}

func severity(v Variance, bands SeverityBands) domain.Severity {
	if v.Status == StatusReconciled {
		return domain.SeverityLow
	}
	if v.Unpriced {
		return domain.SeverityMedium
	}
	usd := v.USDDiff.Abs()
	switch {
	case usd.GreaterThanOrEqual(bands.Critical):
		return domain.SeverityCritical
	case usd.GreaterThanOrEqual(bands.High):
		return domain.SeverityHigh
	case usd.GreaterThanOrEqual(bands.Medium):
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

func proofOfReserves(pairs []domain.BalancePair, prices pricing.Book, accountTypes []string) ProofOfReserves {
	custody := make(map[string]bool, len(accountTypes))
	for _, t := range accountTypes {
		custody[strings.ToLower(t)] = true
	}

	lines := make(map[string]*ReserveLine)
	for _, p := range pairs {
		if !custody[strings.ToLower(p.AccountType)] {
			continue
		}
		key := strings.ToUpper(p.Asset)
		l, ok := lines[key]
		if !ok {
			l = &ReserveLine{Asset: key, Recorded: decimal.Zero, Observed: decimal.Zero}
			lines[key] = l
		}
		l.Recorded = l.Recorded.Add(p.Recorded)
		l.Observed = l.Observed.Add(p.Observed)
	}

	por := ProofOfReserves{
		AccountTypes: append([]string(nil), accountTypes...),
		Assets:       make([]ReserveLine, 0, len(lines)),
		RecordedUSD:  decimal.Zero,
		ObservedUSD:  decimal.Zero,
	}
	assets := make([]string, 0, len(lines))
	for k := range lines {
		assets = append(assets, k)
	}
	sort.Strings(assets)

	for _, a := range assets {
		l := lines[a]
		l.Coverage, l.CoverageUndefined = ratio(l.Observed, l.Recorded)
		if price, ok := prices.Price(a); ok {
			rec, obs := l.Recorded.Mul(price), l.Observed.Mul(price)
			l.RecordedUSD, l.ObservedUSD = &rec, &obs
			por.RecordedUSD = por.RecordedUSD.Add(rec)
			por.ObservedUSD = por.ObservedUSD.Add(obs)
		} else {
			l.Unpriced = true
			por.UnpricedAssets = append(por.UnpricedAssets, a)
		}
		por.Assets = append(por.Assets, *l)
	}
	por.Coverage, por.CoverageUndefined = ratio(por.ObservedUSD, por.RecordedUSD)
	return por
}

func ratio(num, den decimal.Decimal) (*decimal.Decimal, bool) {
	if den.IsZero() {
		return nil, true
	}
	r := num.Div(den)
	return &r, false
}

// Describe renders v for logs.
func (v Variance) Describe() string {
	pct := "undefined"
	if v.PercentDiff != nil {
		pct = v.PercentDiff.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
	}
	usd := "unpriced"
	if v.USDDiff != nil {
		usd = v.USDDiff.StringFixed(2) + " USD"
	}
	return fmt.Sprintf("%s/%s %s -> %s (diff %s, %s, %s)",
		v.Asset, v.AccountType, v.Recorded, v.Observed, v.AbsoluteDiff, pct, usd)
}
