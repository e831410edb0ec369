package engine

import (
	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/anomaly"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/benford"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/pricing"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/reconcile"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/rule"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/sampling"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/scoring"
)

// Section names one part of a full analysis.
type Section string

const (
	SectionSampling       Section = "sampling"
	SectionAnomalies      Section = "anomalies"
	SectionBenford        Section = "benford"
	SectionReconciliation Section = "reconciliation"
	SectionHeatmap        Section = "heatmap"
)

// Request is one full analysis. Sections empty means every section whose
// input is present: transactions enable sampling, anomalies and Benford,
// balances enable reconciliation, risks enable the heatmap.
type Request struct {
	ID             string               `json:"id,omitempty"`
	Sections       []Section            `json:"sections,omitempty"`
	Transactions   []domain.Transaction `json:"transactions,omitempty"`
	Balances       []domain.BalancePair `json:"balances,omitempty"`
	Risks          []scoring.RiskInput  `json:"risks,omitempty"`
	Sampling       SamplingParams       `json:"sampling"`
	Anomalies      AnomalyParams        `json:"anomalies"`
	Benford        BenfordParams        `json:"benford"`
	Reconciliation ReconcileParams      `json:"reconciliation"`
}

// SamplingParams override the profile's sampling defaults.
type SamplingParams struct {
	Method      sampling.Method `json:"method,omitempty"`
	Size        int             `json:"size,omitempty"`
	Seed        *uint64         `json:"seed,omitempty"`
	StratifyBy  string          `json:"stratify_by,omitempty"`
	Allocations map[string]int  `json:"allocations,omitempty"`
	RandomStart *bool           `json:"random_start,omitempty"`
}

// AnomalyParams select methods and override individual thresholds.
type AnomalyParams struct {
	Methods         []anomaly.Method `json:"methods,omitempty"`
	ZScoreThreshold *float64         `json:"zscore_threshold,omitempty"`
	IQRMultiplier   *float64         `json:"iqr_multiplier,omitempty"`
	RoundUnit       *decimal.Decimal `json:"round_unit,omitempty"`
	RoundFloor      *decimal.Decimal `json:"round_floor,omitempty"`
	StartHour       *int             `json:"start_hour,omitempty"`
	EndHour         *int             `json:"end_hour,omitempty"`
	Timezone        string           `json:"timezone,omitempty"`
	Holidays        []string         `json:"holidays,omitempty"`
	// Rules replace the profile's rules for this request when set.
	Rules []rule.Rule `json:"rules,omitempty"`
}

type BenfordParams struct {
	CriticalValue *float64 `json:"critical_value,omitempty"`
	MinSample     *int     `json:"min_sample,omitempty"`
}

// ReconcileParams add request prices on top of the profile's price book.
type ReconcileParams struct {
	Prices              pricing.Book     `json:"prices,omitempty"`
	Tolerance           *decimal.Decimal `json:"tolerance,omitempty"`
	CustodyAccountTypes []string         `json:"custody_account_types,omitempty"`
}

// SectionResult carries one section's outcome. A section that failed has
// Error and ErrorKind set; Benford below its minimum sample also carries a
// Result with the INSUFFICIENT_DATA conclusion.
type SectionResult[T any] struct {
	Result    T      `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// Report is the outcome of a full analysis.
type Report struct {
	ID             string                               `json:"id"`
	ProfileVersion string                               `json:"profile_version"`
	DurationMs     int64                                `json:"duration_ms"`
	Population     int                                  `json:"population"`
	Balances       int                                  `json:"balances"`
	Sampling       *SectionResult[*sampling.Selection]  `json:"sampling,omitempty"`
	Anomalies      *SectionResult[*anomaly.Report]      `json:"anomalies,omitempty"`
	Benford        *SectionResult[*benford.Result]      `json:"benford,omitempty"`
	Reconciliation *SectionResult[*reconcile.Report]    `json:"reconciliation,omitempty"`
	Heatmap        *SectionResult[*scoring.HeatmapData] `json:"heatmap,omitempty"`
}

// RiskRequest assesses one risk. ControlEffectiveness, when absent, is the
// average of Controls; with neither the residual equals the inherent score.
type RiskRequest struct {
	Name                 string             `json:"name,omitempty"`
	Category             string             `json:"category,omitempty"`
	Likelihood           int                `json:"likelihood"`
	Impact               int                `json:"impact"`
	ControlEffectiveness *float64           `json:"control_effectiveness,omitempty"`
	Controls             map[string]float64 `json:"controls,omitempty"`
	Factors              map[string]int     `json:"factors,omitempty"`
}

type RiskAssessment struct {
	Name string `json:"name,omitempty"`
	scoring.RiskScore
	FactorAverage  *float64 `json:"factor_average,omitempty"`
	Category       string   `json:"category,omitempty"`
	Appetite       *int     `json:"appetite,omitempty"`
	AppetiteBreach bool     `json:"appetite_breach"`
}

// ControlRequest rates one control from a test score, test steps, or both;
// Score wins when both are given.
type ControlRequest struct {
	Name     string               `json:"name,omitempty"`
	Score    *float64             `json:"score,omitempty"`
	Tests    []scoring.TestResult `json:"tests,omitempty"`
	Expected *float64             `json:"expected,omitempty"`
}

type ControlAssessment struct {
	Name     string         `json:"name,omitempty"`
	Score    float64        `json:"score"`
	Rating   scoring.Rating `json:"rating"`
	PassRate *float64       `json:"pass_rate,omitempty"`
	Gap      *float64       `json:"gap,omitempty"`
	// Deficient is set for ratings below Satisfactory.
	Deficient bool `json:"deficient"`
}
