package config

import (
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/rule"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/scoring"
)

// Profile is the top-level YAML structure: every threshold the analysis
// components accept, plus the serving knobs.
type Profile struct {
	Version        string        `yaml:"version" json:"version"`
	Engine         EngineConf    `yaml:"engine" json:"engine"`
	Logging        LoggingConf   `yaml:"logging" json:"logging"`
	Scoring        ScoringConf   `yaml:"scoring" json:"scoring"`
	Sampling       SamplingConf  `yaml:"sampling" json:"sampling"`
	Anomaly        AnomalyConf   `yaml:"anomaly" json:"anomaly"`
	Benford        BenfordConf   `yaml:"benford" json:"benford"`
	Reconciliation ReconcileConf `yaml:"reconciliation" json:"reconciliation"`
}

// EngineConf holds tunable concurrency settings.
type EngineConf struct {
	Workers           int `yaml:"workers" json:"workers"`
	QueueDepth        int `yaml:"queue_depth" json:"queue_depth"`
	AnalysisTimeoutMs int `yaml:"analysis_timeout_ms" json:"analysis_timeout_ms"`
	MaxBatch          int `yaml:"max_batch" json:"max_batch"`
	// MaxJobs bounds the async job store; the oldest finished jobs are evicted.
	MaxJobs int `yaml:"max_jobs" json:"max_jobs"`
}

type LoggingConf struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // json | console
}

type ScoringConf struct {
	LevelBands  scoring.LevelBands  `yaml:"level_bands" json:"level_bands"`
	RatingBands scoring.RatingBands `yaml:"rating_bands" json:"rating_bands"`
	// Appetite maps a risk category to its maximum acceptable inherent score.
	Appetite map[string]int `yaml:"appetite" json:"appetite"`
}

type SamplingConf struct {
	DefaultMethod string `yaml:"default_method" json:"default_method"`
	DefaultSize   int    `yaml:"default_size" json:"default_size"`
	StratifyBy    string `yaml:"stratify_by" json:"stratify_by"` // category | asset | direction
	RandomStart   bool   `yaml:"mus_random_start" json:"mus_random_start"`
}

// AnomalyConf uses strings for decimal values so YAML never rounds them.
type AnomalyConf struct {
	Methods         []string          `yaml:"methods" json:"methods"`
	ZScoreThreshold float64           `yaml:"zscore_threshold" json:"zscore_threshold"`
	IQRMultiplier   float64           `yaml:"iqr_multiplier" json:"iqr_multiplier"`
	RoundUnit       string            `yaml:"round_unit" json:"round_unit"`
	RoundFloor      string            `yaml:"round_floor" json:"round_floor"`
	BusinessHours   BusinessHoursConf `yaml:"business_hours" json:"business_hours"`
	Holidays        []string          `yaml:"holidays" json:"holidays"`
	RapidWindow     string            `yaml:"rapid_window" json:"rapid_window"`
	SplitTolerance  float64           `yaml:"split_tolerance" json:"split_tolerance"`
	Rules           []rule.Rule       `yaml:"rules" json:"rules,omitempty"`
}

type BusinessHoursConf struct {
	Start        int    `yaml:"start" json:"start"`
	End          int    `yaml:"end" json:"end"`
	Timezone     string `yaml:"timezone" json:"timezone"`
	FlagWeekends *bool  `yaml:"flag_weekends" json:"flag_weekends"`
}

type BenfordConf struct {
	CriticalValue float64 `yaml:"critical_value" json:"critical_value"`
	MinSample     int     `yaml:"min_sample" json:"min_sample"`
}

type ReconcileConf struct {
	Tolerance           string            `yaml:"tolerance" json:"tolerance"`
	CustodyAccountTypes []string          `yaml:"custody_account_types" json:"custody_account_types"`
	SeverityUSD         SeverityConf      `yaml:"severity_usd" json:"severity_usd"`
	Prices              map[string]string `yaml:"prices" json:"prices"`
}

type SeverityConf struct {
	Medium   string `yaml:"medium" json:"medium"`
	High     string `yaml:"high" json:"high"`
	Critical string `yaml:"critical" json:"critical"`
}
