// Package anomaly flags suspicious transactions. Each detection method is an
// independent Detector; a Registry runs any combination of them over the
// same population and keeps one method's failure from hiding the others.
package anomaly

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/rule"
)

type Method string

const (
	MethodZScore          Method = "Z-SCORE"
	MethodIQR             Method = "IQR"
	MethodRoundNumber     Method = "ROUND_NUMBER"
	MethodTiming          Method = "TIMING"
	MethodDuplicate       Method = "DUPLICATE"
	MethodRapidSuccession Method = "RAPID_SUCCESSION"
	MethodSplit           Method = "SPLIT"
	MethodHoliday         Method = "HOLIDAY"
	MethodRule            Method = "RULE"
)

// CoreMethods are the methods run when a caller does not choose.
var CoreMethods = []Method{MethodZScore, MethodIQR, MethodRoundNumber, MethodTiming, MethodDuplicate}

// Flag marks one transaction as suspicious under one method. A transaction
// may carry several flags.
type Flag struct {
	TransactionID string          `json:"transaction_id"`
	Method        Method          `json:"method"`
	Score         float64         `json:"score"`
	Reason        string          `json:"reason"`
	Severity      domain.Severity `json:"severity"`
	GroupID       string          `json:"group_id,omitempty"`
}

// BusinessHours is the [StartHour, EndHour) window, in Location, during
// which activity is expected. Location is required.
type BusinessHours struct {
	StartHour    int
	EndHour      int
	Location     *time.Location
	FlagWeekends bool
}

// Config carries every tunable of every method. It is passed by value on
// each call and never retained.
type Config struct {
	ZScoreThreshold float64
	IQRMultiplier   float64
	RoundUnit       decimal.Decimal
	RoundFloor      decimal.Decimal
	BusinessHours   BusinessHours
	Holidays        []string
	RapidWindow     time.Duration
	SplitTolerance  float64
	// Rules are the user-defined conditions evaluated by the RULE method.
	Rules []*rule.Compiled
}

func DefaultConfig() Config {
	return Config{
		ZScoreThreshold: 3.0,
		IQRMultiplier:   1.5,
		RoundUnit:       decimal.NewFromInt(1000),
		RoundFloor:      decimal.NewFromInt(100),
		BusinessHours: BusinessHours{
			StartHour:    9,
			EndHour:      17,
			Location:     time.UTC,
			FlagWeekends: true,
		},
		RapidWindow:    time.Minute,
		SplitTolerance: 0.10,
	}
}

// Detector is implemented by every detection method.
type Detector interface {
	Method() Method
	Detect(txns []domain.Transaction, cfg Config) ([]Flag, error)
}

func requirePopulation(txns []domain.Transaction) error {
	if len(txns) == 0 {
		return domain.Invalidf("transaction population is empty")
	}
	return nil
}

func ratioSeverity(ratio float64) domain.Severity {
	switch {
	case ratio >= 2:
		return domain.SeverityCritical
	case ratio >= 1.5:
		return domain.SeverityHigh
	default:
		return domain.SeverityMedium
	}
}
