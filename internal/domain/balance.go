package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const AccountTypeCustody = "custody"

// BalancePair holds the books balance and the independently observed
// balance of one asset in one account type.
type BalancePair struct {
	Asset       string          `json:"asset"`
	AccountType string          `json:"account_type"`
	Recorded    decimal.Decimal `json:"recorded"`
	Observed    decimal.Decimal `json:"observed"`
	AsOf        time.Time       `json:"as_of"`
}
