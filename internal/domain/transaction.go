package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
	DirectionInternal Direction = "internal"
)

// Transaction is a single ledger movement handed to the engine for one
// analysis pass. Engine components never mutate it.
type Transaction struct {
	ID           string          `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	Amount       decimal.Decimal `json:"amount"`
	Asset        string          `json:"asset"`
	Counterparty string          `json:"counterparty"`
	Direction    Direction       `json:"direction"`
	AccountType  string          `json:"account_type,omitempty"`
	Category     string          `json:"category,omitempty"`
}

// Amounts returns the amount column of txns, preserving order.
func Amounts(txns []Transaction) []decimal.Decimal {
	out := make([]decimal.Decimal, len(txns))
	for i, t := range txns {
		out[i] = t.Amount
	}
	return out
}

// FloatAmounts returns the amount column as float64 for statistical work.
func FloatAmounts(txns []Transaction) []float64 {
	out := make([]float64, len(txns))
	for i, t := range txns {
		out[i] = t.Amount.InexactFloat64()
	}
	return out
}
