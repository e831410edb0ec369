// Package dataset loads transaction populations and balance pairs from
// CSV, JSON and SQLite sources.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
)

// timestampLayouts are tried in order; layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// header maps lower-cased column names to positions and checks required
// columns are present.
type header map[string]int

func readHeader(r *csv.Reader, required ...string) (header, error) {
	row, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	h := make(header, len(row))
	for i, name := range row {
		h[strings.ToLower(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, name := range required {
		if _, ok := h[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, domain.Invalidf("missing columns: %s", strings.Join(missing, ", "))
	}
	return h, nil
}

func (h header) get(row []string, name string) string {
	i, ok := h[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	return reader
}

// ReadTransactionsCSV parses a transaction export.
//
// Expected header (any order, optional columns may be omitted):
//
//	id,timestamp,amount,asset,counterparty,direction[,account_type,category]
func ReadTransactionsCSV(r io.Reader) ([]domain.Transaction, error) {
	reader := newReader(r)
	h, err := readHeader(reader, "id", "timestamp", "amount", "asset", "counterparty", "direction")
	if err != nil {
		return nil, err
	}

	var out []domain.Transaction
	lineNum := 1
	for {
		lineNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		ts, err := parseTimestamp(h.get(row, "timestamp"))
		if err != nil {
			return nil, domain.Invalidf("line %d timestamp: %v", lineNum, err)
		}
		amount, err := decimal.NewFromString(h.get(row, "amount"))
		if err != nil {
			return nil, domain.Invalidf("line %d amount: %v", lineNum, err)
		}
		out = append(out, domain.Transaction{
			ID:           h.get(row, "id"),
			Timestamp:    ts,
			Amount:       amount,
			Asset:        h.get(row, "asset"),
			Counterparty: h.get(row, "counterparty"),
			Direction:    domain.Direction(strings.ToLower(h.get(row, "direction"))),
			AccountType:  h.get(row, "account_type"),
			Category:     h.get(row, "category"),
		})
	}
	return out, nil
}

// ReadBalancesCSV parses a balance export.
//
// Expected header:
//
//	asset,account_type,recorded,observed[,as_of]
func ReadBalancesCSV(r io.Reader) ([]domain.BalancePair, error) {
	reader := newReader(r)
	h, err := readHeader(reader, "asset", "account_type", "recorded", "observed")
	if err != nil {
		return nil, err
	}

	var out []domain.BalancePair
	lineNum := 1
	for {
		lineNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		recorded, err := decimal.NewFromString(h.get(row, "recorded"))
		if err != nil {
			return nil, domain.Invalidf("line %d recorded: %v", lineNum, err)
		}
		observed, err := decimal.NewFromString(h.get(row, "observed"))
		if err != nil {
			return nil, domain.Invalidf("line %d observed: %v", lineNum, err)
		}
		pair := domain.BalancePair{
			Asset:       h.get(row, "asset"),
			AccountType: h.get(row, "account_type"),
			Recorded:    recorded,
			Observed:    observed,
		}
		if s := h.get(row, "as_of"); s != "" {
			if pair.AsOf, err = parseTimestamp(s); err != nil {
				return nil, domain.Invalidf("line %d as_of: %v", lineNum, err)
			}
		}
		out = append(out, pair)
	}
	return out, nil
}
