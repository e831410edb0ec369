package anomaly

import (
	"fmt"
	"time"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
)

// Duplicate flags every member of each group of two or more transactions
// sharing amount, counterparty and calendar date. Dates are read in the
// business-hours location. Matching is exact: 500 and 500.00 are equal
// amounts, "Acme" and "ACME" are different counterparties.
type Duplicate struct{}

func (Duplicate) Method() Method { return MethodDuplicate }

type dupKey struct {
	amount       string
	counterparty string
	date         string
}

func (Duplicate) Detect(txns []domain.Transaction, cfg Config) ([]Flag, error) {
	if err := requirePopulation(txns); err != nil {
		return nil, err
	}
	loc := cfg.BusinessHours.Location
	if loc == nil {
		return nil, domain.Invalidf("duplicate check needs an explicit timezone")
	}

	groups := make(map[dupKey][]int)
	var order []dupKey
	for i, t := range txns {
		k := dupKey{
			amount:       t.Amount.String(),
			counterparty: t.Counterparty,
			date:         t.Timestamp.In(loc).Format(time.DateOnly),
		}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	var flags []Flag
	n := 0
	for _, k := range order {
		members := groups[k]
		if len(members) < 2 {
			continue
		}
		n++
		groupID := fmt.Sprintf("DUP-%03d", n)
		sev := domain.SeverityMedium
		if len(members) > 2 {
			sev = domain.SeverityHigh
		}
		for _, i := range members {
			flags = append(flags, Flag{
				TransactionID: txns[i].ID,
				Method:        MethodDuplicate,
				Score:         float64(len(members)),
				Reason: fmt.Sprintf("%d transactions of %s to %q on %s",
					len(members), k.amount, k.counterparty, k.date),
				Severity: sev,
				GroupID:  groupID,
			})
		}
	}
	return flags, nil
}

// DuplicateGroup is one reported set of duplicates.
type DuplicateGroup struct {
	GroupID        string   `json:"group_id"`
	TransactionIDs []string `json:"transaction_ids"`
	Reason         string   `json:"reason"`
}

// Groups collects duplicate flags back into their groups, in group order.
func Groups(flags []Flag) []DuplicateGroup {
	var out []DuplicateGroup
	pos := make(map[string]int)
	for _, f := range flags {
		if f.Method != MethodDuplicate || f.GroupID == "" {
			continue
		}
		i, ok := pos[f.GroupID]
		if !ok {
			i = len(out)
			pos[f.GroupID] = i
			out = append(out, DuplicateGroup{GroupID: f.GroupID, Reason: f.Reason})
		}
		out[i].TransactionIDs = append(out[i].TransactionIDs, f.TransactionID)
	}
	return out
}
