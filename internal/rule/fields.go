package rule

import (
	"sort"
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
)

// fieldKinds lists the transaction fields a condition may reference.
var fieldKinds = map[string]Kind{
	"id":           KindString,
	"amount":       KindNumber,
	"asset":        KindString,
	"counterparty": KindString,
	"direction":    KindString,
	"account_type": KindString,
	"category":     KindString,
	"hour":         KindNumber,
	"weekday":      KindString,
	"weekend":      KindBool,
}

// FieldNames returns the referenceable fields, sorted.
func FieldNames() []string {
	out := make([]string, 0, len(fieldKinds))
	for name := range fieldKinds {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// TransactionEnv exposes one transaction to Evaluate. hour, weekday and
// weekend are read in Location, or UTC when it is nil.
type TransactionEnv struct {
	Txn      domain.Transaction
	Location *time.Location
}

func (e TransactionEnv) Lookup(field string) (Value, bool) {
	t := e.Txn
	loc := e.Location
	if loc == nil {
		loc = time.UTC
	}
	switch field {
	case "id":
		return String(t.ID), true
	case "amount":
		return Number(t.Amount), true
	case "asset":
		return String(t.Asset), true
	case "counterparty":
		return String(t.Counterparty), true
	case "direction":
		return String(string(t.Direction)), true
	case "account_type":
		return String(t.AccountType), true
	case "category":
		return String(t.Category), true
	case "hour":
		return numberFromInt(t.Timestamp.In(loc).Hour()), true
	case "weekday":
		return String(strings.ToLower(t.Timestamp.In(loc).Weekday().String())), true
	case "weekend":
		wd := t.Timestamp.In(loc).Weekday()
		return Bool(wd == time.Saturday || wd == time.Sunday), true
	}
	return Value{}, false
}
