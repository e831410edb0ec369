// Package pricing holds USD prices supplied by the caller. Nothing here
// fetches prices.
package pricing

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
)

// ErrUnpriced is returned when the book has no price for an asset.
var ErrUnpriced = errors.New("no USD price for asset")

// Book maps asset symbols to their USD price per unit. Symbols are
// case-insensitive. NewBook and ParseBook store them normalized; literal
// books with other spellings still resolve, through a slower scan.
type Book map[string]decimal.Decimal

// NewBook validates prices and normalizes their symbols.
func NewBook(prices map[string]decimal.Decimal) (Book, error) {
	b := make(Book, len(prices))
	for sym, p := range prices {
		key := normalize(sym)
		if key == "" {
			return nil, domain.Invalidf("price with empty asset symbol")
		}
		if !p.IsPositive() {
			return nil, domain.Invalidf("price for %s must be positive, got %s", sym, p)
		}
		if _, dup := b[key]; dup {
			return nil, domain.Invalidf("asset %s priced twice", key)
		}
		b[key] = p
	}
	return b, nil
}

// ParseBook builds a Book from decimal strings, as found in profiles and
// request bodies.
func ParseBook(prices map[string]string) (Book, error) {
	parsed := make(map[string]decimal.Decimal, len(prices))
	for sym, s := range prices {
		p, err := decimal.NewFromString(s)
		if err != nil {
			return nil, domain.Invalidf("price for %s: %q is not a decimal", sym, s)
		}
		parsed[sym] = p
	}
	return NewBook(parsed)
}

// Price returns the USD price of one unit of asset.
func (b Book) Price(asset string) (decimal.Decimal, bool) {
	key := normalize(asset)
	if p, ok := b[key]; ok {
		return p, true
	}
	for sym, p := range b {
		if normalize(sym) == key {
			return p, true
		}
	}
	return decimal.Zero, false
}

// ToUSD converts an amount of asset to USD.
func (b Book) ToUSD(amount decimal.Decimal, asset string) (decimal.Decimal, error) {
	p, ok := b.Price(asset)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnpriced, asset)
	}
	return amount.Mul(p), nil
}

// Merge returns a copy of b overlaid with other; other wins on conflicts.
func (b Book) Merge(other Book) Book {
	out := make(Book, len(b)+len(other))
	for k, v := range b {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Assets returns the priced symbols, sorted.
func (b Book) Assets() []string {
	out := make([]string, 0, len(b))
	for k := range b {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func normalize(sym string) string {
	return strings.ToUpper(strings.TrimSpace(sym))
}
