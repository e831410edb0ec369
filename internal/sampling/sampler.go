// Package sampling draws audit samples from a transaction population.
//
// Three strategies share the Sampler capability: Random, Stratified and
// MonetaryUnit. Every strategy takes an optional seed. With a seed the
// selection is reproducible; without one each call draws from a freshly
// seeded generator and two calls on the same input will differ.
package sampling

import (
	"math/rand/v2"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
)

type Method string

const (
	MethodRandom       Method = "RANDOM"
	MethodStratified   Method = "STRATIFIED"
	MethodMonetaryUnit Method = "MONETARY_UNIT"
)

// Sampler selects sampleSize items from population.
type Sampler interface {
	Method() Method
	Select(population []domain.Transaction, sampleSize int) (*Selection, error)
}

// Allocation is the per-stratum share of a stratified sample.
type Allocation struct {
	Stratum   string          `json:"stratum"`
	Count     int             `json:"count"`
	Total     decimal.Decimal `json:"total"`
	Allocated int             `json:"allocated"`
}

// Selection is the outcome of one Select call. Items keep population order.
type Selection struct {
	Method       Method               `json:"method"`
	Requested    int                  `json:"requested"`
	Items        []domain.Transaction `json:"items"`
	Allocations  []Allocation         `json:"allocations,omitempty"`
	Interval     *decimal.Decimal     `json:"interval,omitempty"`
	Start        *decimal.Decimal     `json:"start,omitempty"`
	Shortfall    int                  `json:"shortfall,omitempty"`
	Excluded     int                  `json:"excluded,omitempty"`
	Reproducible bool                 `json:"reproducible"`
	Note         string               `json:"note,omitempty"`
}

// IDs returns the selected transaction IDs in order.
func (s *Selection) IDs() []string {
	out := make([]string, len(s.Items))
	for i, it := range s.Items {
		out[i] = it.ID
	}
	return out
}

// New returns the sampler registered under m. Stratified samplers built
// here stratify by Category; use Stratified directly for custom strata.
func New(m Method, seed *uint64) (Sampler, error) {
	switch m {
	case MethodRandom:
		return Random{Seed: seed}, nil
	case MethodStratified:
		return Stratified{Key: ByCategory, Seed: seed}, nil
	case MethodMonetaryUnit:
		return MonetaryUnit{Seed: seed}, nil
	}
	return nil, domain.Invalidf("unknown sampling method %q", m)
}

func newRand(seed *uint64) *rand.Rand {
	if seed == nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
}

// validatePopulation rejects empty populations and missing or repeated IDs.
// It returns the population index of every ID.
func validatePopulation(population []domain.Transaction) (map[string]int, error) {
	if len(population) == 0 {
		return nil, domain.Invalidf("population is empty")
	}
	index := make(map[string]int, len(population))
	for i, t := range population {
		if t.ID == "" {
			return nil, domain.Invalidf("population item %d has no id", i)
		}
		if prev, ok := index[t.ID]; ok {
			return nil, domain.Invalidf("transaction id %q appears at positions %d and %d", t.ID, prev, i)
		}
		index[t.ID] = i
	}
	return index, nil
}

func inPopulationOrder(items []domain.Transaction, index map[string]int) {
	sort.SliceStable(items, func(a, b int) bool {
		return index[items[a].ID] < index[items[b].ID]
	})
}
