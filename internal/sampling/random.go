package sampling

import (
	"sort"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
)

// Random draws a uniform sample without replacement.
// A nil Seed makes the draw non-reproducible.
type Random struct {
	Seed *uint64
}

func (Random) Method() Method { return MethodRandom }

func (r Random) Select(population []domain.Transaction, sampleSize int) (*Selection, error) {
	if _, err := validatePopulation(population); err != nil {
		return nil, err
	}
	if sampleSize <= 0 {
		return nil, domain.Invalidf("sample size %d must be positive", sampleSize)
	}
	if sampleSize > len(population) {
		return nil, domain.Invalidf("sample size %d exceeds population size %d", sampleSize, len(population))
	}
	return &Selection{
		Method:       MethodRandom,
		Requested:    sampleSize,
		Items:        drawUniform(population, sampleSize, r.Seed),
		Reproducible: r.Seed != nil,
	}, nil
}

// drawUniform picks k distinct items and returns them in population order.
func drawUniform(population []domain.Transaction, k int, seed *uint64) []domain.Transaction {
	idx := newRand(seed).Perm(len(population))[:k]
	sort.Ints(idx)
	out := make([]domain.Transaction, k)
	for i, j := range idx {
		out[i] = population[j]
	}
	return out
}
