package sampling

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
)

// Stratum is a named, disjoint group of the population.
type Stratum struct {
	Name  string               `json:"name"`
	Items []domain.Transaction `json:"items"`
}

func (s Stratum) Count() int { return len(s.Items) }

func (s Stratum) Total() decimal.Decimal {
	total := decimal.Zero
	for _, t := range s.Items {
		total = total.Add(t.Amount)
	}
	return total
}

// KeyFunc names the stratum a transaction belongs to.
type KeyFunc func(domain.Transaction) string

func ByAsset(t domain.Transaction) string    { return t.Asset }
func ByCategory(t domain.Transaction) string { return t.Category }
func ByDirection(t domain.Transaction) string {
	return string(t.Direction)
}

// StrataBy partitions population by key, keeping first-seen stratum order
// and population order inside each stratum.
func StrataBy(population []domain.Transaction, key KeyFunc) []Stratum {
	var strata []Stratum
	pos := make(map[string]int)
	for _, t := range population {
		k := key(t)
		i, ok := pos[k]
		if !ok {
			i = len(strata)
			pos[k] = i
			strata = append(strata, Stratum{Name: k})
		}
		strata[i].Items = append(strata[i].Items, t)
	}
	return strata
}

// Stratified allocates the sample across strata in proportion to stratum
// size and draws a Random sample inside each stratum.
//
// Strata must partition the population. When Strata is empty they are built
// with Key. Allocations, when set, overrides the proportional allocation and
// must sum to the sample size.
type Stratified struct {
	Strata      []Stratum
	Key         KeyFunc
	Allocations map[string]int
	Seed        *uint64
}

func (Stratified) Method() Method { return MethodStratified }

func (s Stratified) Select(population []domain.Transaction, sampleSize int) (*Selection, error) {
	index, err := validatePopulation(population)
	if err != nil {
		return nil, err
	}
	if sampleSize <= 0 {
		return nil, domain.Invalidf("sample size %d must be positive", sampleSize)
	}
	if sampleSize > len(population) {
		return nil, domain.Invalidf("sample size %d exceeds population size %d", sampleSize, len(population))
	}

	strata := s.Strata
	if len(strata) == 0 {
		if s.Key == nil {
			return nil, domain.Invalidf("stratified sampling needs strata or a stratum key")
		}
		strata = StrataBy(population, s.Key)
	}
	if err := checkPartition(strata, index); err != nil {
		return nil, err
	}

	var counts []int
	if s.Allocations != nil {
		counts, err = explicitAllocation(strata, s.Allocations, sampleSize)
	} else {
		counts, err = proportionalAllocation(strata, len(population), sampleSize)
	}
	if err != nil {
		return nil, err
	}

	sel := &Selection{
		Method:       MethodStratified,
		Requested:    sampleSize,
		Reproducible: s.Seed != nil,
		Allocations:  make([]Allocation, len(strata)),
	}
	for i, st := range strata {
		sel.Allocations[i] = Allocation{
			Stratum:   st.Name,
			Count:     st.Count(),
			Total:     st.Total(),
			Allocated: counts[i],
		}
		if counts[i] == 0 {
			continue
		}
		sel.Items = append(sel.Items, drawUniform(st.Items, counts[i], deriveSeed(s.Seed, i))...)
	}
	inPopulationOrder(sel.Items, index)
	return sel, nil
}

// checkPartition verifies every population item is in exactly one stratum
// and no stratum holds foreign items.
func checkPartition(strata []Stratum, index map[string]int) error {
	names := make(map[string]bool, len(strata))
	seen := make(map[string]string, len(index))
	for _, st := range strata {
		if names[st.Name] {
			return domain.Invalidf("stratum %q is listed twice", st.Name)
		}
		names[st.Name] = true
		for _, t := range st.Items {
			if _, ok := index[t.ID]; !ok {
				return domain.Invalidf("stratum %q holds transaction %q that is not in the population", st.Name, t.ID)
			}
			if other, dup := seen[t.ID]; dup {
				return domain.Invalidf("transaction %q is in strata %q and %q", t.ID, other, st.Name)
			}
			seen[t.ID] = st.Name
		}
	}
	if len(seen) != len(index) {
		return domain.Invalidf("strata cover %d of %d population items", len(seen), len(index))
	}
	return nil
}

// proportionalAllocation uses the largest-remainder method on exact integer
// quotas count·n/N so the allocations always sum to n.
func proportionalAllocation(strata []Stratum, populationSize, sampleSize int) ([]int, error) {
	counts := make([]int, len(strata))
	rems := make([]int, len(strata))
	assigned := 0
	for i, st := range strata {
		num := st.Count() * sampleSize
		counts[i] = num / populationSize
		rems[i] = num % populationSize
		assigned += counts[i]
	}

	order := make([]int, len(strata))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if rems[ia] != rems[ib] {
			return rems[ia] > rems[ib]
		}
		return strata[ia].Count() > strata[ib].Count()
	})
	for _, i := range order[:sampleSize-assigned] {
		counts[i]++
	}

	for i, st := range strata {
		if counts[i] > st.Count() {
			return nil, domain.Invalidf("stratum %q allocated %d of %d items", st.Name, counts[i], st.Count())
		}
	}
	return counts, nil
}

func explicitAllocation(strata []Stratum, alloc map[string]int, sampleSize int) ([]int, error) {
	known := make(map[string]int, len(strata))
	for i, st := range strata {
		known[st.Name] = i
	}
	counts := make([]int, len(strata))
	sum := 0
	for name, n := range alloc {
		i, ok := known[name]
		if !ok {
			return nil, domain.Invalidf("allocation names unknown stratum %q", name)
		}
		if n < 0 {
			return nil, domain.Invalidf("stratum %q allocation %d is negative", name, n)
		}
		st := strata[i]
		if st.Count() == 0 && n > 0 {
			return nil, domain.Invalidf("stratum %q is empty but %d items were requested", name, n)
		}
		if n > st.Count() {
			return nil, domain.Invalidf("stratum %q allocated %d of %d items", name, n, st.Count())
		}
		counts[i] = n
		sum += n
	}
	if sum != sampleSize {
		return nil, domain.Invalidf("allocations sum to %d, sample size is %d", sum, sampleSize)
	}
	return counts, nil
}

func deriveSeed(seed *uint64, stratum int) *uint64 {
	if seed == nil {
		return nil
	}
	v := *seed + uint64(stratum+1)*0xbf58476d1ce4e5b9
	return &v
}
