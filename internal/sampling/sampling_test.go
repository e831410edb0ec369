package sampling

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
)

func txn(id string, amount int64, category string) domain.Transaction {
	return domain.Transaction{
		ID:        id,
		Timestamp: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		Amount:    decimal.NewFromInt(amount),
		Asset:     "BTC",
		Category:  category,
	}
}

func population(n int) []domain.Transaction {
	out := make([]domain.Transaction, n)
	for i := range out {
		cat := "deposit"
		if i%4 == 0 {
			cat = "withdrawal"
		}
		out[i] = txn(fmt.Sprintf("TXN-%03d", i), int64(100+i), cat)
	}
	return out
}

func seed(v uint64) *uint64 { return &v }

func assertUniqueIDs(t *testing.T, sel *Selection) {
	t.Helper()
	seen := map[string]bool{}
	for _, id := range sel.IDs() {
		assert.False(t, seen[id], "id %s selected twice", id)
		seen[id] = true
	}
}

func TestRandom_SizeAndUniqueness(t *testing.T) {
	pop := population(50)
	sel, err := Random{Seed: seed(7)}.Select(pop, 10)
	require.NoError(t, err)
	assert.Len(t, sel.Items, 10)
	assert.True(t, sel.Reproducible)
	assertUniqueIDs(t, sel)
}

func TestRandom_SeedIsReproducible(t *testing.T) {
	pop := population(200)
	a, err := Random{Seed: seed(42)}.Select(pop, 25)
	require.NoError(t, err)
	b, err := Random{Seed: seed(42)}.Select(pop, 25)
	require.NoError(t, err)
	assert.Equal(t, a.IDs(), b.IDs())

	c, err := Random{Seed: seed(43)}.Select(pop, 25)
	require.NoError(t, err)
	assert.NotEqual(t, a.IDs(), c.IDs())
}

func TestRandom_Unseeded(t *testing.T) {
	sel, err := Random{}.Select(population(20), 5)
	require.NoError(t, err)
	assert.False(t, sel.Reproducible)
	assert.Len(t, sel.Items, 5)
}

func TestRandom_Invalid(t *testing.T) {
	_, err := Random{}.Select(population(5), 6)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = Random{}.Select(population(5), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = Random{}.Select(nil, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	dup := []domain.Transaction{txn("A", 1, ""), txn("A", 2, "")}
	_, err = Random{}.Select(dup, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStratified_AllocationSumsToSampleSize(t *testing.T) {
	sizes := [][]int{
		{1, 1, 1},
		{10, 20, 70},
		{3, 3, 3, 3, 3, 3, 3},
		{1, 98, 1},
		{5, 0, 7},
		{13, 17, 19, 23},
	}
	for _, sz := range sizes {
		var pop []domain.Transaction
		var strata []Stratum
		for s, n := range sz {
			st := Stratum{Name: fmt.Sprintf("S%d", s)}
			for i := 0; i < n; i++ {
				tx := txn(fmt.Sprintf("S%d-%d", s, i), int64(i+1), st.Name)
				pop = append(pop, tx)
				st.Items = append(st.Items, tx)
			}
			strata = append(strata, st)
		}
		for n := 1; n <= len(pop); n++ {
			sel, err := Stratified{Strata: strata, Seed: seed(1)}.Select(pop, n)
			require.NoError(t, err, "sizes %v n %d", sz, n)
			sum := 0
			for _, a := range sel.Allocations {
				sum += a.Allocated
				assert.LessOrEqual(t, a.Allocated, a.Count)
			}
			assert.Equal(t, n, sum, "sizes %v n %d", sz, n)
			assert.Len(t, sel.Items, n)
			assertUniqueIDs(t, sel)
		}
	}
}

func TestStratified_LargestRemainder(t *testing.T) {
	// n=4 over sizes 5/3/2 gives quotas 2.0, 1.2, 0.8: floors 2,1,0 and the spare seat goes to C.
	pop := population(0)
	var strata []Stratum
	for _, tc := range []struct {
		name string
		n    int
	}{{"A", 5}, {"B", 3}, {"C", 2}} {
		st := Stratum{Name: tc.name}
		for i := 0; i < tc.n; i++ {
			tx := txn(fmt.Sprintf("%s%d", tc.name, i), 10, tc.name)
			st.Items = append(st.Items, tx)
			pop = append(pop, tx)
		}
		strata = append(strata, st)
	}
	sel, err := Stratified{Strata: strata, Seed: seed(3)}.Select(pop, 4)
	require.NoError(t, err)
	got := map[string]int{}
	for _, a := range sel.Allocations {
		got[a.Stratum] = a.Allocated
	}
	assert.Equal(t, map[string]int{"A": 2, "B": 1, "C": 1}, got)
}

func TestStratified_ByKey(t *testing.T) {
	pop := population(40) // 10 withdrawals, 30 deposits
	sel, err := Stratified{Key: ByCategory, Seed: seed(9)}.Select(pop, 8)
	require.NoError(t, err)
	got := map[string]int{}
	for _, a := range sel.Allocations {
		got[a.Stratum] = a.Allocated
	}
	assert.Equal(t, map[string]int{"withdrawal": 2, "deposit": 6}, got)

	cat := map[string]int{}
	for _, it := range sel.Items {
		cat[it.Category]++
	}
	assert.Equal(t, got, cat)
}

func TestStratified_PartitionErrors(t *testing.T) {
	pop := []domain.Transaction{txn("A", 1, "x"), txn("B", 2, "x"), txn("C", 3, "y")}

	overlap := []Stratum{
		{Name: "x", Items: []domain.Transaction{pop[0], pop[1]}},
		{Name: "y", Items: []domain.Transaction{pop[1], pop[2]}},
	}
	_, err := Stratified{Strata: overlap}.Select(pop, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	gap := []Stratum{{Name: "x", Items: []domain.Transaction{pop[0], pop[1]}}}
	_, err = Stratified{Strata: gap}.Select(pop, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	foreign := []Stratum{
		{Name: "x", Items: []domain.Transaction{pop[0], pop[1], pop[2]}},
		{Name: "z", Items: []domain.Transaction{txn("Z", 9, "z")}},
	}
	_, err = Stratified{Strata: foreign}.Select(pop, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStratified_ExplicitAllocation(t *testing.T) {
	pop := []domain.Transaction{txn("A", 1, "x"), txn("B", 2, "x"), txn("C", 3, "y")}
	strata := []Stratum{
		{Name: "x", Items: pop[:2]},
		{Name: "y", Items: pop[2:]},
		{Name: "empty"},
	}

	sel, err := Stratified{Strata: strata, Allocations: map[string]int{"x": 2}, Seed: seed(1)}.Select(pop, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, sel.IDs())

	_, err = Stratified{Strata: strata, Allocations: map[string]int{"x": 1, "empty": 1}}.Select(pop, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = Stratified{Strata: strata, Allocations: map[string]int{"y": 2}}.Select(pop, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = Stratified{Strata: strata, Allocations: map[string]int{"x": 1}}.Select(pop, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func musPopulation(amounts ...int64) []domain.Transaction {
	out := make([]domain.Transaction, len(amounts))
	for i, a := range amounts {
		out[i] = txn(fmt.Sprintf("M%d", i), a, "")
	}
	return out
}

func TestMonetaryUnit_SystematicSelection(t *testing.T) {
	pop := musPopulation(1000, 2000, 500, 1500, 3000, 800, 1200, 900, 2500, 600)
	sel, err := MonetaryUnit{}.Select(pop, 5)
	require.NoError(t, err)

	assert.True(t, sel.Interval.Equal(decimal.NewFromInt(2800)))
	assert.Equal(t, []string{"M1", "M4", "M5", "M8", "M9"}, sel.IDs())
	assert.Zero(t, sel.Shortfall)
	assert.True(t, sel.Reproducible)
}

func TestMonetaryUnit_WideItemSelectedOnce(t *testing.T) {
	pop := musPopulation(10000, 10, 10, 10)
	sel, err := MonetaryUnit{}.Select(pop, 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"M0", "M3"}, sel.IDs())
	assert.Equal(t, 1, sel.Shortfall)
	assert.NotEmpty(t, sel.Note)
	assertUniqueIDs(t, sel)
}

func TestMonetaryUnit_HugeSizeOnSmallPopulation(t *testing.T) {
	pop := musPopulation(100, 200, 300)
	begin := time.Now()
	sel, err := MonetaryUnit{}.Select(pop, 2_000_000_000)
	require.NoError(t, err)

	assert.Less(t, time.Since(begin), time.Second)
	assert.Equal(t, []string{"M0", "M1", "M2"}, sel.IDs())
	assert.Equal(t, 1_999_999_997, sel.Shortfall)
	assert.NotEmpty(t, sel.Note)

	sel, err = MonetaryUnit{RandomStart: true, Seed: seed(7)}.Select(pop, 2_000_000_000)
	require.NoError(t, err)
	assert.Equal(t, []string{"M0", "M1", "M2"}, sel.IDs())
}

func TestMonetaryUnit_NoDuplicatesWithRandomStart(t *testing.T) {
	pop := musPopulation(5000, 7, 12, 9000, 3, 400, 60, 2500, 2500, 11)
	for s := uint64(0); s < 50; s++ {
		sel, err := MonetaryUnit{RandomStart: true, Seed: seed(s)}.Select(pop, 8)
		require.NoError(t, err)
		assertUniqueIDs(t, sel)
		assert.Equal(t, 8, len(sel.Items)+sel.Shortfall)
		assert.True(t, sel.Start.IsPositive())
		assert.True(t, sel.Start.LessThanOrEqual(*sel.Interval))
	}
}

func TestMonetaryUnit_ExcludesNonPositive(t *testing.T) {
	pop := musPopulation(0, 100, -50, 100)
	sel, err := MonetaryUnit{}.Select(pop, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, sel.Excluded)
	assert.Equal(t, []string{"M1", "M3"}, sel.IDs())
}

func TestMonetaryUnit_Invalid(t *testing.T) {
	_, err := MonetaryUnit{}.Select(musPopulation(0, 0), 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = MonetaryUnit{}.Select(musPopulation(10, 20), 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNew(t *testing.T) {
	for _, m := range []Method{MethodRandom, MethodStratified, MethodMonetaryUnit} {
		s, err := New(m, nil)
		require.NoError(t, err)
		assert.Equal(t, m, s.Method())
	}
	_, err := New("SYSTEMATIC", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
