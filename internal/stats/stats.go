// Package stats holds the small set of descriptive statistics the detectors
// share. All functions are pure and never return NaN or Inf: degenerate
// inputs yield zero values together with ok=false where it matters.
package stats

import (
	"math"
	"sort"
)

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// SampleStdDev returns the n-1 standard deviation of xs.
// ok is false when fewer than two values are present.
func SampleStdDev(xs []float64) (sd float64, ok bool) {
	if len(xs) < 2 {
		return 0, false
	}
	m := Mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1)), true
}

// Quantile returns the q-th quantile (0 ≤ q ≤ 1) of xs using linear
// interpolation between closest ranks, h = (n-1)·q.
func Quantile(xs []float64, q float64) (float64, bool) {
	if len(xs) == 0 || q < 0 || q > 1 || math.IsNaN(q) {
		return 0, false
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	return quantileSorted(sorted, q), true
}

func quantileSorted(sorted []float64, q float64) float64 {
	h := float64(len(sorted)-1) * q
	lo := math.Floor(h)
	hi := math.Ceil(h)
	if lo == hi {
		return sorted[int(lo)]
	}
	return sorted[int(lo)] + (h-lo)*(sorted[int(hi)]-sorted[int(lo)])
}

// Summary is a descriptive profile of a numeric column.
type Summary struct {
	Count    int     `json:"count"`
	Sum      float64 `json:"sum"`
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
	Variance float64 `json:"variance"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Median   float64 `json:"median"`
	Q1       float64 `json:"q1"`
	Q3       float64 `json:"q3"`
	Skewness float64 `json:"skewness"`
	Kurtosis float64 `json:"kurtosis"`
}

// Describe computes a Summary. Skewness needs n > 2 and excess kurtosis
// n > 3 (bias-corrected, matching common spreadsheet definitions); both are
// left at zero below those sizes or when the spread is zero.
func Describe(xs []float64) Summary {
	n := len(xs)
	if n == 0 {
		return Summary{}
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	s := Summary{
		Count:  n,
		Mean:   Mean(xs),
		Min:    sorted[0],
		Max:    sorted[n-1],
		Median: quantileSorted(sorted, 0.5),
		Q1:     quantileSorted(sorted, 0.25),
		Q3:     quantileSorted(sorted, 0.75),
	}
	for _, x := range xs {
		s.Sum += x
	}
	sd, ok := SampleStdDev(xs)
	if !ok || sd == 0 {
		return s
	}
	s.StdDev = sd
	s.Variance = sd * sd

	fn := float64(n)
	var m3, m4 float64
	for _, x := range xs {
		z := (x - s.Mean) / sd
		m3 += z * z * z
		m4 += z * z * z * z
	}
	if n > 2 {
		s.Skewness = fn / ((fn - 1) * (fn - 2)) * m3
	}
	if n > 3 {
		s.Kurtosis = fn*(fn+1)/((fn-1)*(fn-2)*(fn-3))*m4 -
			3*(fn-1)*(fn-1)/((fn-2)*(fn-3))
	}
	return s
}
