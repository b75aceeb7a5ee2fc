package analyst

import (
	"errors"
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	// ErrEmpty is returned by ComputeStats for an empty input.
	ErrEmpty = errors.New("Empty array")
	// ErrOverflow is returned when a statistic does not fit a float64.
	ErrOverflow = errors.New("Values are too large to summarize")
)

// Stats are descriptive statistics of one numeric column. Mean, Median and
// StdDev are rounded to two decimal places.
type Stats struct {
	Column string  `json:"column"`
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	P25    float64 `json:"p25"`
	P75    float64 `json:"p75"`
}

// ComputeStats summarizes values. StdDev is the population standard
// deviation; P25 and P75 are the nearest-rank values sorted[int(n*q)].
// Rounding is half to even.
func ComputeStats(values []float64, column string) (Stats, error) {
	n := len(values)
	if n == 0 {
		return Stats{}, ErrEmpty
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	var total float64
	for _, v := range sorted {
		total += v
	}
	mean := total / float64(n)

	var variance float64
	for _, v := range sorted {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(n)

	mid := n / 2
	median := sorted[mid]
	if n%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}

	for _, v := range []float64{mean, median, variance} {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return Stats{}, ErrOverflow
		}
	}

	return Stats{
		Column: column,
		Count:  n,
		Min:    sorted[0],
		Max:    sorted[n-1],
		Mean:   round2(mean),
		Median: round2(median),
		StdDev: round2(math.Sqrt(variance)),
		P25:    sorted[int(float64(n)*0.25)],
		P75:    sorted[int(float64(n)*0.75)],
	}, nil
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).RoundBank(2).InexactFloat64()
}
