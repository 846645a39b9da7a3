package stats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the fitness distribution of one generation.
type Summary struct {
	Count  int     `json:"count"`
	Best   float64 `json:"best"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Std    float64 `json:"std"`
}

// Summarize computes population statistics over fitness values. Non-finite
// values are ignored; an empty input yields the zero Summary.
func Summarize(fitness []float64) Summary {
	values := make([]float64, 0, len(fitness))
	for _, f := range fitness {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		values = append(values, f)
	}
	if len(values) == 0 {
		return Summary{}
	}
	sort.Float64s(values)

	mean, std := stat.PopMeanStdDev(values, nil)
	return Summary{
		Count:  len(values),
		Best:   floats.Max(values),
		Mean:   mean,
		Median: stat.Quantile(0.5, stat.Empirical, values, nil),
		Min:    floats.Min(values),
		Std:    std,
	}
}
