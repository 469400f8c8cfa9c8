// Package corr computes the linear correlation used for synchronization and
// complementary-expression scores.
package corr

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Pearson returns the correlation of x and y over [start, end). A sub-range
// with no variance in either series, or fewer than two samples, scores 1.
func Pearson(x, y []float64, start, end int) float64 {
	start = max(start, 0)
	end = min(end, len(x), len(y))
	if end-start < 2 {
		return 1
	}
	xs, ys := x[start:end], y[start:end]
	if constant(xs) || constant(ys) {
		return 1
	}
	return stat.Correlation(xs, ys, nil)
}

// Mean returns the average of values, or fallback when there are none.
func Mean(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	return stat.Mean(values, nil)
}

func constant(v []float64) bool {
	return floats.Max(v) == floats.Min(v)
}
