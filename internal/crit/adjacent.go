package crit

// Adjacent classifies values[i] against its immediate neighbors only.
// The first and last samples are never critical.
func Adjacent(values []float64, i int) (Kind, bool) {
	if i <= 0 || i >= len(values)-1 {
		return 0, false
	}
	prev, cur, next := values[i-1], values[i], values[i+1]
	switch {
	case prev < cur && cur > next:
		return Peak, true
	case prev > cur && cur < next:
		return Trough, true
	}
	return 0, false
}
