package osc

// FitParams configures the reference-curve oscillation-quality test.
type FitParams struct {
	// Low and High bound the allowed ratio to the reference curve.
	Low  float64 `json:"low"`
	High float64 `json:"high"`
	// Cutoff stops testing once a sample lies beyond this fraction of the tissue.
	Cutoff float64 `json:"cutoff"`
	// PassFraction of cells must pass for the population to pass.
	PassFraction float64 `json:"pass_fraction"`
	// MinPeriods is the number of period samples a cell needs to be tested.
	MinPeriods int `json:"min_periods"`
}

func DefaultFitParams() FitParams {
	return FitParams{
		Low:          0.9,
		High:         1.1,
		Cutoff:       0.85,
		PassFraction: 0.7,
		MinPeriods:   3,
	}
}

// FitsReference runs the Giudicelli test on one cell's period samples.
func FitsReference(periods []PeriodSample, width int, params FitParams) bool {
	if len(periods) < params.MinPeriods || len(periods) == 0 {
		return false
	}
	span := float64(width - 1)
	first := ReferenceRatio(NormalizedPosition(periods[0].Position, width))
	for _, p := range periods[1:] {
		if float64(p.Position) > params.Cutoff*span {
			break
		}
		expected := ReferenceRatio(NormalizedPosition(p.Position, width)) / first
		ratio := p.Minutes / periods[0].Minutes
		if !(params.Low*expected < ratio && ratio < params.High*expected) {
			return false
		}
	}
	return true
}

// PopulationPasses reports whether enough cells passed.
func PopulationPasses(passed, cells int, params FitParams) bool {
	threshold := int(params.PassFraction * float64(cells))
	return passed >= threshold
}
