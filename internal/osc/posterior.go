package osc

import (
	"psmfeats/internal/crit"
)

// PosteriorCutoff is the fraction of the reference amplitude below which a
// posterior cell stops contributing periods.
const PosteriorCutoff = 0.3

// PosteriorCell summarizes one settled cell's oscillation.
type PosteriorCell struct {
	Period          float64
	Amplitude       float64
	PeakToTroughEnd float64
	PeakToTroughMid float64
	GoodSomites     int
	Degenerate      bool

	// Periods and Amplitudes reported once four peaks have been seen.
	Periods    []float64
	Amplitudes []float64
}

// AnalyzePosterior walks a posterior cell's series with adjacent-step
// detection. refAmplitude is the wild-type posterior amplitude of the gene,
// or zero when analyzing the wild type itself.
func AnalyzePosterior(values []float64, recordMinutes, refAmplitude float64) PosteriorCell {
	var (
		peaks, troughs []int
		numPeaks       int
		intervals      int
		periodSum      float64
		trackPeriod    = true
		out            PosteriorCell
	)

	for j := 1; j < len(values)-1; j++ {
		if abs(numPeaks-len(troughs)) > 1 {
			numPeaks = 0
			break
		}
		kind, ok := crit.Adjacent(values, j)
		if !ok {
			continue
		}
		if kind == crit.Peak {
			peaks = append(peaks[:numPeaks], j)
			numPeaks++
			if numPeaks >= 2 && trackPeriod {
				period := float64(peaks[numPeaks-1]-peaks[numPeaks-2]) * recordMinutes
				periodSum += period
				intervals++
				if numPeaks >= 4 {
					out.Periods = append(out.Periods, period)
				}
			}
			continue
		}

		troughs = append(troughs, j)
		if len(troughs) < 2 || numPeaks < 2 {
			continue
		}
		n := len(troughs)
		lastPeak := peaks[numPeaks-1]
		firstAmp := values[peaks[1]] - (values[troughs[0]]+values[troughs[1]])/2
		curAmp := values[lastPeak] - (values[troughs[n-1]]+values[troughs[n-2]])/2
		if numPeaks >= 4 {
			out.Amplitudes = append(out.Amplitudes, curAmp)
		}
		ref := PosteriorCutoff * firstAmp
		if refAmplitude > 0 {
			ref = PosteriorCutoff * refAmplitude
		}
		if curAmp < ref {
			trackPeriod = false
		}
	}

	if intervals > 0 {
		out.Period = periodSum / float64(intervals)
	}
	out.GoodSomites = len(troughs) - 1

	n := numPeaks
	if n < 3 || len(troughs) < n-1 || len(troughs) <= n/2 {
		out.Degenerate = true
		out.Period = Degenerate
		out.Amplitude = Degenerate
		out.PeakToTroughEnd = Degenerate
		out.PeakToTroughMid = Degenerate
		return out
	}

	peakPenult := values[peaks[n-2]]
	troughUlt := values[troughs[n-2]]
	troughPenult := values[troughs[n-3]]
	out.Amplitude = peakPenult - (troughPenult+troughUlt)/2
	out.PeakToTroughEnd = peakToTrough(peakPenult, troughUlt)
	out.PeakToTroughMid = peakToTrough(values[peaks[n/2]], values[troughs[n/2]])
	return out
}

func peakToTrough(peak, trough float64) float64 {
	if trough > 1 {
		return peak / trough
	}
	return peak
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
