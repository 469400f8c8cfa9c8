// Package osc turns critical points into period and amplitude samples and
// scores them against the reference period curve.
package osc

import (
	"psmfeats/internal/corr"
	"psmfeats/internal/crit"
)

// Degenerate is the period and amplitude assigned to cells with fewer than
// three critical points.
const Degenerate = 1.0

// PeriodSample is one full cycle ending at a peak.
type PeriodSample struct {
	Minutes  float64
	Position int
	Record   int
}

// AmplitudeSample is one interior peak measured against its neighbors.
type AmplitudeSample struct {
	Value    float64
	Position int
	Record   int
}

// Samples holds the per-cell samples derived from one detection.
type Samples struct {
	Points     int
	Periods    []PeriodSample
	Amplitudes []AmplitudeSample
}

// Reset clears the samples for reuse.
func (s *Samples) Reset() {
	s.Points = 0
	s.Periods = s.Periods[:0]
	s.Amplitudes = s.Amplitudes[:0]
}

// Collect appends period and amplitude samples for points whose values are
// given in parallel. recordMinutes converts record spans to minutes.
func (s *Samples) Collect(points []crit.Point, values []float64, recordMinutes float64) {
	s.Reset()
	n := len(points)
	s.Points = n
	if n < 3 {
		return
	}
	for i, p := range points {
		if p.Kind != crit.Peak {
			continue
		}
		if i >= 2 {
			prev := points[i-2]
			s.Periods = append(s.Periods, PeriodSample{
				Minutes:  float64(p.Record-prev.Record) * recordMinutes,
				Position: prev.Position + (p.Position-prev.Position)/2,
				Record:   p.Record,
			})
		}
		if i >= 1 && i < n-1 {
			s.Amplitudes = append(s.Amplitudes, AmplitudeSample{
				Value:    values[i] - (values[i-1]+values[i+1])/2,
				Position: p.Position,
				Record:   p.Record,
			})
		}
	}
}

// Degenerate reports whether the cell had too few critical points.
func (s *Samples) Degenerate() bool {
	return s.Points < 3
}

// Period is the cell's period: its first cycle, or the degenerate sentinel.
func (s *Samples) Period() float64 {
	if s.Degenerate() {
		return Degenerate
	}
	if len(s.Periods) == 0 {
		return 0
	}
	return s.Periods[0].Minutes
}

// Amplitude is the mean amplitude sample, or the degenerate sentinel.
func (s *Samples) Amplitude() float64 {
	if s.Degenerate() {
		return Degenerate
	}
	if len(s.Amplitudes) == 0 {
		return 0
	}
	values := make([]float64, len(s.Amplitudes))
	for i, a := range s.Amplitudes {
		values[i] = a.Value
	}
	return corr.Mean(values, 0)
}
