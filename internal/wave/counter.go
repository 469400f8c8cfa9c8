// Package wave counts spatial expression waves along the PSM and checks them
// against a mutant's expected wave pattern.
package wave

import (
	"psmfeats/internal/conc"
	"psmfeats/internal/model"
	"psmfeats/internal/psm"
)

// MaxWaves is the number of segments tracked before a scan overflows.
const MaxWaves = 3

// DefaultAnteriorCut is the fraction of the tissue where the anterior band begins.
const DefaultAnteriorCut = 0.8

// Segment spans the offsets of one wave, both ends inclusive.
type Segment struct {
	Start int
	End   int
}

func (s Segment) Mid() float64 {
	return float64(s.Start+s.End) / 2
}

func (s Segment) Length() int {
	return s.End - s.Start + 1
}

// Result of one scan. Overflow scans report Count MaxWaves+1.
type Result struct {
	Count     int
	Segments  []Segment
	Threshold float64
	Overflow  bool
}

// Profile averages a gene's concentration over rows, by offset from the frontier.
func Profile(store conc.Store, ring psm.Ring, g model.Gene, record, height int) []float64 {
	w := ring.Width
	out := make([]float64, w)
	species := g.Species()
	for x := 0; x < w; x++ {
		sum := 0.0
		for y := 0; y < height; y++ {
			sum += store.Value(species, record, ring.Cell(record, y, x, psm.Simple))
		}
		out[x] = sum / float64(height)
	}
	return out
}

// Count finds segments at or above half the profile maximum.
func Count(profile []float64) Result {
	th := 0.0
	for _, v := range profile {
		if v > th {
			th = v
		}
	}
	th /= 2

	res := Result{Threshold: th}
	open := -1
	for x, v := range profile {
		if v >= th && (x == 0 || profile[x-1] < th) {
			if res.Count == MaxWaves {
				res.overflow()
				return res
			}
			open = max(x-1, 0)
		}
		if x > 0 && v < th && profile[x-1] >= th {
			if res.Count == MaxWaves {
				res.overflow()
				return res
			}
			start := open
			if start < 0 {
				start = 0
			}
			res.Segments = append(res.Segments, Segment{Start: start, End: x})
			res.Count++
			open = -1
		}
	}
	return res
}

func (r *Result) overflow() {
	r.Count = MaxWaves + 1
	r.Overflow = true
}

// Zone is the band a wave's midpoint falls into.
type Zone int

const (
	ZoneNone Zone = iota
	ZonePosterior
	ZoneAnterior
)

// Geometry holds the widths that place a wave in a zone.
type Geometry struct {
	WidthInitial int
	WidthTotal   int
	AnteriorCut  float64
}

func GeometryOf(p model.SimParams) Geometry {
	return Geometry{WidthInitial: p.WidthInitial, WidthTotal: p.WidthTotal, AnteriorCut: DefaultAnteriorCut}
}

func (g Geometry) Classify(s Segment) Zone {
	mid := s.Mid()
	cut := g.AnteriorCut * float64(g.WidthTotal)
	switch {
	case mid >= cut:
		return ZoneAnterior
	case mid > float64(g.WidthInitial):
		return ZonePosterior
	}
	return ZoneNone
}

// Band is an inclusive integer range.
type Band struct {
	Min int
	Max int
}

func (b Band) Contains(v int) bool {
	return b.Min <= v && v <= b.Max
}

// Expectation is the wave pattern expected for one gene.
type Expectation struct {
	Count        Band
	PosteriorLen Band
	AnteriorLen  Band
	Condition    model.Condition
}

// Check ANDs the count and length results of a scan into conds.
func (e Expectation) Check(res Result, geo Geometry, conds model.Conditions) bool {
	countOK := !res.Overflow && e.Count.Contains(res.Count)
	lengthOK := !res.Overflow
	for _, s := range res.Segments {
		if !lengthOK {
			break
		}
		switch geo.Classify(s) {
		case ZonePosterior:
			lengthOK = e.PosteriorLen.Contains(s.Length())
		case ZoneAnterior:
			lengthOK = e.AnteriorLen.Contains(s.Length())
		}
	}
	conds.Record(e.Condition, countOK)
	conds.Record(model.CondMespWaveLength, lengthOK)
	return countOK && lengthOK
}

// Expectations returns the per-gene wave checks of a mutant. Only the wild
// type constrains its mesp waves.
func Expectations(m model.MutantKind) map[model.Gene]Expectation {
	if m != model.MutantWildType {
		return nil
	}
	post := Band{Min: 3, Max: 5}
	ant := Band{Min: 2, Max: 3}
	return map[model.Gene]Expectation{
		model.GeneMespa: {Count: Band{Min: 1, Max: 2}, PosteriorLen: post, AnteriorLen: ant, Condition: model.CondMespaWaveCount},
		model.GeneMespb: {Count: Band{Min: 2, Max: 3}, PosteriorLen: post, AnteriorLen: ant, Condition: model.CondMespbWaveCount},
	}
}
