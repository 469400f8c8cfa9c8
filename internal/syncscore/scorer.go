// Package syncscore measures how synchronized tissue rows oscillate.
package syncscore

import (
	"psmfeats/internal/conc"
	"psmfeats/internal/corr"
	"psmfeats/internal/model"
	"psmfeats/internal/psm"
)

// DefaultAnteriorFraction is where the anterior band of the mesp genes starts.
const DefaultAnteriorFraction = 0.6

// Scorer computes synchronization scores over a concentration store.
type Scorer struct {
	Store            conc.Store
	Ring             psm.Ring
	Params           model.SimParams
	AnteriorFraction float64
}

func New(store conc.Store, ring psm.Ring, params model.SimParams) *Scorer {
	return &Scorer{
		Store:            store,
		Ring:             ring,
		Params:           params,
		AnteriorFraction: DefaultAnteriorFraction,
	}
}

// Range is the spatial sub-range [start, end) correlated for a gene.
func (s *Scorer) Range(g model.Gene) (int, int) {
	w := s.Params.WidthTotal
	if g.AnteriorRestricted() {
		return s.Params.AnteriorStart(s.AnteriorFraction), w
	}
	return 0, w
}

// Profile fills dst with one row's concentrations by offset from the frontier.
func (s *Scorer) Profile(g model.Gene, record, row int, dst []float64) []float64 {
	w := s.Params.WidthTotal
	dst = dst[:0]
	conv := psm.ConventionFor(g)
	species := g.Species()
	for y := 0; y < w; y++ {
		dst = append(dst, s.Store.Value(species, record, s.Ring.Cell(record, row, y, conv)))
	}
	return dst
}

// Rows is the mean correlation of row 0 against every other row at record.
func (s *Scorer) Rows(g model.Gene, record int) float64 {
	h := s.Params.Height
	if h == 1 {
		return 1
	}
	w := s.Params.WidthTotal
	first := s.Profile(g, record, 0, make([]float64, 0, w))
	cur := make([]float64, 0, w)
	lo, hi := s.Range(g)

	sum := 0.0
	for x := 1; x < h; x++ {
		cur = s.Profile(g, record, x, cur)
		sum += corr.Pearson(first, cur, lo, hi)
	}
	return sum / float64(h-1)
}

// Trajectory follows the newest column at startRecord through its lifetime
// and scores row synchronization over sliding windows of intervalRecords,
// advancing by half a window.
func (s *Scorer) Trajectory(g model.Gene, startRecord, intervalRecords int) []float64 {
	col := s.Ring.Starts.At(startRecord)
	species := g.Species()
	w := s.Params.WidthTotal

	first := s.lifetime(species, col, startRecord, nil)
	n := len(first)
	step := intervalRecords / 2
	if step < 1 || n < intervalRecords {
		return nil
	}
	points := (n-intervalRecords)/step + 1
	out := make([]float64, points)

	h := s.Params.Height
	if h == 1 {
		for i := range out {
			out[i] = 1
		}
		return out
	}

	other := make([]float64, n)
	for x := 1; x < h; x++ {
		clear(other)
		s.lifetime(species, x*w+col, startRecord, other[:0])
		for i := range out {
			t := i * step
			out[i] += corr.Pearson(first, other, t, t+intervalRecords)
		}
	}
	for i := range out {
		out[i] /= float64(h - 1)
	}
	return out
}

// lifetime appends cell's values from start while its birth time is unchanged.
func (s *Scorer) lifetime(species model.Species, cell, start int, dst []float64) []float64 {
	records := s.Store.Records()
	if start < 0 || start >= records {
		return dst
	}
	limit := cap(dst)
	dst = append(dst, s.Store.Value(species, start, cell))
	for t := start + 1; t < records; t++ {
		if s.Store.Value(model.SpeciesBirth, t, cell) != s.Store.Value(model.SpeciesBirth, t-1, cell) {
			break
		}
		if limit > 0 && len(dst) == limit {
			break
		}
		dst = append(dst, s.Store.Value(species, t, cell))
	}
	return dst
}

// Posterior is the mean correlation of every settled cell against the
// middle cell over records [start, end).
func (s *Scorer) Posterior(g model.Gene, start, end int) float64 {
	p := s.Params
	species := g.Species()
	middle := (p.Height/2)*p.WidthTotal + p.WidthCurrent/2
	ref := conc.Series(s.Store, species, middle, start, end)

	var scores []float64
	for x := 0; x < p.Height; x++ {
		for y := 0; y < p.WidthInitial; y++ {
			cell := x*p.WidthTotal + y
			if cell == middle {
				continue
			}
			cur := conc.Series(s.Store, species, cell, start, end)
			scores = append(scores, corr.Pearson(ref, cur, 0, len(ref)))
		}
	}
	return corr.Mean(scores, 1)
}
