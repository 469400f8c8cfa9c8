// Package crit finds local peaks and troughs of a cell's concentration series.
package crit

import (
	"psmfeats/internal/conc"
	"psmfeats/internal/model"
	"psmfeats/internal/psm"
)

type Kind int8

const (
	Trough Kind = -1
	Peak   Kind = 1
)

func (k Kind) String() string {
	switch k {
	case Peak:
		return "peak"
	case Trough:
		return "trough"
	default:
		return "none"
	}
}

// Point is one critical point of a cell's series.
type Point struct {
	Record   int
	Kind     Kind
	Position int
}

// Companion channels recorded by DetectWithCompanions.
const (
	CompanionHer1 = iota
	CompanionMespa
	CompanionMespb
	numCompanions
)

var companionSpecies = [numCompanions]model.Species{model.SpeciesMH1, model.SpeciesMespa, model.SpeciesMespb}

// Buffer holds the per-cell output of a detector. Reset clears it without
// releasing memory so a worker can reuse it across cells.
type Buffer struct {
	Points     []Point
	Values     []float64
	Companions [numCompanions][]float64
	Recorded   int

	scratch []float64
}

// NewBuffer sizes a buffer for the expected number of critical points and
// the companion lifetime length.
func NewBuffer(points, lifetime int) *Buffer {
	b := &Buffer{
		Points: make([]Point, 0, points),
		Values: make([]float64, 0, points),
	}
	for i := range b.Companions {
		b.Companions[i] = make([]float64, lifetime)
	}
	return b
}

func (b *Buffer) Reset() {
	b.Points = b.Points[:0]
	b.Values = b.Values[:0]
	b.scratch = b.scratch[:0]
	for i := range b.Companions {
		clear(b.Companions[i])
	}
	b.Recorded = 0
}

// HalfWindow converts the two-minute detection window to records. Records
// coarser than two minutes still compare against their direct neighbors.
func HalfWindow(p model.SimParams) int {
	hw := int(2 / p.RecordMinutes())
	if hw < 1 {
		return 1
	}
	return hw
}

// Classify reports whether values[i] is strictly above (peak) or strictly
// below (trough) every other value within halfWindow, clamped to the slice.
func Classify(values []float64, i, halfWindow int) (Kind, bool) {
	lo := max(i-halfWindow, 0)
	hi := min(i+halfWindow, len(values)-1)
	peak, trough := true, true
	v := values[i]
	for k := lo; k <= hi; k++ {
		if k == i {
			continue
		}
		if v <= values[k] {
			peak = false
		}
		if v >= values[k] {
			trough = false
		}
		if !peak && !trough {
			return 0, false
		}
	}
	switch {
	case peak && trough:
		// single-sample window
		return 0, false
	case peak:
		return Peak, true
	case trough:
		return Trough, true
	}
	return 0, false
}

// Scan classifies indices first..last of values. Record holds the index.
func Scan(values []float64, halfWindow, first, last int) []Point {
	var out []Point
	for i := max(first, 0); i <= last && i < len(values); i++ {
		if kind, ok := Classify(values, i, halfWindow); ok {
			out = append(out, Point{Record: i, Kind: kind})
		}
	}
	return out
}

// Detector finds critical points of one cell over its alive segment.
type Detector struct {
	Store      conc.Store
	Ring       psm.Ring
	HalfWindow int
}

// SegmentEnd returns the last record after start whose birth time equals
// both neighbors, or start when there is none.
func (d Detector) SegmentEnd(cell, start int) int {
	end := start
	records := d.Store.Records()
	for j := start + 1; j < records-1; j++ {
		birth := d.Store.Value(model.SpeciesBirth, j, cell)
		if birth != d.Store.Value(model.SpeciesBirth, j-1, cell) || birth != d.Store.Value(model.SpeciesBirth, j+1, cell) {
			break
		}
		end = j
	}
	return end
}

// Detect fills buf with the critical points of species in cell, starting
// after record start and stopping at the end of the cell's lifetime.
func (d Detector) Detect(species model.Species, cell, start int, buf *Buffer) {
	d.detect(species, cell, start, buf, false)
}

// DetectWithCompanions is Detect that also records the her1, mespa and
// mespb concentrations at every walked record.
func (d Detector) DetectWithCompanions(species model.Species, cell, start int, buf *Buffer) {
	d.detect(species, cell, start, buf, true)
}

func (d Detector) detect(species model.Species, cell, start int, buf *Buffer, companions bool) {
	buf.Reset()
	end := d.SegmentEnd(cell, start)
	if end <= start {
		return
	}

	hi := min(end+d.HalfWindow, d.Store.Records()-1)
	for r := start; r <= hi; r++ {
		buf.scratch = append(buf.scratch, d.Store.Value(species, r, cell))
	}

	col := cell % d.Ring.Width
	for j := start + 1; j <= end; j++ {
		if companions {
			if buf.Recorded < len(buf.Companions[0]) {
				for c, s := range companionSpecies {
					buf.Companions[c][buf.Recorded] = d.Store.Value(s, j, cell)
				}
			}
			buf.Recorded++
		}

		kind, ok := Classify(buf.scratch, j-start, d.HalfWindow)
		if !ok {
			continue
		}
		buf.Points = append(buf.Points, Point{
			Record:   j,
			Kind:     kind,
			Position: d.Ring.Position(j, col),
		})
		buf.Values = append(buf.Values, buf.scratch[j-start])
	}
}
