package conc

import (
	"fmt"

	"psmfeats/internal/model"
)

// Store is a read-only view over simulated concentrations.
type Store interface {
	Value(species model.Species, record, cell int) float64
	Records() int
	Cells() int
}

// ActiveStart maps a record to the column index of the newest tissue column.
type ActiveStart []int

func (a ActiveStart) At(record int) int {
	if len(a) == 0 {
		return 0
	}
	if record < 0 {
		record = 0
	}
	if record >= len(a) {
		record = len(a) - 1
	}
	return a[record]
}

// Grid is a dense Store laid out as species -> record -> cell.
type Grid struct {
	records int
	cells   int
	data    [model.NumSpecies][]float64
}

func NewGrid(records, cells int) *Grid {
	g := &Grid{records: records, cells: cells}
	for s := range g.data {
		g.data[s] = make([]float64, records*cells)
	}
	return g
}

func (g *Grid) Records() int { return g.records }

func (g *Grid) Cells() int { return g.cells }

func (g *Grid) Value(species model.Species, record, cell int) float64 {
	return g.data[species][record*g.cells+cell]
}

func (g *Grid) Set(species model.Species, record, cell int, value float64) {
	g.data[species][record*g.cells+cell] = value
}

// Series copies a cell's values for records [from, to).
func Series(store Store, species model.Species, cell, from, to int) []float64 {
	if from < 0 {
		from = 0
	}
	if to > store.Records() {
		to = store.Records()
	}
	if to <= from {
		return nil
	}
	out := make([]float64, to-from)
	for r := from; r < to; r++ {
		out[r-from] = store.Value(species, r, cell)
	}
	return out
}

// Check verifies that the store and active-start record match the parameters.
func Check(store Store, starts ActiveStart, params model.SimParams) error {
	if store == nil {
		return fmt.Errorf("concentration store is required")
	}
	if store.Cells() != params.Cells() {
		return fmt.Errorf("store holds %d cells, parameters describe %d", store.Cells(), params.Cells())
	}
	if len(starts) < store.Records() {
		return fmt.Errorf("active start record covers %d records, store holds %d", len(starts), store.Records())
	}
	for record, col := range starts {
		if col < 0 || col >= params.WidthTotal {
			return fmt.Errorf("active start %d at record %d out of range [0,%d)", col, record, params.WidthTotal)
		}
	}
	return nil
}
