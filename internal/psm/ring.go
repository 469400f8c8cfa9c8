// Package psm maps spatial offsets from the growth frontier to storage
// columns of the circular tissue buffer.
package psm

import "psmfeats/internal/model"

// Convention selects how an offset from the frontier wraps around the ring.
type Convention int

const (
	// Simple subtracts the offset from the frontier column and wraps once.
	Simple Convention = iota
	// Doubled shifts by twice the offset and adds the offset back, the
	// addressing used for the anteriorly restricted mesp genes.
	Doubled
)

func (c Convention) String() string {
	switch c {
	case Simple:
		return "simple"
	case Doubled:
		return "doubled"
	default:
		return "unknown"
	}
}

// ConventionFor returns the addressing convention used for a gene's profiles.
func ConventionFor(g model.Gene) Convention {
	if g.AnteriorRestricted() {
		return Doubled
	}
	return Simple
}

// Starter reports the newest column at a record.
type Starter interface {
	At(record int) int
}

// Ring owns the tissue width and the active-start pointer.
type Ring struct {
	Width  int
	Starts Starter
}

func NewRing(width int, starts Starter) Ring {
	return Ring{Width: width, Starts: starts}
}

// Resolve returns the storage column at the given offset from the frontier.
func (r Ring) Resolve(record, offset int, conv Convention) int {
	start := r.Starts.At(record)
	var col int
	switch conv {
	case Doubled:
		base := start - 2*offset
		if start-offset < 0 {
			base += r.Width
		}
		col = offset + base
	default:
		col = start - offset
		if col < 0 {
			col += r.Width
		}
	}
	return r.wrap(col)
}

// Position returns the offset from the frontier of a storage column.
func (r Ring) Position(record, column int) int {
	start := r.Starts.At(record)
	if start >= column {
		return r.wrap(start - column)
	}
	return r.wrap(start + r.Width - column)
}

// Cell returns the storage cell of a row at a frontier offset.
func (r Ring) Cell(record, row, offset int, conv Convention) int {
	return row*r.Width + r.Resolve(record, offset, conv)
}

func (r Ring) wrap(col int) int {
	if r.Width <= 0 {
		return 0
	}
	col %= r.Width
	if col < 0 {
		col += r.Width
	}
	return col
}
