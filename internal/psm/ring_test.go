package psm

import (
	"testing"

	"psmfeats/internal/model"
)

type fixedStart int

func (f fixedStart) At(int) int { return int(f) }

func TestRingResolveWrapsAroundFrontier(t *testing.T) {
	ring := NewRing(10, fixedStart(3))
	cases := []struct {
		offset int
		want   int
	}{
		{0, 3},
		{2, 1},
		{3, 0},
		{5, 8},
		{9, 4},
	}
	for _, tc := range cases {
		for _, conv := range []Convention{Simple, Doubled} {
			if got := ring.Resolve(0, tc.offset, conv); got != tc.want {
				t.Fatalf("%s offset %d: expected column %d, got %d", conv, tc.offset, tc.want, got)
			}
		}
	}
}

func TestRingPositionInvertsResolve(t *testing.T) {
	ring := NewRing(10, fixedStart(6))
	for offset := 0; offset < 10; offset++ {
		col := ring.Resolve(0, offset, Simple)
		if got := ring.Position(0, col); got != offset {
			t.Fatalf("offset %d: column %d maps back to %d", offset, col, got)
		}
	}
}

func TestRingCell(t *testing.T) {
	ring := NewRing(10, fixedStart(3))
	if got := ring.Cell(0, 1, 2, Simple); got != 11 {
		t.Fatalf("expected cell 11, got %d", got)
	}
	if got := ring.Cell(0, 0, 5, Doubled); got != 8 {
		t.Fatalf("expected cell 8, got %d", got)
	}
}

func TestRingZeroWidth(t *testing.T) {
	ring := NewRing(0, fixedStart(0))
	if got := ring.Resolve(0, 4, Simple); got != 0 {
		t.Fatalf("expected column 0 for empty ring, got %d", got)
	}
}

func TestConventionFor(t *testing.T) {
	if ConventionFor(model.GeneMespa) != Doubled || ConventionFor(model.GeneMespb) != Doubled {
		t.Fatal("mesp genes use the doubled convention")
	}
	if ConventionFor(model.GeneHer1) != Simple || ConventionFor(model.GeneDeltaC) != Simple {
		t.Fatal("her and delta genes use the simple convention")
	}
	if Simple.String() != "simple" || Doubled.String() != "doubled" || Convention(7).String() != "unknown" {
		t.Fatal("unexpected convention names")
	}
}
