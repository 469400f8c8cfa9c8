package synth

import (
	"testing"

	"psmfeats/internal/conc"
	"psmfeats/internal/crit"
	"psmfeats/internal/model"
)

func TestGenerateShapeAndGrowth(t *testing.T) {
	opts := DefaultOptions()
	ds, err := Generate(opts)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	p := opts.Params
	if ds.Store.Records() != opts.Records || ds.Store.Cells() != p.Cells() {
		t.Fatalf("unexpected grid shape records=%d cells=%d", ds.Store.Records(), ds.Store.Cells())
	}
	if err := conc.Check(ds.Store, ds.ActiveStart, p); err != nil {
		t.Fatalf("generated dataset fails check: %v", err)
	}
	if got := ds.ActiveStart.At(0); got != p.WidthInitial-1 {
		t.Fatalf("expected initial frontier %d, got %d", p.WidthInitial-1, got)
	}
	full := p.FullTime()
	if got := ds.ActiveStart.At(full); got != p.WidthTotal-1 {
		t.Fatalf("expected frontier %d once full, got %d", p.WidthTotal-1, got)
	}
	if got := ds.ActiveStart.At(full + p.StepsSplit); got != 0 {
		t.Fatalf("expected frontier to wrap to 0, got %d", got)
	}
}

func TestGenerateBirthMarksNewOccupant(t *testing.T) {
	opts := DefaultOptions()
	ds, err := Generate(opts)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	p := opts.Params
	full := p.FullTime()
	wrapAt := full + p.StepsSplit
	before := ds.Store.Value(model.SpeciesBirth, wrapAt-1, 0)
	after := ds.Store.Value(model.SpeciesBirth, wrapAt, 0)
	if before != 0 {
		t.Fatalf("expected initial birth 0, got %f", before)
	}
	if after != float64(wrapAt) {
		t.Fatalf("expected birth %d after wrap, got %f", wrapAt, after)
	}
	if v := ds.Store.Value(model.SpeciesMH1, 0, p.WidthTotal-1); v != 0 {
		t.Fatalf("unformed column should be empty, got %f", v)
	}
	if b := ds.Store.Value(model.SpeciesBirth, 0, p.WidthTotal-1); b != -1 {
		t.Fatalf("unformed column birth should be -1, got %f", b)
	}
}

func TestGeneratePeriodBeforeGrowth(t *testing.T) {
	opts := DefaultOptions()
	opts.FollowCurve = false
	ds, err := Generate(opts)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	series := conc.Series(ds.Store, model.SpeciesMH1, 2, 0, opts.Params.StepsTilGrowth)
	points := crit.Scan(series, 2, 1, len(series)-2)
	var peaks []int
	for _, pt := range points {
		if pt.Kind == crit.Peak {
			peaks = append(peaks, pt.Record)
		}
	}
	if len(peaks) < 3 {
		t.Fatalf("expected several peaks, got %d", len(peaks))
	}
	for i := 1; i < len(peaks); i++ {
		gap := peaks[i] - peaks[i-1]
		if gap < 29 || gap > 31 {
			t.Fatalf("peak spacing %d too far from period 30", gap)
		}
	}
}

func TestGenerateMespRestrictedToAnterior(t *testing.T) {
	opts := DefaultOptions()
	ds, err := Generate(opts)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	// the newest column sits at offset 0, far from the anterior band
	r := opts.Params.FullTime()
	cell := ds.ActiveStart.At(r)
	if v := ds.Store.Value(model.SpeciesMespa, r, cell); v != opts.Baseline {
		t.Fatalf("expected baseline mespa at frontier, got %f", v)
	}
}

func TestGenerateRejectsBadOptions(t *testing.T) {
	opts := DefaultOptions()
	opts.Records = 0
	if _, err := Generate(opts); err == nil {
		t.Fatal("expected error for zero records")
	}
	opts = DefaultOptions()
	opts.PeriodMinutes = 0
	if _, err := Generate(opts); err == nil {
		t.Fatal("expected error for zero period")
	}
}
