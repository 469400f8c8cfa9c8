// Package synth builds synthetic growing-PSM concentration datasets with
// known oscillation periods.
package synth

import (
	"fmt"
	"math"
	"math/rand"

	"psmfeats/internal/conc"
	"psmfeats/internal/model"
	"psmfeats/internal/osc"
)

type Options struct {
	Params  model.SimParams
	Records int
	// PeriodMinutes is the oscillation period at the growth frontier.
	PeriodMinutes float64
	// FollowCurve slows oscillations toward the anterior end along the
	// reference period curve. Otherwise every cell oscillates at PeriodMinutes.
	FollowCurve bool
	Baseline    float64
	Amplitude   float64
	// Noise is the standard deviation of gaussian noise added to every value.
	Noise float64
	Seed  int64
}

func DefaultOptions() Options {
	return Options{
		Params: model.SimParams{
			Height:         2,
			WidthTotal:     20,
			WidthInitial:   5,
			WidthCurrent:   5,
			StepSize:       1,
			BigGran:        1,
			SmallGran:      1,
			StepsSplit:     12,
			StepsTilGrowth: 200,
			StepsTotal:     900,
		},
		Records:       900,
		PeriodMinutes: 30,
		FollowCurve:   true,
		Baseline:      1,
		Amplitude:     10,
		Seed:          1,
	}
}

// anteriorGate is the fraction of the tissue where mesp expression starts.
const anteriorGate = 0.6

// initialPhase keeps sampled extrema off exact ties.
const initialPhase = 0.3

// Generate simulates column growth on the circular tissue buffer and fills
// every mRNA and protein channel.
func Generate(opts Options) (conc.Dataset, error) {
	p := opts.Params
	if err := p.Validate(); err != nil {
		return conc.Dataset{}, err
	}
	if opts.Records <= 0 {
		return conc.Dataset{}, fmt.Errorf("records must be > 0")
	}
	if opts.PeriodMinutes <= 0 {
		return conc.Dataset{}, fmt.Errorf("period must be > 0")
	}
	if p.WidthInitial <= 0 {
		return conc.Dataset{}, fmt.Errorf("width_initial must be > 0")
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	w := p.WidthTotal
	grid := conc.NewGrid(opts.Records, p.Cells())
	starts := make(conc.ActiveStart, opts.Records)

	// phase and birth per column; rows of a column are born together
	phase := make([]float64, w)
	birth := make([]float64, w)
	for c := range birth {
		phase[c] = initialPhase
		if c >= p.WidthInitial {
			birth[c] = -1
		}
	}
	formed := p.WidthInitial
	dt := p.RecordMinutes()
	clock := initialPhase

	for r := 0; r < opts.Records; r++ {
		step := r * p.BigGran
		for target := columnsFormed(p, step); formed < target; formed++ {
			c := formed % w
			birth[c] = float64(p.StepsTilGrowth + (formed-p.WidthInitial+1)*p.StepsSplit)
			phase[c] = clock
		}
		start := (formed - 1) % w
		starts[r] = start

		for c := 0; c < w; c++ {
			pos := start - c
			if pos < 0 {
				pos += w
			}
			alive := birth[c] >= 0
			for row := 0; row < p.Height; row++ {
				cell := row*w + c
				grid.Set(model.SpeciesBirth, r, cell, birth[c])
				if !alive {
					continue
				}
				opts.fill(grid, rng, r, cell, pos, phase[c])
			}
			if alive {
				phase[c] += 2 * math.Pi * dt / opts.period(pos)
			}
		}
		clock += 2 * math.Pi * dt / opts.PeriodMinutes
	}

	return conc.Dataset{Params: p, ActiveStart: starts, Store: grid}, nil
}

// columnsFormed counts the columns created by the given step.
func columnsFormed(p model.SimParams, step int) int {
	if step < p.StepsTilGrowth+p.StepsSplit {
		return p.WidthInitial
	}
	return p.WidthInitial + (step-p.StepsTilGrowth)/p.StepsSplit
}

func (o Options) period(pos int) float64 {
	if !o.FollowCurve {
		return o.PeriodMinutes
	}
	return o.PeriodMinutes * osc.ReferenceRatio(osc.NormalizedPosition(pos, o.Params.WidthTotal))
}

func (o Options) fill(grid *conc.Grid, rng *rand.Rand, record, cell, pos int, phase float64) {
	wave := (1 + math.Sin(phase)) / 2
	anti := (1 + math.Sin(phase+math.Pi)) / 2
	gate := 0.0
	if float64(pos) >= anteriorGate*float64(o.Params.WidthTotal) {
		gate = 1
	}
	values := [...]struct {
		mrna, protein model.Species
		v             float64
	}{
		{model.SpeciesMH1, model.SpeciesPH1, wave},
		{model.SpeciesMH7, model.SpeciesPH7, wave},
		{model.SpeciesMDelta, model.SpeciesPDelta, wave},
		{model.SpeciesMespa, model.SpeciesPMespa, gate * wave},
		{model.SpeciesMespb, model.SpeciesPMespb, gate * anti},
	}
	for _, s := range values {
		v := o.Baseline + o.Amplitude*s.v
		if o.Noise > 0 {
			v += rng.NormFloat64() * o.Noise
		}
		grid.Set(s.mrna, record, cell, v)
		grid.Set(s.protein, record, cell, 0.8*v)
	}
}
