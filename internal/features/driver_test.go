package features

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"psmfeats/internal/conc"
	"psmfeats/internal/model"
	"psmfeats/internal/osc"
	"psmfeats/internal/synth"
)

func synthInput(t *testing.T, mutant model.MutantKind) Input {
	t.Helper()
	ds, err := synth.Generate(synth.DefaultOptions())
	require.NoError(t, err)
	return Input{
		RunID:  "run-1",
		SetNum: 3,
		Mutant: mutant,
		Params: ds.Params,
		Store:  ds.Store,
		Starts: ds.ActiveStart,
	}
}

func constantInput(mutant model.MutantKind) Input {
	params := synth.DefaultOptions().Params
	const records = 900
	grid := conc.NewGrid(records, params.Cells())
	values := map[model.Species]float64{
		model.SpeciesMH1:    2,
		model.SpeciesMH7:    4,
		model.SpeciesMespa:  3,
		model.SpeciesMespb:  5,
		model.SpeciesMDelta: 6,
	}
	for r := 0; r < records; r++ {
		for c := 0; c < params.Cells(); c++ {
			for s, v := range values {
				grid.Set(s, r, c, v)
			}
		}
	}
	starts := make(conc.ActiveStart, records)
	for r := range starts {
		starts[r] = r / params.StepsSplit % params.WidthTotal
	}
	return Input{RunID: "const", Mutant: mutant, Params: params, Store: grid, Starts: starts}
}

func newTestAnalyzer(t *testing.T, cfg Config) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(cfg)
	require.NoError(t, err)
	return a
}

func TestAnalyzeSyntheticWildType(t *testing.T) {
	in := synthInput(t, model.MutantWildType)
	a := newTestAnalyzer(t, Config{
		Workers:      2,
		Diagnostics:  true,
		PosteriorEnd: in.Params.StepsTilGrowth,
	})

	rec, diag, err := a.Analyze(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, "run-1", rec.RunID)
	require.Equal(t, 3, rec.SetNum)

	require.InDelta(t, 30, rec.PeriodPost[model.GeneHer1], 3)
	require.InDelta(t, 30, rec.PeriodAnt[model.GeneHer1], 5)
	require.Greater(t, rec.AmplitudeAnt[model.GeneHer1], 5.0)
	require.Greater(t, rec.NumGoodSomites[model.GeneHer1], 3.0)
	require.Greater(t, rec.SyncScorePost[model.GeneHer1], 0.5)

	// rows share their phase, so every row pair is in sync
	require.InDelta(t, 1, rec.SyncScoreAnt[model.GeneHer1], 1e-9)
	require.Greater(t, rec.AmplitudePostTime[model.GeneHer1][1], 0.0)
	require.Contains(t, rec.AmplitudePostTime[model.GeneHer1], model.HalfHour(6))
	require.Contains(t, rec.AmplitudeAntTime[model.GeneMespa], model.HalfHour(4))

	require.Contains(t, rec.Conditions, model.CondHer1Giudicelli)
	require.Contains(t, rec.Conditions, model.CondMespaWaveCount)
	require.Contains(t, rec.Conditions, model.CondMespbWaveCount)
	require.Contains(t, rec.Conditions, model.CondMespWaveLength)

	require.Len(t, diag.Anterior[model.GeneHer1], 20)
	require.Len(t, diag.Posterior[model.GeneHer7], in.Params.Height*in.Params.WidthCurrent)
	require.Len(t, diag.SyncTrajectories, 10)
	require.Len(t, diag.Waves[model.GeneMespa], 5)
	require.Equal(t, 20, diag.GiudicelliCells)
	require.True(t, rec.Conditions[model.CondHer1Giudicelli])
	require.Equal(t, diag.GiudicelliCells, diag.GiudicelliPassed)
	require.NotEmpty(t, rec.PeriodAntTime[model.GeneHer1])
}

func TestAnalyzeIsDeterministicAcrossWorkers(t *testing.T) {
	in := synthInput(t, model.MutantWildType)
	serial, _, err := newTestAnalyzer(t, Config{Workers: 1}).Analyze(context.Background(), in)
	require.NoError(t, err)
	parallel, _, err := newTestAnalyzer(t, Config{Workers: 4}).Analyze(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, serial, parallel)
}

func TestAnalyzeConstantWildType(t *testing.T) {
	in := constantInput(model.MutantWildType)
	rec, diag, err := newTestAnalyzer(t, Config{Workers: 1}).Analyze(context.Background(), in)
	require.NoError(t, err)

	for _, g := range model.AnteriorGenes {
		require.Equal(t, 1.0, rec.PeriodAnt[g], g.String())
		require.Equal(t, 1.0, rec.AmplitudeAnt[g], g.String())
		require.InDelta(t, 1, rec.SyncScoreAnt[g], 1e-12, g.String())
	}
	// ten snapshots of a constant 2 on top of the degenerate posterior amplitude
	require.InDelta(t, 1+10*2, rec.AmplitudePost[model.GeneHer1], 1e-9)
	require.InDelta(t, 10*2, rec.AmplitudePostTime[model.GeneHer1][1], 1e-9)
	require.InDelta(t, 10*2, rec.AmplitudePostTime[model.GeneHer1][6], 1e-9)
	require.InDelta(t, 10*3, rec.AmplitudeAntTime[model.GeneMespa][2], 1e-9)
	require.InDelta(t, 10*5, rec.AmplitudeAntTime[model.GeneMespb][4], 1e-9)
	require.Equal(t, 1.0, rec.CompScoreMespa)

	require.False(t, rec.Conditions[model.CondHer1Giudicelli])
	require.False(t, rec.Conditions[model.CondMespaWaveCount])
	require.True(t, rec.Conditions[model.CondMespWaveLength])
	require.Zero(t, diag.GiudicelliPassed)
}

func TestAnalyzeConstantDAPT(t *testing.T) {
	in := constantInput(model.MutantDAPT)
	rec, diag, err := newTestAnalyzer(t, Config{Workers: 3}).Analyze(context.Background(), in)
	require.NoError(t, err)

	require.InDelta(t, 10*2, rec.AmplitudePostTime[model.GeneHer1][6], 1e-9)
	require.InDelta(t, 1, rec.SyncTime[model.GeneHer1][6], 1e-12)
	require.InDelta(t, 1, rec.SyncTime[model.GeneMespb][6], 1e-12)
	require.InDelta(t, 10*3, rec.AmplitudeAntTime[model.GeneMespa][4], 1e-9)
	require.Empty(t, rec.AmplitudeAntTime[model.GeneHer7])
	require.Zero(t, rec.SyncScoreAnt[model.GeneHer1])
	require.Empty(t, rec.Conditions)
	require.Empty(t, diag.Waves)
}

func TestAnalyzeConstantDeltaWritesOtherGenes(t *testing.T) {
	in := constantInput(model.MutantDelta)
	rec, _, err := newTestAnalyzer(t, Config{}).Analyze(context.Background(), in)
	require.NoError(t, err)
	require.InDelta(t, 1, rec.SyncScoreAnt[model.GeneHer1], 1e-12)
	require.InDelta(t, 1, rec.SyncScoreAnt[model.GeneMespb], 1e-12)
	require.Zero(t, rec.SyncScoreAnt[model.GeneMespa])
	require.InDelta(t, 1+10*2, rec.AmplitudePost[model.GeneHer1], 1e-9)
	require.InDelta(t, 10*3, rec.AmplitudeAntTime[model.GeneMespa][1], 1e-9)
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	a := newTestAnalyzer(t, Config{Region: Region{StartLine: 0, EndLine: 2, StartCol: 4, EndCol: 4}})
	_, _, err := a.Analyze(context.Background(), constantInput(model.MutantWildType))
	require.True(t, errors.Is(err, ErrEmptyRegion))

	in := constantInput(model.MutantWildType)
	in.Store = nil
	_, _, err = newTestAnalyzer(t, Config{}).Analyze(context.Background(), in)
	require.Error(t, err)

	in = constantInput(model.MutantWildType)
	in.Params.StepSize = 0
	_, _, err = newTestAnalyzer(t, Config{}).Analyze(context.Background(), in)
	require.Error(t, err)

	in = constantInput(model.MutantWildType)
	in.Starts = in.Starts[:10]
	_, _, err = newTestAnalyzer(t, Config{}).Analyze(context.Background(), in)
	require.Error(t, err)
}

func TestAnalyzeHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := newTestAnalyzer(t, Config{Workers: 2}).Analyze(ctx, constantInput(model.MutantWildType))
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewAnalyzerValidates(t *testing.T) {
	_, err := NewAnalyzer(Config{AnteriorFraction: 1.5})
	require.Error(t, err)
	_, err = NewAnalyzer(Config{Fit: osc.FitParams{Low: 1.2, High: 1.1}})
	require.Error(t, err)

	a, err := NewAnalyzer(Config{})
	require.NoError(t, err)
	require.Equal(t, 600.0, a.Config().WindowBaseMinutes)
	require.Equal(t, 5, a.Config().WaveSnapshots)
	require.Positive(t, a.Config().Workers)
}

type recordingObserver struct {
	mu        sync.Mutex
	cells     map[string]int
	passes    map[string]int
	giud      int
	waveScans int
}

func (o *recordingObserver) CellsAnalyzed(pass string, _ model.Gene, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cells[pass] += n
}

func (o *recordingObserver) GiudicelliCell(bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.giud++
}

func (o *recordingObserver) WaveScan(model.Gene, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.waveScans++
}

func (o *recordingObserver) ObservePass(pass string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.passes[pass]++
}

func TestAnalyzeReportsToObserver(t *testing.T) {
	obs := &recordingObserver{cells: map[string]int{}, passes: map[string]int{}}
	in := constantInput(model.MutantWildType)
	_, _, err := newTestAnalyzer(t, Config{Observer: obs, Workers: 1}).Analyze(context.Background(), in)
	require.NoError(t, err)

	require.Equal(t, 3*in.Params.Height*in.Params.WidthCurrent, obs.cells[PassPosterior])
	require.Equal(t, 5*20, obs.cells[PassAnterior])
	require.Equal(t, 20, obs.giud)
	require.Equal(t, 10, obs.waveScans)
	require.Equal(t, 1, obs.passes[PassPosterior])
	require.Equal(t, 1, obs.passes[PassWaves])
	require.Equal(t, 5, obs.passes[PassRules])
}
