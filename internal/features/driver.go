// Package features runs one mutant's feature extraction pass over a
// concentration store and fills its feature record.
package features

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"

	"psmfeats/internal/conc"
	"psmfeats/internal/corr"
	"psmfeats/internal/crit"
	"psmfeats/internal/model"
	"psmfeats/internal/osc"
	"psmfeats/internal/psm"
	"psmfeats/internal/syncscore"
	"psmfeats/internal/wave"
)

const (
	PassPosterior = "posterior"
	PassAnterior  = "anterior"
	PassRules     = "rules"
	PassWaves     = "waves"
)

// Observer receives pass statistics. metrics.Recorder implements it.
type Observer interface {
	CellsAnalyzed(pass string, gene model.Gene, n int)
	GiudicelliCell(passed bool)
	WaveScan(gene model.Gene, overflow bool)
	ObservePass(pass string, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) CellsAnalyzed(string, model.Gene, int) {}
func (nopObserver) GiudicelliCell(bool)                   {}
func (nopObserver) WaveScan(model.Gene, bool)             {}
func (nopObserver) ObservePass(string, time.Duration)     {}

// Region is the anterior rectangle of rows and newest columns analyzed.
type Region struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
	StartCol  int `json:"start_col"`
	EndCol    int `json:"end_col"`
}

func (r Region) Cells() int {
	return max(r.EndLine-r.StartLine, 0) * max(r.EndCol-r.StartCol, 0)
}

// DefaultRegion covers every row and the first ten columns formed after the
// PSM is full.
func DefaultRegion(p model.SimParams) Region {
	return Region{StartLine: 0, EndLine: p.Height, StartCol: 0, EndCol: 10}
}

type Config struct {
	Logger   *zap.Logger
	Observer Observer
	Workers  int
	Fit      osc.FitParams

	// WindowBaseMinutes is the time rule windows are measured from.
	WindowBaseMinutes float64
	SnapshotMinutes   float64
	AnteriorFraction  float64
	AnteriorCut       float64
	// SyncIntervalMinutes is the window of the sync trajectory report.
	SyncIntervalMinutes float64
	WaveSnapshots       int

	// Region defaults to DefaultRegion when empty.
	Region Region
	// PosteriorStart and PosteriorEnd bound the posterior records; zero
	// values cover the whole store.
	PosteriorStart int
	PosteriorEnd   int

	Diagnostics bool
}

func DefaultConfig() Config {
	return Config{
		Workers:             runtime.NumCPU(),
		Fit:                 osc.DefaultFitParams(),
		WindowBaseMinutes:   600,
		SnapshotMinutes:     3,
		AnteriorFraction:    syncscore.DefaultAnteriorFraction,
		AnteriorCut:         wave.DefaultAnteriorCut,
		SyncIntervalMinutes: 30,
		WaveSnapshots:       5,
	}
}

// Input is one mutant's simulated run.
type Input struct {
	RunID  string
	SetNum int
	Mutant model.MutantKind
	Params model.SimParams
	Store  conc.Store
	Starts conc.ActiveStart
	// InductionMinutes is when the mutation is induced.
	InductionMinutes float64
	// WildType is the record of the wild-type pass of the same parameter
	// set. Mutant posterior passes compare amplitudes against it.
	WildType *model.FeatureRecord
}

// CellReport is one anterior cell's period and amplitude samples.
type CellReport struct {
	PeriodPositions    []int
	Periods            []float64
	AmplitudePositions []int
	Amplitudes         []float64
}

// PosteriorReport is one posterior cell's tracked periods and amplitudes.
type PosteriorReport struct {
	Periods    []float64
	Amplitudes []float64
}

type Diagnostics struct {
	Anterior         map[model.Gene][]CellReport
	Posterior        map[model.Gene][]PosteriorReport
	SyncTrajectories [][]float64
	SyncInterval     float64
	Waves            map[model.Gene][]wave.Result
	GiudicelliPassed int
	GiudicelliCells  int
}

var ErrEmptyRegion = errors.New("anterior region holds no cells")

type Analyzer struct {
	cfg Config
	log *zap.Logger
	obs Observer
}

func NewAnalyzer(cfg Config) (*Analyzer, error) {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.Fit == (osc.FitParams{}) {
		cfg.Fit = def.Fit
	}
	if cfg.WindowBaseMinutes == 0 {
		cfg.WindowBaseMinutes = def.WindowBaseMinutes
	}
	if cfg.SnapshotMinutes == 0 {
		cfg.SnapshotMinutes = def.SnapshotMinutes
	}
	if cfg.AnteriorFraction == 0 {
		cfg.AnteriorFraction = def.AnteriorFraction
	}
	if cfg.AnteriorCut == 0 {
		cfg.AnteriorCut = def.AnteriorCut
	}
	if cfg.SyncIntervalMinutes == 0 {
		cfg.SyncIntervalMinutes = def.SyncIntervalMinutes
	}
	if cfg.WaveSnapshots == 0 {
		cfg.WaveSnapshots = def.WaveSnapshots
	}
	switch {
	case cfg.SnapshotMinutes < 0:
		return nil, fmt.Errorf("snapshot minutes must be > 0")
	case cfg.AnteriorFraction < 0 || cfg.AnteriorFraction >= 1:
		return nil, fmt.Errorf("anterior fraction must be in [0,1), got %g", cfg.AnteriorFraction)
	case cfg.AnteriorCut < 0 || cfg.AnteriorCut > 1:
		return nil, fmt.Errorf("anterior cut must be in [0,1], got %g", cfg.AnteriorCut)
	case cfg.Fit.Low >= cfg.Fit.High:
		return nil, fmt.Errorf("fit tolerance low %g must be below high %g", cfg.Fit.Low, cfg.Fit.High)
	case cfg.WaveSnapshots < 0:
		return nil, fmt.Errorf("wave snapshots must be >= 0")
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	obs := cfg.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	return &Analyzer{cfg: cfg, log: log, obs: obs}, nil
}

func (a *Analyzer) Config() Config {
	return a.cfg
}

// pass holds the state of one Analyze call.
type pass struct {
	*Analyzer
	in       Input
	params   model.SimParams
	ring     psm.Ring
	scorer   *syncscore.Scorer
	detector crit.Detector
	rec      *model.FeatureRecord
	diag     *Diagnostics
	region   Region
	columns  []anteriorColumn
	rm       float64
	log      *zap.Logger
}

type anteriorColumn struct {
	col    int
	record int
}

// Analyze runs the posterior pass, the anterior pass with its rule windows
// and, for the wild type, the wave checks.
func (a *Analyzer) Analyze(ctx context.Context, in Input) (model.FeatureRecord, Diagnostics, error) {
	if in.Store == nil {
		return model.FeatureRecord{}, Diagnostics{}, fmt.Errorf("concentration store is required")
	}
	if err := in.Params.Validate(); err != nil {
		return model.FeatureRecord{}, Diagnostics{}, fmt.Errorf("invalid parameters: %w", err)
	}
	if err := conc.Check(in.Store, in.Starts, in.Params); err != nil {
		return model.FeatureRecord{}, Diagnostics{}, err
	}
	if in.Mutant == "" {
		in.Mutant = model.MutantWildType
	}

	p := a.newPass(in)
	if err := p.planColumns(); err != nil {
		return model.FeatureRecord{}, Diagnostics{}, err
	}
	p.log.Info("analysis started",
		zap.Int("records", in.Store.Records()),
		zap.Int("cells", in.Store.Cells()),
		zap.Int("anterior_columns", len(p.columns)),
	)

	if err := p.posterior(ctx); err != nil {
		return model.FeatureRecord{}, Diagnostics{}, err
	}
	if err := p.anterior(ctx); err != nil {
		return model.FeatureRecord{}, Diagnostics{}, err
	}
	if in.Mutant == model.MutantWildType {
		p.waves()
	}
	if a.cfg.Diagnostics {
		p.trajectories()
	}

	p.log.Info("analysis finished", zap.Bool("conditions_passed", p.rec.Conditions.Passed()))
	return *p.rec, *p.diag, nil
}

func (a *Analyzer) newPass(in Input) *pass {
	params := in.Params
	ring := psm.NewRing(params.WidthTotal, in.Starts)
	scorer := syncscore.New(in.Store, ring, params)
	scorer.AnteriorFraction = a.cfg.AnteriorFraction
	rec := model.NewFeatureRecord(in.RunID, in.Mutant)
	rec.SetNum = in.SetNum
	return &pass{
		Analyzer: a,
		in:       in,
		params:   params,
		ring:     ring,
		scorer:   scorer,
		detector: crit.Detector{Store: in.Store, Ring: ring, HalfWindow: crit.HalfWindow(params)},
		rec:      &rec,
		diag: &Diagnostics{
			Anterior:     make(map[model.Gene][]CellReport),
			Posterior:    make(map[model.Gene][]PosteriorReport),
			Waves:        make(map[model.Gene][]wave.Result),
			SyncInterval: a.cfg.SyncIntervalMinutes,
		},
		rm:  params.RecordMinutes(),
		log: a.log.With(zap.String("run_id", in.RunID), zap.String("mutant", string(in.Mutant))),
	}
}

// planColumns lists the anterior columns whose cells are recorded long enough to analyze.
func (p *pass) planColumns() error {
	region := p.cfg.Region
	if region == (Region{}) {
		region = DefaultRegion(p.params)
	}
	region.EndLine = min(region.EndLine, p.params.Height)
	if region.Cells() == 0 {
		return ErrEmptyRegion
	}
	p.region = region

	records := p.in.Store.Records()
	t := p.params.FullTime()
	for c := region.StartCol; c < region.EndCol; c++ {
		if t >= records-2 {
			p.log.Debug("column beyond recorded time", zap.Int("column", c), zap.Int("record", t))
		} else {
			p.columns = append(p.columns, anteriorColumn{col: c, record: t})
		}
		t += p.params.ColumnRecords()
	}
	if len(p.columns) == 0 {
		return fmt.Errorf("%w: no column starts before record %d", ErrEmptyRegion, records-2)
	}
	return nil
}

func (p *pass) posterior(ctx context.Context) error {
	started := time.Now()
	defer func() { p.obs.ObservePass(PassPosterior, time.Since(started)) }()

	records := p.in.Store.Records()
	start, end := p.cfg.PosteriorStart, p.cfg.PosteriorEnd
	if end <= 0 || end > records {
		end = records
	}
	start = max(start, 0)

	w := p.params.WidthTotal
	cols := p.params.WidthCurrent
	cells := p.params.Height * cols
	for _, g := range model.PosteriorGenes {
		ref := 0.0
		if p.in.Mutant != model.MutantWildType && p.in.WildType != nil {
			ref = p.in.WildType.AmplitudePost[g]
		}
		species := g.Species()
		results, err := parallelMap(ctx, p.cfg.Workers, cells, func() struct{} { return struct{}{} }, func(_ struct{}, i int) osc.PosteriorCell {
			cell := (i/cols)*w + i%cols
			return osc.AnalyzePosterior(conc.Series(p.in.Store, species, cell, start, end), p.rm, ref)
		})
		if err != nil {
			return err
		}

		var period, amp, ptEnd, ptMid, somites float64
		for _, c := range results {
			period += c.Period
			amp += c.Amplitude
			ptEnd += c.PeakToTroughEnd
			ptMid += c.PeakToTroughMid
			somites += float64(c.GoodSomites)
			if p.cfg.Diagnostics {
				p.diag.Posterior[g] = append(p.diag.Posterior[g], PosteriorReport{Periods: c.Periods, Amplitudes: c.Amplitudes})
			}
		}
		if n := float64(len(results)); n > 0 {
			p.rec.PeriodPost[g] = period / n
			p.rec.AmplitudePost[g] = amp / n
			p.rec.PeakToTroughEnd[g] = ptEnd / n
			p.rec.PeakToTroughMid[g] = ptMid / n
			p.rec.NumGoodSomites[g] = somites / n
		}
		p.rec.SyncScorePost[g] = p.scorer.Posterior(g, start, end)
		p.obs.CellsAnalyzed(PassPosterior, g, len(results))
		p.log.Debug("posterior gene analyzed",
			zap.Stringer("gene", g),
			zap.Float64("period", p.rec.PeriodPost[g]),
			zap.Float64("amplitude", p.rec.AmplitudePost[g]),
		)
	}
	return nil
}

// anteriorCell is the per-cell output of the anterior pass.
type anteriorCell struct {
	period     float64
	amplitude  float64
	degenerate bool
	passed     bool
	periods    []osc.PeriodSample
	amplitudes []osc.AmplitudeSample
	compA      float64
	compB      float64
}

type cellWorker struct {
	buf     *crit.Buffer
	samples osc.Samples
}

func (p *pass) anterior(ctx context.Context) error {
	started := time.Now()
	defer func() { p.obs.ObservePass(PassAnterior, time.Since(started)) }()

	region := p.region
	lines := region.EndLine - region.StartLine
	n := len(p.columns) * lines
	lifetime := p.params.LifetimeRecords()
	compStart := int(p.cfg.AnteriorFraction * float64(lifetime))
	induction := p.params.RecordAtMinute(p.in.InductionMinutes)
	w := p.params.WidthTotal

	for _, g := range model.AnteriorGenes {
		species := g.Species()
		companions := g == model.GeneMespa
		newWorker := func() *cellWorker {
			return &cellWorker{buf: crit.NewBuffer(64, lifetime)}
		}
		results, err := parallelMap(ctx, p.cfg.Workers, n, newWorker, func(cw *cellWorker, i int) anteriorCell {
			column := p.columns[i/lines]
			line := region.StartLine + i%lines
			cell := line*w + p.in.Starts.At(column.record)
			if companions {
				p.detector.DetectWithCompanions(species, cell, column.record, cw.buf)
			} else {
				p.detector.Detect(species, cell, column.record, cw.buf)
			}
			cw.samples.Collect(cw.buf.Points, cw.buf.Values, p.rm)

			res := anteriorCell{
				period:     cw.samples.Period(),
				amplitude:  cw.samples.Amplitude(),
				degenerate: cw.samples.Degenerate(),
				periods:    append([]osc.PeriodSample(nil), cw.samples.Periods...),
				amplitudes: append([]osc.AmplitudeSample(nil), cw.samples.Amplitudes...),
			}
			res.passed = !res.degenerate && osc.FitsReference(cw.samples.Periods, w, p.cfg.Fit)
			if companions {
				her1 := cw.buf.Companions[crit.CompanionHer1]
				res.compA = corr.Pearson(her1, cw.buf.Companions[crit.CompanionMespa], compStart, lifetime)
				res.compB = corr.Pearson(her1, cw.buf.Companions[crit.CompanionMespb], compStart, lifetime)
			}
			return res
		})
		if err != nil {
			return err
		}

		var periodSum, ampSum, compA, compB float64
		passed := 0
		for _, c := range results {
			periodSum += c.period
			ampSum += c.amplitude
			compA += c.compA
			compB += c.compB
			if c.passed {
				passed++
			}
			p.bucketPeriods(g, c.periods, induction)
			if p.cfg.Diagnostics {
				p.diag.Anterior[g] = append(p.diag.Anterior[g], cellReport(c))
			}
			if g == model.GeneHer1 {
				p.obs.GiudicelliCell(c.passed)
			}
		}

		cells := float64(len(results))
		p.rec.PeriodAnt[g] = periodSum / cells
		p.rec.AmplitudeAnt[g] = ampSum / cells
		if companions {
			p.rec.CompScoreMespa = compA / cells
			p.rec.CompScoreMespb = compB / cells
		}
		if g == model.GeneHer1 {
			p.diag.GiudicelliPassed = passed
			p.diag.GiudicelliCells = len(results)
			if p.in.Mutant == model.MutantWildType {
				p.rec.Conditions.Set(model.CondHer1Giudicelli, osc.PopulationPasses(passed, len(results), p.cfg.Fit))
			}
		}
		p.obs.CellsAnalyzed(PassAnterior, g, len(results))
		p.log.Debug("anterior gene analyzed",
			zap.Stringer("gene", g),
			zap.Float64("period", p.rec.PeriodAnt[g]),
			zap.Float64("amplitude", p.rec.AmplitudeAnt[g]),
			zap.Int("giudicelli_passed", passed),
		)

		p.applyRules(g)
	}
	return nil
}

// bucketPeriods files period samples taken after induction by half hour.
func (p *pass) bucketPeriods(g model.Gene, periods []osc.PeriodSample, induction int) {
	for _, s := range periods {
		if s.Record < induction {
			continue
		}
		elapsed := float64(s.Record-induction) * p.rm
		bucket := model.HalfHour(int(elapsed/30) + 1)
		if s.Position < p.params.WidthInitial {
			p.rec.PeriodPostTime[g][bucket] = s.Minutes
		} else {
			p.rec.PeriodAntTime[g][bucket] = s.Minutes
		}
	}
}

func cellReport(c anteriorCell) CellReport {
	r := CellReport{
		PeriodPositions:    make([]int, len(c.periods)),
		Periods:            make([]float64, len(c.periods)),
		AmplitudePositions: make([]int, len(c.amplitudes)),
		Amplitudes:         make([]float64, len(c.amplitudes)),
	}
	for i, s := range c.periods {
		r.PeriodPositions[i] = s.Position
		r.Periods[i] = s.Minutes
	}
	for i, s := range c.amplitudes {
		r.AmplitudePositions[i] = s.Position
		r.Amplitudes[i] = s.Value
	}
	return r
}

func (p *pass) applyRules(g model.Gene) {
	started := time.Now()
	defer func() { p.obs.ObservePass(PassRules, time.Since(started)) }()

	records := p.in.Store.Records()
	step := max(int(p.cfg.SnapshotMinutes/p.rm), 1)
	for _, r := range RulesFor(p.in.Mutant, g) {
		subject := r.Subject(g)
		from := p.params.RecordAtMinute(p.cfg.WindowBaseMinutes + r.Start)
		to := p.params.RecordAtMinute(p.cfg.WindowBaseMinutes + r.End)

		sum, n := 0.0, 0
		for t := from; t < to && t < records; t += step {
			sum += p.sample(r, subject, t)
			n++
		}
		if n == 0 {
			p.log.Debug("rule window outside recorded time",
				zap.Stringer("gene", subject),
				zap.Stringer("target", r.Target),
				zap.Int("from", from),
			)
			continue
		}
		value := sum
		if r.Agg == Mean {
			value = sum / float64(n)
		}
		r.apply(p.rec, subject, value)
	}
}

func (p *pass) sample(r Rule, g model.Gene, record int) float64 {
	if r.Metric == MetricSync {
		return p.scorer.Rows(g, record)
	}
	lo, hi := p.span(r.Span)
	return p.meanConcentration(g, record, lo, hi)
}

func (p *pass) span(s Span) (int, int) {
	switch s {
	case SpanPosterior:
		return 0, p.params.WidthInitial
	case SpanAnterior:
		return p.params.AnteriorStart(p.cfg.AnteriorFraction), p.params.WidthTotal
	default:
		return 0, p.params.WidthTotal
	}
}

// meanConcentration averages a gene over every row and the offsets [lo, hi).
func (p *pass) meanConcentration(g model.Gene, record, lo, hi int) float64 {
	if hi <= lo {
		return 0
	}
	species := g.Species()
	sum := 0.0
	for x := 0; x < p.params.Height; x++ {
		for y := lo; y < hi; y++ {
			sum += p.in.Store.Value(species, record, p.ring.Cell(record, x, y, psm.Doubled))
		}
	}
	return sum / float64(p.params.Height*(hi-lo))
}

// waves checks the mesp wave pattern at evenly spaced snapshots between
// the last column formation and the end of the run.
func (p *pass) waves() {
	expect := wave.Expectations(p.in.Mutant)
	if len(expect) == 0 || p.cfg.WaveSnapshots == 0 {
		return
	}
	started := time.Now()
	defer func() { p.obs.ObservePass(PassWaves, time.Since(started)) }()

	records := p.in.Store.Records()
	first := max(p.params.FillTime(1), 0)
	step := 1
	if p.cfg.WaveSnapshots > 1 {
		step = max((records-1-first)/(p.cfg.WaveSnapshots-1), 1)
	}
	geo := wave.GeometryOf(p.params)
	geo.AnteriorCut = p.cfg.AnteriorCut

	for k := 0; k < p.cfg.WaveSnapshots; k++ {
		t := first + k*step
		if t >= records {
			break
		}
		for _, g := range []model.Gene{model.GeneMespa, model.GeneMespb} {
			res := wave.Count(wave.Profile(p.in.Store, p.ring, g, t, p.params.Height))
			expect[g].Check(res, geo, p.rec.Conditions)
			p.diag.Waves[g] = append(p.diag.Waves[g], res)
			p.obs.WaveScan(g, res.Overflow)
			if res.Overflow {
				p.log.Debug("wave scan overflow", zap.Stringer("gene", g), zap.Int("record", t))
			}
		}
	}
}

// trajectories scores her1 row synchronization along the lifetime of each
// analyzed column.
func (p *pass) trajectories() {
	interval := max(int(p.cfg.SyncIntervalMinutes/p.rm), 2)
	t := p.params.FillTime(1)
	region := p.region
	for c := region.StartCol; c < region.EndCol; c++ {
		if t >= 0 && t < p.in.Store.Records() {
			p.diag.SyncTrajectories = append(p.diag.SyncTrajectories, p.scorer.Trajectory(model.GeneHer1, t, interval))
		}
		t += p.params.ColumnRecords()
	}
}
