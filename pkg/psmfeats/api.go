// Package psmfeats is the public entry point for oscillation feature
// extraction over simulated PSM concentration datasets.
package psmfeats

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"psmfeats/internal/conc"
	"psmfeats/internal/features"
	"psmfeats/internal/metrics"
	"psmfeats/internal/model"
	"psmfeats/internal/osc"
	"psmfeats/internal/report"
	"psmfeats/internal/storage"
	"psmfeats/internal/synth"
)

const defaultDBPath = "psmfeats.db"

type Options struct {
	StoreKind string
	// DBPath is the sqlite file or the postgres connection string.
	DBPath string
	Logger *zap.Logger
	// Registerer receives the analysis metrics when set.
	Registerer prometheus.Registerer
}

type Client struct {
	store    storage.Store
	log      *zap.Logger
	observer features.Observer
}

// PassRequest names the dataset simulated for one mutant.
type PassRequest struct {
	Mutant      string
	DatasetPath string
}

type AnalyzeRequest struct {
	// RunID defaults to a random UUID.
	RunID  string
	SetNum int
	Passes []PassRequest

	Workers          int
	InductionMinutes float64
	Region           *features.Region
	PosteriorStart   int
	PosteriorEnd     int
	// Fit overrides the oscillation-quality thresholds.
	Fit *osc.FitParams
	// AnteriorCut is the tissue fraction where the anterior wave zone starts.
	AnteriorCut float64

	// Reports receives the .feats diagnostics when set.
	Reports report.Sink
}

type PassSummary struct {
	Mutant   model.MutantKind
	Record   model.FeatureRecord
	Reports  []string
	Duration time.Duration
}

type AnalyzeSummary struct {
	RunID  string
	Passes []PassSummary
	// Passed reports whether every evaluated condition of every pass holds.
	Passed bool
}

type FeaturesRequest struct {
	RunID  string
	Mutant string
}

type SynthRequest struct {
	OutPath       string
	Seed          int64
	Records       int
	PeriodMinutes float64
	Noise         float64
	// Flat disables the anterior slowdown along the reference curve.
	Flat bool
}

type PlotRequest struct {
	InPath  string
	OutPath string
	Title   string
}

func New(opts Options) (*Client, error) {
	dbPath := opts.DBPath
	if dbPath == "" && (opts.StoreKind == "" || opts.StoreKind == "sqlite") {
		dbPath = defaultDBPath
	}
	store, err := storage.NewStore(opts.StoreKind, dbPath)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{store: store, log: log}
	if opts.Registerer != nil {
		c.observer = metrics.NewRecorder(opts.Registerer)
	}
	return c, nil
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

// Analyze runs every requested mutant pass and stores the feature records.
// The wild type runs first so mutant posterior passes can compare against it.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeSummary, error) {
	if len(req.Passes) == 0 {
		return AnalyzeSummary{}, errors.New("analyze requires at least one pass")
	}
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	passes, err := orderPasses(req.Passes)
	if err != nil {
		return AnalyzeSummary{}, err
	}

	cfg := features.Config{
		Logger:         c.log,
		Observer:       c.observer,
		Workers:        req.Workers,
		PosteriorStart: req.PosteriorStart,
		PosteriorEnd:   req.PosteriorEnd,
		Diagnostics:    req.Reports != nil,
		AnteriorCut:    req.AnteriorCut,
	}
	if req.Fit != nil {
		cfg.Fit = *req.Fit
	}
	if req.Region != nil {
		cfg.Region = *req.Region
	}
	analyzer, err := features.NewAnalyzer(cfg)
	if err != nil {
		return AnalyzeSummary{}, err
	}

	var wildType *model.FeatureRecord
	if passes[0].mutant != model.MutantWildType {
		stored, ok, err := c.store.GetFeatures(ctx, runID, model.MutantWildType)
		if err != nil {
			return AnalyzeSummary{}, err
		}
		if ok {
			wildType = &stored
		}
	}

	summary := AnalyzeSummary{RunID: runID, Passed: true}
	for _, p := range passes {
		ds, err := conc.ReadDataset(p.path)
		if err != nil {
			return summary, fmt.Errorf("load %s dataset: %w", p.mutant, err)
		}

		started := time.Now()
		rec, diag, err := analyzer.Analyze(ctx, features.Input{
			RunID:            runID,
			SetNum:           req.SetNum,
			Mutant:           p.mutant,
			Params:           ds.Params,
			Store:            ds.Store,
			Starts:           ds.ActiveStart,
			InductionMinutes: req.InductionMinutes,
			WildType:         wildType,
		})
		if err != nil {
			return summary, fmt.Errorf("analyze %s: %w", p.mutant, err)
		}
		if err := c.store.SaveFeatures(ctx, rec); err != nil {
			return summary, err
		}
		if p.mutant == model.MutantWildType {
			wt := rec.Clone()
			wildType = &wt
		}

		ps := PassSummary{Mutant: p.mutant, Record: rec, Duration: time.Since(started)}
		if req.Reports != nil {
			w := report.Writer{Sink: req.Reports, SetNum: req.SetNum, Params: ds.Params}
			if ps.Reports, err = w.Write(ctx, diag); err != nil {
				return summary, err
			}
		}
		c.log.Info("pass stored",
			zap.String("run_id", runID),
			zap.String("mutant", string(p.mutant)),
			zap.Bool("passed", rec.Conditions.Passed()),
			zap.Int("reports", len(ps.Reports)),
			zap.Duration("duration", ps.Duration),
		)
		summary.Passed = summary.Passed && rec.Conditions.Passed()
		summary.Passes = append(summary.Passes, ps)
	}
	return summary, nil
}

type orderedPass struct {
	mutant model.MutantKind
	path   string
}

func orderPasses(reqs []PassRequest) ([]orderedPass, error) {
	seen := map[model.MutantKind]bool{}
	out := make([]orderedPass, 0, len(reqs))
	for _, r := range reqs {
		m, err := model.ParseMutantKind(r.Mutant)
		if err != nil {
			return nil, err
		}
		if seen[m] {
			return nil, fmt.Errorf("duplicate pass for mutant %s", m)
		}
		seen[m] = true
		out = append(out, orderedPass{mutant: m, path: r.DatasetPath})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].mutant == model.MutantWildType && out[j].mutant != model.MutantWildType
	})
	return out, nil
}

// Features returns one stored record, or every record of the run when
// Mutant is empty.
func (c *Client) Features(ctx context.Context, req FeaturesRequest) ([]model.FeatureRecord, error) {
	if req.RunID == "" {
		return nil, errors.New("features requires a run id")
	}
	if req.Mutant == "" {
		return c.store.ListFeatures(ctx, req.RunID)
	}
	m, err := model.ParseMutantKind(req.Mutant)
	if err != nil {
		return nil, err
	}
	rec, ok, err := c.store.GetFeatures(ctx, req.RunID, m)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no %s features for run %s", m, req.RunID)
	}
	return []model.FeatureRecord{rec}, nil
}

func (c *Client) Runs(ctx context.Context) ([]string, error) {
	return c.store.ListRuns(ctx)
}

// Synthesize writes a synthetic oscillating dataset.
func (c *Client) Synthesize(_ context.Context, req SynthRequest) (conc.Dataset, error) {
	if req.OutPath == "" {
		return conc.Dataset{}, errors.New("synth requires an output path")
	}
	opts := synth.DefaultOptions()
	if req.Seed != 0 {
		opts.Seed = req.Seed
	}
	if req.Records > 0 {
		opts.Records = req.Records
		opts.Params.StepsTotal = req.Records * opts.Params.BigGran
	}
	if req.PeriodMinutes > 0 {
		opts.PeriodMinutes = req.PeriodMinutes
	}
	opts.Noise = req.Noise
	opts.FollowCurve = !req.Flat

	ds, err := synth.Generate(opts)
	if err != nil {
		return conc.Dataset{}, err
	}
	species := make([]model.Species, 0, model.NumSpecies-1)
	for s := model.SpeciesMH1; s < model.NumSpecies; s++ {
		species = append(species, s)
	}
	if err := conc.WriteDataset(req.OutPath, ds.ToFile(species...)); err != nil {
		return conc.Dataset{}, err
	}
	c.log.Info("synthetic dataset written", zap.String("path", req.OutPath), zap.Int("records", opts.Records))
	return ds, nil
}

// PlotSync renders a sync trajectory report as a PNG chart.
func (c *Client) PlotSync(_ context.Context, req PlotRequest) error {
	if req.InPath == "" || req.OutPath == "" {
		return errors.New("plot requires input and output paths")
	}
	in, err := os.Open(req.InPath)
	if err != nil {
		return err
	}
	defer in.Close()
	rep, err := report.ParseTrajectories(in)
	if err != nil {
		return fmt.Errorf("parse %s: %w", req.InPath, err)
	}

	if err := os.MkdirAll(filepath.Dir(req.OutPath), 0o755); err != nil {
		return err
	}
	out, err := os.Create(req.OutPath)
	if err != nil {
		return err
	}
	if err := report.RenderTrajectoryPNG(out, rep, req.Title); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
