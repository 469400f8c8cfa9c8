package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"psmfeats/internal/model"
	"psmfeats/internal/report"
	psmapi "psmfeats/pkg/psmfeats"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "analyze":
		return runAnalyze(ctx, args[1:])
	case "features":
		return runFeatures(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "synth":
		return runSynth(ctx, args[1:])
	case "plot":
		return runPlot(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runAnalyze(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional analyze config path (.json, .yaml or .yml)")
	runID := fs.String("run-id", "", "explicit run id (defaults to a random uuid)")
	setNum := fs.Int("set", 0, "parameter set number used in report names")
	dataset := fs.String("dataset", "", "wild type dataset path")
	var passes passFlags
	fs.Var(&passes, "pass", "mutant=dataset_path, repeatable")
	workers := fs.Int("workers", 4, "worker count")
	induction := fs.Float64("induction", 0, "mutant induction time in minutes (0 means no induction)")
	posteriorStart := fs.Int("posterior-start", 0, "first record of the posterior window (0 uses the dataset default)")
	posteriorEnd := fs.Int("posterior-end", 0, "record after the posterior window (0 uses the dataset default)")
	storeKind := fs.String("store", "sqlite", "store backend: memory|sqlite|postgres")
	dbPath := fs.String("db-path", "psmfeats.db", "sqlite database path or postgres dsn")
	reportsDir := fs.String("reports-dir", "", "write .feats reports into this directory")
	reportsS3 := fs.Bool("reports-s3", false, "upload .feats reports to the bucket named by PSMFEATS_REPORT_S3_BUCKET")
	metricsOut := fs.String("metrics-out", "", "write prometheus metrics in text format to this path")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	jsonOut := fs.Bool("json", false, "emit the analyze summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	var cfg analyzeConfig
	if *configPath != "" {
		loaded, err := loadAnalyzeConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		overrideFromFlags(&cfg, setFlags, map[string]any{
			"run-id":          *runID,
			"set":             *setNum,
			"workers":         *workers,
			"induction":       *induction,
			"posterior-start": *posteriorStart,
			"posterior-end":   *posteriorEnd,
			"store":           *storeKind,
			"db-path":         *dbPath,
			"reports-dir":     *reportsDir,
			"reports-s3":      *reportsS3,
			"pass":            passes,
		})
		if cfg.StoreKind == "" {
			cfg.StoreKind = *storeKind
		}
		if cfg.DBPath == "" {
			cfg.DBPath = *dbPath
		}
	} else {
		cfg = analyzeConfig{
			Request: psmapi.AnalyzeRequest{
				RunID:            *runID,
				SetNum:           *setNum,
				Passes:           passes,
				Workers:          *workers,
				InductionMinutes: *induction,
				PosteriorStart:   *posteriorStart,
				PosteriorEnd:     *posteriorEnd,
			},
			StoreKind:  *storeKind,
			DBPath:     *dbPath,
			ReportsDir: *reportsDir,
			ReportsS3:  *reportsS3,
		}
	}
	if *dataset != "" {
		cfg.Request.Passes = append(cfg.Request.Passes, psmapi.PassRequest{Mutant: string(model.MutantWildType), DatasetPath: *dataset})
	}
	if len(cfg.Request.Passes) == 0 {
		return errors.New("analyze requires --dataset, --pass or a config with passes")
	}
	if cfg.ReportsDir != "" && cfg.ReportsS3 {
		return errors.New("reports-dir and reports-s3 are mutually exclusive")
	}

	logger, err := newLogger(*logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	switch {
	case cfg.ReportsDir != "":
		cfg.Request.Reports = report.DirSink{Dir: cfg.ReportsDir}
	case cfg.ReportsS3:
		s3cfg, err := report.S3ConfigFromEnv()
		if err != nil {
			return err
		}
		sink, err := report.NewS3Sink(ctx, s3cfg)
		if err != nil {
			return err
		}
		cfg.Request.Reports = sink
	}

	registry := prometheus.NewRegistry()
	client, err := openClient(ctx, psmapi.Options{
		StoreKind:  cfg.StoreKind,
		DBPath:     cfg.DBPath,
		Logger:     logger,
		Registerer: registry,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.Analyze(ctx, cfg.Request)
	if err != nil {
		return err
	}
	if *metricsOut != "" {
		if err := prometheus.WriteToTextfile(*metricsOut, registry); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}

	if *jsonOut {
		type passItem struct {
			Mutant     string           `json:"mutant"`
			Passed     bool             `json:"passed"`
			DurationMS int64            `json:"duration_ms"`
			Reports    []string         `json:"reports,omitempty"`
			Conditions model.Conditions `json:"conditions"`
		}
		out := struct {
			RunID  string     `json:"run_id"`
			Passed bool       `json:"passed"`
			Passes []passItem `json:"passes"`
		}{RunID: summary.RunID, Passed: summary.Passed}
		for _, p := range summary.Passes {
			out.Passes = append(out.Passes, passItem{
				Mutant:     string(p.Mutant),
				Passed:     p.Record.Conditions.Passed(),
				DurationMS: p.Duration.Milliseconds(),
				Reports:    p.Reports,
				Conditions: p.Record.Conditions,
			})
		}
		return writeJSON(out)
	}

	fmt.Printf("run_id=%s passes=%d passed=%t\n", summary.RunID, len(summary.Passes), summary.Passed)
	for _, p := range summary.Passes {
		fmt.Printf("mutant=%s passed=%t reports=%d duration=%s\n",
			p.Mutant,
			p.Record.Conditions.Passed(),
			len(p.Reports),
			p.Duration,
		)
	}
	return nil
}

func runFeatures(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("features", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	mutant := fs.String("mutant", "", "mutant kind (all mutants of the run when empty)")
	storeKind := fs.String("store", "sqlite", "store backend: memory|sqlite|postgres")
	dbPath := fs.String("db-path", "psmfeats.db", "sqlite database path or postgres dsn")
	jsonOut := fs.Bool("json", false, "emit feature records as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("features requires --run-id")
	}

	client, err := openClient(ctx, psmapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer client.Close()

	records, err := client.Features(ctx, psmapi.FeaturesRequest{RunID: *runID, Mutant: *mutant})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(records)
	}

	for _, rec := range records {
		fmt.Printf("run_id=%s mutant=%s set=%d passed=%t comp_mespa=%.6f comp_mespb=%.6f\n",
			rec.RunID,
			rec.Mutant,
			rec.SetNum,
			rec.Conditions.Passed(),
			rec.CompScoreMespa,
			rec.CompScoreMespb,
		)
		for g := model.Gene(0); g < model.NumGenes; g++ {
			fmt.Printf("  gene=%s period_ant=%.4f amplitude_ant=%.4f period_post=%.4f amplitude_post=%.4f sync_ant=%.4f sync_post=%.4f\n",
				g,
				rec.PeriodAnt[g],
				rec.AmplitudeAnt[g],
				rec.PeriodPost[g],
				rec.AmplitudePost[g],
				rec.SyncScoreAnt[g],
				rec.SyncScorePost[g],
			)
		}
		failed := failedConditions(rec.Conditions)
		if len(failed) > 0 {
			fmt.Printf("  failed=%s\n", strings.Join(failed, ","))
		}
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	storeKind := fs.String("store", "sqlite", "store backend: memory|sqlite|postgres")
	dbPath := fs.String("db-path", "psmfeats.db", "sqlite database path or postgres dsn")
	limit := fs.Int("limit", 20, "max runs to list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := openClient(ctx, psmapi.Options{StoreKind: *storeKind, DBPath: *dbPath})
	if err != nil {
		return err
	}
	defer client.Close()

	runs, err := client.Runs(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if len(runs) > *limit {
		runs = runs[:*limit]
	}
	for _, id := range runs {
		fmt.Printf("run_id=%s\n", id)
	}
	return nil
}

func runSynth(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("synth", flag.ContinueOnError)
	out := fs.String("out", "", "output dataset path")
	seed := fs.Int64("seed", 0, "rng seed (0 uses the generator default)")
	records := fs.Int("records", 0, "record count (0 uses the generator default)")
	period := fs.Float64("period", 0, "posterior oscillation period in minutes (0 uses the generator default)")
	noise := fs.Float64("noise", 0, "relative gaussian noise added to every concentration")
	flat := fs.Bool("flat", false, "keep the period constant along the PSM")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return errors.New("synth requires --out")
	}
	if *noise < 0 {
		return errors.New("noise must be >= 0")
	}

	client, err := psmapi.New(psmapi.Options{StoreKind: "memory"})
	if err != nil {
		return err
	}
	ds, err := client.Synthesize(ctx, psmapi.SynthRequest{
		OutPath:       *out,
		Seed:          *seed,
		Records:       *records,
		PeriodMinutes: *period,
		Noise:         *noise,
		Flat:          *flat,
	})
	if err != nil {
		return err
	}
	fmt.Printf("dataset=%s records=%d height=%d width_total=%d\n", *out, ds.Store.Records(), ds.Params.Height, ds.Params.WidthTotal)
	return nil
}

func runPlot(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("plot", flag.ContinueOnError)
	in := fs.String("in", "", "sync trajectory report path")
	out := fs.String("out", "", "output png path")
	title := fs.String("title", "", "chart title")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *out == "" {
		return errors.New("plot requires --in and --out")
	}

	client, err := psmapi.New(psmapi.Options{StoreKind: "memory"})
	if err != nil {
		return err
	}
	if err := client.PlotSync(ctx, psmapi.PlotRequest{InPath: *in, OutPath: *out, Title: *title}); err != nil {
		return err
	}
	fmt.Printf("plot=%s\n", *out)
	return nil
}

func openClient(ctx context.Context, opts psmapi.Options) (*psmapi.Client, error) {
	client, err := psmapi.New(opts)
	if err != nil {
		return nil, err
	}
	if err := client.Init(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.Encoding = "console"
	return cfg.Build()
}

func failedConditions(conds model.Conditions) []string {
	var failed []string
	for c, ok := range conds {
		if !ok {
			failed = append(failed, string(c))
		}
	}
	sort.Strings(failed)
	return failed
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: psmfeatsctl <analyze|features|runs|synth|plot> [flags]", msg)
}
