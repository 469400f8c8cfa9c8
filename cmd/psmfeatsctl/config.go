package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"psmfeats/internal/features"
	"psmfeats/internal/osc"
	psmapi "psmfeats/pkg/psmfeats"
)

// analyzeConfig is the analyze command's request plus the settings the CLI
// resolves itself.
type analyzeConfig struct {
	Request    psmapi.AnalyzeRequest
	StoreKind  string
	DBPath     string
	ReportsDir string
	ReportsS3  bool
}

func loadAnalyzeConfig(path string) (analyzeConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return analyzeConfig{}, err
	}
	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return analyzeConfig{}, fmt.Errorf("decode %s: %w", path, err)
	}

	var cfg analyzeConfig
	req := &cfg.Request
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asInt(raw["set_num"]); ok {
		req.SetNum = v
	}
	if v, ok := asInt(raw["workers"]); ok {
		req.Workers = v
	}
	if v, ok := asFloat64(raw["induction_minutes"]); ok {
		req.InductionMinutes = v
	}
	if v, ok := asInt(raw["posterior_start"]); ok {
		req.PosteriorStart = v
	}
	if v, ok := asInt(raw["posterior_end"]); ok {
		req.PosteriorEnd = v
	}
	if v, ok := asString(raw["store"]); ok {
		cfg.StoreKind = v
	}
	if v, ok := asString(raw["db_path"]); ok {
		cfg.DBPath = v
	}
	if v, ok := asString(raw["reports_dir"]); ok {
		cfg.ReportsDir = v
	}
	if v, ok := asBool(raw["reports_s3"]); ok {
		cfg.ReportsS3 = v
	}

	if v, ok := asFloat64(raw["anterior_cut"]); ok {
		req.AnteriorCut = v
	}
	if fitMap, ok := raw["fit"].(map[string]any); ok {
		fit := osc.DefaultFitParams()
		if v, ok := asFloat64(fitMap["low"]); ok {
			fit.Low = v
		}
		if v, ok := asFloat64(fitMap["high"]); ok {
			fit.High = v
		}
		if v, ok := asFloat64(fitMap["cutoff"]); ok {
			fit.Cutoff = v
		}
		if v, ok := asFloat64(fitMap["pass_fraction"]); ok {
			fit.PassFraction = v
		}
		if v, ok := asInt(fitMap["min_periods"]); ok {
			fit.MinPeriods = v
		}
		req.Fit = &fit
	}

	if regionMap, ok := raw["region"].(map[string]any); ok {
		var region features.Region
		region.StartLine, _ = asInt(regionMap["start_line"])
		region.EndLine, _ = asInt(regionMap["end_line"])
		region.StartCol, _ = asInt(regionMap["start_col"])
		region.EndCol, _ = asInt(regionMap["end_col"])
		req.Region = &region
	}

	if passMap, ok := raw["passes"].(map[string]any); ok {
		mutants := make([]string, 0, len(passMap))
		for m := range passMap {
			mutants = append(mutants, m)
		}
		sort.Strings(mutants)
		for _, m := range mutants {
			p, ok := asString(passMap[m])
			if !ok {
				return analyzeConfig{}, fmt.Errorf("pass %s: dataset path must be a string", m)
			}
			req.Passes = append(req.Passes, psmapi.PassRequest{Mutant: m, DatasetPath: p})
		}
	}
	return cfg, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// passFlags collects repeated -pass mutant=path flags.
type passFlags []psmapi.PassRequest

func (p *passFlags) String() string {
	parts := make([]string, 0, len(*p))
	for _, r := range *p {
		parts = append(parts, r.Mutant+"="+r.DatasetPath)
	}
	return strings.Join(parts, ",")
}

func (p *passFlags) Set(value string) error {
	mutant, path, ok := strings.Cut(value, "=")
	if !ok || strings.TrimSpace(mutant) == "" || strings.TrimSpace(path) == "" {
		return fmt.Errorf("pass must be mutant=dataset_path, got %q", value)
	}
	*p = append(*p, psmapi.PassRequest{Mutant: strings.TrimSpace(mutant), DatasetPath: strings.TrimSpace(path)})
	return nil
}

func overrideFromFlags(cfg *analyzeConfig, set map[string]bool, flagValue map[string]any) {
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			cfg.Request.RunID = v.(string)
		case "set":
			cfg.Request.SetNum = v.(int)
		case "workers":
			cfg.Request.Workers = v.(int)
		case "induction":
			cfg.Request.InductionMinutes = v.(float64)
		case "posterior-start":
			cfg.Request.PosteriorStart = v.(int)
		case "posterior-end":
			cfg.Request.PosteriorEnd = v.(int)
		case "store":
			cfg.StoreKind = v.(string)
		case "db-path":
			cfg.DBPath = v.(string)
		case "reports-dir":
			cfg.ReportsDir = v.(string)
		case "reports-s3":
			cfg.ReportsS3 = v.(bool)
		case "pass":
			cfg.Request.Passes = append(cfg.Request.Passes, v.(passFlags)...)
		}
	}
}
