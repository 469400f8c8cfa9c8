package features

import (
	"fmt"

	"psmfeats/internal/model"
)

// Metric is the quantity sampled at each snapshot of a rule window.
type Metric int

const (
	// MetricAmplitude is the mean concentration over a spatial span.
	MetricAmplitude Metric = iota
	// MetricSync is the row synchronization score.
	MetricSync
)

func (m Metric) String() string {
	if m == MetricSync {
		return "sync"
	}
	return "amplitude"
}

// Span selects the offsets averaged by MetricAmplitude.
type Span int

const (
	SpanNone Span = iota
	SpanPosterior
	SpanAnterior
	SpanWhole
)

func (s Span) String() string {
	switch s {
	case SpanPosterior:
		return "post"
	case SpanAnterior:
		return "ant"
	case SpanWhole:
		return "whole"
	default:
		return "-"
	}
}

// Target is the feature record field a rule accumulates into.
type Target int

const (
	TargetAmplitudePost Target = iota
	TargetAmplitudePostTime
	TargetAmplitudeAntTime
	TargetSyncScoreAnt
	TargetSyncTime
)

func (t Target) String() string {
	switch t {
	case TargetAmplitudePost:
		return "amplitude_post"
	case TargetAmplitudePostTime:
		return "amplitude_post_time"
	case TargetAmplitudeAntTime:
		return "amplitude_ant_time"
	case TargetSyncScoreAnt:
		return "sync_score_ant"
	case TargetSyncTime:
		return "sync_time"
	default:
		return fmt.Sprintf("target(%d)", int(t))
	}
}

// Agg combines the snapshot samples of a window.
type Agg int

const (
	Sum Agg = iota
	Mean
)

// SameGene makes a rule measure the gene that triggered it.
const SameGene model.Gene = -1

// Rule samples a metric over a window of minutes after the base time and
// adds the result to a field of the feature record.
type Rule struct {
	Mutant model.MutantKind
	// Triggers lists the genes whose anterior pass fires the rule; nil fires on every gene.
	Triggers []model.Gene
	// Gene is measured and written; SameGene uses the trigger.
	Gene   model.Gene
	Start  float64
	End    float64
	Metric Metric
	Span   Span
	Target Target
	Bucket model.HalfHour
	Agg    Agg
}

// Fires reports whether the rule applies after the pass over gene g.
func (r Rule) Fires(m model.MutantKind, g model.Gene) bool {
	if r.Mutant != m {
		return false
	}
	if r.Triggers == nil {
		return true
	}
	for _, t := range r.Triggers {
		if t == g {
			return true
		}
	}
	return false
}

// Subject is the gene measured when the rule fires on trigger.
func (r Rule) Subject(trigger model.Gene) model.Gene {
	if r.Gene == SameGene {
		return trigger
	}
	return r.Gene
}

var (
	her1      = []model.Gene{model.GeneHer1}
	her7      = []model.Gene{model.GeneHer7}
	mespa     = []model.Gene{model.GeneMespa}
	mespb     = []model.Gene{model.GeneMespb}
	mesps     = []model.Gene{model.GeneMespa, model.GeneMespb}
	her1Mespa = []model.Gene{model.GeneHer1, model.GeneMespa}
)

const (
	halfHour    model.HalfHour = 1
	oneHour     model.HalfHour = 2
	oneAndAHalf model.HalfHour = 3
	twoHours    model.HalfHour = 4
	threeHours  model.HalfHour = 6
)

const (
	wt        = model.MutantWildType
	delta     = model.MutantDelta
	her7Over  = model.MutantHer7Over
	her1Over  = model.MutantHer1Over
	dapt      = model.MutantDAPT
	mespaOver = model.MutantMespaOver
	mespbOver = model.MutantMespbOver
)

// Rules is the per-mutant window table, in evaluation order.
var Rules = []Rule{
	{Mutant: wt, Gene: SameGene, Start: 30, End: 60, Metric: MetricAmplitude, Span: SpanPosterior, Target: TargetAmplitudePostTime, Bucket: halfHour, Agg: Sum},
	{Mutant: wt, Gene: SameGene, Start: 30, End: 60, Metric: MetricAmplitude, Span: SpanAnterior, Target: TargetAmplitudeAntTime, Bucket: halfHour, Agg: Sum},
	{Mutant: wt, Gene: SameGene, Start: 30, End: 60, Metric: MetricAmplitude, Span: SpanPosterior, Target: TargetAmplitudePost, Agg: Sum},
	{Mutant: wt, Gene: SameGene, Start: 30, End: 60, Metric: MetricSync, Target: TargetSyncScoreAnt, Agg: Mean},
	{Mutant: wt, Triggers: her1, Gene: SameGene, Start: 180, End: 210, Metric: MetricAmplitude, Span: SpanWhole, Target: TargetAmplitudePostTime, Bucket: threeHours, Agg: Sum},
	{Mutant: wt, Triggers: mesps, Gene: SameGene, Start: 60, End: 90, Metric: MetricAmplitude, Span: SpanAnterior, Target: TargetAmplitudeAntTime, Bucket: oneHour, Agg: Sum},
	{Mutant: wt, Triggers: mesps, Gene: SameGene, Start: 120, End: 150, Metric: MetricAmplitude, Span: SpanAnterior, Target: TargetAmplitudeAntTime, Bucket: twoHours, Agg: Sum},

	{Mutant: delta, Triggers: mespa, Gene: model.GeneHer1, Start: 30, End: 60, Metric: MetricSync, Target: TargetSyncScoreAnt, Agg: Mean},
	{Mutant: delta, Triggers: mespa, Gene: model.GeneMespb, Start: 30, End: 60, Metric: MetricSync, Target: TargetSyncScoreAnt, Agg: Mean},
	{Mutant: delta, Triggers: mespa, Gene: model.GeneHer1, Start: 30, End: 60, Metric: MetricAmplitude, Span: SpanPosterior, Target: TargetAmplitudePost, Agg: Sum},
	{Mutant: delta, Triggers: mespa, Gene: model.GeneMespa, Start: 30, End: 60, Metric: MetricAmplitude, Span: SpanAnterior, Target: TargetAmplitudeAntTime, Bucket: halfHour, Agg: Sum},

	{Mutant: her7Over, Triggers: her1, Gene: SameGene, Start: 30, End: 60, Metric: MetricAmplitude, Span: SpanPosterior, Target: TargetAmplitudePostTime, Bucket: halfHour, Agg: Sum},
	{Mutant: her7Over, Triggers: her1Mespa, Gene: SameGene, Start: 30, End: 60, Metric: MetricAmplitude, Span: SpanAnterior, Target: TargetAmplitudeAntTime, Bucket: halfHour, Agg: Sum},
	{Mutant: her7Over, Triggers: mespb, Gene: SameGene, Start: 90, End: 120, Metric: MetricSync, Target: TargetSyncTime, Bucket: oneAndAHalf, Agg: Mean},

	{Mutant: her1Over, Triggers: her7, Gene: SameGene, Start: 30, End: 60, Metric: MetricAmplitude, Span: SpanPosterior, Target: TargetAmplitudePostTime, Bucket: halfHour, Agg: Sum},
	{Mutant: her1Over, Triggers: her7, Gene: SameGene, Start: 30, End: 60, Metric: MetricAmplitude, Span: SpanAnterior, Target: TargetAmplitudeAntTime, Bucket: halfHour, Agg: Sum},

	{Mutant: dapt, Triggers: her1, Gene: SameGene, Start: 180, End: 210, Metric: MetricAmplitude, Span: SpanWhole, Target: TargetAmplitudePostTime, Bucket: threeHours, Agg: Sum},
	{Mutant: dapt, Triggers: her1, Gene: SameGene, Start: 180, End: 210, Metric: MetricSync, Target: TargetSyncTime, Bucket: threeHours, Agg: Mean},
	{Mutant: dapt, Triggers: mespa, Gene: SameGene, Start: 120, End: 150, Metric: MetricAmplitude, Span: SpanAnterior, Target: TargetAmplitudeAntTime, Bucket: twoHours, Agg: Sum},
	{Mutant: dapt, Triggers: mespb, Gene: SameGene, Start: 180, End: 210, Metric: MetricSync, Target: TargetSyncTime, Bucket: threeHours, Agg: Mean},

	{Mutant: mespaOver, Triggers: mespb, Gene: SameGene, Start: 60, End: 90, Metric: MetricAmplitude, Span: SpanAnterior, Target: TargetAmplitudeAntTime, Bucket: oneHour, Agg: Sum},

	{Mutant: mespbOver, Triggers: mesps, Gene: SameGene, Start: 60, End: 90, Metric: MetricAmplitude, Span: SpanAnterior, Target: TargetAmplitudeAntTime, Bucket: oneHour, Agg: Sum},
}

// RulesFor returns the rules fired by the pass over gene g of mutant m.
func RulesFor(m model.MutantKind, g model.Gene) []Rule {
	var out []Rule
	for _, r := range Rules {
		if r.Fires(m, g) {
			out = append(out, r)
		}
	}
	return out
}

// apply adds value to the rule's target field of gene g.
func (r Rule) apply(rec *model.FeatureRecord, g model.Gene, value float64) {
	switch r.Target {
	case TargetAmplitudePost:
		rec.AmplitudePost[g] += value
	case TargetAmplitudePostTime:
		rec.AmplitudePostTime[g][r.Bucket] += value
	case TargetAmplitudeAntTime:
		rec.AmplitudeAntTime[g][r.Bucket] += value
	case TargetSyncScoreAnt:
		rec.SyncScoreAnt[g] += value
	case TargetSyncTime:
		rec.SyncTime[g][r.Bucket] += value
	}
}
