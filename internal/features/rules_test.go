package features

import (
	"testing"

	"github.com/stretchr/testify/require"

	"psmfeats/internal/model"
)

func TestRulesForWildType(t *testing.T) {
	require.Len(t, RulesFor(model.MutantWildType, model.GeneHer1), 5)
	require.Len(t, RulesFor(model.MutantWildType, model.GeneHer7), 4)
	require.Len(t, RulesFor(model.MutantWildType, model.GeneDeltaC), 4)
	require.Len(t, RulesFor(model.MutantWildType, model.GeneMespa), 6)
	require.Len(t, RulesFor(model.MutantWildType, model.GeneMespb), 6)
}

func TestRulesForMutants(t *testing.T) {
	cases := []struct {
		mutant model.MutantKind
		gene   model.Gene
		count  int
	}{
		{model.MutantDelta, model.GeneMespa, 4},
		{model.MutantDelta, model.GeneHer1, 0},
		{model.MutantHer7Over, model.GeneHer1, 2},
		{model.MutantHer7Over, model.GeneMespa, 1},
		{model.MutantHer7Over, model.GeneMespb, 1},
		{model.MutantHer1Over, model.GeneHer7, 2},
		{model.MutantHer1Over, model.GeneHer1, 0},
		{model.MutantDAPT, model.GeneHer1, 2},
		{model.MutantDAPT, model.GeneMespa, 1},
		{model.MutantDAPT, model.GeneMespb, 1},
		{model.MutantDAPT, model.GeneHer7, 0},
		{model.MutantMespaOver, model.GeneMespb, 1},
		{model.MutantMespaOver, model.GeneMespa, 0},
		{model.MutantMespbOver, model.GeneMespa, 1},
		{model.MutantMespbOver, model.GeneMespb, 1},
	}
	for _, tc := range cases {
		got := RulesFor(tc.mutant, tc.gene)
		if len(got) != tc.count {
			t.Fatalf("%s/%s: expected %d rules, got %d", tc.mutant, tc.gene, tc.count, len(got))
		}
	}
}

func TestRuleSubject(t *testing.T) {
	rules := RulesFor(model.MutantDelta, model.GeneMespa)
	subjects := make([]model.Gene, 0, len(rules))
	for _, r := range rules {
		subjects = append(subjects, r.Subject(model.GeneMespa))
	}
	require.Equal(t, []model.Gene{model.GeneHer1, model.GeneMespb, model.GeneHer1, model.GeneMespa}, subjects)

	wt := RulesFor(model.MutantWildType, model.GeneHer7)[0]
	require.Equal(t, model.GeneHer7, wt.Subject(model.GeneHer7))
}

func TestRuleWindows(t *testing.T) {
	for _, r := range Rules {
		require.Less(t, r.Start, r.End)
		require.Equal(t, 30.0, r.End-r.Start, "every window spans ten three-minute snapshots")
		if r.Metric == MetricSync {
			require.Equal(t, Mean, r.Agg)
			require.Equal(t, SpanNone, r.Span)
		} else {
			require.Equal(t, Sum, r.Agg)
			require.NotEqual(t, SpanNone, r.Span)
		}
		if r.Target == TargetAmplitudePost || r.Target == TargetSyncScoreAnt {
			require.Zero(t, r.Bucket)
		} else {
			require.Positive(t, int(r.Bucket))
		}
	}
}

func TestRuleApply(t *testing.T) {
	rec := model.NewFeatureRecord("r", model.MutantDAPT)
	r := Rule{Target: TargetSyncTime, Bucket: threeHours}
	r.apply(&rec, model.GeneMespb, 0.5)
	r.apply(&rec, model.GeneMespb, 0.25)
	require.Equal(t, 0.75, rec.SyncTime[model.GeneMespb][threeHours])
	require.Equal(t, 3.0, threeHours.Hours())
}
