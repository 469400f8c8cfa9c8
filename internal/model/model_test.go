package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testParams() SimParams {
	return SimParams{
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
	}
}

func TestSimParamsDerivedValues(t *testing.T) {
	p := testParams()
	require.NoError(t, p.Validate())
	require.Equal(t, 40, p.Cells())
	require.Equal(t, 1.0, p.RecordMinutes())
	require.Equal(t, 380, p.FullTime())
	require.Equal(t, 368, p.FillTime(1))
	require.Equal(t, 12, p.ColumnRecords())
	require.Equal(t, 238, p.LifetimeRecords())
	require.Equal(t, 12, p.AnteriorStart(0.6))
	require.Equal(t, 30, p.RecordAtMinute(30.5))

	p.StepSize = 0.5
	p.BigGran = 4
	require.Equal(t, 2.0, p.RecordMinutes())
	require.Equal(t, 2, p.AnteriorTime(9))
	require.Equal(t, 3, p.ColumnRecords())
	require.Equal(t, 15, p.RecordAtMinute(30))

	p.StepsSplit = 2
	require.Equal(t, 1, p.ColumnRecords())
}

func TestSimParamsValidate(t *testing.T) {
	cases := map[string]func(*SimParams){
		"height":        func(p *SimParams) { p.Height = 0 },
		"width_total":   func(p *SimParams) { p.WidthTotal = -1 },
		"width_initial": func(p *SimParams) { p.WidthInitial = 21 },
		"width_current": func(p *SimParams) { p.WidthCurrent = -1 },
		"step_size":     func(p *SimParams) { p.StepSize = 0 },
		"big_gran":      func(p *SimParams) { p.BigGran = 0 },
		"steps_split":   func(p *SimParams) { p.StepsSplit = 0 },
	}
	for name, mutate := range cases {
		p := testParams()
		mutate(&p)
		err := p.Validate()
		require.Error(t, err, name)
		require.Contains(t, err.Error(), name)
	}
}

func TestHalfHourBuckets(t *testing.T) {
	require.Equal(t, HalfHour(6), HalfHours(3))
	require.Equal(t, HalfHour(1), HalfHours(0.5))
	require.Equal(t, "3h", HalfHour(6).String())
	require.Equal(t, "0.5h", HalfHour(1).String())

	b := Buckets{5: 1, 1: 2, 3: 3}
	require.Equal(t, []HalfHour{1, 3, 5}, b.Keys())
}

func TestConditionsRecordKeepsFailures(t *testing.T) {
	c := make(Conditions)
	require.True(t, c.Passed())

	c.Record(CondMespWaveLength, true)
	c.Record(CondMespWaveLength, false)
	c.Record(CondMespWaveLength, true)
	require.False(t, c[CondMespWaveLength])
	require.False(t, c.Passed())

	c.Set(CondMespWaveLength, true)
	c.Record(CondHer1Giudicelli, true)
	require.True(t, c.Passed())
}

func TestParseMutantKind(t *testing.T) {
	for _, name := range []string{"", "wt", "WildType", "wild_type", " wild-type "} {
		m, err := ParseMutantKind(name)
		require.NoError(t, err, name)
		require.Equal(t, MutantWildType, m)
	}
	m, err := ParseMutantKind("DAPT")
	require.NoError(t, err)
	require.Equal(t, MutantDAPT, m)

	_, err = ParseMutantKind("her5over")
	require.Error(t, err)
}

func TestGeneAndSpeciesNames(t *testing.T) {
	require.Equal(t, "mh1", GeneHer1.String())
	require.Equal(t, "mdelta", GeneDeltaC.String())
	require.Equal(t, "gene(9)", Gene(9).String())
	require.Equal(t, SpeciesMespa, GeneMespa.Species())
	require.Equal(t, SpeciesMDelta, GeneDeltaC.Species())
	require.True(t, GeneMespb.AnteriorRestricted())
	require.False(t, GeneHer7.AnteriorRestricted())

	s, err := ParseSpecies(" MMESPB ")
	require.NoError(t, err)
	require.Equal(t, SpeciesMespb, s)
	_, err = ParseSpecies("mh9")
	require.Error(t, err)
	require.Equal(t, "species(-1)", Species(-1).String())
}

func TestFeatureRecordClone(t *testing.T) {
	rec := NewFeatureRecord("run", MutantDelta)
	rec.PeriodAnt[GeneHer1] = 30
	rec.SyncTime[GeneHer1][2] = 0.5
	rec.Conditions.Set(CondHer1Giudicelli, true)

	cp := rec.Clone()
	cp.PeriodAnt[GeneHer1] = 1
	cp.SyncTime[GeneHer1][2] = 9
	cp.Conditions.Set(CondHer1Giudicelli, false)

	require.Equal(t, 30.0, rec.PeriodAnt[GeneHer1])
	require.Equal(t, 0.5, rec.SyncTime[GeneHer1][2])
	require.True(t, rec.Conditions[CondHer1Giudicelli])
	require.Equal(t, "run", cp.RunID)
	require.Equal(t, MutantDelta, cp.Mutant)
}
