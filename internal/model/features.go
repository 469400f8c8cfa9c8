package model

import (
	"fmt"
	"sort"
)

// HalfHour counts half hours after induction; 1 is the 0.5 h bucket.
type HalfHour int

func HalfHours(hours float64) HalfHour {
	return HalfHour(hours*2 + 0.5)
}

func (h HalfHour) Hours() float64 {
	return float64(h) / 2
}

func (h HalfHour) String() string {
	return fmt.Sprintf("%gh", h.Hours())
}

// Buckets maps half-hour buckets to a feature value.
type Buckets map[HalfHour]float64

// Keys returns the buckets in ascending order.
func (b Buckets) Keys() []HalfHour {
	keys := make([]HalfHour, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Condition names a pass/fail criterion of the anterior section.
type Condition string

const (
	CondHer1Giudicelli Condition = "her1_giudicelli"
	CondMespaWaveCount Condition = "mespa_wave_count"
	CondMespbWaveCount Condition = "mespb_wave_count"
	CondMespWaveLength Condition = "mesp_wave_length"
)

// Conditions is a pass/fail table. Absent conditions were never evaluated.
type Conditions map[Condition]bool

// Record ANDs ok into the condition; a failed condition stays failed.
func (c Conditions) Record(cond Condition, ok bool) {
	prev, seen := c[cond]
	if !seen {
		c[cond] = ok
		return
	}
	c[cond] = prev && ok
}

// Set overwrites the condition.
func (c Conditions) Set(cond Condition, ok bool) {
	c[cond] = ok
}

// Passed reports whether every evaluated condition holds.
func (c Conditions) Passed() bool {
	for _, ok := range c {
		if !ok {
			return false
		}
	}
	return true
}

// FeatureRecord holds one mutant's extracted oscillation features.
type FeatureRecord struct {
	VersionedRecord
	RunID  string     `json:"run_id"`
	Mutant MutantKind `json:"mutant"`
	SetNum int        `json:"set_num"`

	PeriodAnt       [NumGenes]float64 `json:"period_ant"`
	AmplitudeAnt    [NumGenes]float64 `json:"amplitude_ant"`
	PeriodPost      [NumGenes]float64 `json:"period_post"`
	AmplitudePost   [NumGenes]float64 `json:"amplitude_post"`
	PeakToTroughMid [NumGenes]float64 `json:"peaktotrough_mid"`
	PeakToTroughEnd [NumGenes]float64 `json:"peaktotrough_end"`
	NumGoodSomites  [NumGenes]float64 `json:"num_good_somites"`
	SyncScoreAnt    [NumGenes]float64 `json:"sync_score_ant"`
	SyncScorePost   [NumGenes]float64 `json:"sync_score_post"`

	PeriodAntTime     [NumGenes]Buckets `json:"period_ant_time"`
	PeriodPostTime    [NumGenes]Buckets `json:"period_post_time"`
	AmplitudeAntTime  [NumGenes]Buckets `json:"amplitude_ant_time"`
	AmplitudePostTime [NumGenes]Buckets `json:"amplitude_post_time"`
	SyncTime          [NumGenes]Buckets `json:"sync_time"`

	CompScoreMespa float64 `json:"comp_score_ant_mespa"`
	CompScoreMespb float64 `json:"comp_score_ant_mespb"`

	Conditions Conditions `json:"conditions"`
}

// NewFeatureRecord returns a record with every map allocated.
func NewFeatureRecord(runID string, mutant MutantKind) FeatureRecord {
	rec := FeatureRecord{
		RunID:      runID,
		Mutant:     mutant,
		Conditions: make(Conditions),
	}
	for g := 0; g < NumGenes; g++ {
		rec.PeriodAntTime[g] = make(Buckets)
		rec.PeriodPostTime[g] = make(Buckets)
		rec.AmplitudeAntTime[g] = make(Buckets)
		rec.AmplitudePostTime[g] = make(Buckets)
		rec.SyncTime[g] = make(Buckets)
	}
	return rec
}

// Clone returns a deep copy of the record.
func (r FeatureRecord) Clone() FeatureRecord {
	out := r
	for g := 0; g < NumGenes; g++ {
		out.PeriodAntTime[g] = r.PeriodAntTime[g].clone()
		out.PeriodPostTime[g] = r.PeriodPostTime[g].clone()
		out.AmplitudeAntTime[g] = r.AmplitudeAntTime[g].clone()
		out.AmplitudePostTime[g] = r.AmplitudePostTime[g].clone()
		out.SyncTime[g] = r.SyncTime[g].clone()
	}
	out.Conditions = make(Conditions, len(r.Conditions))
	for k, v := range r.Conditions {
		out.Conditions[k] = v
	}
	return out
}

func (b Buckets) clone() Buckets {
	out := make(Buckets, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}
