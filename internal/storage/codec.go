package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"psmfeats/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// Stamp fills unset schema and codec versions with the current ones.
func Stamp(rec model.FeatureRecord) model.FeatureRecord {
	if rec.SchemaVersion == 0 {
		rec.SchemaVersion = CurrentSchemaVersion
	}
	if rec.CodecVersion == 0 {
		rec.CodecVersion = CurrentCodecVersion
	}
	return rec
}

func EncodeFeatures(rec model.FeatureRecord) ([]byte, error) {
	if err := checkVersion(rec.VersionedRecord); err != nil {
		return nil, err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode features %s/%s: %w", rec.RunID, rec.Mutant, err)
	}
	return data, nil
}

func DecodeFeatures(data []byte) (model.FeatureRecord, error) {
	rec := model.NewFeatureRecord("", "")
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.FeatureRecord{}, err
	}
	if err := checkVersion(rec.VersionedRecord); err != nil {
		return model.FeatureRecord{}, err
	}
	for g := 0; g < model.NumGenes; g++ {
		rec.PeriodAntTime[g] = ensure(rec.PeriodAntTime[g])
		rec.PeriodPostTime[g] = ensure(rec.PeriodPostTime[g])
		rec.AmplitudeAntTime[g] = ensure(rec.AmplitudeAntTime[g])
		rec.AmplitudePostTime[g] = ensure(rec.AmplitudePostTime[g])
		rec.SyncTime[g] = ensure(rec.SyncTime[g])
	}
	if rec.Conditions == nil {
		rec.Conditions = make(model.Conditions)
	}
	return rec, nil
}

func ensure(b model.Buckets) model.Buckets {
	if b == nil {
		return make(model.Buckets)
	}
	return b
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}

func sortByMutant(records []model.FeatureRecord) {
	rank := make(map[model.MutantKind]int, len(model.MutantKinds))
	for i, m := range model.MutantKinds {
		rank[m] = i
	}
	sort.SliceStable(records, func(i, j int) bool {
		ri, okI := rank[records[i].Mutant]
		rj, okJ := rank[records[j].Mutant]
		if okI != okJ {
			return okI
		}
		if ri != rj {
			return ri < rj
		}
		return records[i].Mutant < records[j].Mutant
	})
}
