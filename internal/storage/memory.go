package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"psmfeats/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]map[model.MutantKind]model.FeatureRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]map[model.MutantKind]model.FeatureRecord)
	return nil
}

func (s *MemoryStore) SaveFeatures(_ context.Context, rec model.FeatureRecord) error {
	if rec.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	rec = Stamp(rec)
	if err := checkVersion(rec.VersionedRecord); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	byMutant, ok := s.runs[rec.RunID]
	if !ok {
		byMutant = make(map[model.MutantKind]model.FeatureRecord)
		s.runs[rec.RunID] = byMutant
	}
	byMutant[rec.Mutant] = rec.Clone()
	return nil
}

func (s *MemoryStore) GetFeatures(_ context.Context, runID string, mutant model.MutantKind) (model.FeatureRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return model.FeatureRecord{}, false, ErrNotInitialized
	}

	rec, ok := s.runs[runID][mutant]
	if !ok {
		return model.FeatureRecord{}, false, nil
	}
	return rec.Clone(), true, nil
}

func (s *MemoryStore) ListFeatures(_ context.Context, runID string) ([]model.FeatureRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}

	out := make([]model.FeatureRecord, 0, len(s.runs[runID]))
	for _, rec := range s.runs[runID] {
		out = append(out, rec.Clone())
	}
	sortByMutant(out)
	return out, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return nil, ErrNotInitialized
	}

	runs := make([]string, 0, len(s.runs))
	for id := range s.runs {
		runs = append(runs, id)
	}
	sort.Strings(runs)
	return runs, nil
}
