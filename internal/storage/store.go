package storage

import (
	"context"
	"errors"

	"psmfeats/internal/model"
)

var ErrNotInitialized = errors.New("store is not initialized")

// Store persists feature records keyed by run and mutant.
type Store interface {
	Init(ctx context.Context) error
	SaveFeatures(ctx context.Context, rec model.FeatureRecord) error
	GetFeatures(ctx context.Context, runID string, mutant model.MutantKind) (model.FeatureRecord, bool, error)
	// ListFeatures returns the records of a run in model.MutantKinds order.
	ListFeatures(ctx context.Context, runID string) ([]model.FeatureRecord, error)
	ListRuns(ctx context.Context) ([]string, error)
}
