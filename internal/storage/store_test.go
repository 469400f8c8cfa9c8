package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"psmfeats/internal/model"
)

func sampleRecord(runID string, mutant model.MutantKind) model.FeatureRecord {
	rec := model.NewFeatureRecord(runID, mutant)
	rec.SetNum = 4
	rec.PeriodAnt[model.GeneHer1] = 29.5
	rec.AmplitudePost[model.GeneHer7] = 12.25
	rec.PeriodPostTime[model.GeneHer1][3] = 31
	rec.SyncTime[model.GeneMespb][6] = 0.75
	rec.CompScoreMespa = -0.4
	rec.Conditions.Set(model.CondHer1Giudicelli, true)
	rec.Conditions.Record(model.CondMespWaveLength, false)
	return rec
}

// exerciseStore runs the behavior every backend shares.
func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, _, err := store.GetFeatures(ctx, "run-1", model.MutantWildType); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected not-initialized error, got %v", err)
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { _ = CloseIfSupported(store) })

	for _, rec := range []model.FeatureRecord{
		sampleRecord("run-1", model.MutantDAPT),
		sampleRecord("run-1", model.MutantWildType),
		sampleRecord("run-0", model.MutantDelta),
	} {
		if err := store.SaveFeatures(ctx, rec); err != nil {
			t.Fatalf("save %s/%s: %v", rec.RunID, rec.Mutant, err)
		}
	}

	loaded, ok, err := store.GetFeatures(ctx, "run-1", model.MutantWildType)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted record")
	}
	if loaded.SchemaVersion != CurrentSchemaVersion || loaded.CodecVersion != CurrentCodecVersion {
		t.Fatalf("record was not stamped: %+v", loaded.VersionedRecord)
	}
	if loaded.PeriodAnt[model.GeneHer1] != 29.5 || loaded.AmplitudePost[model.GeneHer7] != 12.25 {
		t.Fatalf("unexpected scalar features: %+v", loaded)
	}
	if loaded.PeriodPostTime[model.GeneHer1][3] != 31 || loaded.SyncTime[model.GeneMespb][6] != 0.75 {
		t.Fatalf("unexpected bucketed features: %+v", loaded)
	}
	if loaded.AmplitudeAntTime[model.GeneMespa] == nil {
		t.Fatal("expected allocated bucket maps")
	}
	if !loaded.Conditions[model.CondHer1Giudicelli] || loaded.Conditions[model.CondMespWaveLength] {
		t.Fatalf("unexpected conditions: %v", loaded.Conditions)
	}

	if _, ok, err := store.GetFeatures(ctx, "run-1", model.MutantHer1Over); err != nil || ok {
		t.Fatalf("expected missing record, ok=%t err=%v", ok, err)
	}

	updated := sampleRecord("run-1", model.MutantWildType)
	updated.PeriodAnt[model.GeneHer1] = 33
	if err := store.SaveFeatures(ctx, updated); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	loaded, _, _ = store.GetFeatures(ctx, "run-1", model.MutantWildType)
	if loaded.PeriodAnt[model.GeneHer1] != 33 {
		t.Fatalf("expected overwrite, got %f", loaded.PeriodAnt[model.GeneHer1])
	}

	records, err := store.ListFeatures(ctx, "run-1")
	if err != nil {
		t.Fatalf("list features: %v", err)
	}
	if len(records) != 2 || records[0].Mutant != model.MutantWildType || records[1].Mutant != model.MutantDAPT {
		t.Fatalf("unexpected listing order: %+v", records)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0] != "run-0" || runs[1] != "run-1" {
		t.Fatalf("unexpected runs: %v", runs)
	}

	if err := store.SaveFeatures(ctx, model.NewFeatureRecord("", model.MutantWildType)); err == nil {
		t.Fatal("expected error without run id")
	}
	stale := sampleRecord("run-2", model.MutantWildType)
	stale.SchemaVersion = CurrentSchemaVersion + 1
	if err := store.SaveFeatures(ctx, stale); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected version mismatch, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	rec := sampleRecord("run-1", model.MutantWildType)
	if err := store.SaveFeatures(ctx, rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	rec.SyncTime[model.GeneMespb][6] = 99
	loaded, _, _ := store.GetFeatures(ctx, "run-1", model.MutantWildType)
	if loaded.SyncTime[model.GeneMespb][6] != 0.75 {
		t.Fatal("stored record aliases the caller's maps")
	}
}

func TestSQLiteStore(t *testing.T) {
	exerciseStore(t, NewSQLiteStore(filepath.Join(t.TempDir(), "psmfeats.db")))
}

func TestSQLiteStoreRequiresPath(t *testing.T) {
	if err := NewSQLiteStore("").Init(context.Background()); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "psmfeats.db")
	first := NewSQLiteStore(path)
	if err := first.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := first.SaveFeatures(ctx, sampleRecord("run-9", model.MutantMespaOver)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	second := NewSQLiteStore(path)
	if err := second.Init(ctx); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	rec, ok, err := second.GetFeatures(ctx, "run-9", model.MutantMespaOver)
	if err != nil || !ok {
		t.Fatalf("expected record after reopen, ok=%t err=%v", ok, err)
	}
	if rec.CompScoreMespa != -0.4 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

// TestPostgresStore runs against a live database when PSMFEATS_POSTGRES_DSN is set.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("PSMFEATS_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PSMFEATS_POSTGRES_DSN not set")
	}
	store := NewPostgresStore(dsn)
	exerciseStore(t, store)
	_, err := store.db.ExecContext(context.Background(), `DELETE FROM feature_records WHERE run_id IN ('run-0', 'run-1')`)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}

func TestNewStoreBackends(t *testing.T) {
	for kind, want := range map[string]string{
		"":         "*storage.MemoryStore",
		"memory":   "*storage.MemoryStore",
		"sqlite":   "*storage.SQLiteStore",
		"postgres": "*storage.PostgresStore",
	} {
		store, err := NewStore(kind, "x")
		if err != nil {
			t.Fatalf("new %q store: %v", kind, err)
		}
		if got := fmt.Sprintf("%T", store); got != want {
			t.Fatalf("backend %q: expected %s, got %s", kind, want, got)
		}
	}
	if _, err := NewStore("unknown", ""); err == nil {
		t.Fatal("expected unsupported store error")
	}
}
