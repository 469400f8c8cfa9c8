package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"psmfeats/internal/model"
)

// dialect holds the differences between the SQL backends.
type dialect struct {
	driver      string
	blobType    string
	dollarBinds bool
}

// sqlStore implements Store on database/sql.
type sqlStore struct {
	dsn     string
	dialect dialect

	mu sync.RWMutex
	db *sql.DB
}

func (s *sqlStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dsn == "" {
		return fmt.Errorf("%s dsn is required", s.dialect.driver)
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open(s.dialect.driver, s.dsn)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.dialect.driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping %s: %w", s.dialect.driver, err)
	}
	if err := s.createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}

	s.db = db
	return nil
}

func (s *sqlStore) SaveFeatures(ctx context.Context, rec model.FeatureRecord) error {
	if rec.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	db, err := s.getDB()
	if err != nil {
		return err
	}

	rec = Stamp(rec)
	payload, err := EncodeFeatures(rec)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, s.bind(`
		INSERT INTO feature_records (run_id, mutant, schema_version, codec_version, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id, mutant) DO UPDATE SET
			schema_version = excluded.schema_version,
			codec_version = excluded.codec_version,
			payload = excluded.payload
	`), rec.RunID, string(rec.Mutant), rec.SchemaVersion, rec.CodecVersion, payload)
	if err != nil {
		return fmt.Errorf("save features %s/%s: %w", rec.RunID, rec.Mutant, err)
	}
	return nil
}

func (s *sqlStore) GetFeatures(ctx context.Context, runID string, mutant model.MutantKind) (model.FeatureRecord, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return model.FeatureRecord{}, false, err
	}

	var payload []byte
	err = db.QueryRowContext(ctx, s.bind(`SELECT payload FROM feature_records WHERE run_id = ? AND mutant = ?`), runID, string(mutant)).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.FeatureRecord{}, false, nil
		}
		return model.FeatureRecord{}, false, err
	}

	rec, err := DecodeFeatures(payload)
	if err != nil {
		return model.FeatureRecord{}, false, fmt.Errorf("decode features %s/%s: %w", runID, mutant, err)
	}
	return rec, true, nil
}

func (s *sqlStore) ListFeatures(ctx context.Context, runID string) ([]model.FeatureRecord, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, s.bind(`SELECT mutant, payload FROM feature_records WHERE run_id = ?`), runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.FeatureRecord
	for rows.Next() {
		var (
			mutant  string
			payload []byte
		)
		if err := rows.Scan(&mutant, &payload); err != nil {
			return nil, err
		}
		rec, err := DecodeFeatures(payload)
		if err != nil {
			return nil, fmt.Errorf("decode features %s/%s: %w", runID, mutant, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortByMutant(out)
	return out, nil
}

func (s *sqlStore) ListRuns(ctx context.Context) ([]string, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT DISTINCT run_id FROM feature_records ORDER BY run_id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		runs = append(runs, id)
	}
	return runs, rows.Err()
}

func (s *sqlStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *sqlStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, ErrNotInitialized
	}
	return s.db, nil
}

func (s *sqlStore) createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS feature_records (
			run_id TEXT NOT NULL,
			mutant TEXT NOT NULL,
			schema_version INTEGER NOT NULL,
			codec_version INTEGER NOT NULL,
			payload `+s.dialect.blobType+` NOT NULL,
			PRIMARY KEY (run_id, mutant)
		)
	`)
	if err != nil {
		return fmt.Errorf("create feature_records: %w", err)
	}
	return nil
}

func (s *sqlStore) bind(query string) string {
	return rebind(query, s.dialect.dollarBinds)
}

// rebind rewrites ? placeholders to $n when dollar is set.
func rebind(query string, dollar bool) string {
	if !dollar {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
