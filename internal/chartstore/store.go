// Package chartstore handles SQLite persistence of generated chart sets.
//
// The durable representation is deliberately a single serialized blob
// under one key, read and rewritten wholesale: the store is a
// single-user local cache, and whole-blob read-modify-write inside one
// transaction keeps every write all-or-nothing. Last writer wins across
// processes; there is no merge conflict detection.
package chartstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"gradeboard/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// storeKey is the single slot all course chart sets serialize under.
const storeKey = "courseData"

// Store wraps SQLite access for persisted chart sets.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, log: log}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS chart_sets (
		key TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		updated_at TEXT NOT NULL
	);`)
	return err
}

// Load deserializes the persisted store. A missing or undecodable blob
// degrades to an empty mapping: corrupt local history is not fatal, it
// just means no saved charts.
func (s *Store) Load(ctx context.Context) model.PersistedStore {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM chart_sets WHERE key = ?`, storeKey).Scan(&payload)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Warn("failed to read chart store", zap.Error(err))
		}
		return model.PersistedStore{}
	}
	return decodeStore(payload, s.log)
}

// AddBundle appends a chart bundle to the named course's chart set,
// creating the entry if absent, and rewrites the whole store in one
// transaction. Entries for other courses are carried over untouched.
// The updated store is returned for the caller to adopt as its view.
func (s *Store) AddBundle(ctx context.Context, courseName string, bundle model.ChartBundle) (model.PersistedStore, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin chart store tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	var payload []byte
	err = tx.QueryRowContext(ctx, `SELECT payload FROM chart_sets WHERE key = ?`, storeKey).Scan(&payload)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to read chart store: %w", err)
	}
	err = nil
	store := decodeStore(payload, s.log)

	set := store[courseName]
	set.Charts = append(set.Charts, bundle)
	store[courseName] = set

	encoded, err := json.Marshal(store)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chart store: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO chart_sets (key, payload, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		storeKey, encoded, time.Now().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to write chart store: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit chart store: %w", err)
	}
	s.log.Info("saved chart bundle",
		zap.String("course", courseName),
		zap.String("graph", bundle.GraphName),
		zap.Int("charts", len(set.Charts)))
	return store, nil
}

// CourseCharts returns the chart set for a course, never nil.
func CourseCharts(store model.PersistedStore, courseName string) model.ChartSet {
	set, ok := store[courseName]
	if !ok || set.Charts == nil {
		return model.ChartSet{Charts: []model.ChartBundle{}}
	}
	return set
}

func decodeStore(payload []byte, log *zap.Logger) model.PersistedStore {
	if len(payload) == 0 {
		return model.PersistedStore{}
	}
	var store model.PersistedStore
	if err := json.Unmarshal(payload, &store); err != nil {
		log.Warn("chart store blob undecodable, starting empty", zap.Error(err))
		return model.PersistedStore{}
	}
	if store == nil {
		return model.PersistedStore{}
	}
	return store
}
