// Package storage persists workflow history and snapshots in SQLite.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	// Pure-Go SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/blue-harvest-ops/fieldaudit/internal/metrics"
	"github.com/blue-harvest-ops/fieldaudit/internal/workflow"
)

// Store is the SQLite-backed audit store. It records every lifecycle event
// and periodic snapshots of the workflow state, so tracking survives a
// process restart and stays inspectable after the fact.
type Store struct {
	path string
	db   *sql.DB
}

// NewStore creates a store for the database at path. Use ":memory:" for an
// ephemeral store.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Open initializes the database connection and applies migrations.
func (s *Store) Open() error {
	ctx := context.Background()

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return fmt.Errorf("run migrations: %w", err)
	}

	s.db = db
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("store is not open")
	}
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// HistoryEntry is one persisted lifecycle event.
type HistoryEntry struct {
	ID      string    `json:"id"`
	AlertID string    `json:"alert_id"`
	Kind    string    `json:"kind"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}

// RecordEvent persists one workflow lifecycle event. It satisfies
// workflow.EventRecorder.
func (s *Store) RecordEvent(ctx context.Context, ev workflow.Event) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO alert_events (id, alert_id, kind, detail, at) VALUES (?, ?, ?, ?, ?)",
		uuid.NewString(), ev.AlertID, ev.Kind, ev.Detail, ev.At.UTC(),
	)
	metrics.StorageQueryDuration.WithLabelValues("record_event").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StorageErrors.WithLabelValues("record_event").Inc()
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// ListEvents returns events for one alert, newest first. An empty alertID
// lists across all alerts.
func (s *Store) ListEvents(ctx context.Context, alertID string, limit, offset int) ([]HistoryEntry, int64, error) {
	if limit <= 0 {
		limit = 100
	}

	where, args := "", []any{}
	if alertID != "" {
		where = " WHERE alert_id = ?"
		args = append(args, alertID)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alert_events"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	query := "SELECT id, alert_id, kind, detail, at FROM alert_events" + where +
		" ORDER BY at DESC, id LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.AlertID, &e.Kind, &e.Detail, &e.At); err != nil {
			return nil, 0, fmt.Errorf("scan event: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// PruneEvents deletes events older than the cutoff and returns the count.
func (s *Store) PruneEvents(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM alert_events WHERE at < ?", before.UTC())
	if err != nil {
		metrics.StorageErrors.WithLabelValues("prune_events").Inc()
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return result.RowsAffected()
}

// SaveSnapshot persists one workflow snapshot as a JSON document.
func (s *Store) SaveSnapshot(ctx context.Context, snap workflow.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	start := time.Now()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO snapshots (id, exported_at, payload) VALUES (?, ?, ?)",
		uuid.NewString(), snap.ExportedAt.UTC(), payload,
	)
	metrics.StorageQueryDuration.WithLabelValues("save_snapshot").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StorageErrors.WithLabelValues("save_snapshot").Inc()
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recent snapshot, or sql.ErrNoRows when
// none was saved yet.
func (s *Store) LatestSnapshot(ctx context.Context) (workflow.Snapshot, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM snapshots ORDER BY exported_at DESC LIMIT 1",
	).Scan(&payload)
	if err != nil {
		return workflow.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}

	var snap workflow.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return workflow.Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return snap, nil
}
