package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	Up      string
}

// migrations holds all database migrations in order.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up: `
			-- Lifecycle event log, one row per status change or delivery.
			CREATE TABLE IF NOT EXISTS alert_events (
				id TEXT PRIMARY KEY,
				alert_id TEXT NOT NULL,
				kind TEXT NOT NULL,
				detail TEXT,
				at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_alert_events_alert ON alert_events(alert_id, at);
			CREATE INDEX IF NOT EXISTS idx_alert_events_at ON alert_events(at);

			-- Periodic workflow snapshots, stored as JSON documents.
			CREATE TABLE IF NOT EXISTS snapshots (
				id TEXT PRIMARY KEY,
				exported_at DATETIME NOT NULL,
				payload BLOB NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_snapshots_exported ON snapshots(exported_at);
		`,
	},
}

func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d (%s): %w", m.Version, m.Name, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Name, time.Now(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
