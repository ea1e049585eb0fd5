package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// migration is one schema step. Column-adding migrations carry the column
// name so a database written by an older build (or adopted from another
// tool) that already has the column is recorded as applied instead of
// failing on a duplicate ALTER.
type migration struct {
	name   string
	column string
	stmt   string
}

var migrations = []migration{
	{
		name: "001_create_events",
		stmt: `CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			timestamp_s REAL NOT NULL,
			label TEXT NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
	},
	{
		name: "002_create_timestamp_index",
		stmt: `CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp_s)`,
	},
	{
		name:   "003_add_match_id",
		column: "match_id",
		stmt:   `ALTER TABLE events ADD COLUMN match_id TEXT NOT NULL DEFAULT ''`,
	},
	{
		name:   "004_add_player",
		column: "player",
		stmt:   `ALTER TABLE events ADD COLUMN player TEXT NOT NULL DEFAULT ''`,
	},
	{
		name:   "005_add_severity",
		column: "severity",
		stmt:   `ALTER TABLE events ADD COLUMN severity INTEGER NOT NULL DEFAULT 0`,
	},
}

type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

func New(dbPath string, logger *slog.Logger) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	db := &DB{conn: conn, logger: logger}

	if err := db.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) Conn() *sql.DB {
	return d.conn
}

// migrate applies outstanding migrations in order. Safe to call on every
// startup; applied migrations are recorded in _migrations and skipped.
func (d *DB) migrate() error {
	if _, err := d.conn.Exec(
		`CREATE TABLE IF NOT EXISTS _migrations (name TEXT PRIMARY KEY, applied_at TEXT NOT NULL DEFAULT (datetime('now')))`,
	); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	columns, err := d.tableColumns("events")
	if err != nil {
		return fmt.Errorf("failed to read events schema: %w", err)
	}

	for _, m := range migrations {
		if d.isMigrationApplied(m.name) {
			continue
		}

		if m.column == "" || !columns[m.column] {
			if _, err := d.conn.Exec(m.stmt); err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", m.name, err)
			}
		}

		if _, err := d.conn.Exec("INSERT INTO _migrations (name) VALUES (?)", m.name); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", m.name, err)
		}

		if d.logger != nil {
			d.logger.Info("applied migration", "name", m.name)
		}
	}

	return nil
}

func (d *DB) isMigrationApplied(name string) bool {
	var applied int
	err := d.conn.QueryRow("SELECT 1 FROM _migrations WHERE name = ?", name).Scan(&applied)
	return err == nil && applied == 1
}

// tableColumns returns the column set of a table, empty when the table
// does not exist yet.
func (d *DB) tableColumns(table string) (map[string]bool, error) {
	rows, err := d.conn.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}
		columns[name] = true
	}
	return columns, rows.Err()
}
