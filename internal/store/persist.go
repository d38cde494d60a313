package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/skyvault/alertfeed/config"
	"github.com/skyvault/alertfeed/internal/alert"
	"github.com/skyvault/alertfeed/internal/errors"
	"github.com/skyvault/alertfeed/internal/logging"
)

// DBConfig holds persistence database options.
type DBConfig struct {
	// DSN is the database path. Empty opens an in-memory database.
	DSN string

	// MaxOpenConns is the maximum number of open connections. The engine is
	// single-threaded, so one is enough.
	MaxOpenConns int

	// QueryTimeout is the default timeout for statements.
	QueryTimeout time.Duration
}

// DefaultDBConfig returns a DBConfig with sensible defaults.
func DefaultDBConfig() DBConfig {
	return DBConfig{
		MaxOpenConns: 1,
		QueryTimeout: 30 * time.Second,
	}
}

// DB persists alert records in DuckDB, one row per alert keyed by id. The
// record payload is the alert's byte form; the id column doubles as the
// id source on restore.
//
// DB implements Persister.
type DB struct {
	log    *slog.Logger
	db     *sql.DB
	config DBConfig
	closed bool
}

var _ Persister = (*DB)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS alerts (
	id      UINTEGER PRIMARY KEY,
	payload BLOB NOT NULL
)`

// OpenDB opens (and if necessary creates) the alert persistence database.
func OpenDB(cfg DBConfig) (*DB, error) {
	db, err := sql.Open("duckdb", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create alerts table: %w", err)
	}

	return &DB{
		log:    logging.Component("persist"),
		db:     db,
		config: cfg,
	}, nil
}

// Close closes the database.
func (d *DB) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.db.Close()
}

// Put writes or replaces the record for an alert id.
func (d *DB) Put(id uint32, data []byte) error {
	if d.closed {
		return errors.ErrStoreClosed
	}
	if len(data) > config.DefaultMaxRecordSize {
		return fmt.Errorf("alert %d record of %d bytes: %w", id, len(data), errors.ErrRecordTooLong)
	}
	ctx, cancel := d.queryContext()
	defer cancel()

	_, err := d.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO alerts (id, payload) VALUES (?, ?)`, id, data)
	if err != nil {
		return fmt.Errorf("put alert %d: %w", id, err)
	}
	return nil
}

// Delete removes the record for an alert id. Deleting an absent id is not
// an error.
func (d *DB) Delete(id uint32) error {
	if d.closed {
		return errors.ErrStoreClosed
	}
	ctx, cancel := d.queryContext()
	defer cancel()

	_, err := d.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete alert %d: %w", id, err)
	}
	return nil
}

// DeleteAll wipes the table, e.g. on logout.
func (d *DB) DeleteAll() error {
	if d.closed {
		return errors.ErrStoreClosed
	}
	ctx, cancel := d.queryContext()
	defer cancel()

	if _, err := d.db.ExecContext(ctx, `DELETE FROM alerts`); err != nil {
		return fmt.Errorf("delete all alerts: %w", err)
	}
	return nil
}

// LoadAll decodes every persisted alert in id order. A record that fails to
// decode is skipped with a warning; one corrupt record does not abandon the
// restore, since each row frames its record independently.
func (d *DB) LoadAll() ([]*alert.Alert, error) {
	if d.closed {
		return nil, errors.ErrStoreClosed
	}
	ctx, cancel := d.queryContext()
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `SELECT id, payload FROM alerts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*alert.Alert
	for rows.Next() {
		var id uint32
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		a, err := alert.Decode(payload, id)
		if err != nil {
			d.log.Warn("skipping undecodable alert record", "id", id, "error", err)
			continue
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert rows: %w", err)
	}
	return alerts, nil
}

func (d *DB) queryContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d.config.QueryTimeout)
}
