// Package mysql implements a phase event history backend using MySQL.
package mysql

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/fleetlink/nanoshare/history"
	"github.com/fleetlink/nanoshare/share"
)

// Schema contains the MySQL schema for the history storage.
//
//go:embed schema.sql
var Schema string

const mySQLTimestampFormat = "2006-01-02 15:04:05.999999"

// MySQLStorage implements a history.Storage using MySQL.
type MySQLStorage struct {
	db *sql.DB
}

type config struct {
	driver string
	dsn    string
	db     *sql.DB
}

// Option allows configuring a MySQLStorage.
type Option func(*config)

// WithDSN sets the storage MySQL data source name.
func WithDSN(dsn string) Option {
	return func(c *config) {
		c.dsn = dsn
	}
}

// WithDriver sets a custom MySQL driver for the storage.
// Default driver is "mysql" but is ignored if WithDB is used.
func WithDriver(driver string) Option {
	return func(c *config) {
		c.driver = driver
	}
}

// WithDB sets a custom MySQL *sql.DB to the storage.
// If set, driver passed via WithDriver is ignored.
func WithDB(db *sql.DB) Option {
	return func(c *config) {
		c.db = db
	}
}

// New creates and returns a new MySQL storage.
func New(opts ...Option) (*MySQLStorage, error) {
	cfg := &config{driver: "mysql"}
	for _, opt := range opts {
		opt(cfg)
	}
	var err error
	if cfg.db == nil {
		cfg.db, err = sql.Open(cfg.driver, cfg.dsn)
		if err != nil {
			return nil, err
		}
	}
	if err = cfg.db.Ping(); err != nil {
		return nil, err
	}
	return &MySQLStorage{db: cfg.db}, nil
}

// StoreEvent appends one phase event.
func (s *MySQLStorage) StoreEvent(ctx context.Context, e *share.Event) error {
	if e == nil || e.SerialNumber == "" {
		return errors.New("invalid event")
	}
	_, err := s.db.ExecContext(
		ctx,
		`
INSERT INTO share_events
  (serial_number, admin_id, phase, outcome, error, recorded_at)
VALUES
  (?, ?, ?, ?, ?, ?);`,
		e.SerialNumber,
		sqlNullString(e.AdminID),
		string(e.Phase),
		string(e.Outcome),
		sqlNullString(e.Error),
		e.Time.UTC().Format(mySQLTimestampFormat),
	)
	return err
}

// RetrieveEvents returns stored events for opt.SerialNumber in recording
// order, newest-limited by opt.Limit.
func (s *MySQLStorage) RetrieveEvents(ctx context.Context, opt *history.SearchOptions) ([]*share.Event, error) {
	if opt == nil || opt.SerialNumber == "" {
		return nil, errors.New("no serial number specified")
	}
	query := `
SELECT
  id, serial_number, admin_id, phase, outcome, error, recorded_at
FROM
  share_events
WHERE
  serial_number = ?
ORDER BY
  id;`
	args := []interface{}{opt.SerialNumber}
	if opt.Limit > 0 {
		// newest rows, returned back in recording order
		query = `
SELECT * FROM (
  SELECT
    id, serial_number, admin_id, phase, outcome, error, recorded_at
  FROM
    share_events
  WHERE
    serial_number = ?
  ORDER BY
    id DESC
  LIMIT ?
) AS newest ORDER BY id;`
		args = append(args, opt.Limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()
	var events []*share.Event
	for rows.Next() {
		var (
			id       int64
			e        share.Event
			adminID  sql.NullString
			errText  sql.NullString
			recorded string
		)
		if err = rows.Scan(&id, &e.SerialNumber, &adminID, &e.Phase, &e.Outcome, &errText, &recorded); err != nil {
			return events, fmt.Errorf("scan event: %w", err)
		}
		e.AdminID = adminID.String
		e.Error = errText.String
		if e.Time, err = parseTimestamp(recorded); err != nil {
			return events, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func sqlNullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.ParseInLocation(mySQLTimestampFormat, s, time.UTC)
	if err != nil {
		return t, fmt.Errorf("parse timestamp: %w", err)
	}
	return t, nil
}
