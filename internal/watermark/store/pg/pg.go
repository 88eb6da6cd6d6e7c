package pg

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/mycok/sdnsync/internal/watermark"
)

var (
	createTableQuery = `
					CREATE TABLE IF NOT EXISTS watermarks (
						feed_url      TEXT PRIMARY KEY,
						updated_at_ns BIGINT NOT NULL
					)
					`
	loadQuery   = "SELECT feed_url, updated_at_ns FROM watermarks"
	deleteQuery = "DELETE FROM watermarks"
)

// Static and compile-time check to ensure PostgresStore implements
// watermark.Store.
var _ watermark.Store = (*PostgresStore)(nil)

// PostgresStore persists watermarks in a PostgreSQL (or CockroachDB) table.
// Timestamps are stored as unix nanoseconds so they round-trip exactly.
type PostgresStore struct {
	db      *sql.DB
	timeout time.Duration
	logger  *logrus.Entry
}

// NewPostgresStore connects to the database identified by dsn and ensures
// the watermarks table exists. If logger is nil, an output-discarding logger
// is used instead.
func NewPostgresStore(dsn string, logger *logrus.Entry) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	s := &PostgresStore{db: db, timeout: 5 * time.Second, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, err
	}

	if _, err := db.ExecContext(ctx, createTableQuery); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create watermarks table: %w", err)
	}

	return s, nil
}

// Close terminates the connection to the database.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Load returns the persisted watermarks. Query failures are logged and
// yield an empty mapping.
func (s *PostgresStore) Load() (watermark.Mapping, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	m, err := s.load(ctx)
	if err != nil {
		s.logger.WithField("err", err).Warn("ignoring unreadable watermarks table")

		return make(watermark.Mapping), nil
	}

	return m, nil
}

func (s *PostgresStore) load(ctx context.Context) (watermark.Mapping, error) {
	rows, err := s.db.QueryContext(ctx, loadQuery)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	m := make(watermark.Mapping)
	for rows.Next() {
		var (
			url string
			ns  int64
		)

		if err := rows.Scan(&url, &ns); err != nil {
			return nil, err
		}

		m[url] = time.Unix(0, ns).UTC()
	}

	return m, rows.Err()
}

// Save replaces the contents of the watermarks table with m in a single
// transaction. Watermarks outside [watermark.MinTime, watermark.MaxTime]
// are rejected with watermark.ErrOutOfRange.
func (s *PostgresStore) Save(m watermark.Mapping) error {
	if err := watermark.CheckRange(m); err != nil {
		return fmt.Errorf("save watermarks: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save watermarks: %w", err)
	}

	if err := s.replace(ctx, tx, m); err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("save watermarks: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save watermarks: %w", err)
	}

	return nil
}

func (s *PostgresStore) replace(ctx context.Context, tx *sql.Tx, m watermark.Mapping) error {
	if _, err := tx.ExecContext(ctx, deleteQuery); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("watermarks", "feed_url", "updated_at_ns"))
	if err != nil {
		return err
	}

	for url, ts := range m {
		if _, err := stmt.ExecContext(ctx, url, ts.UnixNano()); err != nil {
			_ = stmt.Close()

			return err
		}
	}

	// Flush the buffered COPY data.
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()

		return err
	}

	return stmt.Close()
}
