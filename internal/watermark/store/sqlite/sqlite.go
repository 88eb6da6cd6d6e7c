package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/mycok/sdnsync/internal/watermark"
)

var (
	createTableQuery = `
					CREATE TABLE IF NOT EXISTS watermarks (
						feed_url      TEXT PRIMARY KEY,
						updated_at_ns INTEGER NOT NULL
					)
					`
	loadQuery   = "SELECT feed_url, updated_at_ns FROM watermarks"
	deleteQuery = "DELETE FROM watermarks"
	insertQuery = "INSERT INTO watermarks (feed_url, updated_at_ns) VALUES (?, ?)"
)

// Static and compile-time check to ensure SQLiteStore implements
// watermark.Store.
var _ watermark.Store = (*SQLiteStore)(nil)

// SQLiteStore persists watermarks in an embedded SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	logger *logrus.Entry
}

// NewSQLiteStore opens (creating if needed) the database at path. If logger
// is nil, an output-discarding logger is used instead.
func NewSQLiteStore(path string, logger *logrus.Entry) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open watermark database: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTableQuery); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("create watermarks table: %w", err)
	}

	if logger == nil {
		logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Load returns the persisted watermarks. Read failures are logged and yield
// an empty mapping.
func (s *SQLiteStore) Load() (watermark.Mapping, error) {
	rows, err := s.db.Query(loadQuery)
	if err != nil {
		s.logger.WithField("err", err).Warn("ignoring unreadable watermark database")

		return make(watermark.Mapping), nil
	}
	defer func() { _ = rows.Close() }()

	m := make(watermark.Mapping)
	for rows.Next() {
		var (
			url string
			ns  int64
		)

		if err := rows.Scan(&url, &ns); err != nil {
			s.logger.WithField("err", err).Warn("ignoring corrupt watermark database")

			return make(watermark.Mapping), nil
		}

		m[url] = time.Unix(0, ns).UTC()
	}

	if err := rows.Err(); err != nil {
		s.logger.WithField("err", err).Warn("ignoring unreadable watermark database")

		return make(watermark.Mapping), nil
	}

	return m, nil
}

// Save replaces the stored watermarks with m in a single transaction. It
// fails with watermark.ErrOutOfRange if a watermark cannot be stored as unix
// nanoseconds.
func (s *SQLiteStore) Save(m watermark.Mapping) error {
	if err := watermark.CheckRange(m); err != nil {
		return fmt.Errorf("save watermarks: %w", err)
	}

	ctx := context.Background()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save watermarks: %w", err)
	}

	if _, err := tx.ExecContext(ctx, deleteQuery); err != nil {
		_ = tx.Rollback()

		return fmt.Errorf("save watermarks: %w", err)
	}

	for url, ts := range m {
		if _, err := tx.ExecContext(ctx, insertQuery, url, ts.UnixNano()); err != nil {
			_ = tx.Rollback()

			return fmt.Errorf("save watermarks: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save watermarks: %w", err)
	}

	return nil
}
