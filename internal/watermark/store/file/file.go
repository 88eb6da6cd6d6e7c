package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mycok/sdnsync/internal/watermark"
)

// Static and compile-time check to ensure Store implements watermark.Store.
var _ watermark.Store = (*Store)(nil)

// DefaultPath is the location of the watermark file when none is configured.
const DefaultPath = ".ofac_update_dates"

// Store persists watermarks as a JSON document on the local filesystem.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *logrus.Entry
}

// NewStore returns a Store that persists watermarks to path. If logger is
// nil, an output-discarding logger is used instead.
func NewStore(path string, logger *logrus.Entry) *Store {
	if path == "" {
		path = DefaultPath
	}

	if logger == nil {
		logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return &Store{path: path, logger: logger}
}

// Path returns the location of the watermark file.
func (s *Store) Path() string { return s.path }

// Load reads the watermark file. A missing file yields an empty mapping; an
// unreadable or corrupt file is logged and also yields an empty mapping.
func (s *Store) Load() (watermark.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.WithFields(logrus.Fields{
				"err":  err,
				"path": s.path,
			}).Warn("ignoring unreadable watermark file")
		}

		return make(watermark.Mapping), nil
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.WithFields(logrus.Fields{
			"err":  err,
			"path": s.path,
		}).Warn("ignoring corrupt watermark file")

		return make(watermark.Mapping), nil
	}

	m := make(watermark.Mapping, len(raw))
	for url, value := range raw {
		ts, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"err":  err,
				"path": s.path,
			}).Warn("ignoring corrupt watermark file")

			return make(watermark.Mapping), nil
		}

		m[url] = ts.UTC()
	}

	return m, nil
}

// Save atomically replaces the watermark file with the contents of m.
func (s *Store) Save(m watermark.Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw := make(map[string]string, len(m))
	for url, ts := range m {
		raw[url] = ts.UTC().Format(time.RFC3339Nano)
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("save watermarks: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("save watermarks: %w", err)
	}
	tmpName := tmp.Name()

	if _, err = tmp.Write(data); err == nil {
		err = tmp.Sync()
	}

	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}

	if err == nil {
		err = os.Rename(tmpName, s.path)
	}

	if err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("save watermarks: %w", err)
	}

	return nil
}
