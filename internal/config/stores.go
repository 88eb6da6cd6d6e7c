package config

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mycok/sdnsync/internal/index"
	"github.com/mycok/sdnsync/internal/index/store/es"
	memindex "github.com/mycok/sdnsync/internal/index/store/memory"
	"github.com/mycok/sdnsync/internal/watermark"
	"github.com/mycok/sdnsync/internal/watermark/store/file"
	memwatermark "github.com/mycok/sdnsync/internal/watermark/store/memory"
	"github.com/mycok/sdnsync/internal/watermark/store/pg"
	"github.com/mycok/sdnsync/internal/watermark/store/sqlite"
)

// NewIndexBackend returns the index backend identified by uri. Supported
// schemes are es://node1:9200,...,nodeN:9200 and in-memory://.
func NewIndexBackend(uri string, logger *logrus.Entry) (index.Backend, error) {
	logger = orDiscard(logger)

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to parse index URI: %w", err)
	}

	switch u.Scheme {
	case "in-memory":
		logger.Info("using in-memory index")

		return memindex.NewInMemoryBackend(), nil
	case "es":
		if u.Host == "" {
			return nil, fmt.Errorf("index URI %q does not list any elasticsearch node", uri)
		}

		nodes := strings.Split(u.Host, ",")
		for i := 0; i < len(nodes); i++ {
			nodes[i] = "http://" + nodes[i]
		}

		logger.WithField("nodes", nodes).Info("using ES index")

		return es.NewElasticsearchBackend(nodes, false)
	default:
		return nil, fmt.Errorf("unsupported index URI scheme: %q", u.Scheme)
	}
}

// NewWatermarkStore returns the watermark store identified by uri.
// Supported schemes are file://path, in-memory://, postgresql://... and
// sqlite://path.
func NewWatermarkStore(uri string, logger *logrus.Entry) (watermark.Store, error) {
	logger = orDiscard(logger)

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to parse watermark URI: %w", err)
	}

	switch u.Scheme {
	case "file":
		path := localPath(u)
		logger.WithField("path", path).Info("using file watermark store")

		return file.NewStore(path, logger), nil
	case "in-memory":
		logger.Info("using in-memory watermark store")

		return memwatermark.NewInMemoryStore(), nil
	case "postgresql", "postgres":
		logger.Info("using postgres watermark store")

		return pg.NewPostgresStore(uri, logger)
	case "sqlite":
		path := localPath(u)
		if path == "" {
			return nil, fmt.Errorf("watermark URI %q does not specify a database path", uri)
		}

		logger.WithField("path", path).Info("using sqlite watermark store")

		return sqlite.NewSQLiteStore(path, logger)
	default:
		return nil, fmt.Errorf("unsupported watermark URI scheme: %q", u.Scheme)
	}
}

func orDiscard(logger *logrus.Entry) *logrus.Entry {
	if logger == nil {
		return logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return logger
}

// localPath extracts a filesystem path from a URI. Both relative
// (file://state/marks) and absolute (file:///var/lib/marks) forms are
// accepted.
func localPath(u *url.URL) string {
	return u.Host + u.Path
}
