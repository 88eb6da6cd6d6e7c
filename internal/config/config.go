// Package config holds the process configuration of the synchronizer. A
// Config value is built once at startup and passed to the constructors of
// every component.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml/v2"

	"github.com/mycok/sdnsync/internal/feed"
	"github.com/mycok/sdnsync/internal/watermark/store/file"
)

// Defaults applied when the corresponding setting is not provided.
const (
	DefaultEnvironment  = "development"
	DefaultESHost       = "172.31.26.11"
	DefaultMappingFile  = "mapping.json"
	DefaultPidFile      = "ofac.pid"
	DefaultWatermarkURI = "file://" + file.DefaultPath
	DefaultHTTPTimeout  = 5 * time.Minute
)

// Config is the process configuration.
type Config struct {
	// Deployment environment. Namespaces the index names and the alias.
	Environment string

	// Enables debug logging.
	Debug bool

	// Host of the elasticsearch node used when IndexURI is empty.
	ESHost string

	// Index backend URI: es://node1:9200,...,nodeN:9200 or in-memory://.
	IndexURI string

	// Watermark store URI: file://path, in-memory://, postgresql://... or
	// sqlite://path.
	WatermarkURI string

	// Path of the JSON index schema.
	MappingFile string

	// Optional path of a TOML feed list. The OFAC feeds are used when empty.
	FeedsFile string

	// Path of the pid file. Empty disables it.
	PidFile string

	// Listen address of the status server in daemon mode. Empty disables
	// it.
	StatusAddr string

	// Time between cycles in daemon mode.
	UpdateInterval time.Duration

	// Timeout of every feed request.
	HTTPTimeout time.Duration

	// Save watermarks after each successful rebuild as well as at the end
	// of every cycle.
	PersistPerFeed bool
}

// Validate applies defaults and checks the configuration.
func (c *Config) Validate() error {
	var err error

	if c.Environment == "" {
		c.Environment = DefaultEnvironment
	}

	if c.ESHost == "" {
		c.ESHost = DefaultESHost
	}

	if c.WatermarkURI == "" {
		c.WatermarkURI = DefaultWatermarkURI
	}

	if c.MappingFile == "" {
		c.MappingFile = DefaultMappingFile
	}

	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}

	if c.UpdateInterval < 0 {
		err = multierror.Append(err, fmt.Errorf("invalid value for update interval"))
	}

	if c.HTTPTimeout < 0 {
		err = multierror.Append(err, fmt.Errorf("invalid value for HTTP timeout"))
	}

	if _, uriErr := url.Parse(c.IndexBackendURI()); uriErr != nil {
		err = multierror.Append(err, fmt.Errorf("invalid index URI: %w", uriErr))
	}

	if _, uriErr := url.Parse(c.WatermarkURI); uriErr != nil {
		err = multierror.Append(err, fmt.Errorf("invalid watermark URI: %w", uriErr))
	}

	return err
}

// BaseName returns the prefix of the physical index names.
func (c Config) BaseName() string {
	return "ofac_" + c.Environment
}

// AliasName returns the alias consumers query.
func (c Config) AliasName() string {
	return "vofac_" + c.Environment
}

// IndexBackendURI returns IndexURI or, when it is empty, the URI of the
// elasticsearch node at ESHost.
func (c Config) IndexBackendURI() string {
	if c.IndexURI != "" {
		return c.IndexURI
	}

	return fmt.Sprintf("es://%s:9200", c.ESHost)
}

// LoadSchema reads the index schema at path. The file must hold a valid JSON
// document.
func LoadSchema(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index schema: %w", err)
	}

	if !json.Valid(data) {
		return nil, fmt.Errorf("index schema %s is not valid JSON", path)
	}

	return data, nil
}

type feedList struct {
	Feeds []struct {
		Ordinal *int   `toml:"ordinal"`
		Name    string `toml:"name"`
		URL     string `toml:"url"`
	} `toml:"feed"`
}

// LoadSources returns the feeds to synchronize. When path is empty the
// OFAC consolidated and SDN feeds are returned. Otherwise path must be a
// TOML document listing the feeds:
//
//	[[feed]]
//	ordinal = 0
//	name = "consolidated"
//	url = "https://www.treasury.gov/ofac/downloads/consolidated/consolidated.xml"
//
// Feeds without an explicit ordinal are numbered by their position.
func LoadSources(path string) ([]feed.Source, error) {
	if path == "" {
		return feed.DefaultSources(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds file: %w", err)
	}

	var list feedList
	if err := toml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse feeds file %s: %w", path, err)
	}

	sources := make([]feed.Source, 0, len(list.Feeds))
	for i, f := range list.Feeds {
		src := feed.Source{Ordinal: i, Name: f.Name, URL: f.URL}
		if f.Ordinal != nil {
			src.Ordinal = *f.Ordinal
		}

		sources = append(sources, src)
	}

	if err := feed.ValidateSources(sources); err != nil {
		return nil, fmt.Errorf("feeds file %s: %w", path, err)
	}

	return sources, nil
}
