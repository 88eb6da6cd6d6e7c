package status

import (
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/mycok/sdnsync/internal/index"
	"github.com/mycok/sdnsync/internal/watermark"
)

// WatermarkAPI exposes the watermarks currently held by the scheduler.
type WatermarkAPI interface {
	Watermarks() watermark.Mapping
}

// Config defines configurations for the status service.
type Config struct {
	// Address to listen for incoming requests.
	ListenAddr string

	// API for reading the scheduler watermarks.
	WatermarkAPI WatermarkAPI

	// Optional API for resolving the alias. When not specified the aliases
	// endpoint is not served.
	Resolver index.Resolver

	// The alias consumers query.
	Alias string

	// The logger to use. If not defined an output-discarding logger will
	// be used instead.
	Logger *logrus.Entry
}

func (config *Config) validate() error {
	var err error

	if config.ListenAddr == "" {
		err = multierror.Append(err, fmt.Errorf("listen address not provided"))
	}

	if config.WatermarkAPI == nil {
		err = multierror.Append(err, fmt.Errorf("watermark API not provided"))
	}

	if config.Resolver != nil && config.Alias == "" {
		err = multierror.Append(err, fmt.Errorf("alias not provided"))
	}

	if config.Logger == nil {
		config.Logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return err
}
