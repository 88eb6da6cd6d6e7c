package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/mycok/sdnsync/internal/config"
	"github.com/mycok/sdnsync/internal/scheduler"
)

var (
	appName = "sdnsync"
	appSHA  = "latest-app-git-sha" // Populated by the compiler at the linking stage.
	logger  *logrus.Entry
)

func main() {
	host, _ := os.Hostname()
	rootLogger := logrus.New()
	rootLogger.SetFormatter(new(logrus.JSONFormatter))
	logger = rootLogger.WithFields(logrus.Fields{
		"app":  appName,
		"sha":  appSHA,
		"host": host,
	})

	if err := configureAppEnv().Run(os.Args); err != nil {
		logger.WithField("err", err).Error("shutting down due to an error")
		_ = os.Stderr.Sync()

		os.Exit(1)
	}
}

func configureAppEnv() *cli.App {
	app := cli.NewApp()
	app.Name = appName
	app.Version = appSHA
	app.Usage = "keep a search index synchronized with the OFAC sanctions feeds"
	app.ArgsUsage = "[once]"
	app.Description = "Without arguments the synchronizer runs as a daemon and checks the feeds" +
		" every update interval. With any argument it runs a single cycle and exits."
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "app-env",
			Value:   config.DefaultEnvironment,
			EnvVars: []string{"APP_ENV"},
			Usage:   "Deployment environment; namespaces the index names and the alias",
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging (also enabled when the DEBUG envvar is set)",
		},
		&cli.StringFlag{
			Name:    "es-host",
			Value:   config.DefaultESHost,
			EnvVars: []string{"ES_HOST"},
			Usage:   "Elasticsearch host used when --index-uri is not specified",
		},
		&cli.StringFlag{
			Name:    "index-uri",
			EnvVars: []string{"INDEX_URI"},
			Usage:   "URI for connecting to the index backend (supported URI's: in-memory://, es://node1:9200,...,nodeN:9200)",
		},
		&cli.StringFlag{
			Name:    "watermark-uri",
			Value:   config.DefaultWatermarkURI,
			EnvVars: []string{"WATERMARK_URI"},
			Usage: "URI for the watermark store (supported URI's: file://path, in-memory://," +
				" postgresql://user@host:5432/sdnsync?sslmode=disable, sqlite://path)",
		},
		&cli.StringFlag{
			Name:    "mapping-file",
			Value:   config.DefaultMappingFile,
			EnvVars: []string{"MAPPING_FILE"},
			Usage:   "Path of the JSON index schema",
		},
		&cli.StringFlag{
			Name:    "feeds-file",
			EnvVars: []string{"FEEDS_FILE"},
			Usage:   "Path of a TOML feed list (defaults to the OFAC consolidated and SDN feeds)",
		},
		&cli.StringFlag{
			Name:    "pid-file",
			Value:   config.DefaultPidFile,
			EnvVars: []string{"PID_FILE"},
			Usage:   "Path of the pid file; empty disables it",
		},
		&cli.StringFlag{
			Name:    "status-addr",
			EnvVars: []string{"STATUS_ADDR"},
			Usage:   "Address of the status HTTP server in daemon mode; empty disables it",
		},
		&cli.DurationFlag{
			Name:    "update-interval",
			Value:   scheduler.DefaultUpdateInterval,
			EnvVars: []string{"UPDATE_INTERVAL"},
			Usage:   "Time between subsequent update cycles in daemon mode",
		},
		&cli.DurationFlag{
			Name:    "http-timeout",
			Value:   config.DefaultHTTPTimeout,
			EnvVars: []string{"HTTP_TIMEOUT"},
			Usage:   "Timeout of every feed request",
		},
		&cli.BoolFlag{
			Name:    "persist-per-feed",
			Value:   true,
			EnvVars: []string{"PERSIST_PER_FEED"},
			Usage:   "Save the watermarks after every successful rebuild as well as at the end of each cycle",
		},
	}

	app.Action = execute

	return app
}

func configFromFlags(appCtx *cli.Context) (config.Config, error) {
	_, debugEnv := os.LookupEnv("DEBUG")

	cfg := config.Config{
		Environment:    appCtx.String("app-env"),
		Debug:          appCtx.Bool("debug") || debugEnv,
		ESHost:         appCtx.String("es-host"),
		IndexURI:       appCtx.String("index-uri"),
		WatermarkURI:   appCtx.String("watermark-uri"),
		MappingFile:    appCtx.String("mapping-file"),
		FeedsFile:      appCtx.String("feeds-file"),
		PidFile:        appCtx.String("pid-file"),
		StatusAddr:     appCtx.String("status-addr"),
		UpdateInterval: appCtx.Duration("update-interval"),
		HTTPTimeout:    appCtx.Duration("http-timeout"),
		PersistPerFeed: appCtx.Bool("persist-per-feed"),
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	return cfg, nil
}
