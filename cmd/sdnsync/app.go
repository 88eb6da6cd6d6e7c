package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/mycok/sdnsync/internal/config"
	"github.com/mycok/sdnsync/internal/feed"
	"github.com/mycok/sdnsync/internal/index"
	"github.com/mycok/sdnsync/internal/scheduler"
	"github.com/mycok/sdnsync/internal/service"
	"github.com/mycok/sdnsync/internal/service/status"
)

func execute(appCtx *cli.Context) error {
	cfg, err := configFromFlags(appCtx)
	if err != nil {
		return err
	}

	if cfg.Debug {
		logger.Logger.SetLevel(logrus.DebugLevel)
	}

	if cfg.PidFile != "" {
		if err := writePidFile(cfg.PidFile); err != nil {
			return err
		}
		defer func() { _ = os.Remove(cfg.PidFile) }()
	}

	app, err := newApp(cfg, logger.WithField("env", cfg.Environment))
	if err != nil {
		return err
	}
	defer app.close()

	ctx, cancelFn := context.WithCancel(appCtx.Context)
	defer cancelFn()

	// Start os signal watcher.
	go func() {
		signalChan := make(chan os.Signal, 1)
		signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(signalChan)

		select {
		case s := <-signalChan:
			logger.WithField("signal", s.String()).Info("shutting down due to signal")
			cancelFn()
		case <-ctx.Done():
		}
	}()

	if appCtx.NArg() > 0 {
		return app.runOnce(ctx)
	}

	return app.runDaemon(ctx, cfg.StatusAddr)
}

// app holds the components of the synchronizer.
type app struct {
	logger    *logrus.Entry
	backend   index.Backend
	scheduler *scheduler.Service
	closers   []io.Closer
	alias     string
}

func newApp(cfg config.Config, logger *logrus.Entry) (*app, error) {
	schema, err := config.LoadSchema(cfg.MappingFile)
	if err != nil {
		return nil, err
	}

	sources, err := config.LoadSources(cfg.FeedsFile)
	if err != nil {
		return nil, err
	}

	a := &app{logger: logger, alias: cfg.AliasName()}

	a.backend, err = config.NewIndexBackend(cfg.IndexBackendURI(), logger)
	if err != nil {
		return nil, err
	}
	a.track(a.backend)

	watermarks, err := config.NewWatermarkStore(cfg.WatermarkURI, logger)
	if err != nil {
		a.close()

		return nil, err
	}
	a.track(watermarks)

	builder, err := index.NewBuilder(index.Config{
		Backend:  a.backend,
		BaseName: cfg.BaseName(),
		Alias:    cfg.AliasName(),
		Schema:   schema,
		Logger:   logger.WithField("component", "index-builder"),
	})
	if err != nil {
		a.close()

		return nil, err
	}

	client := &http.Client{Timeout: cfg.HTTPTimeout}
	a.scheduler, err = scheduler.New(scheduler.Config{
		Sources:        sources,
		Poller:         feed.NewPoller(client),
		Fetcher:        feed.NewFetcher(client),
		Builder:        builder,
		Watermarks:     watermarks,
		UpdateInterval: cfg.UpdateInterval,
		PersistPerFeed: cfg.PersistPerFeed,
		Logger:         logger.WithField("service", "scheduler"),
	})
	if err != nil {
		a.close()

		return nil, err
	}

	return a, nil
}

func (a *app) runOnce(ctx context.Context) error {
	report, err := a.scheduler.RunOnce(ctx)
	for _, res := range report.Results {
		a.logger.WithFields(logrus.Fields{
			"feed":   res.Source.URL,
			"status": res.Status,
		}).Info("feed processed")
	}

	return err
}

func (a *app) runDaemon(ctx context.Context, statusAddr string) error {
	svcGroup := service.NewGroup(a.logger, a.scheduler)

	if statusAddr != "" {
		statusCfg := status.Config{
			ListenAddr:   statusAddr,
			WatermarkAPI: a.scheduler,
			Alias:        a.alias,
			Logger:       a.logger.WithField("service", "status"),
		}
		if resolver, ok := a.backend.(index.Resolver); ok {
			statusCfg.Resolver = resolver
		}

		svc, err := status.New(statusCfg)
		if err != nil {
			return err
		}
		svcGroup.Add(svc)
	}

	if err := svcGroup.Execute(ctx); err != nil {
		return err
	}

	a.logger.Info("shutdown complete")

	return nil
}

func (a *app) track(v interface{}) {
	if c, ok := v.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.WithField("err", err).Warn("failed to release resources")
		}
	}
}

func writePidFile(path string) error {
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}

	return nil
}
