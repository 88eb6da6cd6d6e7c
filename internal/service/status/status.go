package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	healthEndpoint     = "/healthz"
	watermarksEndpoint = "/watermarks"
	aliasesEndpoint    = "/aliases"
)

// Service is a read-only HTTP view of the synchronizer state. It satisfies
// the service.Service interface.
type Service struct {
	config Config
	router *chi.Mux
}

// New creates and returns a fully configured status service instance.
func New(config Config) (*Service, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("status service: config validation failed: %w", err)
	}

	svc := &Service{
		config: config,
		router: chi.NewRouter(),
	}

	svc.router.Get(healthEndpoint, svc.health)
	svc.router.Get(watermarksEndpoint, svc.watermarks)
	if config.Resolver != nil {
		svc.router.Get(aliasesEndpoint, svc.aliases)
	}

	return svc, nil
}

// Name returns the name of the service.
func (svc *Service) Name() string { return "status" }

// Run executes the service and blocks until the context gets cancelled
// or an error occurs.
func (svc *Service) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", svc.config.ListenAddr)
	if err != nil {
		return err
	}
	defer func() { _ = l.Close() }()

	srv := &http.Server{
		Addr:              svc.config.ListenAddr,
		Handler:           svc.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		_ = srv.Close()
	}()

	svc.config.Logger.WithField("addr", l.Addr().String()).Info("started service")
	defer svc.config.Logger.Info("stopped service")

	if err = srv.Serve(l); err == http.ErrServerClosed {
		// Server closed gracefully.
		err = nil
	}

	return err
}

func (svc *Service) health(w http.ResponseWriter, _ *http.Request) {
	svc.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// watermarks responds with the last applied Last-Modified time of every
// feed, keyed by feed URL.
func (svc *Service) watermarks(w http.ResponseWriter, _ *http.Request) {
	svc.writeJSON(w, http.StatusOK, svc.config.WatermarkAPI.Watermarks())
}

func (svc *Service) aliases(w http.ResponseWriter, r *http.Request) {
	indices, err := svc.config.Resolver.Resolve(r.Context(), svc.config.Alias)
	if err != nil {
		svc.config.Logger.WithField("err", err).Error("unable to resolve alias")
		svc.writeJSON(w, http.StatusBadGateway, map[string]string{"error": "unable to resolve alias"})

		return
	}

	svc.writeJSON(w, http.StatusOK, map[string]interface{}{
		"alias":   svc.config.Alias,
		"indices": indices,
	})
}

func (svc *Service) writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		svc.config.Logger.WithField("err", err).Error("unable to write response")
	}
}
