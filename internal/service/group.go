package service

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// Service describes a long-running component of the synchronizer daemon.
type Service interface {
	// Name returns the name of the service.
	Name() string

	// Run executes the service and blocks until the context gets cancelled
	// or an error occurs.
	Run(context.Context) error
}

// Error reports the failure of a group member.
type Error struct {
	Service string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Service, e.Err) }

// Unwrap returns the error reported by the service.
func (e *Error) Unwrap() error { return e.Err }

// Group runs the services of the daemon side by side. The group shuts down
// as soon as any member returns, with or without an error.
type Group struct {
	services []Service
	logger   *logrus.Entry
}

// NewGroup returns a group running services. If logger is nil, an
// output-discarding logger is used instead.
func NewGroup(logger *logrus.Entry, services ...Service) *Group {
	if logger == nil {
		logger = logrus.NewEntry(&logrus.Logger{Out: io.Discard})
	}

	return &Group{services: services, logger: logger}
}

// Add appends s to the group. It must not be called once Execute runs.
func (g *Group) Add(s Service) {
	g.services = append(g.services, s)
}

// Len returns the number of services in the group.
func (g *Group) Len() int { return len(g.services) }

// Execute runs all services using the provided context and blocks until
// every one of them returned. Failures, including panics, are reported as
// *Error values aggregated in a multierror.
func (g *Group) Execute(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	executionCtx, cancelFn := context.WithCancel(ctx)
	defer cancelFn()

	var wg sync.WaitGroup
	wg.Add(len(g.services))
	errChan := make(chan error, len(g.services))

	for _, s := range g.services {
		go func(s Service) {
			defer wg.Done()
			defer cancelFn()

			logger := g.logger.WithField("service", s.Name())
			logger.Info("service started")

			if err := run(executionCtx, s); err != nil {
				logger.WithField("err", err).Error("service failed")
				errChan <- &Error{Service: s.Name(), Err: err}

				return
			}

			logger.Info("service exited")
		}(s)
	}

	wg.Wait()
	close(errChan)

	var err error
	for srvErr := range errChan {
		err = multierror.Append(err, srvErr)
	}

	return err
}

func run(ctx context.Context, s Service) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return s.Run(ctx)
}
