// Package runner manages the lifecycle of long-running services: ordered
// startup, signal handling and graceful reverse-order shutdown.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Service is a unit of work managed by the Runner.
type Service interface {
	// Name identifies the service in logs and errors.
	Name() string

	// Start initializes the service. It must return once the service is
	// ready and must respect context cancellation.
	Start(ctx context.Context) error

	// Stop shuts the service down within the context deadline.
	Stop(ctx context.Context) error
}

// Runner starts services sequentially and stops them in reverse order,
// concurrently, when the context is cancelled or a shutdown signal
// arrives.
type Runner struct {
	services        []Service
	logger          *slog.Logger
	shutdownTimeout time.Duration
	startupTimeout  time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithShutdownTimeout sets the graceful-shutdown deadline. Default 30s.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(r *Runner) { r.shutdownTimeout = timeout }
}

// WithStartupTimeout sets the per-service startup deadline. Default 1m.
func WithStartupTimeout(timeout time.Duration) Option {
	return func(r *Runner) { r.startupTimeout = timeout }
}

// New creates a Runner over the given services.
func New(services []Service, opts ...Option) *Runner {
	r := &Runner{
		services:        services,
		logger:          slog.Default(),
		shutdownTimeout: 30 * time.Second,
		startupTimeout:  time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts all services and blocks until the context is cancelled or a
// shutdown signal is received, then stops them.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		WaitForShutdownSignal()
		r.logger.Info("shutdown signal received")
		cancel()
	}()

	r.logger.Info("starting services", "count", len(r.services))
	var started []Service

	for _, service := range r.services {
		startCtx, startCancel := context.WithTimeout(ctx, r.startupTimeout)
		err := service.Start(startCtx)
		startCancel()

		if err != nil {
			r.logger.Error("failed to start service", "service", service.Name(), "error", err)
			r.stopServices(started)
			return fmt.Errorf("start service %s: %w", service.Name(), err)
		}

		started = append(started, service)
		r.logger.Info("service started", "service", service.Name())
	}

	<-ctx.Done()

	r.logger.Info("shutting down services", "timeout", r.shutdownTimeout)
	return r.stopServices(started)
}

func (r *Runner) stopServices(services []Service) error {
	if len(services) == 0 {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), r.shutdownTimeout)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, len(services))

	for i := len(services) - 1; i >= 0; i-- {
		service := services[i]
		wg.Add(1)
		go func(svc Service) {
			defer wg.Done()
			if err := svc.Stop(shutdownCtx); err != nil {
				r.logger.Error("error stopping service", "service", svc.Name(), "error", err)
				errCh <- fmt.Errorf("stop %s: %w", svc.Name(), err)
				return
			}
			r.logger.Info("service stopped", "service", svc.Name())
		}(service)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		close(errCh)
		for err := range errCh {
			if err != nil {
				return err
			}
		}
		return nil
	case <-shutdownCtx.Done():
		r.logger.Error("shutdown timeout exceeded", "timeout", r.shutdownTimeout)
		return fmt.Errorf("shutdown timeout exceeded")
	}
}
