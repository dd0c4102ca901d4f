package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aussiebroadwan/userholder/internal/holder/delivery"
	"github.com/aussiebroadwan/userholder/internal/holder/domain"
	"github.com/aussiebroadwan/userholder/internal/holder/metrics"
	"github.com/aussiebroadwan/userholder/internal/holder/service"
	"github.com/aussiebroadwan/userholder/pkg/cryptox"
	"github.com/aussiebroadwan/userholder/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application owns the registry and the access code dispatcher.
type Application struct {
	cfg    Config
	logger *slog.Logger

	metricsRegistry *prometheus.Registry
	metrics         *metrics.Metrics

	dispatcher *delivery.Dispatcher
	registry   *service.Registry
}

// New builds the application; nothing runs until Run is called.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "userholder",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		metricsRegistry: prometheus.NewRegistry(),
	}
	app.metrics = metrics.New(app.metricsRegistry)

	digest, err := cryptox.DigestByName(cfg.HashAlgorithm)
	if err != nil {
		return nil, fmt.Errorf("invalid hash algorithm: %w", err)
	}

	app.dispatcher = delivery.NewDispatcher(
		delivery.LogGateway{Logger: app.logger},
		delivery.Config{
			QueueSize:  cfg.DeliveryQueue,
			Timeout:    cfg.DeliveryTimeout,
			MaxRetries: cfg.DeliveryRetries,
			PerMinute:  cfg.DeliveryPerMinute,
			Burst:      cfg.DeliveryBurst,
		},
		app.logger,
		app.metrics,
	)

	app.registry = service.NewRegistry(
		domain.Factory{Digest: digest, Sender: app.dispatcher},
		app.metrics,
	)

	return app, nil
}

// Registry exposes the identity registry to in-process callers.
func (app *Application) Registry() *service.Registry { return app.registry }

// Gatherer exposes the collected metrics.
func (app *Application) Gatherer() prometheus.Gatherer { return app.metricsRegistry }

// Run starts the dispatcher, loads the import file if one is configured and
// blocks until ctx is cancelled.
func (app *Application) Run(ctx context.Context) error {
	app.dispatcher.Start()
	app.logger.Info("user holder starting",
		"version", BuildVersion,
		"hash_algorithm", app.cfg.HashAlgorithm,
	)

	if app.cfg.ImportFile != "" {
		if err := app.importFile(ctx, app.cfg.ImportFile); err != nil {
			app.dispatcher.Stop()
			return err
		}
	}

	<-ctx.Done()
	app.logger.Info("shutdown requested", "cause", context.Cause(ctx))
	return app.Shutdown()
}

// Shutdown drains pending access codes, giving up after the grace period.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down user holder...")

	done := make(chan struct{})
	go func() {
		app.dispatcher.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(app.cfg.ShutdownGracePeriod):
		return fmt.Errorf("dispatcher did not drain within %s", app.cfg.ShutdownGracePeriod)
	}

	app.logger.Info("user holder stopped", "users", app.registry.Len())
	return nil
}

func (app *Application) importFile(ctx context.Context, path string) error {
	f, err := os.Open(path) // #nosec G304 - path comes from operator config
	if err != nil {
		return fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()

	ids, err := app.registry.ImportReader(slogx.WithContext(ctx, app.logger), f)
	if err != nil {
		return fmt.Errorf("failed to import %s: %w", path, err)
	}

	app.logger.Info("import file loaded", "path", path, "users", len(ids))
	return nil
}
