// Package app initializes and holds long-lived application services,
// acting as a dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fintelworks/prospector/internal/archive"
	"github.com/fintelworks/prospector/internal/logging"
	"github.com/fintelworks/prospector/internal/metrics"
	"github.com/fintelworks/prospector/internal/notify"
	"github.com/fintelworks/prospector/internal/notify/memory"
	"github.com/fintelworks/prospector/internal/notify/pubsub"
	"github.com/fintelworks/prospector/internal/storage"
	"github.com/fintelworks/prospector/pkg/config"
)

// App holds the shared, long-lived services for the application: the
// logger, snapshot storage, the optional run archive, and the
// run-completion publisher. It is initialized once at startup.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	storage   storage.Provider
	archiver  archive.Archiver
	publisher notify.Publisher

	pubsubPublisher *pubsub.Publisher
}

// New builds an App from the configuration at cfgPath. It fails fast if
// any configured service cannot be initialized.
func New(ctx context.Context, cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	metrics.Init()

	a := &App{cfg: cfg, logger: logger}

	switch cfg.Storage.Provider {
	case "local":
		a.storage, err = storage.NewLocalProvider(cfg.Storage.LocalDir)
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
	case "memory":
		a.storage = storage.NewMemoryProvider()
	case "gcs":
		logger.Info("using GCS snapshot storage", zap.String("bucket", cfg.Storage.GCSBucket))
		gcs, err := storage.NewGCSProvider(ctx, cfg.Storage.GCSBucket)
		if err != nil {
			return nil, fmt.Errorf("init gcs storage: %w", err)
		}
		a.storage = gcs
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Storage.Provider)
	}

	if cfg.Archive.Enabled {
		logger.Info("connecting run archive")
		store, err := archive.New(ctx, archive.Config{DSN: cfg.Archive.DSN})
		if err != nil {
			return nil, fmt.Errorf("init run archive: %w", err)
		}
		a.archiver = store
	} else {
		a.archiver = archive.Noop{}
	}

	if cfg.Notify.Enabled {
		logger.Info("connecting pub/sub publisher", zap.String("topic", cfg.Notify.TopicName))
		pub, err := pubsub.New(ctx, cfg.Notify.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("init publisher: %w", err)
		}
		a.pubsubPublisher = pub
		a.publisher = pub
	} else {
		a.publisher = memory.New()
	}

	logger.Info("application services initialized")
	return a, nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Storage returns the snapshot persistence provider.
func (a *App) Storage() storage.Provider {
	return a.storage
}

// Archiver returns the run archive.
func (a *App) Archiver() archive.Archiver {
	return a.archiver
}

// Publisher returns the run-completion publisher.
func (a *App) Publisher() notify.Publisher {
	return a.publisher
}

// Close shuts down the services in reverse initialization order.
func (a *App) Close() {
	if a.pubsubPublisher != nil {
		if err := a.pubsubPublisher.Close(); err != nil {
			a.logger.Warn("close publisher", zap.Error(err))
		}
	}
	if a.archiver != nil {
		a.archiver.Close()
	}
	if closer, ok := a.storage.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.logger.Warn("close storage", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
