package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"masjid/internal/amqp"
	"masjid/internal/ledger"
	"masjid/internal/ledger/memory"
	"masjid/internal/log"
	"masjid/internal/services"
	"masjid/internal/storage"
)

// SeedFile is the legacy export loaded by the memory backend.
const SeedFile = "seed.json"

// DefaultFactory implements the Factory interface.
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger.With(log.FieldComponent, log.ComponentBackend)}
}

// CreateBackend opens the configured store and, when configured, the AMQP
// client. A messaging failure is logged and the backend runs without it.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store   ledger.Store
		cleanup []func() error
	)
	switch config.Type {
	case SQLiteBackend:
		tree, err := storage.NewTreeStore(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		store = tree
		cleanup = append(cleanup, tree.Close)
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		dataDir := config.DataDirectory
		if dataDir == "" {
			dataDir = "data"
		}
		mem, err := memory.NewFromFile(filepath.Join(dataDir, SeedFile))
		if err != nil {
			return nil, fmt.Errorf("failed to load memory seed: %w", err)
		}
		store = mem
		f.logger.InfoContext(ctx, "Initialized memory backend", "data_directory", dataDir)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	var (
		client    *amqp.Client
		publisher services.Publisher
	)
	if config.AMQPURL != "" {
		c, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without summary sync",
				log.FieldError, err)
		} else {
			client, publisher = c, c
			cleanup = append(cleanup, c.Close)
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	l := ledger.New(store)
	return &BackendResult{
		Store:   store,
		Ledger:  l,
		Balance: services.NewBalanceService(l, publisher),
		AMQP:    client,
		Cleanup: func() error {
			var errs []error
			for i := len(cleanup) - 1; i >= 0; i-- {
				errs = append(errs, cleanup[i]())
			}
			return errors.Join(errs...)
		},
	}, nil
}
