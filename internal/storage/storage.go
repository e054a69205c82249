// Package storage opens the configured document store backend.
//
// SQLite databases are migrated on open; MongoDB databases get their
// indexes ensured. Either way the caller receives a ready docstore.Store
// and a single Close to release it.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/steamcity/iot-platform/internal/docstore"
	"github.com/steamcity/iot-platform/internal/infrastructure/config"
	"github.com/steamcity/iot-platform/internal/infrastructure/database"
	"github.com/steamcity/iot-platform/internal/infrastructure/mongodb"
	_ "github.com/steamcity/iot-platform/migrations" // registers the SQLite schema
)

// closeTimeout bounds the MongoDB disconnect on Close.
const closeTimeout = 5 * time.Second

// Logger is the logging interface used while opening a store.
type Logger interface {
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}

// Handle is an open store and the connection behind it.
type Handle struct {
	Store  docstore.Store
	Driver string
	close  func() error
}

// Close releases the underlying connection.
func (h *Handle) Close() error {
	if h == nil || h.close == nil {
		return nil
	}
	return h.close()
}

// Open connects to the backend selected by cfg.Driver and prepares its
// schema. A nil logger is allowed.
func Open(ctx context.Context, cfg config.DatabaseConfig, log Logger) (*Handle, error) {
	if log == nil {
		log = noopLogger{}
	}

	switch cfg.Driver {
	case config.DriverSQLite:
		return openSQLite(ctx, cfg.SQLite, log)
	case config.DriverMongoDB:
		return openMongo(ctx, cfg.MongoDB, log)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func openSQLite(ctx context.Context, cfg config.SQLiteConfig, log Logger) (*Handle, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	log.Info("database connected", "driver", config.DriverSQLite, "path", cfg.Path)

	if err := db.Migrate(ctx); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations complete")

	return &Handle{
		Store:  docstore.NewSQLiteStore(db.DB),
		Driver: config.DriverSQLite,
		close:  db.Close,
	}, nil
}

func openMongo(ctx context.Context, cfg config.MongoDBConfig, log Logger) (*Handle, error) {
	client, err := mongodb.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}
	log.Info("database connected", "driver", config.DriverMongoDB, "database", cfg.Name)

	closeClient := func() error {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		return client.Close(closeCtx)
	}

	if err := client.EnsureIndexes(ctx); err != nil {
		closeClient() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("creating indexes: %w", err)
	}
	log.Info("database indexes ensured")

	return &Handle{
		Store:  docstore.NewMongoStore(client.Database()),
		Driver: config.DriverMongoDB,
		close:  closeClient,
	}, nil
}
