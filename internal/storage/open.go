package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nikolayrodzhev/mapty/internal/config"
)

// KV is a string key-value store. Every backend in this package implements it.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

var (
	_ KV = (*DB)(nil)
	_ KV = (*SQLite)(nil)
	_ KV = (*Memory)(nil)
)

// Open connects the backend selected by cfg.Driver. PostgreSQL migrations
// are applied before connecting.
func Open(ctx context.Context, cfg config.StorageConfig, log *slog.Logger) (KV, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		log.Warn("using in-memory storage; workouts are lost on exit")
		return NewMemory(), nil
	case config.DriverSQLite:
		s, err := OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		log.Info("sqlite storage opened", "path", cfg.Path)
		return s, nil
	case config.DriverPostgres:
		dsn := cfg.Database.DSN()
		if err := RunMigrations(dsn, cfg.Migrations); err != nil {
			return nil, err
		}
		log.Info("migrations applied")
		db, err := New(ctx, dsn)
		if err != nil {
			return nil, err
		}
		log.Info("database connected", "host", cfg.Database.Host, "name", cfg.Database.Name)
		return db, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
