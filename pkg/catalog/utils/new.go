// Package catalogutils constructs catalog stores from provider configuration.
package catalogutils

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ladleworks/pantry/pkg/catalog"
	"github.com/ladleworks/pantry/pkg/catalog/inmemory"
	"github.com/ladleworks/pantry/pkg/catalog/postgres"
	"github.com/ladleworks/pantry/pkg/catalog/sqlite"
)

type NewStoreOpts struct {
	// ProviderType selects the backend: "memory", "sqlite", or "postgres".
	ProviderType string

	// SQLitePath is the database path (sqlite provider only).
	SQLitePath string

	// PostgresDSN is the connection string (postgres provider only).
	PostgresDSN string

	Logger *zap.Logger
}

// NewStore builds a catalog store on the configured backend.
func NewStore(ctx context.Context, o *NewStoreOpts) (catalog.Store, error) {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	switch o.ProviderType {
	case "memory":
		logger.Info("using in-memory catalog storage")
		return inmemory.NewStore(), nil
	case "sqlite":
		store, err := sqlite.NewStore(o.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("creating sqlite catalog store: %w", err)
		}
		logger.Info("using SQLite catalog storage", zap.String("path", o.SQLitePath))
		return store, nil
	case "postgres":
		store, err := postgres.NewStore(ctx, o.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("creating postgres catalog store: %w", err)
		}
		logger.Info("using Postgres catalog storage")
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", o.ProviderType)
	}
}
