// Package vectorutils constructs vector indexes and registries from provider
// configuration.
package vectorutils

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ladleworks/pantry/pkg/vector"
	"github.com/ladleworks/pantry/pkg/vector/flat"
	"github.com/ladleworks/pantry/pkg/vector/qdrantidx"
	"github.com/ladleworks/pantry/pkg/vector/registry"
	"github.com/ladleworks/pantry/pkg/vector/sqlitevec"
)

type NewRegistryOpts struct {
	// ProviderType selects the index backend: "flat", "sqlite", or "qdrant".
	ProviderType string

	// DBPath is the SQLite database path (sqlite provider only).
	DBPath string

	// Host and Port locate the Qdrant instance (qdrant provider only).
	Host string
	Port int

	// Dimensions is the fixed embedding dimension shared by all categories.
	Dimensions int

	Logger *zap.Logger
}

// NewRegistry builds one index per category on the configured backend and
// wraps them in a registry.
func NewRegistry(ctx context.Context, o *NewRegistryOpts) (*registry.Registry, error) {
	indexes := make(map[registry.Category]vector.Index, len(registry.Categories()))

	for _, cat := range registry.Categories() {
		idx, err := newIndex(ctx, o, cat)
		if err != nil {
			// Close whatever was already opened.
			for _, open := range indexes {
				open.Close()
			}
			return nil, fmt.Errorf("building %s index: %w", cat, err)
		}
		indexes[cat] = idx
	}

	return registry.New(indexes, o.Logger)
}

func newIndex(ctx context.Context, o *NewRegistryOpts, cat registry.Category) (vector.Index, error) {
	switch o.ProviderType {
	case "flat":
		return flat.NewIndex(flat.Config{
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "sqlite":
		return sqlitevec.NewIndex(sqlitevec.Config{
			DBPath:     o.DBPath,
			Table:      string(cat),
			Dimensions: o.Dimensions,
		}, o.Logger)
	case "qdrant":
		return qdrantidx.NewIndex(ctx, qdrantidx.Config{
			Host:       o.Host,
			Port:       o.Port,
			Collection: string(cat),
			Dimensions: o.Dimensions,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported vector index provider: %s", o.ProviderType)
	}
}
