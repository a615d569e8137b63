// Package qdrantidx provides a Qdrant-backed vector index over gRPC.
//
// Each semantic category maps to one collection configured for dot-product
// distance. Entity ids are arbitrary strings while Qdrant point ids must be
// UUIDs, so points carry a deterministic UUIDv5 derived from the entity id
// and keep the original id in the payload.
package qdrantidx

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"github.com/ladleworks/pantry/pkg/vector"
)

const payloadEntityID = "entity_id"

// Index implements vector.Index against a remote Qdrant instance.
type Index struct {
	client     *qdrant.Client
	collection string
	dimensions int
	logger     *zap.Logger
}

// Config holds configuration for the Qdrant index.
type Config struct {
	// Host is the Qdrant gRPC host (e.g. "localhost").
	Host string

	// Port is the Qdrant gRPC port (6334 by default).
	Port int

	// Collection is the collection backing this index.
	Collection string

	// Dimensions is the fixed embedding dimension for this index.
	Dimensions int
}

// NewIndex creates a new Qdrant-backed index, creating the collection when it
// does not exist yet.
func NewIndex(ctx context.Context, c Config, logger *zap.Logger) (*Index, error) {
	if c.Collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if c.Dimensions <= 0 {
		return nil, fmt.Errorf("qdrant embedding dimensions cannot be 0, must be configured")
	}

	port := c.Port
	if port == 0 {
		port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: c.Host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vector.ErrConnection, err)
	}

	exists, err := client.CollectionExists(ctx, c.Collection)
	if err != nil {
		return nil, fmt.Errorf("%w: checking collection: %v", vector.ErrConnection, err)
	}

	if !exists {
		err = client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: c.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(c.Dimensions),
				Distance: qdrant.Distance_Dot,
			}),
		})
		if err != nil {
			return nil, fmt.Errorf("creating collection %s: %w", c.Collection, err)
		}
	}

	logger.Info("qdrant index initialized",
		zap.String("collection", c.Collection),
		zap.Int("dimensions", c.Dimensions),
	)

	return &Index{
		client:     client,
		collection: c.Collection,
		dimensions: c.Dimensions,
		logger:     logger.With(zap.String("collection", c.Collection)),
	}, nil
}

// pointID derives the deterministic Qdrant point id for an entity id.
func pointID(id string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String())
}

// Upsert stores an embedding under id, replacing any prior entry.
func (x *Index) Upsert(ctx context.Context, id string, embedding []float32) error {
	if err := vector.ValidateUnit(embedding, x.dimensions); err != nil {
		return err
	}

	_, err := x.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: x.collection,
		Points: []*qdrant.PointStruct{
			{
				Id:      pointID(id),
				Vectors: qdrant.NewVectors(embedding...),
				Payload: qdrant.NewValueMap(map[string]any{payloadEntityID: id}),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("upserting point %s: %w", id, err)
	}

	x.logger.Debug("upserted vector", zap.String("id", id))

	return nil
}

// Remove deletes the entry for id. Absent ids are a no-op.
func (x *Index) Remove(ctx context.Context, id string) error {
	_, err := x.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: x.collection,
		Points:         qdrant.NewPointsSelector(pointID(id)),
	})
	if err != nil {
		return fmt.Errorf("deleting point %s: %w", id, err)
	}

	return nil
}

// Query returns up to k entries by descending dot product, ties broken by
// ascending id.
func (x *Index) Query(ctx context.Context, embedding []float32, k int) ([]vector.Result, error) {
	if err := vector.ValidateUnit(embedding, x.dimensions); err != nil {
		return nil, err
	}

	if k <= 0 {
		return nil, nil
	}

	points, err := x.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: x.collection,
		Query:          qdrant.NewQuery(embedding...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	results := make([]vector.Result, 0, len(points))
	for _, p := range points {
		id := p.GetPayload()[payloadEntityID].GetStringValue()
		if id == "" {
			continue
		}

		results = append(results, vector.Result{
			ID:    id,
			Score: p.GetScore(),
		})
	}

	// Qdrant orders by score only; re-sort to pin the id tie-break.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	return results, nil
}

// Size returns the number of stored entries.
func (x *Index) Size(ctx context.Context) (int, error) {
	count, err := x.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: x.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}

	return int(count), nil
}

// Close releases resources held by the index.
func (x *Index) Close() error {
	return x.client.Close()
}

var _ vector.Index = (*Index)(nil)
