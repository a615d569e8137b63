// Package sqlitevec provides a SQLite-backed vector index using sqlite-vec.
//
// Entries survive restarts, which spares a full re-embed of the catalog on
// startup. Stored vectors are unit length (enforced at the upsert boundary),
// so the L2 distance d reported by vec0 maps back to cosine similarity as
// s = 1 - d²/2 and the distance ordering equals exact dot-product ordering.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/ladleworks/pantry/pkg/vector"
)

// Index implements vector.Index using SQLite with sqlite-vec.
type Index struct {
	db         *sql.DB
	table      string
	dimensions int
	logger     *zap.Logger
}

// Config holds configuration for the SQLite vec index.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Table is the logical name for this index, used to derive table names
	// so that several categories can share one database file.
	Table string

	// Dimensions is the fixed embedding dimension for this index.
	Dimensions int
}

// NewIndex creates a new SQLite vector index backed by sqlite-vec.
func NewIndex(c Config, logger *zap.Logger) (*Index, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if c.Table == "" {
		return nil, fmt.Errorf("table name is required")
	}
	if c.Dimensions <= 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	// vec0 virtual tables use integer rowids, so entity ids map through a
	// companion table.
	createIDs := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s_entries (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			entity_id TEXT NOT NULL UNIQUE
		)
	`, c.Table)
	if _, err := db.Exec(createIDs); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating entries table: %w", err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS %s_vectors USING vec0(embedding float[%d])`,
		c.Table, c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	logger.Info("sqlite-vec index initialized",
		zap.String("db_path", c.DBPath),
		zap.String("table", c.Table),
		zap.Int("dimensions", c.Dimensions),
		zap.String("vec_version", vecVersion),
	)

	return &Index{
		db:         db,
		table:      c.Table,
		dimensions: c.Dimensions,
		logger:     logger.With(zap.String("table", c.Table)),
	}, nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

const (
	entriesTableSuffix = "_entries"
	vectorsTableSuffix = "_vectors"
)

func (x *Index) entriesTable() string { return x.table + entriesTableSuffix }
func (x *Index) vectorsTable() string { return x.table + vectorsTableSuffix }

// Upsert stores an embedding under id, replacing any prior entry.
func (x *Index) Upsert(ctx context.Context, id string, embedding []float32) error {
	if err := vector.ValidateUnit(embedding, x.dimensions); err != nil {
		return err
	}

	embBlob := serializeFloat32(embedding)

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var existingRowID int64
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT rowid FROM %s WHERE entity_id = ?`, x.entriesTable()), id,
	).Scan(&existingRowID)

	switch err {
	case nil:
		// Entry exists — replace the embedding via DELETE + INSERT
		// (vec0 does not support UPDATE).
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, x.vectorsTable()), existingRowID,
		); err != nil {
			return fmt.Errorf("deleting old embedding for %s: %w", id, err)
		}

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s(rowid, embedding) VALUES (?, ?)`, x.vectorsTable()),
			existingRowID, embBlob,
		); err != nil {
			return fmt.Errorf("re-inserting embedding for %s: %w", id, err)
		}
	case sql.ErrNoRows:
		// New entry — insert into the id table first to get the rowid.
		result, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s(entity_id) VALUES (?)`, x.entriesTable()), id,
		)
		if err != nil {
			return fmt.Errorf("inserting entry %s: %w", id, err)
		}

		rowID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("getting rowid for %s: %w", id, err)
		}

		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s(rowid, embedding) VALUES (?, ?)`, x.vectorsTable()),
			rowID, embBlob,
		); err != nil {
			return fmt.Errorf("inserting embedding for %s: %w", id, err)
		}
	default:
		return fmt.Errorf("checking for existing entry %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	x.logger.Debug("upserted vector", zap.String("id", id))

	return nil
}

// Remove deletes the entry for id. Absent ids are a no-op.
func (x *Index) Remove(ctx context.Context, id string) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var rowID int64
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT rowid FROM %s WHERE entity_id = ?`, x.entriesTable()), id,
	).Scan(&rowID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("querying rowid for deletion: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, x.vectorsTable()), rowID,
	); err != nil {
		return fmt.Errorf("deleting embedding for %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE rowid = ?`, x.entriesTable()), rowID,
	); err != nil {
		return fmt.Errorf("deleting entry %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Query returns up to k entries by descending cosine similarity, ties broken
// by ascending id.
func (x *Index) Query(ctx context.Context, embedding []float32, k int) ([]vector.Result, error) {
	if err := vector.ValidateUnit(embedding, x.dimensions); err != nil {
		return nil, err
	}

	if k <= 0 {
		return nil, nil
	}

	queryBlob := serializeFloat32(embedding)

	// KNN via vec0 MATCH, joined back for entity ids.
	rows, err := x.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT
			e.entity_id,
			v.distance
		FROM %s v
		INNER JOIN %s e ON e.rowid = v.rowid
		WHERE v.embedding MATCH ?
			AND v.k = ?
		ORDER BY v.distance
	`, x.vectorsTable(), x.entriesTable()), queryBlob, k)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var results []vector.Result
	for rows.Next() {
		var id string
		var distance float64
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}

		// Unit vectors: d² = 2 - 2·cos, so cos = 1 - d²/2.
		results = append(results, vector.Result{
			ID:    id,
			Score: float32(1 - distance*distance/2),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating query results: %w", err)
	}

	// vec0 orders by distance only; re-sort to pin the id tie-break.
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
	var count int
	err := x.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s`, x.entriesTable()),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting entries: %w", err)
	}

	return count, nil
}

// Close releases resources held by the index.
func (x *Index) Close() error {
	return x.db.Close()
}

var _ vector.Index = (*Index)(nil)
