package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent pantry configuration stored as config.toml
// in the .pantry/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	API         APIConfig         `toml:"api"`
	Vector      VectorConfig      `toml:"vector"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Interpreter InterpreterConfig `toml:"interpreter"`
	Ranking     RankingConfig     `toml:"ranking"`
	Session     SessionConfig     `toml:"session"`
	Sale        SaleConfig        `toml:"sale"`
	Events      EventsConfig      `toml:"events"`
}

// StorageConfig holds catalog storage settings.
type StorageConfig struct {
	Provider    string `toml:"provider,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// VectorConfig holds vector index settings.
type VectorConfig struct {
	Provider   string `toml:"provider,omitempty"`
	SQLitePath string `toml:"sqlite_path,omitempty"`
	QdrantHost string `toml:"qdrant_host,omitempty"`
	QdrantPort int    `toml:"qdrant_port,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
	APIKey     string `toml:"api_key,omitempty"`
}

// InterpreterConfig holds intent interpreter settings.
type InterpreterConfig struct {
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Model    string `toml:"model,omitempty"`
	APIKey   string `toml:"api_key,omitempty"`
}

// RankingConfig holds search re-ranking weights. The weights blend meal
// description similarity with mean ingredient similarity.
type RankingConfig struct {
	DescriptionWeight float64 `toml:"description_weight,omitempty"`
	IngredientWeight  float64 `toml:"ingredient_weight,omitempty"`
	SearchK           int     `toml:"search_k,omitempty"`
}

// SessionConfig holds session behavior settings.
type SessionConfig struct {
	ExcludeBasketSubstitutes bool `toml:"exclude_basket_substitutes,omitempty"`
}

// SaleConfig holds sale targeting defaults.
type SaleConfig struct {
	CoverageThreshold float64 `toml:"coverage_threshold,omitempty"`
	TopN              int     `toml:"top_n,omitempty"`
}

// EventsConfig holds event stream settings. Brokers is comma-separated.
type EventsConfig struct {
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.provider": {
		get: func(c *Config) string { return c.Storage.Provider },
		set: func(c *Config, v string) error { c.Storage.Provider = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"vector.provider": {
		get: func(c *Config) string { return c.Vector.Provider },
		set: func(c *Config, v string) error { c.Vector.Provider = v; return nil },
	},
	"vector.sqlite_path": {
		get: func(c *Config) string { return c.Vector.SQLitePath },
		set: func(c *Config, v string) error { c.Vector.SQLitePath = v; return nil },
	},
	"vector.qdrant_host": {
		get: func(c *Config) string { return c.Vector.QdrantHost },
		set: func(c *Config, v string) error { c.Vector.QdrantHost = v; return nil },
	},
	"vector.qdrant_port": {
		get: func(c *Config) string {
			if c.Vector.QdrantPort == 0 {
				return ""
			}
			return strconv.Itoa(c.Vector.QdrantPort)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for vector.qdrant_port: %w", err)
			}
			c.Vector.QdrantPort = n
			return nil
		},
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"interpreter.provider": {
		get: func(c *Config) string { return c.Interpreter.Provider },
		set: func(c *Config, v string) error { c.Interpreter.Provider = v; return nil },
	},
	"interpreter.target": {
		get: func(c *Config) string { return c.Interpreter.Target },
		set: func(c *Config, v string) error { c.Interpreter.Target = v; return nil },
	},
	"interpreter.model": {
		get: func(c *Config) string { return c.Interpreter.Model },
		set: func(c *Config, v string) error { c.Interpreter.Model = v; return nil },
	},
	"ranking.description_weight": {
		get: func(c *Config) string { return formatFloat(c.Ranking.DescriptionWeight) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for ranking.description_weight: %w", err)
			}
			c.Ranking.DescriptionWeight = f
			return nil
		},
	},
	"ranking.ingredient_weight": {
		get: func(c *Config) string { return formatFloat(c.Ranking.IngredientWeight) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for ranking.ingredient_weight: %w", err)
			}
			c.Ranking.IngredientWeight = f
			return nil
		},
	},
	"ranking.search_k": {
		get: func(c *Config) string {
			if c.Ranking.SearchK == 0 {
				return ""
			}
			return strconv.Itoa(c.Ranking.SearchK)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for ranking.search_k: %w", err)
			}
			c.Ranking.SearchK = n
			return nil
		},
	},
	"session.exclude_basket_substitutes": {
		get: func(c *Config) string { return strconv.FormatBool(c.Session.ExcludeBasketSubstitutes) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for session.exclude_basket_substitutes: %w", err)
			}
			c.Session.ExcludeBasketSubstitutes = b
			return nil
		},
	},
	"sale.coverage_threshold": {
		get: func(c *Config) string { return formatFloat(c.Sale.CoverageThreshold) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for sale.coverage_threshold: %w", err)
			}
			c.Sale.CoverageThreshold = f
			return nil
		},
	},
	"sale.top_n": {
		get: func(c *Config) string {
			if c.Sale.TopN == 0 {
				return ""
			}
			return strconv.Itoa(c.Sale.TopN)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid value for sale.top_n: %w", err)
			}
			c.Sale.TopN = n
			return nil
		},
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error { c.Events.Provider = v; return nil },
	},
	"events.brokers": {
		get: func(c *Config) string { return c.Events.Brokers },
		set: func(c *Config, v string) error { c.Events.Brokers = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}

func formatFloat(f float64) string {
	if f == 0 {
		return ""
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
