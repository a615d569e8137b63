package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/ladleworks/pantry/pkg/dotdir"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the PANTRY_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (PANTRY_API_LISTEN, PANTRY_EMBEDDING_TARGET, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: PANTRY_API_LISTEN, PANTRY_EMBEDDING_MODEL, etc.
	v.SetEnvPrefix("PANTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Storage
	v.SetDefault("storage.provider", d.Storage.Provider)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Vector
	v.SetDefault("vector.provider", d.Vector.Provider)
	v.SetDefault("vector.sqlite_path", d.Vector.SQLitePath)
	v.SetDefault("vector.qdrant_host", d.Vector.QdrantHost)
	v.SetDefault("vector.qdrant_port", d.Vector.QdrantPort)

	// Embedding
	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.target", d.Embedding.Target)
	v.SetDefault("embedding.model", d.Embedding.Model)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.api_key", d.Embedding.APIKey)

	// Interpreter
	v.SetDefault("interpreter.provider", d.Interpreter.Provider)
	v.SetDefault("interpreter.target", d.Interpreter.Target)
	v.SetDefault("interpreter.model", d.Interpreter.Model)
	v.SetDefault("interpreter.api_key", d.Interpreter.APIKey)

	// Ranking
	v.SetDefault("ranking.description_weight", d.Ranking.DescriptionWeight)
	v.SetDefault("ranking.ingredient_weight", d.Ranking.IngredientWeight)
	v.SetDefault("ranking.search_k", d.Ranking.SearchK)

	// Session
	v.SetDefault("session.exclude_basket_substitutes", d.Session.ExcludeBasketSubstitutes)

	// Sale
	v.SetDefault("sale.coverage_threshold", d.Sale.CoverageThreshold)
	v.SetDefault("sale.top_n", d.Sale.TopN)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
}
