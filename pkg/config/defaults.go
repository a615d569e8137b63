package config

const (
	defaultStorageProvider = "sqlite"
	defaultSQLitePath      = "pantry.db"

	defaultAPIListen = ":8080"

	defaultVectorProvider   = "sqlite"
	defaultVectorSQLitePath = "vectors.db"
	defaultQdrantHost       = "localhost"
	defaultQdrantPort       = 6334

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768

	defaultInterpreterProvider = "keyword"
	defaultInterpreterModel    = "gpt-4o-mini"

	defaultDescriptionWeight = 0.7
	defaultIngredientWeight  = 0.3
	defaultSearchK           = 5

	defaultCoverageThreshold = 0.5
	defaultTopN              = 5

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "pantry.sale.targeting"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Provider:   defaultStorageProvider,
			SQLitePath: defaultSQLitePath,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Vector: VectorConfig{
			Provider:   defaultVectorProvider,
			SQLitePath: defaultVectorSQLitePath,
			QdrantHost: defaultQdrantHost,
			QdrantPort: defaultQdrantPort,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Interpreter: InterpreterConfig{
			Provider: defaultInterpreterProvider,
			Model:    defaultInterpreterModel,
		},
		Ranking: RankingConfig{
			DescriptionWeight: defaultDescriptionWeight,
			IngredientWeight:  defaultIngredientWeight,
			SearchK:           defaultSearchK,
		},
		Sale: SaleConfig{
			CoverageThreshold: defaultCoverageThreshold,
			TopN:              defaultTopN,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
	}
}
