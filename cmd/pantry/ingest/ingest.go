// Package ingestcmder provides the ingest command for seeding the catalog
// from TheMealDB.
package ingestcmder

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ladleworks/pantry/pkg/catalog"
	catalogutils "github.com/ladleworks/pantry/pkg/catalog/utils"
	"github.com/ladleworks/pantry/pkg/cliui"
	"github.com/ladleworks/pantry/pkg/config"
	"github.com/ladleworks/pantry/pkg/embeddings"
	embeddingutils "github.com/ladleworks/pantry/pkg/embeddings/utils"
	"github.com/ladleworks/pantry/pkg/ingest"
	"github.com/ladleworks/pantry/pkg/ingest/mealdb"
	"github.com/ladleworks/pantry/pkg/logger"
	vectorutils "github.com/ladleworks/pantry/pkg/vector/utils"
)

const ingestLongDesc string = `Crawl TheMealDB and populate the catalog.

Fetches every meal reachable through the search-by-first-letter endpoint,
stores meals and their ingredients, indexes their embeddings, and seeds one
shop item per ingredient with a deterministic price. A fraction of shop
items can be put on sale for trying out the staff discount flow.

Examples:
  pantry ingest
  pantry ingest --sale-fraction 0.2
  pantry ingest --mealdb-url http://localhost:9000/api/json/v1/1`

const ingestShortDesc string = "Crawl TheMealDB and populate the catalog"

var ingestFlags = config.FlagSet{
	config.FlagStorageProvider: {
		Name: "storage-provider", ViperKey: "storage.provider",
		Description: "Catalog storage backend (memory, sqlite, postgres)",
	},
	config.FlagSQLite: {
		Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path",
		Description: "Path to the catalog SQLite database",
	},
	config.FlagPostgresDSN: {
		Name: "postgres-dsn", ViperKey: "storage.postgres_dsn",
		Description: "Postgres connection string for the catalog",
	},
	config.FlagVectorProvider: {
		Name: "vector-provider", ViperKey: "vector.provider",
		Description: "Vector index backend (flat, sqlite, qdrant)",
	},
	config.FlagVectorSQLite: {
		Name: "vector-sqlite", ViperKey: "vector.sqlite_path",
		Description: "Path to the vector SQLite database",
	},
	config.FlagEmbeddingProv: {
		Name: "embedding-provider", ViperKey: "embedding.provider",
		Description: "Embedding provider (ollama, openai)",
	},
	config.FlagEmbeddingTgt: {
		Name: "embedding-target", ViperKey: "embedding.target",
		Description: "Embedding provider base URL",
	},
	config.FlagEmbeddingModel: {
		Name: "embedding-model", ViperKey: "embedding.model",
		Description: "Embedding model name",
	},
	config.FlagEmbeddingDims: {
		Name: "embedding-dimensions", ViperKey: "embedding.dimensions",
		Description: "Embedding dimensions",
	},
}

var ingestFlagKeys = []string{
	config.FlagStorageProvider,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagVectorProvider,
	config.FlagVectorSQLite,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
}

type ingestCommander struct {
	debug     bool
	configDir string

	storageProv    string
	sqlitePath     string
	postgresDSN    string
	vectorProv     string
	vectorSQLite   string
	embeddingProv  string
	embeddingTgt   string
	embeddingModel string
	embeddingDims  uint

	mealdbURL    string
	throttle     time.Duration
	saleFraction float64
	saleDiscount float64

	logger *zap.Logger
}

func NewIngestCmd() *cobra.Command {
	cmder := &ingestCommander{}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.configDir, err = cmd.Flags().GetString("config-dir")
			if err != nil {
				return fmt.Errorf("could not get config-dir flag: %w", err)
			}

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, ingestFlags, ingestFlagKeys)

			return cmder.run(cmd.Context(), v)
		},
	}

	config.AddStringFlag(cmd, ingestFlags, config.FlagStorageProvider, &cmder.storageProv)
	config.AddStringFlag(cmd, ingestFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, ingestFlags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, ingestFlags, config.FlagVectorProvider, &cmder.vectorProv)
	config.AddStringFlag(cmd, ingestFlags, config.FlagVectorSQLite, &cmder.vectorSQLite)
	config.AddStringFlag(cmd, ingestFlags, config.FlagEmbeddingProv, &cmder.embeddingProv)
	config.AddStringFlag(cmd, ingestFlags, config.FlagEmbeddingTgt, &cmder.embeddingTgt)
	config.AddStringFlag(cmd, ingestFlags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, ingestFlags, config.FlagEmbeddingDims, &cmder.embeddingDims)

	cmd.Flags().StringVar(&cmder.mealdbURL, "mealdb-url", mealdb.DefaultBaseURL, "TheMealDB API base URL")
	cmd.Flags().DurationVar(&cmder.throttle, "throttle", mealdb.DefaultThrottle, "Delay between crawl requests")
	cmd.Flags().Float64Var(&cmder.saleFraction, "sale-fraction", 0, "Fraction of shop items to seed on sale (0 to 1)")
	cmd.Flags().Float64Var(&cmder.saleDiscount, "sale-discount", 0.25, "Discount applied to seeded sale items")

	return cmd
}

func (c *ingestCommander) run(ctx context.Context, v *viper.Viper) error {
	if c.saleFraction < 0 || c.saleFraction > 1 {
		return fmt.Errorf("sale-fraction must be between 0 and 1")
	}

	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	store, err := catalogutils.NewStore(ctx, &catalogutils.NewStoreOpts{
		ProviderType: v.GetString("storage.provider"),
		SQLitePath:   v.GetString("storage.sqlite_path"),
		PostgresDSN:  v.GetString("storage.postgres_dsn"),
		Logger:       c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating catalog store: %w", err)
	}
	defer store.Close()

	registry, err := vectorutils.NewRegistry(ctx, &vectorutils.NewRegistryOpts{
		ProviderType: v.GetString("vector.provider"),
		DBPath:       v.GetString("vector.sqlite_path"),
		Host:         v.GetString("vector.qdrant_host"),
		Port:         v.GetInt("vector.qdrant_port"),
		Dimensions:   v.GetInt("embedding.dimensions"),
		Logger:       c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating vector registry: %w", err)
	}
	defer registry.Close()

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: v.GetString("embedding.provider"),
		TargetURL:    v.GetString("embedding.target"),
		Model:        v.GetString("embedding.model"),
		APIKey:       v.GetString("embedding.api_key"),
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	retrying := embeddings.NewRetrying(embedder, 0, 0)
	defer retrying.Close()

	ingestor, err := ingest.NewIngestor(ingest.NewIngestorOpts{
		Store:    store,
		Registry: registry,
		Embedder: retrying,
		Logger:   c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating ingestor: %w", err)
	}

	client := mealdb.NewClient(mealdb.Config{
		BaseURL:  c.mealdbURL,
		Throttle: c.throttle,
		Logger:   c.logger,
	})

	var meals []*catalog.Meal
	var ingredients []*catalog.Ingredient

	err = cliui.Step(os.Stdout, "Crawling TheMealDB", func() error {
		var err error
		meals, ingredients, err = client.Crawl(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("crawling: %w", err)
	}

	err = cliui.Step(os.Stdout, fmt.Sprintf("Ingesting %d ingredients", len(ingredients)), func() error {
		for _, ing := range ingredients {
			if err := ingestor.IngestIngredient(ctx, ing); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ingesting ingredients: %w", err)
	}

	err = cliui.Step(os.Stdout, fmt.Sprintf("Ingesting %d meals", len(meals)), func() error {
		for _, meal := range meals {
			if err := ingestor.IngestMeal(ctx, meal); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ingesting meals: %w", err)
	}

	var onSale int
	err = cliui.Step(os.Stdout, "Seeding shop items", func() error {
		var err error
		onSale, err = c.seedShopItems(ctx, store, ingredients)
		return err
	})
	if err != nil {
		return fmt.Errorf("seeding shop items: %w", err)
	}

	fmt.Printf("\n  %s Ingested %s meals, %s ingredients, %s shop items on sale\n\n",
		cliui.SuccessMark,
		cliui.ValueStyle.Render(fmt.Sprintf("%d", len(meals))),
		cliui.ValueStyle.Render(fmt.Sprintf("%d", len(ingredients))),
		cliui.ValueStyle.Render(fmt.Sprintf("%d", onSale)),
	)

	return nil
}

// seedShopItems creates one shop item per ingredient. Prices and sale picks
// derive from an fnv hash of the ingredient id so re-running ingest yields
// the same catalog.
func (c *ingestCommander) seedShopItems(ctx context.Context, store catalog.Store, ingredients []*catalog.Ingredient) (int, error) {
	onSale := 0
	for _, ing := range ingredients {
		h := fnv.New32a()
		_, _ = h.Write([]byte(ing.ID))
		sum := h.Sum32()

		item := &catalog.ShopItem{
			ID:           "item-" + ing.ID,
			IngredientID: ing.ID,
			Price:        0.5 + float64(sum%950)/100,
		}
		if c.saleFraction > 0 && float64(sum%1000) < c.saleFraction*1000 {
			item.Discount = c.saleDiscount
			onSale++
		}

		if err := store.PutShopItem(ctx, item); err != nil {
			return 0, fmt.Errorf("storing shop item for %s: %w", ing.ID, err)
		}
	}

	return onSale, nil
}
