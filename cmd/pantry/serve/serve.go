// Package servecmder provides the serve command for running the pantry API server.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ladleworks/pantry/api"
	catalogutils "github.com/ladleworks/pantry/pkg/catalog/utils"
	"github.com/ladleworks/pantry/pkg/config"
	"github.com/ladleworks/pantry/pkg/embeddings"
	embeddingutils "github.com/ladleworks/pantry/pkg/embeddings/utils"
	"github.com/ladleworks/pantry/pkg/eventstream"
	"github.com/ladleworks/pantry/pkg/eventstream/kafka"
	"github.com/ladleworks/pantry/pkg/eventstream/nop"
	intentutils "github.com/ladleworks/pantry/pkg/intent/utils"
	"github.com/ladleworks/pantry/pkg/logger"
	"github.com/ladleworks/pantry/pkg/sale"
	"github.com/ladleworks/pantry/pkg/session"
	vectorutils "github.com/ladleworks/pantry/pkg/vector/utils"
	"github.com/ladleworks/pantry/pkg/worker"
)

const serveLongDesc string = `Run the pantry API server.

The server hosts shopper sessions, search and basket turns, and the staff
sale publish endpoint. Configuration is resolved from flags, PANTRY_
environment variables, and config.toml, in that order.

Examples:
  pantry serve
  pantry serve --listen :9090
  pantry serve --storage-provider postgres --postgres-dsn postgres://localhost/pantry`

const serveShortDesc string = "Run the pantry API server"

// serveFlags is the flag registry for the serve command.
var serveFlags = config.FlagSet{
	config.FlagAPIListen: {
		Name: "listen", Shorthand: "l", ViperKey: "api.listen",
		Description: "Address for the API server to listen on",
	},
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
	config.FlagInterpreterProv: {
		Name: "interpreter-provider", ViperKey: "interpreter.provider",
		Description: "Intent interpreter provider (keyword, openai)",
	},
	config.FlagEventsProvider: {
		Name: "events-provider", ViperKey: "events.provider",
		Description: "Sale event publisher (nop, kafka)",
	},
	config.FlagEventsBrokers: {
		Name: "events-brokers", ViperKey: "events.brokers",
		Description: "Comma-separated Kafka broker addresses",
	},
}

var serveFlagKeys = []string{
	config.FlagAPIListen,
	config.FlagStorageProvider,
	config.FlagSQLite,
	config.FlagPostgresDSN,
	config.FlagVectorProvider,
	config.FlagVectorSQLite,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagInterpreterProv,
	config.FlagEventsProvider,
	config.FlagEventsBrokers,
}

type serveCommander struct {
	debug     bool
	configDir string

	listen         string
	storageProv    string
	sqlitePath     string
	postgresDSN    string
	vectorProv     string
	vectorSQLite   string
	embeddingProv  string
	embeddingTgt   string
	embeddingModel string
	embeddingDims  uint
	interpreterPrv string
	eventsProvider string
	eventsBrokers  string

	logger *zap.Logger
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
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
			config.BindRegisteredFlags(v, cmd, serveFlags, serveFlagKeys)

			return cmder.run(cmd.Context(), v)
		},
	}

	config.AddStringFlag(cmd, serveFlags, config.FlagAPIListen, &cmder.listen)
	config.AddStringFlag(cmd, serveFlags, config.FlagStorageProvider, &cmder.storageProv)
	config.AddStringFlag(cmd, serveFlags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, serveFlags, config.FlagPostgresDSN, &cmder.postgresDSN)
	config.AddStringFlag(cmd, serveFlags, config.FlagVectorProvider, &cmder.vectorProv)
	config.AddStringFlag(cmd, serveFlags, config.FlagVectorSQLite, &cmder.vectorSQLite)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingProv, &cmder.embeddingProv)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingTgt, &cmder.embeddingTgt)
	config.AddStringFlag(cmd, serveFlags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, serveFlags, config.FlagEmbeddingDims, &cmder.embeddingDims)
	config.AddStringFlag(cmd, serveFlags, config.FlagInterpreterProv, &cmder.interpreterPrv)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsProvider, &cmder.eventsProvider)
	config.AddStringFlag(cmd, serveFlags, config.FlagEventsBrokers, &cmder.eventsBrokers)

	return cmd
}

func (c *serveCommander) run(ctx context.Context, v *viper.Viper) error {
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
	retrying := embeddings.NewRetrying(embedder, 3, 0)
	defer retrying.Close()

	interpreter, err := intentutils.NewInterpreter(intentutils.NewInterpreterOpts{
		ProviderType: v.GetString("interpreter.provider"),
		BaseURL:      v.GetString("interpreter.target"),
		APIKey:       v.GetString("interpreter.api_key"),
		Model:        v.GetString("interpreter.model"),
	})
	if err != nil {
		return fmt.Errorf("creating interpreter: %w", err)
	}
	defer interpreter.Close()

	publisher, err := c.newPublisher(v)
	if err != nil {
		return err
	}
	defer publisher.Close()

	pool, err := worker.NewPool(&worker.Config{
		Store:    store,
		Registry: registry,
		Embedder: retrying,
		Logger:   c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Close()

	manager, err := session.NewManager(session.NewManagerOpts{
		Config: session.Config{
			SearchK:                  v.GetInt("ranking.search_k"),
			DescriptionWeight:        float32(v.GetFloat64("ranking.description_weight")),
			IngredientWeight:         float32(v.GetFloat64("ranking.ingredient_weight")),
			ExcludeBasketSubstitutes: v.GetBool("session.exclude_basket_substitutes"),
		},
		Store:       store,
		Registry:    registry,
		Embedder:    retrying,
		Interpreter: interpreter,
		Pool:        pool,
		Logger:      c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating session manager: %w", err)
	}
	defer manager.Close()

	engine, err := sale.NewEngine(sale.NewEngineOpts{
		Config: sale.Config{
			CoverageThreshold: v.GetFloat64("sale.coverage_threshold"),
			TopN:              v.GetInt("sale.top_n"),
		},
		Store:     store,
		Registry:  registry,
		Embedder:  retrying,
		Publisher: publisher,
		Logger:    c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating sale engine: %w", err)
	}

	server, err := api.NewServer(api.Config{
		ListenAddr: v.GetString("api.listen"),
	}, store, manager, engine, c.logger)
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}
	defer func() { _ = server.Shutdown() }()

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("api server error: %w", err)
		}
	}()

	stopWatch, err := c.watchConfig(manager)
	if err != nil {
		c.logger.Warn("config watch disabled", zap.Error(err))
	} else {
		defer stopWatch()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *serveCommander) newPublisher(v *viper.Viper) (eventstream.Publisher, error) {
	switch provider := v.GetString("events.provider"); provider {
	case "nop":
		return nop.NewPublisher(), nil
	case "kafka":
		brokers := strings.Split(v.GetString("events.brokers"), ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		return kafka.NewPublisher(kafka.Config{
			Brokers: brokers,
			Topic:   v.GetString("events.topic"),
			Logger:  c.logger,
		})
	default:
		return nil, fmt.Errorf("unsupported events provider: %s", provider)
	}
}

// watchConfig reloads ranking weights when config.toml changes, so weight
// tuning does not require a restart. New sessions pick up the new weights.
func (c *serveCommander) watchConfig(manager *session.Manager) (func(), error) {
	cfger, err := config.NewConfiger(c.configDir)
	if err != nil {
		return nil, err
	}

	target := cfger.GetTarget()
	if target == "" {
		return nil, fmt.Errorf("no config file to watch")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating config watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watching config dir: %w", err)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(target) {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}

				cfg, err := cfger.LoadConfig()
				if err != nil {
					c.logger.Warn("config reload failed", zap.Error(err))
					continue
				}

				manager.UpdateRanking(
					float32(cfg.Ranking.DescriptionWeight),
					float32(cfg.Ranking.IngredientWeight),
					cfg.Ranking.SearchK,
				)
				c.logger.Info("ranking weights reloaded",
					zap.Float64("description_weight", cfg.Ranking.DescriptionWeight),
					zap.Float64("ingredient_weight", cfg.Ranking.IngredientWeight),
					zap.Int("search_k", cfg.Ranking.SearchK),
				)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				c.logger.Warn("config watcher error", zap.Error(err))
			}
		}
	}()

	return func() { _ = watcher.Close() }, nil
}
