// Package configcmder provides the config command for managing persistent
// pantry configuration stored in the .pantry/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent pantry configuration.

Configuration is stored as config.toml in the .pantry/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values.

Keys use dotted notation matching the TOML section structure:
  storage.provider, storage.sqlite_path, storage.postgres_dsn,
  api.listen,
  vector.provider, vector.sqlite_path, vector.qdrant_host, vector.qdrant_port,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  interpreter.provider, interpreter.target, interpreter.model,
  ranking.description_weight, ranking.ingredient_weight, ranking.search_k,
  session.exclude_basket_substitutes,
  sale.coverage_threshold, sale.top_n,
  events.provider, events.brokers, events.topic

Use subcommands to get, set, or list configuration values:
  pantry config set <key> <value>    Set a configuration value
  pantry config get <key>            Get a configuration value
  pantry config list                 List all configuration values

Examples:
  pantry config set storage.provider postgres
  pantry config set embedding.model nomic-embed-text
  pantry config get interpreter.provider
  pantry config list`

const configShortDesc string = "Manage persistent pantry configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
