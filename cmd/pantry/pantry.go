// Package pantrycmder
package pantrycmder

import (
	"github.com/spf13/cobra"

	configcmder "github.com/ladleworks/pantry/cmd/pantry/config"
	ingestcmder "github.com/ladleworks/pantry/cmd/pantry/ingest"
	servecmder "github.com/ladleworks/pantry/cmd/pantry/serve"
)

const pantryLongDesc string = `Pantry is a conversational meal recommendation and basket engine.

Run services using:
  pantry serve         Run the API server
  pantry ingest        Crawl TheMealDB and populate the catalog
  pantry config        Manage persistent configuration`

const pantryShortDesc string = "Pantry - Meal Recommendation Engine"

func NewPantryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pantry",
		Short: pantryShortDesc,
		Long:  pantryLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory containing the .pantry/ config dir")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())

	return cmd
}
