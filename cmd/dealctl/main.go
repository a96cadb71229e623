// Command dealctl runs operator tasks against the deal engine database:
// number sequence maintenance, token issuing, catalog sync and storage sweeps.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/straye-as/deal-engine/internal/config"
	"github.com/straye-as/deal-engine/internal/logger"
	"go.uber.org/zap"
)

var (
	cfg *config.Config
	log *zap.Logger

	rootCmd = &cobra.Command{
		Use:           "dealctl",
		Short:         "Operator tooling for the deal engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.LoadWithSecrets(cmd.Context(), zap.NewNop())
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log, err = logger.NewLogger(&cfg.Logging, &cfg.App)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if log != nil {
				_ = log.Sync()
			}
		},
	}
)

func init() {
	rootCmd.AddCommand(newSequenceCmd())
	rootCmd.AddCommand(newTokenCmd())
	rootCmd.AddCommand(newCatalogCmd())
	rootCmd.AddCommand(newCleanupCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
