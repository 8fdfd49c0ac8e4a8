// Package commands holds the marabou command line.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/golangast/marabou/internal/config"
	"github.com/golangast/marabou/internal/logger"
)

// app carries what every subcommand needs after flag parsing.
type app struct {
	configPath string
	cfg        *config.Config
	log        *zap.Logger
}

// NewRootCommand builds the marabou command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "marabou",
		Short:         "Train and serve sentiment and named-entity models",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log, err := logger.NewLogger(&cfg.Log)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			a.cfg, a.log = cfg, log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default: config.yaml in ., ./configs or $MARABOU_HOME)")
	root.AddCommand(newTrainCommand(a), newServeCommand(a), newPredictCommand(a))
	return root
}
