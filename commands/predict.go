package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/golangast/marabou/internal/service"
)

func newPredictCommand(a *app) *cobra.Command {
	var modelsDir string
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Run a saved model on texts given as arguments",
	}
	cmd.PersistentFlags().StringVar(&modelsDir, "models", "", "artifact directory (default: paths.trained_models)")
	dir := func() string {
		if modelsDir != "" {
			return modelsDir
		}
		return a.cfg.Paths.TrainedModels
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "sentiment <text...>",
		Short: "Score the sentiment of each text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := service.LoadSentiment(cmd.Context(), dir())
			if err != nil {
				return err
			}
			res, err := service.NewSentimentService(m, nil, nil, a.log).Predict(cmd.Context(), args)
			if err != nil {
				return err
			}
			for _, r := range res {
				fmt.Fprintf(cmd.OutOrStdout(), "%6.2f  %-8s  %s\n", r.Score, r.Label, r.Text)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "ner <text...>",
		Short: "Tag the named entities of each text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := service.LoadEntities(cmd.Context(), dir())
			if err != nil {
				return err
			}
			res, err := service.NewEntityService(m, nil, nil, a.log).Predict(cmd.Context(), args)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), res.Visualization)
			return nil
		},
	})
	return cmd
}
