package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/golangast/marabou/internal/dataset"
	"github.com/golangast/marabou/internal/report"
	"github.com/golangast/marabou/tagger/nertagger"
	"github.com/golangast/marabou/tagger/sentiment"
)

func newTrainCommand(a *app) *cobra.Command {
	var datasetPath string
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model and save its artifacts",
	}
	cmd.PersistentFlags().StringVar(&datasetPath, "dataset", "", "training CSV (overrides the configured dataset)")

	cmd.AddCommand(&cobra.Command{
		Use:   "sentiment",
		Short: "Train the sentiment classifier on a review,sentiment CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Sentiment
			if datasetPath != "" {
				cfg.Dataset = datasetPath
			}
			data, err := dataset.LoadSentimentCSV(cfg.Dataset)
			if err != nil {
				return fmt.Errorf("load dataset: %w", err)
			}
			a.log.Info("dataset loaded", zap.String("path", cfg.Dataset), zap.Int("reviews", len(data.Texts)))
			res, err := sentiment.Train(cmd.Context(), cfg, a.cfg.Paths, data.Texts, data.Labels, time.Now(), a.log)
			if err != nil {
				return err
			}
			printResult(cmd, res.Artifact.Prefix, res.Report)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "ner",
		Short: "Train the entity tagger on a GMB-format CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.NER
			if datasetPath != "" {
				cfg.Dataset = datasetPath
			}
			data, err := dataset.LoadNERCSV(cfg.Dataset)
			if err != nil {
				return fmt.Errorf("load dataset: %w", err)
			}
			a.log.Info("dataset loaded", zap.String("path", cfg.Dataset), zap.Int("sentences", len(data.Sentences)))
			res, err := nertagger.Train(cmd.Context(), cfg, a.cfg.Paths, data.Sentences, data.Tags, time.Now(), a.log)
			if err != nil {
				return err
			}
			printResult(cmd, res.Artifact.Prefix, res.Report)
			return nil
		},
	})
	return cmd
}

func printResult(cmd *cobra.Command, prefix string, rep *report.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "saved %s\n", prefix)
	if rep != nil {
		_ = rep.WriteText(out)
	}
}
