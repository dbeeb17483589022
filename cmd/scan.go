package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one ingestion pass over the configured feeds",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return scan(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().Int("concurrency", 0, "number of feeds processed at once (default from config)")
	scanCmd.Flags().Int("threshold", 0, "score a posting has to exceed to be stored, 60 or higher (default from config)")

	viper.BindPFlag("ingest.concurrency", scanCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag("ingest.threshold", scanCmd.Flags().Lookup("threshold"))
}

func scan(ctx context.Context) error {
	e, err := newEnv(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	e.logger.Info("starting the job-radar scan", zap.String("version", version))

	oracle, err := newOracle(ctx, e.config.AI, e.logger)
	if err != nil {
		return fmt.Errorf("building the scoring oracle: %w", err)
	}

	o := newIngest(e.config, oracle, e.store, e.publisher, e.logger)

	result, err := runPass(ctx, e.config, o, e.store, e.logger)
	if err != nil {
		return err
	}

	fmt.Println(result.String())
	return nil
}
