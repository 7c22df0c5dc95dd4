package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vectorhash/annlsh/pkg/annlsh"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Report occupancy statistics for the configured index",
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			cleanup, err := setupLogging(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			idx, err := annlsh.NewIndex(store, annlsh.IndexOptions{MagnitudeRadius: cfg.MagnitudeRadius})
			if err != nil {
				return err
			}
			if err := idx.Open(cobraCmd.Context()); err != nil {
				return fmt.Errorf("open index: %w", err)
			}

			stats, ok, err := idx.Stats(cobraCmd.Context())
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			out := cobraCmd.OutOrStdout()
			if !ok {
				fmt.Fprintf(out, "backend %s does not support stats\n", cfg.Backend)
				return nil
			}
			fmt.Fprintf(out, "vectors=%d buckets=%d avg_bucket=%.2f max_bucket=%d\n",
				stats.VectorCount, stats.BucketCount, stats.AverageBucket, stats.MaxBucket)
			return nil
		},
	}
}
