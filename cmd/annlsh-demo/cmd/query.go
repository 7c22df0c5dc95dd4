package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vectorhash/annlsh/pkg/annlsh"
)

func newQueryCmd() *cobra.Command {
	var vectorCSV string
	var k int

	c := &cobra.Command{
		Use:   "query",
		Short: "Query the index for the k nearest neighbours of a vector",
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

			v, err := parseVector(vectorCSV)
			if err != nil {
				return err
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			idx, err := annlsh.NewIndex(store, annlsh.IndexOptions{
				MagnitudeRadius: cfg.MagnitudeRadius,
				MapperCacheSize: 1024,
			})
			if err != nil {
				return err
			}
			if err := idx.Open(cobraCmd.Context()); err != nil {
				return fmt.Errorf("open index: %w", err)
			}

			mapper, err := openFileMapper(cfg.Root)
			if err != nil {
				return err
			}

			results, diag, err := idx.Query(cobraCmd.Context(), v, k, mapper)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}

			out := cobraCmd.OutOrStdout()
			for _, r := range results {
				fmt.Fprintf(out, "%s\t%.6f\n", r.ID, r.Distance)
			}
			fmt.Fprintf(out, "candidates=%d misses=%d failures=%d\n",
				diag.CandidatesConsidered, diag.MapperMisses, diag.MapperFailures)
			return nil
		},
	}

	c.Flags().StringVar(&vectorCSV, "vector", "", "comma-separated query embedding")
	c.Flags().IntVar(&k, "k", 5, "number of neighbours to return")
	_ = c.MarkFlagRequired("vector")
	return c
}
