package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vectorhash/annlsh/pkg/annlsh"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialise a new index at the configured storage location",
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
			if err := idx.Init(cobraCmd.Context(), projectorParams(cfg), nil); err != nil {
				return fmt.Errorf("init index: %w", err)
			}

			fmt.Fprintf(cobraCmd.OutOrStdout(), "initialised %s backend at %s (T=%d H=%d D=%d)\n",
				cfg.Backend, cfg.Root, cfg.Projector.Tables, cfg.Projector.Bits, cfg.Projector.Dimension)
			return nil
		},
	}
}
