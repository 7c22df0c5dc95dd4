package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vectorhash/annlsh/pkg/annlsh"
)

func newAddCmd() *cobra.Command {
	var vectorCSV string

	c := &cobra.Command{
		Use:   "add <id>",
		Short: "Add a vector to the index, given as a comma-separated list via --vector",
		Args:  cobra.ExactArgs(1),
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

			idx, err := annlsh.NewIndex(store, annlsh.IndexOptions{MagnitudeRadius: cfg.MagnitudeRadius})
			if err != nil {
				return err
			}
			if err := idx.Open(cobraCmd.Context()); err != nil {
				return fmt.Errorf("open index: %w", err)
			}

			id := args[0]
			if err := idx.Add(cobraCmd.Context(), annlsh.VectorId(id), v); err != nil {
				return fmt.Errorf("add %s: %w", id, err)
			}

			mapper, err := openFileMapper(cfg.Root)
			if err != nil {
				return err
			}
			if err := mapper.put(id, v); err != nil {
				return fmt.Errorf("record vector for %s: %w", id, err)
			}

			fmt.Fprintf(cobraCmd.OutOrStdout(), "added %s\n", id)
			return nil
		},
	}

	c.Flags().StringVar(&vectorCSV, "vector", "", "comma-separated embedding values, e.g. 1.0,0.5,-0.2")
	_ = c.MarkFlagRequired("vector")
	return c
}

func parseVector(csv string) (annlsh.Embedding, error) {
	fields := strings.Split(csv, ",")
	v := make(annlsh.Embedding, len(fields))
	for i, f := range fields {
		x, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("parse vector component %q: %w", f, err)
		}
		v[i] = x
	}
	return v, nil
}
