package cmd

import (
	"fmt"

	"github.com/vectorhash/annlsh/internal/config"
	"github.com/vectorhash/annlsh/pkg/annlsh"
)

func openStore(cfg *config.Config) (annlsh.Store, error) {
	switch cfg.Backend {
	case config.BackendFilesystem:
		return annlsh.NewFilesystemStore(cfg.Root)
	case config.BackendSQLite:
		return annlsh.NewSQLStore(cfg.Root)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func projectorParams(cfg *config.Config) annlsh.ProjectorParams {
	return annlsh.ProjectorParams{
		NumTables: cfg.Projector.Tables,
		HashSize:  cfg.Projector.Bits,
		Dimension: cfg.Projector.Dimension,
	}
}
