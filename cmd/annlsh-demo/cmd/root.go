// Package cmd provides the annlsh-demo CLI commands.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/vectorhash/annlsh/internal/config"
	idxerrors "github.com/vectorhash/annlsh/internal/errors"
	"github.com/vectorhash/annlsh/internal/logging"
)

var (
	configPath string
	debugMode  bool
)

// NewRootCmd builds the annlsh-demo command tree. The core index library
// (pkg/annlsh) exposes no CLI of its own; this is the "surrounding
// application" that wires it to a config file, a log file, and a set of
// subcommands exercising init/add/query end to end.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "annlsh-demo",
		Short: "Demo CLI over the annlsh approximate nearest-neighbour index",
		Long: `annlsh-demo drives an annlsh.Index against either storage
backend (filesystem or sqlite) so the library can be exercised without
writing Go.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults built in)")
	root.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging to ~/.annlsh/logs/")

	root.AddCommand(newInitCmd())
	root.AddCommand(newAddCmd())
	root.AddCommand(newQueryCmd())
	root.AddCommand(newInfoCmd())

	return root
}

// Execute runs the CLI, printing a failing command's error through
// idxerrors.FormatForCLI rather than cobra's bare default formatting.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprint(os.Stderr, idxerrors.FormatForCLI(err))
	}
	return err
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}

// setupLogging configures logging at the level named by the config file
// (cfg.LogLevel), or "debug" if --debug was passed.
func setupLogging(cfg *config.Config) (func(), error) {
	lcfg := logging.DefaultConfig()
	lcfg.Level = cfg.LogLevel
	if debugMode {
		lcfg.Level = "debug"
	}
	lcfg.WriteToStderr = isatty.IsTerminal(os.Stderr.Fd())

	logger, cleanup, err := logging.Setup(lcfg)
	if err != nil {
		return nil, fmt.Errorf("set up logging: %w", err)
	}
	slog.SetDefault(logger)
	logger.Debug("logging configured", "level", logging.LevelFromString(lcfg.Level).String())
	return cleanup, nil
}
