package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/formsync/internal/config"
	"github.com/vovakirdan/formsync/internal/log"
)

// env is filled by the root command before any subcommand runs.
type env struct {
	cfg        config.Config
	configPath string
	log        *zerolog.Logger
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
		e          env
	)

	root := &cobra.Command{
		Use:           "formsync",
		Short:         "Real-time form synchronization server and client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			bootLogger := log.New("info", log.FormatConsole)
			cfg, path, err := config.Load(bootLogger, configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			e.cfg = cfg
			e.configPath = path
			e.log = log.New(cfg.LogLevel, cfg.LogFormat)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(newServeCmd(&e), newWatchCmd(&e), newEditCmd(&e))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "formsync:", err)
		os.Exit(1)
	}
}
