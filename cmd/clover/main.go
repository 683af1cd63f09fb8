package main

import (
	"fmt"
	"os"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/Ramsey-B/clover/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var Version = "dev"

var envFile string

func main() {
	rootCmd := &cobra.Command{
		Use:           "clover",
		Short:         "Clover - payee deduplication service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional .env file loaded before the environment")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(detectCmd())
	rootCmd.AddCommand(mergeCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if cfg.Version == "dev" {
		cfg.Version = Version
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (ectologger.Logger, func(), error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.PrettyLogs {
		zapCfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid LOG_LEVEL '%s': %w", cfg.LogLevel, err)
	}
	zapCfg.Level = level
	zapCfg.InitialFields = map[string]any{"service": cfg.AppName, "version": cfg.Version}

	zapLogger, err := zapCfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil), func() { _ = zapLogger.Sync() }, nil
}
