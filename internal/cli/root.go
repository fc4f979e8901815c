package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"healthcare-rag/internal/bootstrap"
	"healthcare-rag/internal/config"
	"healthcare-rag/internal/logger"
)

var (
	configFile string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "healthrag",
	Short: "Answer healthcare questions from a curated set of sources",
	Long: `healthrag ingests medical resource URLs into a local knowledge base and
answers questions grounded in them, citing each source with a credibility tag.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default configs/config.toml or $CONFIG_FILE)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		if err := os.Setenv("CONFIG_FILE", configFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	return cfg, nil
}

// withApp builds the application, runs fn and releases every resource.
// SIGINT and SIGTERM cancel the context passed to fn.
func withApp(opts bootstrap.Options, fn func(ctx context.Context, a *bootstrap.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap.New(ctx, cfg, log, opts)
	if err != nil {
		log.Error("bootstrap failed", "error", err)
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("close resources failed", "error", err)
		}
	}()
	return fn(ctx, a)
}
