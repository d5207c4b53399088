package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"rental-scraper/config"
	"rental-scraper/storage"
	"rental-scraper/utils"
)

var debug bool

var rootCmd = &cobra.Command{
	Use:           "rental-scraper",
	Short:         "rental-scraper collects Vienna rental listings from willhaben.at into a database.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging (same as LOG_DEBUG=true).")
}

// Execute runs the command line. Without a subcommand it scrapes, as "run" does.
func Execute(ctx context.Context) error {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		utils.NewLogger().Error("%v", err)
		return err
	}
	return nil
}

// setup loads configuration and builds a logger writing to the command's outputs.
func setup(cmd *cobra.Command) (*config.Config, *utils.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger := utils.NewLoggerTo(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.Debug || debug)
	return cfg, logger, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*storage.SQLStore, error) {
	dsn := cfg.SQLitePath
	if cfg.StoreDriver == storage.DriverPostgres {
		dsn = cfg.DSN()
	}
	return storage.Open(ctx, storage.Options{
		Driver:          cfg.StoreDriver,
		DSN:             dsn,
		Table:           cfg.TableName,
		ConnectAttempts: 5,
		ConnectDelay:    2 * time.Second,
		Logger:          logger,
	})
}
