// Package cmd defines the telepharm command-line interface.
package cmd

import (
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/amanuel-c/telepharm/internal/config"
	"github.com/amanuel-c/telepharm/internal/database"
	"github.com/amanuel-c/telepharm/internal/lake"
	"github.com/amanuel-c/telepharm/internal/loader"
	"github.com/amanuel-c/telepharm/internal/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "telepharm",
	Short: "Telegram medical-channel analytics pipeline",
	Long: "telepharm scrapes public Telegram medical channels into a raw data lake,\n" +
		"loads and transforms the data into analytics marts, enriches images with\n" +
		"object detection, and serves the results over a REST API.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")

	rootCmd.AddCommand(scrapeCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(transformCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(runCmd)
}

// setup loads configuration and builds the logger shared by every command.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.JSON)
	return cfg, log, nil
}

// openStore connects to the database and applies pending migrations. The
// caller owns the returned DB handle.
func openStore(cfg *config.Config, log *slog.Logger) (*sqlx.DB, database.Store, error) {
	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	return db, database.NewStore(db, log), nil
}

func newLoader(cfg *config.Config, store database.Store, log *slog.Logger) *loader.Loader {
	return loader.New(lake.New(cfg.Lake.DataDir), store, log)
}
