package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amanuel-c/telepharm/internal/api"
	"github.com/amanuel-c/telepharm/internal/database"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the analytics REST API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	db, store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer database.CloseDB(db)

	handler, err := api.NewHandler(store, cfg.Analytics, log)
	if err != nil {
		return err
	}
	server := api.NewServer(cfg.Server.Addr, handler, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx)
}
