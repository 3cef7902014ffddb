package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amanuel-c/telepharm/internal/database"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load new lake partitions into the raw tables",
	Long: "Walks the data lake and loads messages and image metadata into the raw\n" +
		"tables. Partitions already loaded are skipped, so the command is safe to\n" +
		"re-run at any time.",
	RunE: runLoad,
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	db, store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer database.CloseDB(db)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats, err := newLoader(cfg, store, log).LoadAll(ctx)
	if err != nil {
		return err
	}

	log.Info("Load run finished",
		"partitions", stats.Partitions, "loaded", stats.Loaded,
		"rejected", stats.Rejected, "skipped", stats.Skipped,
		"failures", stats.Failures)
	return nil
}
