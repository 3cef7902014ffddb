package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amanuel-c/telepharm/internal/lake"
	"github.com/amanuel-c/telepharm/internal/scraper"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Collect channel posts into the data lake",
	Long: "Listens for posts in the configured Telegram channels and writes them to\n" +
		"the data lake as date/channel partitions, downloading photos alongside.\n" +
		"Runs until interrupted; buffered posts are flushed on shutdown.",
	RunE: runScrape,
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	s, err := scraper.New(cfg.Telegram, lake.New(cfg.Lake.DataDir), log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.Run(ctx)
}
