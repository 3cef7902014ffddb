package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amanuel-c/telepharm/internal/api"
	"github.com/amanuel-c/telepharm/internal/app"
	"github.com/amanuel-c/telepharm/internal/database"
	"github.com/amanuel-c/telepharm/internal/detect"
	"github.com/amanuel-c/telepharm/internal/lake"
	"github.com/amanuel-c/telepharm/internal/scraper"
	"github.com/amanuel-c/telepharm/internal/tasks"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: scraper, scheduler, and API server",
	Long: "Starts every configured component under one lifecycle: the Telegram\n" +
		"scraper (when a bot token is configured), the daily pipeline scheduler,\n" +
		"and the analytics REST API. Runs until interrupted.",
	RunE: runPipeline,
}

func runPipeline(cmd *cobra.Command, args []string) error {
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

	lk := lake.New(cfg.Lake.DataDir)

	var scr *scraper.Scraper
	if cfg.Telegram.Token != "" {
		scr, err = scraper.New(cfg.Telegram, lk, log)
		if err != nil {
			return err
		}
	} else {
		log.Warn("No Telegram token configured, scraper disabled")
	}

	detector, err := detect.NewDetector(ctx, cfg.Detector, log)
	if err != nil {
		return err
	}
	var sink *detect.Sink
	if detector != nil {
		sink = detect.NewSink(detector, store, cfg.Lake.DataDir, cfg.Detector.MinConf, log)
	}

	taskMap := tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger:  log,
		Store:   store,
		Loader:  newLoader(cfg, store, log),
		Scraper: scr,
		Sink:    sink,
		Config:  cfg,
	})

	sched, err := app.NewScheduler(log, &cfg.Scheduler, taskMap)
	if err != nil {
		return err
	}

	handler, err := api.NewHandler(store, cfg.Analytics, log)
	if err != nil {
		return err
	}
	server := api.NewServer(cfg.Server.Addr, handler, log)

	return app.New(log, scr, sched, server).Run(ctx)
}
