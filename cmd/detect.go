package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amanuel-c/telepharm/internal/database"
	"github.com/amanuel-c/telepharm/internal/detect"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run object detection over stored images",
	Long: "Runs the configured detection backend over every stored image and appends\n" +
		"the detections. Enrichment runs are append-only; re-running adds new rows\n" +
		"rather than replacing earlier ones.",
	RunE: runDetect,
}

func runDetect(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	detector, err := detect.NewDetector(ctx, cfg.Detector, log)
	if err != nil {
		return err
	}
	if detector == nil {
		return fmt.Errorf("detector backend is set to %q; configure detector.backend to http or gemini", cfg.Detector.Backend)
	}

	db, store, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer database.CloseDB(db)

	images, err := store.ListImages(ctx)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		log.Info("No images to enrich")
		return nil
	}

	sink := detect.NewSink(detector, store, cfg.Lake.DataDir, cfg.Detector.MinConf, log)
	stats, err := sink.EnrichImages(ctx, images)
	if err != nil {
		return err
	}

	log.Info("Detection run finished",
		"images", stats.Images, "detections", stats.Detections,
		"rejected", stats.Rejected, "failures", stats.Failures)
	return nil
}
