package tasks

import (
	"context"
	"fmt"
	"time"
)

const (
	flushTimeout     = 1 * time.Minute
	loadTimeout      = 10 * time.Minute
	transformTimeout = 10 * time.Minute
	detectTimeout    = 30 * time.Minute
)

// newFlushLakeTask writes buffered scraper posts to the lake so the day's
// partition is complete before the load task runs.
func newFlushLakeTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "flush_lake")

	return func(ctx context.Context) error {
		if deps.Scraper == nil {
			return fmt.Errorf("scraper is not configured")
		}

		timeoutCtx, cancel := context.WithTimeout(ctx, flushTimeout)
		defer cancel()

		if err := deps.Scraper.Flush(timeoutCtx); err != nil {
			log.ErrorContext(ctx, "Lake flush failed", "error", err)
			return fmt.Errorf("lake flush failed: %w", err)
		}
		return nil
	}
}

// newLoadRawTask loads new lake partitions into the raw tables.
func newLoadRawTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "load_raw")

	return func(ctx context.Context) error {
		timeoutCtx, cancel := context.WithTimeout(ctx, loadTimeout)
		defer cancel()

		stats, err := deps.Loader.LoadAll(timeoutCtx)
		if err != nil {
			log.ErrorContext(ctx, "Raw load failed", "error", err)
			return fmt.Errorf("raw load failed: %w", err)
		}
		log.InfoContext(ctx, "Raw load finished",
			"partitions", stats.Partitions, "loaded", stats.Loaded,
			"rejected", stats.Rejected, "skipped", stats.Skipped,
			"failures", stats.Failures)
		return nil
	}
}

// newTransformMartsTask rebuilds the analytics marts from the raw tables.
func newTransformMartsTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "transform_marts")

	return func(ctx context.Context) error {
		timeoutCtx, cancel := context.WithTimeout(ctx, transformTimeout)
		defer cancel()

		if err := deps.Store.RefreshMarts(timeoutCtx); err != nil {
			log.ErrorContext(ctx, "Mart refresh failed", "error", err)
			return fmt.Errorf("mart refresh failed: %w", err)
		}
		return nil
	}
}

// newDetectObjectsTask runs object detection over the stored images.
func newDetectObjectsTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "detect_objects")

	return func(ctx context.Context) error {
		if deps.Sink == nil {
			return fmt.Errorf("detector is not configured")
		}

		timeoutCtx, cancel := context.WithTimeout(ctx, detectTimeout)
		defer cancel()

		images, err := deps.Store.ListImages(timeoutCtx)
		if err != nil {
			log.ErrorContext(ctx, "Failed to list images for detection", "error", err)
			return fmt.Errorf("failed to list images: %w", err)
		}
		if len(images) == 0 {
			log.InfoContext(ctx, "No images to enrich")
			return nil
		}

		stats, err := deps.Sink.EnrichImages(timeoutCtx, images)
		if err != nil {
			log.ErrorContext(ctx, "Detection enrichment failed", "error", err)
			return fmt.Errorf("detection enrichment failed: %w", err)
		}
		log.InfoContext(ctx, "Detection enrichment finished",
			"images", stats.Images, "detections", stats.Detections,
			"rejected", stats.Rejected, "failures", stats.Failures)
		return nil
	}
}
