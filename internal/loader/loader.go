// Package loader moves raw lake partitions into the database incrementally.
// Re-running a load is always safe: rows already present for a partition
// are skipped by the partition unique key, never duplicated.
package loader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/amanuel-c/telepharm/internal/database"
	"github.com/amanuel-c/telepharm/internal/lake"
)

// Stats summarizes one load run.
type Stats struct {
	Partitions int
	Loaded     int64
	Rejected   int
	Skipped    int64
	Failures   int
}

// Loader reads lake partitions and inserts their contents through the store.
type Loader struct {
	lake   *lake.Lake
	store  database.Store
	logger *slog.Logger
}

func New(lk *lake.Lake, store database.Store, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Loader{
		lake:   lk,
		store:  store,
		logger: logger.With("component", "loader"),
	}
}

// LoadMessages loads every partition's messages.json. Each partition is one
// transaction; a partition that fails to decode or insert is counted as a
// failure and the run moves on. Individual malformed records are rejected
// without affecting the rest of their partition.
func (l *Loader) LoadMessages(ctx context.Context) (Stats, error) {
	partitions, walkErrs := l.lake.Walk()

	var stats Stats
	for _, walkErr := range walkErrs {
		l.logger.ErrorContext(ctx, "Skipping unreadable lake entry", "error", walkErr)
		stats.Failures++
	}

	for _, partition := range partitions {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		records, err := partition.ReadMessages()
		if err != nil {
			l.logger.ErrorContext(ctx, "Failed to read partition messages",
				"partition", partition.Dir, "error", err)
			stats.Failures++
			continue
		}
		if records == nil {
			continue
		}
		stats.Partitions++

		messages := make([]database.Message, 0, len(records))
		for i, record := range records {
			normalized, err := NormalizeMessage(record)
			if err != nil {
				l.logger.WarnContext(ctx, "Rejected malformed message record",
					"partition", partition.Dir, "index", i, "error", err)
				stats.Rejected++
				continue
			}
			messages = append(messages, database.Message{
				MessageID:   normalized.MessageID,
				ChannelName: partition.Channel,
				MessageText: normalized.MessageText,
				MessageDate: normalized.MessageDate,
				Views:       normalized.Views,
				Forwards:    normalized.Forwards,
				HasMedia:    normalized.HasMedia,
				ScrapedDate: partition.Date,
			})
		}

		inserted, err := l.store.InsertMessagePartition(ctx, messages)
		if err != nil {
			l.logger.ErrorContext(ctx, "Failed to load message partition",
				"partition", partition.Dir, "error", err)
			stats.Failures++
			continue
		}

		stats.Loaded += inserted
		stats.Skipped += int64(len(messages)) - inserted
		l.logger.InfoContext(ctx, "Loaded message partition",
			"date", partition.Label, "channel", partition.Channel,
			"inserted", inserted, "skipped", int64(len(messages))-inserted)
	}

	return stats, nil
}

// LoadImages registers every partition's .jpg files. The basename must be
// the integer message id the image belongs to; anything else is rejected
// file by file.
func (l *Loader) LoadImages(ctx context.Context) (Stats, error) {
	partitions, walkErrs := l.lake.Walk()

	var stats Stats
	for _, walkErr := range walkErrs {
		l.logger.ErrorContext(ctx, "Skipping unreadable lake entry", "error", walkErr)
		stats.Failures++
	}

	for _, partition := range partitions {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		names, err := partition.ListImages()
		if err != nil {
			l.logger.ErrorContext(ctx, "Failed to list partition images",
				"partition", partition.Dir, "error", err)
			stats.Failures++
			continue
		}
		if len(names) == 0 {
			continue
		}
		stats.Partitions++

		images := make([]database.Image, 0, len(names))
		for _, name := range names {
			base := strings.TrimSuffix(name, filepath.Ext(name))
			messageID, err := strconv.ParseInt(base, 10, 64)
			if err != nil {
				l.logger.WarnContext(ctx, "Rejected image with non-integer name",
					"partition", partition.Dir, "file", name)
				stats.Rejected++
				continue
			}
			// Path is stored relative to the lake root so the database
			// stays valid when the lake is relocated.
			images = append(images, database.Image{
				MessageID:   messageID,
				ChannelName: partition.Channel,
				ImagePath:   filepath.Join(partition.Label, partition.Channel, name),
				ImageDate:   partition.Date,
				ScrapedDate: partition.Date,
			})
		}

		inserted, err := l.store.InsertImagePartition(ctx, images)
		if err != nil {
			l.logger.ErrorContext(ctx, "Failed to load image partition",
				"partition", partition.Dir, "error", err)
			stats.Failures++
			continue
		}

		stats.Loaded += inserted
		stats.Skipped += int64(len(images)) - inserted
	}

	return stats, nil
}

// LoadAll runs the message and image loads back to back and merges their
// stats.
func (l *Loader) LoadAll(ctx context.Context) (Stats, error) {
	start := time.Now()

	msgStats, err := l.LoadMessages(ctx)
	if err != nil {
		return msgStats, fmt.Errorf("message load failed: %w", err)
	}

	imgStats, err := l.LoadImages(ctx)
	merged := Stats{
		Partitions: msgStats.Partitions + imgStats.Partitions,
		Loaded:     msgStats.Loaded + imgStats.Loaded,
		Rejected:   msgStats.Rejected + imgStats.Rejected,
		Skipped:    msgStats.Skipped + imgStats.Skipped,
		Failures:   msgStats.Failures + imgStats.Failures,
	}
	if err != nil {
		return merged, fmt.Errorf("image load failed: %w", err)
	}

	l.logger.InfoContext(ctx, "Load completed",
		"partitions", merged.Partitions, "loaded", merged.Loaded,
		"rejected", merged.Rejected, "skipped", merged.Skipped,
		"failures", merged.Failures, "duration", time.Since(start).String())
	return merged, nil
}
