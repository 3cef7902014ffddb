package detect

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/amanuel-c/telepharm/internal/database"
)

// Stats summarizes one enrichment run.
type Stats struct {
	Images     int
	Detections int64
	Rejected   int
	Failures   int
}

// Sink runs a detector over stored images and appends the results to the
// raw detections table. Stored image paths are relative to dataDir.
type Sink struct {
	detector Detector
	store    database.Store
	dataDir  string
	minConf  float64
	logger   *slog.Logger
}

func NewSink(detector Detector, store database.Store, dataDir string, minConf float64, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Sink{
		detector: detector,
		store:    store,
		dataDir:  dataDir,
		minConf:  minConf,
		logger:   logger.With("component", "detect_sink"),
	}
}

// EnrichImages detects objects in each image and stores the results. An
// image that yields zero detections contributes zero rows, which is a
// normal outcome rather than an error. A detection with a confidence
// outside [0, 1] is rejected row by row; the image's other detections are
// kept.
func (s *Sink) EnrichImages(ctx context.Context, images []database.Image) (Stats, error) {
	var stats Stats

	for _, image := range images {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		imageData, err := os.ReadFile(filepath.Join(s.dataDir, image.ImagePath))
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to read image",
				"path", image.ImagePath, "error", err)
			stats.Failures++
			continue
		}

		detections, err := s.detector.Detect(ctx, imageData)
		if err != nil {
			s.logger.ErrorContext(ctx, "Detection failed",
				"path", image.ImagePath, "error", err)
			stats.Failures++
			continue
		}
		stats.Images++

		if len(detections) == 0 {
			continue
		}

		rows := make([]database.Detection, 0, len(detections))
		now := time.Now().UTC()
		for _, d := range detections {
			if d.Confidence < 0 || d.Confidence > 1 {
				s.logger.WarnContext(ctx, "Rejected detection with out-of-range confidence",
					"path", image.ImagePath, "class", d.ObjectClass, "confidence", d.Confidence)
				stats.Rejected++
				continue
			}
			if d.Confidence < s.minConf {
				continue
			}
			rows = append(rows, database.Detection{
				ChannelName: image.ChannelName,
				MessageID:   image.MessageID,
				ObjectClass: d.ObjectClass,
				Confidence:  d.Confidence,
				ImagePath:   image.ImagePath,
				DetectedAt:  now,
			})
		}

		if len(rows) == 0 {
			continue
		}

		inserted, err := s.store.InsertDetections(ctx, rows)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to store detections",
				"path", image.ImagePath, "error", err)
			stats.Failures++
			continue
		}
		stats.Detections += inserted
	}

	s.logger.InfoContext(ctx, "Enrichment completed",
		"images", stats.Images, "detections", stats.Detections,
		"rejected", stats.Rejected, "failures", stats.Failures)
	return stats, nil
}
