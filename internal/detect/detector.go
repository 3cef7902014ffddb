// Package detect runs object detection over scraped images and records the
// results as enrichment rows. Each enrichment run appends its detections;
// rows are intentionally never deduplicated, so detector upgrades can be
// compared across runs.
package detect

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amanuel-c/telepharm/internal/config"
)

// Detection is one detected object in one image.
type Detection struct {
	ObjectClass string  `json:"object_class"`
	Confidence  float64 `json:"confidence"`
}

// Detector identifies objects in a single image. Implementations must
// return an empty slice, not an error, when the image contains nothing
// they recognize.
type Detector interface {
	Detect(ctx context.Context, imageData []byte) ([]Detection, error)
}

// NewDetector builds the detector selected by cfg.Backend. Backend "none"
// returns nil without error, which disables enrichment.
func NewDetector(ctx context.Context, cfg config.DetectorConfig, logger *slog.Logger) (Detector, error) {
	switch cfg.Backend {
	case "none":
		return nil, nil
	case "http":
		return NewHTTPDetector(cfg.HTTP, logger)
	case "gemini":
		return NewGeminiDetector(ctx, cfg.Gemini, logger)
	default:
		return nil, fmt.Errorf("unknown detector backend %q", cfg.Backend)
	}
}
