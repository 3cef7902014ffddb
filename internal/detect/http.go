package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/amanuel-c/telepharm/internal/config"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTPDetector talks to an external detection service that accepts a JPEG
// body and returns detections as JSON.
type HTTPDetector struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type detectResponse struct {
	Detections []Detection `json:"detections"`
}

func NewHTTPDetector(cfg config.HTTPDetectorConfig, logger *slog.Logger) (*HTTPDetector, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("detection service base URL is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	return &HTTPDetector{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With("component", "http_detector"),
	}, nil
}

// Detect posts the image to the service's detect endpoint.
func (d *HTTPDetector) Detect(ctx context.Context, imageData []byte) ([]Detection, error) {
	if len(imageData) == 0 {
		return nil, fmt.Errorf("image data is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/api/v1/detect", bytes.NewReader(imageData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("detection service returned status %d: %s", resp.StatusCode, string(body))
	}

	var result detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	d.logger.DebugContext(ctx, "Detection service responded", "detections", len(result.Detections))
	return result.Detections, nil
}
