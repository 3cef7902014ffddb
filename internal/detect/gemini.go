package detect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/amanuel-c/telepharm/internal/config"
)

const detectionPrompt = "Identify every distinct object visible in this image. " +
	"Focus on products, packaging, medical supplies, and equipment. " +
	"Return one entry per detected object with a short lowercase class name " +
	"and your confidence between 0 and 1."

var detectionSchema = &genai.Schema{
	Type:        genai.TypeArray,
	Description: "A list of objects detected in the supplied image.",
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"object_class": {Type: genai.TypeString, Description: "Short lowercase class name for the detected object."},
			"confidence":   {Type: genai.TypeNumber, Description: "Detection confidence between 0 and 1."},
		},
		Required: []string{"object_class", "confidence"},
	},
}

// GeminiDetector uses Gemini's vision capability as the detection backend,
// constrained to a JSON response matching detectionSchema.
type GeminiDetector struct {
	genaiClient *genai.Client
	logger      *slog.Logger
	modelName   string
	maxRetries  int
	retryDelay  time.Duration
}

func NewGeminiDetector(ctx context.Context, cfg config.GeminiConfig, logger *slog.Logger) (*GeminiDetector, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	log := logger.With("component", "gemini_detector")
	log.Info("Gemini detector initialized", "model", cfg.Model)
	return &GeminiDetector{
		genaiClient: gi,
		logger:      log,
		modelName:   cfg.Model,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  time.Duration(cfg.RetryDelaySeconds) * time.Second,
	}, nil
}

// Detect sends the image with the detection prompt and parses the
// schema-constrained JSON array response.
func (d *GeminiDetector) Detect(ctx context.Context, imageData []byte) ([]Detection, error) {
	if len(imageData) == 0 {
		return nil, fmt.Errorf("image data is required")
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			{Text: detectionPrompt},
			genai.NewPartFromBytes(imageData, "image/jpeg"),
		}, genai.RoleUser),
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   detectionSchema,
	}

	resp, err := d.generateWithRetries(ctx, contents, cfg)
	if err != nil {
		return nil, err
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		d.logger.ErrorContext(ctx, "Gemini detection blocked",
			"reason", resp.PromptFeedback.BlockReason, "message", resp.PromptFeedback.BlockReasonMessage)
		return nil, fmt.Errorf("gemini detection blocked: %s", resp.PromptFeedback.BlockReasonMessage)
	}

	jsonText := resp.Text()
	if jsonText == "" {
		return nil, fmt.Errorf("gemini detection returned empty content")
	}

	var detections []Detection
	if err := json.Unmarshal([]byte(jsonText), &detections); err != nil {
		d.logger.ErrorContext(ctx, "Failed to parse detections JSON from Gemini response",
			"error", err, "response_text", jsonText)
		return nil, fmt.Errorf("invalid detections JSON received: %w", err)
	}

	d.logger.DebugContext(ctx, "Gemini detection completed", "detections", len(detections))
	return detections, nil
}

func (d *GeminiDetector) generateWithRetries(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var resp *genai.GenerateContentResponse
	var err error

	for i := 0; i <= d.maxRetries; i++ {
		resp, err = d.genaiClient.Models.GenerateContent(ctx, d.modelName, contents, cfg)
		if err == nil {
			return resp, nil
		}

		d.logger.WarnContext(ctx, "Gemini API call failed, checking for retry",
			"attempt", i+1, "max_retries", d.maxRetries, "error", err)

		var apiErr *genai.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == 500 || apiErr.Code == 503) {
			if i < d.maxRetries {
				d.logger.InfoContext(ctx, "Retrying Gemini API call",
					"delay", d.retryDelay, "code", apiErr.Code)
				time.Sleep(d.retryDelay)
				continue
			}
			return nil, fmt.Errorf("gemini API call failed after %d retries (APIError code %d): %w", d.maxRetries, apiErr.Code, err)
		}

		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}

	return nil, err
}
