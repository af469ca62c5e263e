// Package gemini wraps the Google generative AI SDK for image
// generation. Responses carry raw image bytes; persistence is the
// caller's job.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type Client struct {
	client  *genai.Client
	log     *slog.Logger
	timeout time.Duration
}

func NewClient(ctx context.Context, apiKey string, timeout time.Duration, log *slog.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{client: client, log: log, timeout: timeout}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

type ImageRequest struct {
	Model       string
	Prompt      string
	AspectRatio string
	Resolution  string

	// Optional reference image for image-to-image generation.
	ReferenceImage []byte
	ReferenceMIME  string
}

type ImageResult struct {
	Data           []byte
	MIMEType       string
	ProcessingTime int
}

// GenerateImage runs a single text-to-image or image-to-image request
// and returns the first image part of the response.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := req.Prompt
	if req.AspectRatio != "" {
		prompt = fmt.Sprintf("%s\n\nAspect ratio: %s", prompt, req.AspectRatio)
	}
	if req.Resolution != "" {
		prompt = fmt.Sprintf("%s\nResolution: %s", prompt, req.Resolution)
	}

	var parts []genai.Part
	if len(req.ReferenceImage) > 0 {
		mime := req.ReferenceMIME
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, genai.ImageData(extensionForMIME(mime), req.ReferenceImage))
	}
	parts = append(parts, genai.Text(prompt))

	model := c.client.GenerativeModel(req.Model)
	start := time.Now()
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini generation failed: %w", err)
	}
	elapsed := int(time.Since(start).Milliseconds())

	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if blob, ok := part.(genai.Blob); ok && len(blob.Data) > 0 {
				c.log.Info("image generated", "model", req.Model, "bytes", len(blob.Data), "processing_ms", elapsed)
				mimeType := blob.MIMEType
				if mimeType == "" {
					mimeType = "image/png"
				}
				return &ImageResult{
					Data:           blob.Data,
					MIMEType:       mimeType,
					ProcessingTime: elapsed,
				}, nil
			}
		}
	}
	return nil, fmt.Errorf("gemini response for model %s contained no image data", req.Model)
}

// RetryWithBackoff retries fn with exponential backoff.
func (c *Client) RetryWithBackoff(fn func() error, maxRetries int) error {
	backoffs := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if i < len(backoffs) {
			time.Sleep(backoffs[i])
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

// genai.ImageData takes a bare format name, not a full MIME type.
func extensionForMIME(mime string) string {
	switch mime {
	case "image/jpeg":
		return "jpeg"
	case "image/webp":
		return "webp"
	default:
		return "png"
	}
}
