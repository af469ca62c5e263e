// Package veo is a REST client for the Veo video generation API.
package veo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Generation requests are billed per second, so durations are limited
// to the values the models actually support.
var validDurations = map[int]bool{4: true, 6: true, 8: true}

func ValidDuration(seconds int) bool {
	return validDurations[seconds]
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

type VideoRequest struct {
	Model           string
	Prompt          string
	AspectRatio     string
	DurationSeconds int
	Resolution      string

	// Optional frame conditioning. FirstFrame alone drives
	// image-to-video; FirstFrame plus LastFrame drives interpolation.
	FirstFrame      []byte
	LastFrame       []byte
	ReferenceFrames [][]byte
}

type VideoResult struct {
	// Exactly one of VideoURL and VideoData is set, depending on how
	// the API returned the asset.
	VideoURL       string
	VideoData      []byte
	ProcessingTime int
}

type apiRequest struct {
	Prompt          string   `json:"prompt"`
	AspectRatio     string   `json:"aspect_ratio,omitempty"`
	DurationSeconds int      `json:"duration_seconds"`
	Resolution      string   `json:"resolution,omitempty"`
	FirstFrame      string   `json:"first_frame,omitempty"`
	LastFrame       string   `json:"last_frame,omitempty"`
	ReferenceFrames []string `json:"reference_frames,omitempty"`
}

type apiResponse struct {
	VideoURL   string `json:"video_url"`
	VideoData  string `json:"video_data"`
	Error      string `json:"error"`
	FailReason string `json:"fail_reason"`
}

// GenerateVideo submits a generation request and blocks until the API
// responds with an asset or the client timeout fires.
func (c *Client) GenerateVideo(ctx context.Context, req VideoRequest) (*VideoResult, error) {
	if !ValidDuration(req.DurationSeconds) {
		return nil, fmt.Errorf("invalid duration %d, must be 4, 6, or 8 seconds", req.DurationSeconds)
	}

	body := apiRequest{
		Prompt:          req.Prompt,
		AspectRatio:     req.AspectRatio,
		DurationSeconds: req.DurationSeconds,
		Resolution:      req.Resolution,
	}
	if len(req.FirstFrame) > 0 {
		body.FirstFrame = base64.StdEncoding.EncodeToString(req.FirstFrame)
	}
	if len(req.LastFrame) > 0 {
		body.LastFrame = base64.StdEncoding.EncodeToString(req.LastFrame)
	}
	for _, frame := range req.ReferenceFrames {
		body.ReferenceFrames = append(body.ReferenceFrames, base64.StdEncoding.EncodeToString(frame))
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal video request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateVideo", c.baseURL, req.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call veo API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read veo response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("veo API error (status %d): %s", resp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("veo API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result apiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode veo response: %w", err)
	}
	if result.FailReason != "" {
		return nil, fmt.Errorf("veo generation failed: %s", result.FailReason)
	}

	elapsed := int(time.Since(start).Milliseconds())
	out := &VideoResult{VideoURL: result.VideoURL, ProcessingTime: elapsed}
	if result.VideoData != "" {
		data, err := base64.StdEncoding.DecodeString(result.VideoData)
		if err != nil {
			return nil, fmt.Errorf("failed to decode video data: %w", err)
		}
		out.VideoData = data
	}
	if out.VideoURL == "" && len(out.VideoData) == 0 {
		return nil, fmt.Errorf("veo response for model %s contained no video", req.Model)
	}

	c.log.Info("video generated", "model", req.Model, "duration", req.DurationSeconds, "processing_ms", elapsed)
	return out, nil
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
