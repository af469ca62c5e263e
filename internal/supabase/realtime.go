package supabase

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"
)

type RealtimeClient struct {
	client *supabase.Client
}

func NewRealtimeClient(client *supabase.Client) *RealtimeClient {
	return &RealtimeClient{
		client: client,
	}
}

func (r *RealtimeClient) PublishEvent(channel string, event string, payload map[string]interface{}) error {
	// Supabase Realtime picks up the row changes the services already
	// write; explicit publishes would need the Realtime REST API.
	return nil
}

func (r *RealtimeClient) PublishProjectEvent(projectID uuid.UUID, event string, payload map[string]interface{}) error {
	channel := fmt.Sprintf("project:%s", projectID.String())
	return r.PublishEvent(channel, event, payload)
}

func (r *RealtimeClient) PublishRenderEvent(renderID uuid.UUID, event string, payload map[string]interface{}) error {
	channel := fmt.Sprintf("render:%s", renderID.String())
	return r.PublishEvent(channel, event, payload)
}

// Event payloads
func RenderStartedPayload(renderID uuid.UUID, renderType string) map[string]interface{} {
	return map[string]interface{}{
		"render_id": renderID.String(),
		"status":    "processing",
		"type":      renderType,
	}
}

func RenderCompletedPayload(renderID uuid.UUID, outputURL string, processingTime int) map[string]interface{} {
	return map[string]interface{}{
		"render_id":       renderID.String(),
		"status":          "completed",
		"output_url":      outputURL,
		"processing_time": processingTime,
	}
}

func RenderFailedPayload(renderID uuid.UUID, errorMsg string) map[string]interface{} {
	return map[string]interface{}{
		"render_id": renderID.String(),
		"status":    "failed",
		"error":     errorMsg,
	}
}
