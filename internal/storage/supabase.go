package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	storagego "github.com/supabase-community/storage-go"
)

type SupabaseConfig struct {
	URL        string
	ServiceKey string
	Bucket     string
}

type SupabaseBackend struct {
	client  *storagego.Client
	bucket  string
	baseURL string
}

func NewSupabaseBackend(cfg SupabaseConfig) (*SupabaseBackend, error) {
	if cfg.URL == "" || cfg.ServiceKey == "" {
		return nil, fmt.Errorf("supabase url and service key are required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("supabase storage bucket is required")
	}

	baseURL := strings.TrimRight(cfg.URL, "/")
	client := storagego.NewClient(baseURL+"/storage/v1", cfg.ServiceKey, nil)

	return &SupabaseBackend{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: baseURL,
	}, nil
}

func (s *SupabaseBackend) Upload(ctx context.Context, data []byte, params UploadParams) (string, string, error) {
	if len(data) == 0 {
		return "", "", fmt.Errorf("no data to upload")
	}

	key := ObjectKey(params)
	contentType := params.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	upsert := true
	_, err := s.client.UploadFile(s.bucket, key, bytes.NewReader(data), storagego.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload file: %w", err)
	}

	return key, s.PublicURL(key), nil
}

func (s *SupabaseBackend) Delete(ctx context.Context, key string) error {
	_, err := s.client.RemoveFile(s.bucket, []string{key})
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (s *SupabaseBackend) PublicURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, key)
}
