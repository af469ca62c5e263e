package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"renderiq-backend/internal/database"
	"renderiq-backend/internal/models"
	"renderiq-backend/internal/storage"
)

// ErrUploadFailed wraps any failure to persist an artifact to durable
// storage. Callers treat it as a billable failure and refund.
var ErrUploadFailed = errors.New("artifact upload failed")

// ArtifactStore persists generated outputs and uploaded sources to the
// object store and records each file in the database.
type ArtifactStore struct {
	backend    storage.Backend
	db         *database.Client
	httpClient *http.Client
	bucket     string
	log        *slog.Logger
}

func NewArtifactStore(backend storage.Backend, db *database.Client, bucket string, log *slog.Logger) *ArtifactStore {
	return &ArtifactStore{
		backend: backend,
		db:      db,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		bucket: bucket,
		log:    log,
	}
}

type StoredArtifact struct {
	ID  uuid.UUID
	URL string
	Key string
}

// UploadBytes stores raw bytes and records them in file_storage.
func (s *ArtifactStore) UploadBytes(ctx context.Context, data []byte, params storage.UploadParams, isPublic bool) (*StoredArtifact, error) {
	key, url, err := s.backend.Upload(ctx, data, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	file := &models.StoredFile{
		ID:       uuid.New(),
		UserID:   params.UserID,
		FileName: params.Filename,
		MimeType: params.ContentType,
		Size:     int64(len(data)),
		URL:      url,
		Key:      key,
		Bucket:   s.bucket,
		IsPublic: isPublic,
	}
	if file.FileName == "" {
		file.FileName = key
	}
	if err := s.db.CreateFileRecord(ctx, file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	s.log.Info("artifact stored", "key", key, "bytes", len(data), "user_id", params.UserID)
	return &StoredArtifact{ID: file.ID, URL: url, Key: key}, nil
}

// FetchAndStore downloads a provider-hosted asset and re-uploads it to
// durable storage. Provider URLs expire, so outputs are never served
// from them directly.
func (s *ArtifactStore) FetchAndStore(ctx context.Context, sourceURL string, params storage.UploadParams, isPublic bool) (*StoredArtifact, error) {
	data, contentType, err := s.fetch(ctx, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	if params.ContentType == "" {
		params.ContentType = contentType
	}
	return s.UploadBytes(ctx, data, params, isPublic)
}

// Fetch downloads an asset, typically a prior render output used as a
// reference frame.
func (s *ArtifactStore) Fetch(ctx context.Context, url string) ([]byte, error) {
	data, _, err := s.fetch(ctx, url)
	return data, err
}

func (s *ArtifactStore) fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create fetch request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("fetch %s returned status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
