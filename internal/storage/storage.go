// Package storage abstracts the object store used for generated
// outputs and uploaded source images. Two backends exist: Supabase
// Storage (default) and S3-compatible stores.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

type Backend interface {
	// Upload stores data and returns the object key and a public URL.
	Upload(ctx context.Context, data []byte, params UploadParams) (key string, url string, err error)
	Delete(ctx context.Context, key string) error
}

type UploadParams struct {
	UserID    uuid.UUID
	ProjectID uuid.UUID
	// Category segments keys by purpose: "renders" or "uploads".
	Category    string
	Filename    string
	ContentType string
}

// ObjectKey builds the canonical key layout
// users/{user_id}/projects/{project_id}/{category}/{filename}.
func ObjectKey(params UploadParams) string {
	category := strings.Trim(params.Category, "/")
	if category == "" {
		category = "renders"
	}
	filename := params.Filename
	if filename == "" {
		filename = uuid.NewString() + ExtensionFromContentType(params.ContentType)
	}
	return path.Join("users", params.UserID.String(), "projects", params.ProjectID.String(), category, filename)
}

func ExtensionFromContentType(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	case "video/webm":
		return ".webm"
	default:
		return ".bin"
	}
}

// New selects a backend by name.
func New(backend string, supabaseCfg SupabaseConfig, s3Cfg S3Config) (Backend, error) {
	switch backend {
	case "", "supabase":
		return NewSupabaseBackend(supabaseCfg)
	case "s3":
		return NewS3Backend(s3Cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
