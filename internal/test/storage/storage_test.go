package storage_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"renderiq-backend/internal/storage"
)

func TestObjectKey_Layout(t *testing.T) {
	userID := uuid.New()
	projectID := uuid.New()

	key := storage.ObjectKey(storage.UploadParams{
		UserID:    userID,
		ProjectID: projectID,
		Category:  "renders",
		Filename:  "out.mp4",
	})
	assert.Equal(t,
		fmt.Sprintf("users/%s/projects/%s/renders/out.mp4", userID, projectID),
		key)
}

func TestObjectKey_DefaultsCategory(t *testing.T) {
	key := storage.ObjectKey(storage.UploadParams{
		UserID:    uuid.New(),
		ProjectID: uuid.New(),
		Filename:  "a.png",
	})
	assert.Contains(t, key, "/renders/")
}

func TestObjectKey_GeneratesFilename(t *testing.T) {
	key := storage.ObjectKey(storage.UploadParams{
		UserID:      uuid.New(),
		ProjectID:   uuid.New(),
		Category:    "uploads",
		ContentType: "image/png",
	})
	assert.True(t, strings.HasSuffix(key, ".png"), "key %q should end with .png", key)

	other := storage.ObjectKey(storage.UploadParams{
		UserID:      uuid.New(),
		ProjectID:   uuid.New(),
		Category:    "uploads",
		ContentType: "image/png",
	})
	assert.NotEqual(t, key, other)
}

func TestExtensionFromContentType(t *testing.T) {
	assert.Equal(t, ".png", storage.ExtensionFromContentType("image/png"))
	assert.Equal(t, ".jpg", storage.ExtensionFromContentType("image/jpeg"))
	assert.Equal(t, ".jpg", storage.ExtensionFromContentType("IMAGE/JPEG"))
	assert.Equal(t, ".webp", storage.ExtensionFromContentType("image/webp"))
	assert.Equal(t, ".mp4", storage.ExtensionFromContentType("video/mp4"))
	assert.Equal(t, ".webm", storage.ExtensionFromContentType("video/webm"))
	assert.Equal(t, ".bin", storage.ExtensionFromContentType("application/pdf"))
	assert.Equal(t, ".bin", storage.ExtensionFromContentType(""))
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := storage.New("gcs", storage.SupabaseConfig{}, storage.S3Config{})
	assert.Error(t, err)
}
