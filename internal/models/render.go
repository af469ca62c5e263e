package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type RenderType string

const (
	RenderImage RenderType = "image"
	RenderVideo RenderType = "video"
)

type RenderStatus string

const (
	RenderPending    RenderStatus = "pending"
	RenderProcessing RenderStatus = "processing"
	RenderCompleted  RenderStatus = "completed"
	RenderFailed     RenderStatus = "failed"
)

const (
	GenerationTextToVideo      = "text-to-video"
	GenerationImageToVideo     = "image-to-video"
	GenerationKeyframeSequence = "keyframe-sequence"
)

type ImageSettings struct {
	Model       string `json:"model"`
	Style       string `json:"style,omitempty"`
	Quality     string `json:"quality"`
	AspectRatio string `json:"aspect_ratio"`
}

type VideoSettings struct {
	Model          string `json:"model"`
	AspectRatio    string `json:"aspect_ratio"`
	Duration       int    `json:"duration"`
	GenerationType string `json:"generation_type"`
}

// RenderSettings is keyed by the render type: exactly one of Image or Video
// is set, matching the Type field.
type RenderSettings struct {
	Type  RenderType     `json:"type"`
	Image *ImageSettings `json:"image,omitempty"`
	Video *VideoSettings `json:"video,omitempty"`
}

// Render is one generation attempt. Status moves pending -> processing and
// terminates at completed or failed; terminal states are never left.
type Render struct {
	ID                uuid.UUID      `json:"id"`
	ProjectID         uuid.UUID      `json:"project_id"`
	UserID            uuid.UUID      `json:"user_id"`
	Type              RenderType     `json:"type"`
	Prompt            string         `json:"prompt"`
	Settings          RenderSettings `json:"settings"`
	OutputURL         sql.NullString `json:"output_url,omitempty"`
	OutputKey         sql.NullString `json:"output_key,omitempty"`
	Status            RenderStatus   `json:"status"`
	ErrorMessage      sql.NullString `json:"error_message,omitempty"`
	ProcessingTime    sql.NullInt64  `json:"processing_time,omitempty"`
	CreditsCost       int            `json:"credits_cost"`
	ChainID           uuid.NullUUID  `json:"chain_id,omitempty"`
	ChainPosition     sql.NullInt64  `json:"chain_position,omitempty"`
	ReferenceRenderID uuid.NullUUID  `json:"reference_render_id,omitempty"`
	UploadedImageURL  sql.NullString `json:"uploaded_image_url,omitempty"`
	UploadedImageKey  sql.NullString `json:"uploaded_image_key,omitempty"`
	UploadedImageID   uuid.NullUUID  `json:"uploaded_image_id,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// RenderChain groups renders that iterate on one design thread.
// NextPosition is the chain's position counter, claimed atomically in SQL.
type RenderChain struct {
	ID           uuid.UUID `json:"id"`
	ProjectID    uuid.UUID `json:"project_id"`
	Name         string    `json:"name"`
	NextPosition int       `json:"next_position"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type GalleryItem struct {
	ID        uuid.UUID `json:"id"`
	RenderID  uuid.UUID `json:"render_id"`
	UserID    uuid.UUID `json:"user_id"`
	IsPublic  bool      `json:"is_public"`
	Likes     int       `json:"likes"`
	Views     int       `json:"views"`
	Featured  bool      `json:"featured"`
	CreatedAt time.Time `json:"created_at"`
}

type Project struct {
	ID          uuid.UUID      `json:"id"`
	UserID      uuid.UUID      `json:"user_id"`
	Name        string         `json:"name"`
	Description sql.NullString `json:"description,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// StoredFile is the durable-storage record for an uploaded or generated
// artifact.
type StoredFile struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	FileName  string    `json:"file_name"`
	MimeType  string    `json:"mime_type"`
	Size      int64     `json:"size"`
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	Bucket    string    `json:"bucket"`
	IsPublic  bool      `json:"is_public"`
	CreatedAt time.Time `json:"created_at"`
}
