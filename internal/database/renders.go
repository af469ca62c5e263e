package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"renderiq-backend/internal/models"
)

const renderColumns = `
	id, project_id, user_id, type, prompt, settings,
	output_url, output_key, status, error_message, processing_time,
	credits_cost, chain_id, chain_position, reference_render_id,
	uploaded_image_url, uploaded_image_key, uploaded_image_id,
	created_at, updated_at`

func scanRender(row interface{ Scan(...any) error }) (*models.Render, error) {
	var r models.Render
	var settingsJSON []byte
	err := row.Scan(
		&r.ID, &r.ProjectID, &r.UserID, &r.Type, &r.Prompt, &settingsJSON,
		&r.OutputURL, &r.OutputKey, &r.Status, &r.ErrorMessage, &r.ProcessingTime,
		&r.CreditsCost, &r.ChainID, &r.ChainPosition, &r.ReferenceRenderID,
		&r.UploadedImageURL, &r.UploadedImageKey, &r.UploadedImageID,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &r.Settings); err != nil {
			return nil, fmt.Errorf("failed to decode render settings: %w", err)
		}
	}
	return &r, nil
}

func (c *Client) CreateRender(ctx context.Context, render *models.Render) error {
	settingsJSON, err := json.Marshal(render.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode render settings: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO renders (
			id, project_id, user_id, type, prompt, settings, status,
			credits_cost, chain_id, chain_position, reference_render_id,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`,
		render.ID, render.ProjectID, render.UserID, render.Type, render.Prompt,
		settingsJSON, render.Status, render.CreditsCost,
		render.ChainID, render.ChainPosition, render.ReferenceRenderID,
	)
	if err != nil {
		return fmt.Errorf("failed to create render: %w", err)
	}
	return nil
}

func (c *Client) UpdateRenderStatus(ctx context.Context, renderID uuid.UUID, status models.RenderStatus) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE renders SET status = $2, updated_at = NOW() WHERE id = $1`,
		renderID, status)
	if err != nil {
		return fmt.Errorf("failed to update render status: %w", err)
	}
	return nil
}

func (c *Client) UpdateRenderOutput(ctx context.Context, renderID uuid.UUID, outputURL, outputKey string, processingTime int) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE renders
		SET status = 'completed', output_url = $2, output_key = $3,
		    processing_time = $4, updated_at = NOW()
		WHERE id = $1`,
		renderID, outputURL, outputKey, processingTime)
	if err != nil {
		return fmt.Errorf("failed to update render output: %w", err)
	}
	return nil
}

func (c *Client) UpdateRenderError(ctx context.Context, renderID uuid.UUID, errorMsg string) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE renders
		SET status = 'failed', error_message = $2, updated_at = NOW()
		WHERE id = $1`,
		renderID, errorMsg)
	if err != nil {
		return fmt.Errorf("failed to update render error: %w", err)
	}
	return nil
}

// UpdateRenderSource records the durable copy of the user's uploaded
// source image alongside the render.
func (c *Client) UpdateRenderSource(ctx context.Context, renderID uuid.UUID, url, key string, fileID uuid.UUID) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE renders
		SET uploaded_image_url = $2, uploaded_image_key = $3,
		    uploaded_image_id = $4, updated_at = NOW()
		WHERE id = $1`,
		renderID, url, key, fileID)
	if err != nil {
		return fmt.Errorf("failed to update render source: %w", err)
	}
	return nil
}

func (c *Client) GetRender(ctx context.Context, renderID, userID uuid.UUID) (*models.Render, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT `+renderColumns+`
		FROM renders
		WHERE id = $1 AND user_id = $2`,
		renderID, userID)
	render, err := scanRender(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get render: %w", err)
	}
	return render, nil
}

func (c *Client) ListRendersByProject(ctx context.Context, projectID, userID uuid.UUID) ([]models.Render, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT `+renderColumns+`
		FROM renders
		WHERE project_id = $1 AND user_id = $2
		ORDER BY created_at DESC`,
		projectID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list renders: %w", err)
	}
	defer rows.Close()

	var renders []models.Render
	for rows.Next() {
		render, err := scanRender(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan render: %w", err)
		}
		renders = append(renders, *render)
	}
	return renders, rows.Err()
}

func (c *Client) CreateChain(ctx context.Context, projectID uuid.UUID, name string) (*models.RenderChain, error) {
	chain := &models.RenderChain{}
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO render_chains (id, project_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, project_id, name, next_position, created_at, updated_at`,
		uuid.New(), projectID, name).Scan(
		&chain.ID, &chain.ProjectID, &chain.Name, &chain.NextPosition,
		&chain.CreatedAt, &chain.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create chain: %w", err)
	}
	return chain, nil
}

// NextChainPosition claims the next position in a chain. The increment
// and read happen in one statement, so concurrent claims on the same
// chain always get distinct positions.
func (c *Client) NextChainPosition(ctx context.Context, chainID uuid.UUID) (int, error) {
	var position int
	err := c.db.QueryRowContext(ctx, `
		UPDATE render_chains
		SET next_position = next_position + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING next_position - 1`,
		chainID).Scan(&position)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("chain %s not found", chainID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to claim chain position: %w", err)
	}
	return position, nil
}

func (c *Client) AddToGallery(ctx context.Context, renderID, userID uuid.UUID, isPublic bool) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO gallery_items (id, render_id, user_id, is_public, created_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		uuid.New(), renderID, userID, isPublic)
	if err != nil {
		return fmt.Errorf("failed to add to gallery: %w", err)
	}
	return nil
}

type GalleryEntry struct {
	Item   models.GalleryItem
	Render models.Render
}

// ListGallery returns public gallery entries, newest first.
func (c *Client) ListGallery(ctx context.Context, limit, offset int) ([]GalleryEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT g.id, g.render_id, g.user_id, g.is_public, g.likes, g.views, g.featured, g.created_at,
		       r.type, r.prompt, r.output_url
		FROM gallery_items g
		JOIN renders r ON r.id = g.render_id
		WHERE g.is_public = TRUE AND r.status = 'completed'
		ORDER BY g.created_at DESC
		LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list gallery: %w", err)
	}
	defer rows.Close()

	var entries []GalleryEntry
	for rows.Next() {
		var e GalleryEntry
		err := rows.Scan(
			&e.Item.ID, &e.Item.RenderID, &e.Item.UserID, &e.Item.IsPublic,
			&e.Item.Likes, &e.Item.Views, &e.Item.Featured, &e.Item.CreatedAt,
			&e.Render.Type, &e.Render.Prompt, &e.Render.OutputURL)
		if err != nil {
			return nil, fmt.Errorf("failed to scan gallery entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (c *Client) CreateFileRecord(ctx context.Context, file *models.StoredFile) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO file_storage (id, user_id, file_name, mime_type, size, url, key, bucket, is_public, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`,
		file.ID, file.UserID, file.FileName, file.MimeType, file.Size,
		file.URL, file.Key, file.Bucket, file.IsPublic)
	if err != nil {
		return fmt.Errorf("failed to create file record: %w", err)
	}
	return nil
}
