package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"renderiq-backend/internal/models"
)

func (c *Client) CreateProject(ctx context.Context, userID uuid.UUID, name, description string) (*models.Project, error) {
	project := &models.Project{}
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO projects (id, user_id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NOW(), NOW())
		RETURNING id, user_id, name, description, created_at, updated_at`,
		uuid.New(), userID, name, description).Scan(
		&project.ID, &project.UserID, &project.Name, &project.Description,
		&project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return project, nil
}

func (c *Client) GetProject(ctx context.Context, projectID, userID uuid.UUID) (*models.Project, error) {
	project := &models.Project{}
	err := c.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, description, created_at, updated_at
		FROM projects
		WHERE id = $1 AND user_id = $2`,
		projectID, userID).Scan(
		&project.ID, &project.UserID, &project.Name, &project.Description,
		&project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

func (c *Client) ListProjects(ctx context.Context, userID uuid.UUID) ([]models.Project, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, user_id, name, description, created_at, updated_at
		FROM projects
		WHERE user_id = $1
		ORDER BY created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var p models.Project
		err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (c *Client) DeleteProject(ctx context.Context, projectID, userID uuid.UUID) error {
	result, err := c.db.ExecContext(ctx, `
		DELETE FROM projects WHERE id = $1 AND user_id = $2`,
		projectID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("project %s not found", projectID)
	}
	return nil
}
