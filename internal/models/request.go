package models

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required" example:"Lakeside villa"`
	Description string `json:"description,omitempty"`
}

type CreateChainRequest struct {
	ProjectID string `json:"project_id" binding:"required"`
	Name      string `json:"name,omitempty"`
}
