package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"renderiq-backend/internal/database"
	"renderiq-backend/internal/models"
)

type ProjectsHandler struct {
	db *database.Client
}

func NewProjectsHandler(db *database.Client) *ProjectsHandler {
	return &ProjectsHandler{db: db}
}

// CreateProject creates a new project
// @Summary     Create a project
// @Description Creates a project owned by the authenticated user
// @Tags        projects
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.CreateProjectRequest true "Project attributes"
// @Success     200 {object} models.ProjectResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /projects [post]
func (h *ProjectsHandler) CreateProject(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Missing required fields"})
		return
	}

	project, err := h.db.CreateProject(c.Request.Context(), userID, req.Name, req.Description)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to create project", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, projectToResponse(project))
}

// GetProject returns a single project
// @Summary     Get project details
// @Description Returns a project owned by the authenticated user
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID (UUID)"
// @Success     200 {object} models.ProjectResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /projects/{project_id} [get]
func (h *ProjectsHandler) GetProject(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid project ID"})
		return
	}

	project, err := h.db.GetProject(c.Request.Context(), projectID, userID)
	if err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Project not found"})
		return
	}

	c.JSON(http.StatusOK, projectToResponse(project))
}

// ListProjects lists the user's projects
// @Summary     List projects
// @Description Lists the authenticated user's projects, newest first
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.ProjectListResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /projects [get]
func (h *ProjectsHandler) ListProjects(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	projects, err := h.db.ListProjects(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to list projects", Message: err.Error()})
		return
	}

	out := make([]models.ProjectResponse, len(projects))
	for i := range projects {
		out[i] = projectToResponse(&projects[i])
	}
	c.JSON(http.StatusOK, models.ProjectListResponse{Projects: out})
}

// DeleteProject deletes a project and its renders
// @Summary     Delete a project
// @Description Deletes a project owned by the authenticated user along with its renders and chains
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID (UUID)"
// @Success     200 {object} map[string]string
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /projects/{project_id} [delete]
func (h *ProjectsHandler) DeleteProject(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid project ID"})
		return
	}

	if err := h.db.DeleteProject(c.Request.Context(), projectID, userID); err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Project not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func projectToResponse(p *models.Project) models.ProjectResponse {
	resp := models.ProjectResponse{
		ID:        p.ID.String(),
		Name:      p.Name,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if p.Description.Valid {
		resp.Description = p.Description.String
	}
	return resp
}
