package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"renderiq-backend/internal/database"
	"renderiq-backend/internal/models"
	"renderiq-backend/internal/services"
)

type RendersHandler struct {
	renders *services.RenderService
	db      *database.Client
}

func NewRendersHandler(renders *services.RenderService, db *database.Client) *RendersHandler {
	return &RendersHandler{renders: renders, db: db}
}

// GenerateImage handles image generation requests
// @Summary     Generate an image
// @Description Generates an image from a prompt, debiting the user's credit balance. An optional uploaded image drives image-to-image generation.
// @Tags        renders
// @Accept      multipart/form-data
// @Produce     json
// @Security    Bearer
// @Param       prompt formData string true "Generation prompt"
// @Param       projectId formData string true "Project ID (UUID)"
// @Param       model formData string false "Model ID, or 'auto' to pick by quality"
// @Param       quality formData string false "Quality tier (standard, high, ultra)"
// @Param       style formData string false "Style preset"
// @Param       aspectRatio formData string false "Aspect ratio"
// @Param       imageSize formData string false "Image size tier (1K, 2K, 4K)"
// @Param       chainId formData string false "Render chain ID (UUID)"
// @Param       referenceRenderId formData string false "Prior render to use as reference (UUID)"
// @Param       isPublic formData bool false "Gallery visibility (pro users only)"
// @Param       image formData file false "Source image"
// @Success     200 {object} models.GenerateResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     402 {object} models.InsufficientCreditsResponse
// @Failure     500 {object} models.GenerateResponse
// @Router      /renders [post]
func (h *RendersHandler) GenerateImage(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	prompt := c.PostForm("prompt")
	projectIDStr := c.PostForm("projectId")
	if prompt == "" || projectIDStr == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Missing required fields"})
		return
	}

	projectID, err := parseOptionalUUID(projectIDStr)
	if err != nil || !projectID.Valid {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid project ID"})
		return
	}

	chainID, err := parseOptionalUUID(c.PostForm("chainId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid chain ID"})
		return
	}
	referenceRenderID, err := parseOptionalUUID(c.PostForm("referenceRenderId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid reference render ID"})
		return
	}

	sourceImage, sourceMIME, sourceFilename, err := readFormFile(c, "image")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Failed to read image", Message: err.Error()})
		return
	}

	result, err := h.renders.GenerateImage(c.Request.Context(), services.ImageParams{
		UserID:            userID,
		ProjectID:         projectID.UUID,
		Prompt:            prompt,
		Model:             c.PostForm("model"),
		Style:             c.PostForm("style"),
		Quality:           c.PostForm("quality"),
		AspectRatio:       c.DefaultPostForm("aspectRatio", "1:1"),
		ImageSize:         c.PostForm("imageSize"),
		SourceImage:       sourceImage,
		SourceMIME:        sourceMIME,
		SourceFilename:    sourceFilename,
		ChainID:           chainID,
		ReferenceRenderID: referenceRenderID,
		IsPublic:          parseIsPublic(c.PostForm("isPublic")),
	})
	if err != nil {
		writeGenerationError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.GenerateResponse{
		Success: true,
		Data: &models.RenderResult{
			ID:             result.RenderID.String(),
			OutputURL:      result.OutputURL,
			Status:         string(result.Status),
			ProcessingTime: result.ProcessingTime,
		},
	})
}

// GetRender returns a single render
// @Summary     Get render details
// @Description Returns a render owned by the authenticated user
// @Tags        renders
// @Produce     json
// @Security    Bearer
// @Param       render_id path string true "Render ID (UUID)"
// @Success     200 {object} models.RenderResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /renders/{render_id} [get]
func (h *RendersHandler) GetRender(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	renderID, err := uuid.Parse(c.Param("render_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid render ID"})
		return
	}

	render, err := h.db.GetRender(c.Request.Context(), renderID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Render not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to get render", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, renderToResponse(render))
}

// ListRenders lists renders in a project
// @Summary     List renders
// @Description Lists the authenticated user's renders for a project, newest first
// @Tags        renders
// @Produce     json
// @Security    Bearer
// @Param       project_id query string true "Project ID (UUID)"
// @Success     200 {object} models.RenderListResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /renders [get]
func (h *RendersHandler) ListRenders(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	projectID, err := uuid.Parse(c.Query("project_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid project ID"})
		return
	}

	renders, err := h.db.ListRendersByProject(c.Request.Context(), projectID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to list renders", Message: err.Error()})
		return
	}

	out := make([]models.RenderResponse, len(renders))
	for i := range renders {
		out[i] = renderToResponse(&renders[i])
	}
	c.JSON(http.StatusOK, models.RenderListResponse{Renders: out})
}

// CreateChain starts a new render chain in a project
// @Summary     Create a render chain
// @Description Creates a chain that groups iterative renders in order
// @Tags        renders
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       request body models.CreateChainRequest true "Chain attributes"
// @Success     200 {object} models.RenderChain
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /chains [post]
func (h *RendersHandler) CreateChain(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req models.CreateChainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Missing required fields"})
		return
	}

	projectID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid project ID"})
		return
	}

	// Ownership check before creating anything under the project.
	if _, err := h.db.GetProject(c.Request.Context(), projectID, userID); err != nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "Project not found"})
		return
	}

	chain, err := h.db.CreateChain(c.Request.Context(), projectID, req.Name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to create chain", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, chain)
}

func renderToResponse(r *models.Render) models.RenderResponse {
	resp := models.RenderResponse{
		ID:          r.ID.String(),
		ProjectID:   r.ProjectID.String(),
		Type:        string(r.Type),
		Prompt:      r.Prompt,
		Status:      string(r.Status),
		CreditsCost: r.CreditsCost,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.OutputURL.Valid {
		resp.OutputURL = r.OutputURL.String
	}
	if r.ErrorMessage.Valid {
		resp.ErrorMessage = r.ErrorMessage.String
	}
	if r.ProcessingTime.Valid {
		resp.ProcessingTime = int(r.ProcessingTime.Int64)
	}
	if r.ChainID.Valid {
		resp.ChainID = r.ChainID.UUID.String()
	}
	if r.ChainPosition.Valid {
		resp.ChainPosition = int(r.ChainPosition.Int64)
	}
	return resp
}
