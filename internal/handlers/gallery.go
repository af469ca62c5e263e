package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"renderiq-backend/internal/database"
	"renderiq-backend/internal/models"
)

type GalleryHandler struct {
	db *database.Client
}

func NewGalleryHandler(db *database.Client) *GalleryHandler {
	return &GalleryHandler{db: db}
}

// ListGallery returns public gallery items
// @Summary     Browse the public gallery
// @Description Returns public completed renders, newest first. No authentication required.
// @Tags        gallery
// @Produce     json
// @Param       limit query int false "Page size (default 20, max 100)"
// @Param       offset query int false "Page offset"
// @Success     200 {object} models.GalleryListResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /gallery [get]
func (h *GalleryHandler) ListGallery(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	entries, err := h.db.ListGallery(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to list gallery", Message: err.Error()})
		return
	}

	items := make([]models.GalleryItemResponse, len(entries))
	for i, e := range entries {
		items[i] = models.GalleryItemResponse{
			ID:        e.Item.ID.String(),
			RenderID:  e.Item.RenderID.String(),
			Type:      string(e.Render.Type),
			Prompt:    e.Render.Prompt,
			Likes:     e.Item.Likes,
			Views:     e.Item.Views,
			Featured:  e.Item.Featured,
			CreatedAt: e.Item.CreatedAt,
		}
		if e.Render.OutputURL.Valid {
			items[i].OutputURL = e.Render.OutputURL.String
		}
	}
	c.JSON(http.StatusOK, models.GalleryListResponse{Items: items})
}
