package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"renderiq-backend/internal/models"
	"renderiq-backend/internal/services"
)

type VideoHandler struct {
	renders *services.RenderService
}

func NewVideoHandler(renders *services.RenderService) *VideoHandler {
	return &VideoHandler{renders: renders}
}

// GenerateVideo handles video generation requests
// @Summary     Generate a video
// @Description Generates a video from a prompt, debiting the user's credit balance. Optional first and last frame images drive image-to-video and keyframe generation.
// @Tags        video
// @Accept      multipart/form-data
// @Produce     json
// @Security    Bearer
// @Param       prompt formData string true "Generation prompt"
// @Param       projectId formData string true "Project ID (UUID)"
// @Param       duration formData int true "Duration in seconds (4, 6, or 8)"
// @Param       model formData string false "Model ID, or 'auto' to pick by quality"
// @Param       quality formData string false "Quality tier (standard, high, ultra)"
// @Param       aspectRatio formData string false "Aspect ratio (16:9 or 9:16)"
// @Param       resolution formData string false "Output resolution"
// @Param       generationType formData string false "text-to-video, image-to-video, or keyframe-sequence"
// @Param       chainId formData string false "Render chain ID (UUID)"
// @Param       referenceRenderId formData string false "Prior render to use as the first frame (UUID)"
// @Param       isPublic formData bool false "Gallery visibility (pro users only)"
// @Param       firstFrame formData file false "First frame image"
// @Param       lastFrame formData file false "Last frame image"
// @Param       uploadedImage formData file false "Conditioning image for image-to-video"
// @Param       keyframeCount formData int false "Number of keyframe_N file parts for keyframe-sequence"
// @Success     200 {object} models.GenerateResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     402 {object} models.InsufficientCreditsResponse
// @Failure     500 {object} models.GenerateResponse
// @Router      /video [post]
func (h *VideoHandler) GenerateVideo(c *gin.Context) {
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

	duration, err := strconv.Atoi(c.DefaultPostForm("duration", "8"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Duration must be 4, 6, or 8 seconds"})
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

	firstFrame, _, _, err := readFormFile(c, "firstFrame")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Failed to read first frame", Message: err.Error()})
		return
	}
	// Image-to-video requests send their conditioning image as either
	// "uploadedImage" or "image".
	for _, field := range []string{"uploadedImage", "image"} {
		if len(firstFrame) > 0 {
			break
		}
		firstFrame, _, _, err = readFormFile(c, field)
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Failed to read image", Message: err.Error()})
			return
		}
	}
	lastFrame, _, _, err := readFormFile(c, "lastFrame")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Failed to read last frame", Message: err.Error()})
		return
	}

	// Keyframe-sequence requests send keyframe_0..keyframe_N-1. The
	// first and last keyframes bound the sequence and the full set is
	// forwarded for conditioning.
	var referenceFrames [][]byte
	keyframeCount, _ := strconv.Atoi(c.PostForm("keyframeCount"))
	for i := 0; i < keyframeCount; i++ {
		frame, _, _, err := readFormFile(c, fmt.Sprintf("keyframe_%d", i))
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Failed to read keyframe", Message: err.Error()})
			return
		}
		if len(frame) > 0 {
			referenceFrames = append(referenceFrames, frame)
		}
	}
	if len(referenceFrames) > 0 {
		if len(firstFrame) == 0 {
			firstFrame = referenceFrames[0]
		}
		if len(lastFrame) == 0 {
			lastFrame = referenceFrames[len(referenceFrames)-1]
		}
	}

	result, err := h.renders.GenerateVideo(c.Request.Context(), services.VideoParams{
		UserID:            userID,
		ProjectID:         projectID.UUID,
		Prompt:            prompt,
		Model:             c.PostForm("model"),
		Quality:           c.PostForm("quality"),
		AspectRatio:       c.DefaultPostForm("aspectRatio", "16:9"),
		Duration:          duration,
		GenerationType:    c.PostForm("generationType"),
		Resolution:        c.PostForm("resolution"),
		FirstFrame:        firstFrame,
		LastFrame:         lastFrame,
		ReferenceFrames:   referenceFrames,
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
