package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"renderiq-backend/internal/middleware"
	"renderiq-backend/internal/models"
	"renderiq-backend/internal/services"
)

// requireUserID reads the authenticated user or writes a 401.
func requireUserID(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized"})
		return uuid.Nil, false
	}
	return userID, true
}

// writeGenerationError maps service errors onto the generation endpoint
// status contract.
func writeGenerationError(c *gin.Context, err error) {
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: validationErr.Message})
		return
	}

	var creditsErr *services.InsufficientCreditsError
	if errors.As(err, &creditsErr) {
		c.JSON(http.StatusPaymentRequired, models.InsufficientCreditsResponse{
			Error:     "Insufficient credits",
			Required:  creditsErr.Required,
			Available: creditsErr.Available,
		})
		return
	}

	// Server-side failures have already been refunded by the service.
	c.JSON(http.StatusInternalServerError, models.GenerateResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// readFormFile reads an optional multipart file field. A missing field
// is not an error.
func readFormFile(c *gin.Context, field string) ([]byte, string, string, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		return nil, "", "", nil
	}
	data, contentType, err := readMultipartFile(fileHeader)
	if err != nil {
		return nil, "", "", err
	}
	return data, contentType, fileHeader.Filename, nil
}

func readMultipartFile(fileHeader *multipart.FileHeader) ([]byte, string, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	return data, fileHeader.Header.Get("Content-Type"), nil
}

// parseOptionalUUID parses a form value into a nullable UUID. Empty
// values are valid and null.
func parseOptionalUUID(value string) (uuid.NullUUID, error) {
	if value == "" {
		return uuid.NullUUID{}, nil
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.NullUUID{}, err
	}
	return uuid.NullUUID{UUID: id, Valid: true}, nil
}

// parseIsPublic reads the gallery visibility choice. Nil means the
// field was absent and the default applies.
func parseIsPublic(value string) *bool {
	switch value {
	case "true", "1":
		v := true
		return &v
	case "false", "0":
		v := false
		return &v
	default:
		return nil
	}
}
