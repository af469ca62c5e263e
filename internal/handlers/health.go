package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"renderiq-backend/internal/models"
)

// HealthCheck reports service liveness
// @Summary     Health check
// @Description Returns ok when the service is up
// @Tags        health
// @Produce     json
// @Success     200 {object} models.HealthResponse
// @Router      /health [get]
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, models.HealthResponse{Status: "ok"})
}
