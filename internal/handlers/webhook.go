package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"renderiq-backend/internal/billing"
	"renderiq-backend/internal/models"
)

type WebhookHandler struct {
	subscriptions *billing.SubscriptionService
	log           *slog.Logger
}

func NewWebhookHandler(subscriptions *billing.SubscriptionService, log *slog.Logger) *WebhookHandler {
	return &WebhookHandler{subscriptions: subscriptions, log: log}
}

// StripeWebhook processes Stripe events
// @Summary     Stripe webhook
// @Description Verifies and applies Stripe subscription events. Paid invoices grant monthly credits.
// @Tags        webhooks
// @Accept      json
// @Produce     json
// @Success     200 {object} map[string]string
// @Failure     400 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /webhooks/stripe [post]
func (h *WebhookHandler) StripeWebhook(c *gin.Context) {
	const maxBodyBytes = int64(65536)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid payload"})
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	if err := h.subscriptions.ProcessEvent(c.Request.Context(), body, sigHeader); err != nil {
		h.log.Error("stripe webhook processing failed", "error", err)
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Webhook processing failed", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
