package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"renderiq-backend/internal/billing"
	"renderiq-backend/internal/models"
)

type CreditsHandler struct {
	ledger *billing.Ledger
}

func NewCreditsHandler(ledger *billing.Ledger) *CreditsHandler {
	return &CreditsHandler{ledger: ledger}
}

// GetCredits returns the user's credit balance
// @Summary     Get credit balance
// @Description Returns the authenticated user's balance and lifetime counters. Creates the account with welcome credits on first call.
// @Tags        credits
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.CreditsResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /credits [get]
func (h *CreditsHandler) GetCredits(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	account, err := h.ledger.Balance(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to get credits", Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.CreditsResponse{
		Balance:       account.Balance,
		TotalEarned:   account.TotalEarned,
		TotalSpent:    account.TotalSpent,
		MonthlyEarned: account.MonthlyEarned,
		MonthlySpent:  account.MonthlySpent,
	})
}

// ListTransactions returns the user's credit history
// @Summary     List credit transactions
// @Description Returns the authenticated user's credit transactions, newest first
// @Tags        credits
// @Produce     json
// @Security    Bearer
// @Param       limit query int false "Maximum rows to return (default 50, max 100)"
// @Success     200 {object} models.TransactionListResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /credits/transactions [get]
func (h *CreditsHandler) ListTransactions(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	transactions, err := h.ledger.Transactions(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to list transactions", Message: err.Error()})
		return
	}

	out := make([]models.TransactionResponse, len(transactions))
	for i, t := range transactions {
		out[i] = models.TransactionResponse{
			ID:          t.ID.String(),
			Amount:      t.Amount,
			Type:        string(t.Type),
			Description: t.Description,
			CreatedAt:   t.CreatedAt,
		}
		if t.ReferenceID.Valid {
			out[i].ReferenceID = t.ReferenceID.String
		}
		if t.ReferenceType.Valid {
			out[i].ReferenceType = t.ReferenceType.String
		}
	}
	c.JSON(http.StatusOK, models.TransactionListResponse{Transactions: out})
}
