package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionEarned TransactionType = "earned"
	TransactionSpent  TransactionType = "spent"
	TransactionRefund TransactionType = "refund"
	TransactionBonus  TransactionType = "bonus"
)

const (
	ReferenceRender       = "render"
	ReferenceSubscription = "subscription"
	ReferenceBonus        = "bonus"
	ReferenceRefund       = "refund"
)

// CreditAccount is the per-user balance row. The balance is only ever
// mutated through the ledger's conditional updates and never goes negative.
type CreditAccount struct {
	ID            uuid.UUID    `json:"id"`
	UserID        uuid.UUID    `json:"user_id"`
	Balance       int          `json:"balance"`
	TotalEarned   int          `json:"total_earned"`
	TotalSpent    int          `json:"total_spent"`
	MonthlyEarned int          `json:"monthly_earned"`
	MonthlySpent  int          `json:"monthly_spent"`
	LastResetAt   sql.NullTime `json:"last_reset_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// CreditTransaction is an append-only audit row. Amount is signed: positive
// for credits, negative for debits.
type CreditTransaction struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"user_id"`
	Amount        int             `json:"amount"`
	Type          TransactionType `json:"type"`
	Description   string          `json:"description"`
	ReferenceID   sql.NullString  `json:"reference_id,omitempty"`
	ReferenceType sql.NullString  `json:"reference_type,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
