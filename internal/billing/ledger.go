// Package billing manages credit accounts. Every balance mutation goes
// through the ledger and leaves an immutable transaction row behind.
package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"renderiq-backend/internal/models"
)

// ErrInsufficientCredits is returned by Debit when the account balance
// cannot cover the requested amount.
var ErrInsufficientCredits = errors.New("insufficient credits")

type Ledger struct {
	db          *sql.DB
	log         *slog.Logger
	freeCredits int
}

func NewLedger(db *sql.DB, log *slog.Logger, freeCredits int) *Ledger {
	return &Ledger{db: db, log: log, freeCredits: freeCredits}
}

// Balance returns the user's credit account, creating it with the
// signup grant on first touch and applying the lazy monthly counter
// reset when a new calendar month has started.
func (l *Ledger) Balance(ctx context.Context, userID uuid.UUID) (*models.CreditAccount, error) {
	if err := l.ensureAccount(ctx, userID); err != nil {
		return nil, err
	}

	_, err := l.db.ExecContext(ctx, `
		UPDATE user_credits
		SET monthly_earned = 0, monthly_spent = 0, last_reset_at = NOW(), updated_at = NOW()
		WHERE user_id = $1 AND last_reset_at < date_trunc('month', NOW())`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to reset monthly counters: %w", err)
	}

	account := &models.CreditAccount{}
	err = l.db.QueryRowContext(ctx, `
		SELECT id, user_id, balance, total_earned, total_spent, monthly_earned, monthly_spent, last_reset_at, created_at, updated_at
		FROM user_credits WHERE user_id = $1`,
		userID).Scan(
		&account.ID, &account.UserID, &account.Balance,
		&account.TotalEarned, &account.TotalSpent,
		&account.MonthlyEarned, &account.MonthlySpent,
		&account.LastResetAt, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch credit account: %w", err)
	}
	return account, nil
}

// Debit atomically removes amount credits from the user's balance.
// The balance check and decrement happen in one conditional UPDATE so
// concurrent debits can never drive the balance negative.
func (l *Ledger) Debit(ctx context.Context, userID uuid.UUID, amount int, description string, referenceID uuid.UUID, referenceType string) error {
	if amount <= 0 {
		return fmt.Errorf("debit amount must be positive, got %d", amount)
	}
	if err := l.ensureAccount(ctx, userID); err != nil {
		return err
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE user_credits
		SET balance = balance - $2,
		    total_spent = total_spent + $2,
		    monthly_spent = monthly_spent + $2,
		    updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2`,
		userID, amount)
	if err != nil {
		return fmt.Errorf("failed to debit credits: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if rows == 0 {
		return ErrInsufficientCredits
	}

	if err := l.recordTransaction(ctx, tx, userID, -amount, models.TransactionSpent, description, referenceID, referenceType); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit debit: %w", err)
	}

	l.log.Info("credits debited", "user_id", userID, "amount", amount, "reference_type", referenceType)
	return nil
}

// EarnedDelta returns how far the earned counters move for a credit of
// the given type. Refunds restore balance only; total_earned and
// total_spent never decrease.
func EarnedDelta(txType models.TransactionType, amount int) int {
	if txType == models.TransactionRefund {
		return 0
	}
	return amount
}

// Credit adds amount credits to the user's balance. txType selects
// which earned counters move alongside the balance.
func (l *Ledger) Credit(ctx context.Context, userID uuid.UUID, amount int, txType models.TransactionType, description string, referenceID uuid.UUID, referenceType string) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	if err := l.ensureAccount(ctx, userID); err != nil {
		return err
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE user_credits
		SET balance = balance + $2,
		    total_earned = total_earned + $3,
		    monthly_earned = monthly_earned + $3,
		    updated_at = NOW()
		WHERE user_id = $1`,
		userID, amount, EarnedDelta(txType, amount))
	if err != nil {
		return fmt.Errorf("failed to credit account: %w", err)
	}

	if err := l.recordTransaction(ctx, tx, userID, amount, txType, description, referenceID, referenceType); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit credit: %w", err)
	}

	l.log.Info("credits added", "user_id", userID, "amount", amount, "type", txType)
	return nil
}

// Transactions returns the user's transaction history, newest first.
func (l *Ledger) Transactions(ctx context.Context, userID uuid.UUID, limit int) ([]models.CreditTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, user_id, amount, type, description, reference_id, reference_type, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []models.CreditTransaction
	for rows.Next() {
		var t models.CreditTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Amount, &t.Type, &t.Description, &t.ReferenceID, &t.ReferenceType, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

func (l *Ledger) ensureAccount(ctx context.Context, userID uuid.UUID) error {
	result, err := l.db.ExecContext(ctx, `
		INSERT INTO user_credits (id, user_id, balance, total_earned, monthly_earned, last_reset_at, created_at, updated_at)
		VALUES ($1, $2, $3, $3, $3, NOW(), NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING`,
		uuid.New(), userID, l.freeCredits)
	if err != nil {
		return fmt.Errorf("failed to ensure credit account: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows > 0 {
		if err := l.recordSignupGrant(ctx, userID); err != nil {
			return err
		}
		l.log.Info("credit account created", "user_id", userID, "free_credits", l.freeCredits)
	}
	return nil
}

func (l *Ledger) recordSignupGrant(ctx context.Context, userID uuid.UUID) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO credit_transactions (id, user_id, amount, type, description, reference_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		uuid.New(), userID, l.freeCredits, models.TransactionBonus, "Welcome credits", models.ReferenceBonus)
	if err != nil {
		return fmt.Errorf("failed to record signup grant: %w", err)
	}
	return nil
}

func (l *Ledger) recordTransaction(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount int, txType models.TransactionType, description string, referenceID uuid.UUID, referenceType string) error {
	var refID sql.NullString
	if referenceID != uuid.Nil {
		refID = sql.NullString{String: referenceID.String(), Valid: true}
	}
	var refType sql.NullString
	if referenceType != "" {
		refType = sql.NullString{String: referenceType, Valid: true}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO credit_transactions (id, user_id, amount, type, description, reference_id, reference_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New(), userID, amount, txType, description, refID, refType, time.Now())
	if err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}
