package billing

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"renderiq-backend/internal/models"
)

// SubscriptionService syncs Stripe subscription state into the local
// tables and grants monthly credits when invoices are paid.
type SubscriptionService struct {
	db            *sql.DB
	ledger        *Ledger
	log           *slog.Logger
	webhookSecret string
}

func NewSubscriptionService(db *sql.DB, ledger *Ledger, log *slog.Logger, webhookSecret string) *SubscriptionService {
	return &SubscriptionService{db: db, ledger: ledger, log: log, webhookSecret: webhookSecret}
}

// IsPro reports whether the user has an active paid subscription whose
// current period has not ended.
func (s *SubscriptionService) IsPro(ctx context.Context, userID uuid.UUID) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM user_subscriptions
		WHERE user_id = $1 AND status = 'active' AND current_period_end > NOW()`,
		userID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check subscription: %w", err)
	}
	return count > 0, nil
}

// ProcessEvent verifies the webhook signature and applies the event.
// Unhandled event types are acknowledged without action.
func (s *SubscriptionService) ProcessEvent(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return fmt.Errorf("webhook signature verification failed: %w", err)
	}

	switch event.Type {
	case "invoice.payment_succeeded":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return fmt.Errorf("failed to parse invoice: %w", err)
		}
		if invoice.Customer == nil {
			return fmt.Errorf("invoice %s has no customer", invoice.ID)
		}
		return s.grantMonthlyCredits(ctx, invoice.Customer.ID, invoice.ID)

	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("failed to parse subscription: %w", err)
		}
		if sub.Customer == nil {
			return fmt.Errorf("subscription %s has no customer", sub.ID)
		}
		return s.syncSubscription(ctx, &sub)

	default:
		s.log.Debug("ignoring stripe event", "type", event.Type)
		return nil
	}
}

func (s *SubscriptionService) grantMonthlyCredits(ctx context.Context, stripeCustomerID, invoiceID string) error {
	var userID uuid.UUID
	var creditsPerMonth int
	err := s.db.QueryRowContext(ctx, `
		SELECT us.user_id, sp.credits_per_month
		FROM user_subscriptions us
		JOIN subscription_plans sp ON sp.id = us.plan_id
		WHERE us.stripe_customer_id = $1`,
		stripeCustomerID).Scan(&userID, &creditsPerMonth)
	if err == sql.ErrNoRows {
		s.log.Warn("invoice paid for unknown customer", "stripe_customer_id", stripeCustomerID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to look up subscription: %w", err)
	}
	if creditsPerMonth <= 0 {
		return nil
	}

	err = s.ledger.Credit(ctx, userID, creditsPerMonth, models.TransactionEarned,
		"Monthly subscription credits", uuid.Nil, models.ReferenceSubscription)
	if err != nil {
		return fmt.Errorf("failed to grant monthly credits: %w", err)
	}
	s.log.Info("monthly credits granted", "user_id", userID, "credits", creditsPerMonth, "invoice_id", invoiceID)
	return nil
}

func (s *SubscriptionService) syncSubscription(ctx context.Context, sub *stripe.Subscription) error {
	periodEnd := time.Unix(sub.CurrentPeriodEnd, 0)
	_, err := s.db.ExecContext(ctx, `
		UPDATE user_subscriptions
		SET status = $2, current_period_end = $3, updated_at = NOW()
		WHERE stripe_subscription_id = $1`,
		sub.ID, string(sub.Status), periodEnd)
	if err != nil {
		return fmt.Errorf("failed to sync subscription: %w", err)
	}
	s.log.Info("subscription synced", "stripe_subscription_id", sub.ID, "status", sub.Status)
	return nil
}
