package billing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"renderiq-backend/internal/billing"
	"renderiq-backend/internal/models"
)

func TestEarnedDelta(t *testing.T) {
	tests := []struct {
		name   string
		txType models.TransactionType
		amount int
		want   int
	}{
		{name: "earned credits move the counters", txType: models.TransactionEarned, amount: 100, want: 100},
		{name: "bonus credits move the counters", txType: models.TransactionBonus, amount: 10, want: 10},
		{name: "refunds restore balance only", txType: models.TransactionRefund, amount: 128, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, billing.EarnedDelta(tt.txType, tt.amount))
		})
	}
}
