package billing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolibooks/bolibooks/internal/domain/entity"
)

func decimalOf(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestSettle(t *testing.T) {
	tests := []struct {
		name    string
		current State
		paid    string
		total   string
		want    State
		wantErr bool
	}{
		{"full from sent", StateSent, "100", "100", StatePaid, false},
		{"full from draft", StateDraft, "100", "100", StatePaid, false},
		{"full from cancelled", StateCancelled, "100", "100", StatePaid, false},
		{"partial from sent", StateSent, "40", "100", StatePartiallyPaid, false},
		{"partial from overdue", StateOverdue, "40", "100", StatePartiallyPaid, false},
		{"partial from paid", StatePaid, "40", "100", StatePartiallyPaid, false},
		{"zero from paid", StatePaid, "0", "100", StateSent, false},
		{"zero from overdue", StateOverdue, "0", "100", StateOverdue, false},
		{"zero from partially paid", StatePartiallyPaid, "0", "100", StatePartiallyPaid, false},
		{"zero from cancelled", StateCancelled, "0", "100", StateCancelled, false},
		{"overpaid", StateSent, "100.01", "100", StateSent, true},
		{"negative", StateSent, "-1", "100", StateSent, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Settle(tt.current, decimalOf(tt.paid), decimalOf(tt.total))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBalanceOutOfRange)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyBalance_Scenario(t *testing.T) {
	inv := &entity.Invoice{
		Kind:       entity.DocumentKindInvoice,
		Status:     entity.InvoiceStatusSent,
		Total:      decimalOf("100.00"),
		PaidAmount: decimal.Zero,
	}
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	require.NoError(t, ApplyBalance(inv, decimalOf("40"), t1))
	assert.Equal(t, entity.InvoiceStatusPartiallyPaid, inv.Status)
	assert.Nil(t, inv.PaidAt)

	require.NoError(t, ApplyBalance(inv, decimalOf("100"), t1))
	assert.Equal(t, entity.InvoiceStatusPaid, inv.Status)
	require.NotNil(t, inv.PaidAt)
	assert.Equal(t, t1, *inv.PaidAt)

	// Staying paid keeps the original stamp
	require.NoError(t, ApplyBalance(inv, decimalOf("100"), t2))
	assert.Equal(t, t1, *inv.PaidAt)

	require.NoError(t, ApplyBalance(inv, decimalOf("40"), t2))
	assert.Equal(t, entity.InvoiceStatusPartiallyPaid, inv.Status)
	assert.Nil(t, inv.PaidAt)
	assert.True(t, decimalOf("40").Equal(inv.PaidAmount))
}

func TestApplyBalance_LeavesInvoiceOnError(t *testing.T) {
	inv := &entity.Invoice{Status: entity.InvoiceStatusSent, Total: decimalOf("100"), PaidAmount: decimalOf("40")}

	err := ApplyBalance(inv, decimalOf("140"), time.Now())
	assert.ErrorIs(t, err, ErrBalanceOutOfRange)
	assert.Equal(t, entity.InvoiceStatusSent, inv.Status)
	assert.True(t, decimalOf("40").Equal(inv.PaidAmount))
}

func TestApplyBalance_DeletingOnlyPaymentRevertsToSent(t *testing.T) {
	paidAt := time.Now()
	inv := &entity.Invoice{Status: entity.InvoiceStatusPaid, Total: decimalOf("50"), PaidAmount: decimalOf("50"), PaidAt: &paidAt}

	require.NoError(t, ApplyBalance(inv, decimal.Zero, time.Now()))
	assert.Equal(t, entity.InvoiceStatusSent, inv.Status)
	assert.Nil(t, inv.PaidAt)
}

func TestAdvance(t *testing.T) {
	inv := &entity.Invoice{Status: entity.InvoiceStatusDraft, PaidAmount: decimal.Zero}
	require.NoError(t, Advance(context.Background(), inv, TriggerSend))
	assert.Equal(t, entity.InvoiceStatusSent, inv.Status)

	err := Advance(context.Background(), inv, TriggerSend)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, entity.InvoiceStatusSent, inv.Status)
}

func TestIsOverdue(t *testing.T) {
	today := time.Date(2026, 5, 10, 15, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	earlierToday := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		status string
		due    *time.Time
		want   bool
	}{
		{"sent past due", entity.InvoiceStatusSent, &yesterday, true},
		{"partially paid past due", entity.InvoiceStatusPartiallyPaid, &yesterday, true},
		{"due today", entity.InvoiceStatusSent, &earlierToday, false},
		{"no due date", entity.InvoiceStatusSent, nil, false},
		{"paid", entity.InvoiceStatusPaid, &yesterday, false},
		{"draft", entity.InvoiceStatusDraft, &yesterday, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &entity.Invoice{Status: tt.status, DueDate: tt.due}
			assert.Equal(t, tt.want, IsOverdue(inv, today))
		})
	}
}
