package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bolibooks/bolibooks/internal/domain/entity"
)

// NewInvoiceMachine builds the lifecycle of one invoice positioned at current.
// Cancellation is only permitted while nothing has been paid. Payment triggers
// are accepted from every state, cancelled included.
func NewInvoiceMachine(current State, paid decimal.Decimal) (StateMachine, error) {
	if !current.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, current)
	}

	unpaid := func(context.Context) bool { return paid.IsZero() }

	b := NewBuilder()

	b.Configure(StateDraft).
		Permit(TriggerSend, StateSent).
		PermitIf(TriggerCancel, StateCancelled, unpaid)

	b.Configure(StateSent).
		PermitIf(TriggerCancel, StateCancelled, unpaid).
		Permit(TriggerMarkOverdue, StateOverdue)

	b.Configure(StatePartiallyPaid).
		PermitIf(TriggerCancel, StateCancelled, unpaid).
		Permit(TriggerMarkOverdue, StateOverdue)

	b.Configure(StateOverdue).
		PermitIf(TriggerCancel, StateCancelled, unpaid)

	b.Configure(StatePaid).
		Permit(TriggerClearPayments, StateSent)

	for _, s := range States {
		b.Configure(s).
			Permit(TriggerPayPartially, StatePartiallyPaid).
			Permit(TriggerPayInFull, StatePaid)
	}

	return b.Build(current), nil
}

// Settle derives the status an invoice takes once its paid amount becomes paid.
// A fully paid balance is paid, a partial balance is partially_paid, and a zero
// balance falls back from paid to sent while leaving any other status alone.
func Settle(current State, paid, total decimal.Decimal) (State, error) {
	if paid.IsNegative() || paid.GreaterThan(total) {
		return current, fmt.Errorf("%w: paid %s of total %s", ErrBalanceOutOfRange, paid, total)
	}

	var trigger Trigger
	switch {
	case paid.GreaterThanOrEqual(total):
		trigger = TriggerPayInFull
	case paid.IsPositive():
		trigger = TriggerPayPartially
	case current == StatePaid:
		trigger = TriggerClearPayments
	default:
		return current, nil
	}

	m, err := NewInvoiceMachine(current, paid)
	if err != nil {
		return current, err
	}
	if err := m.Fire(context.Background(), trigger); err != nil {
		return current, err
	}
	return m.State(), nil
}

// ApplyBalance sets the invoice's paid amount and re-derives status and paid_at.
// paid_at is stamped on entering paid, kept while paid, and cleared otherwise.
// The invoice is left untouched on error.
func ApplyBalance(inv *entity.Invoice, paid decimal.Decimal, now time.Time) error {
	prev := State(inv.Status)
	next, err := Settle(prev, paid, inv.Total)
	if err != nil {
		return err
	}

	inv.PaidAmount = paid
	inv.Status = next.String()

	switch {
	case next != StatePaid:
		inv.PaidAt = nil
	case prev != StatePaid || inv.PaidAt == nil:
		stamp := now
		inv.PaidAt = &stamp
	}
	return nil
}

// Advance fires a lifecycle trigger against the invoice and stores the new status
func Advance(ctx context.Context, inv *entity.Invoice, trigger Trigger) error {
	m, err := NewInvoiceMachine(State(inv.Status), inv.PaidAmount)
	if err != nil {
		return err
	}
	if err := m.Fire(ctx, trigger); err != nil {
		return err
	}
	inv.Status = m.State().String()
	return nil
}

// IsOverdue reports whether an open invoice is past its due date on day today
func IsOverdue(inv *entity.Invoice, today time.Time) bool {
	s := State(inv.Status)
	if inv.DueDate == nil || (s != StateSent && s != StatePartiallyPaid) {
		return false
	}
	y, m, d := today.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, today.Location())
	return inv.DueDate.Before(start)
}
