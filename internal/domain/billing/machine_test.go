package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{"draft", StateDraft, true},
		{"cancelled", StateCancelled, true},
		{"unknown", State("void"), false},
		{"empty", State(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.state.IsValid())
		})
	}
}

func TestBuilder_ConfigureReturnsSameConfig(t *testing.T) {
	b := NewBuilder()
	assert.Same(t, b.Configure(StateDraft), b.Configure(StateDraft))
}

func TestBuilder_PanicsOnInvalidStates(t *testing.T) {
	assert.Panics(t, func() { NewBuilder().Configure(State("nope")) })
	assert.Panics(t, func() { NewBuilder().Build(State("nope")) })
	assert.Panics(t, func() { NewBuilder().Configure(StateDraft).Permit(TriggerSend, State("nope")) })
}

func TestStateMachine_Fire(t *testing.T) {
	b := NewBuilder()
	b.Configure(StateDraft).Permit(TriggerSend, StateSent)

	m := b.Build(StateDraft)
	require.NoError(t, m.Fire(context.Background(), TriggerSend))
	assert.Equal(t, StateSent, m.State())

	err := m.Fire(context.Background(), TriggerSend)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, StateSent, m.State())
}

func TestStateMachine_GuardOrder(t *testing.T) {
	type flag struct{}
	b := NewBuilder()
	b.Configure(StateSent).
		PermitIf(TriggerCancel, StateCancelled, func(ctx context.Context) bool { return ctx.Value(flag{}) == true }).
		PermitIf(TriggerCancel, StateOverdue, func(ctx context.Context) bool { return ctx.Value(flag{}) != true })

	m1 := b.Build(StateSent)
	require.NoError(t, m1.Fire(context.WithValue(context.Background(), flag{}, true), TriggerCancel))
	assert.Equal(t, StateCancelled, m1.State())

	m2 := b.Build(StateSent)
	require.NoError(t, m2.Fire(context.Background(), TriggerCancel))
	assert.Equal(t, StateOverdue, m2.State())
}

func TestStateMachine_MachinesAreIndependent(t *testing.T) {
	b := NewBuilder()
	b.Configure(StateDraft).Permit(TriggerSend, StateSent)

	m1 := b.Build(StateDraft)
	m2 := b.Build(StateDraft)
	require.NoError(t, m1.Fire(context.Background(), TriggerSend))

	assert.Equal(t, StateSent, m1.State())
	assert.Equal(t, StateDraft, m2.State())
}

func TestStateMachine_PermittedTriggers(t *testing.T) {
	m, err := NewInvoiceMachine(StatePaid, decimalOf("100"))
	require.NoError(t, err)

	assert.Equal(t, []Trigger{TriggerClearPayments, TriggerPayInFull, TriggerPayPartially}, m.PermittedTriggers())
}

func TestInvoiceMachine_Lifecycle(t *testing.T) {
	tests := []struct {
		name    string
		from    State
		paid    string
		trigger Trigger
		want    State
		wantErr error
	}{
		{"send draft", StateDraft, "0", TriggerSend, StateSent, nil},
		{"cancel unpaid draft", StateDraft, "0", TriggerCancel, StateCancelled, nil},
		{"cancel unpaid overdue", StateOverdue, "0", TriggerCancel, StateCancelled, nil},
		{"cancel with payments", StateOverdue, "10", TriggerCancel, StateOverdue, ErrGuardFailed},
		{"cancel partially paid", StatePartiallyPaid, "10", TriggerCancel, StatePartiallyPaid, ErrGuardFailed},
		{"cancel emptied partially paid", StatePartiallyPaid, "0", TriggerCancel, StateCancelled, nil},
		{"overdue from sent", StateSent, "0", TriggerMarkOverdue, StateOverdue, nil},
		{"overdue from partially paid", StatePartiallyPaid, "5", TriggerMarkOverdue, StateOverdue, nil},
		{"overdue from paid", StatePaid, "100", TriggerMarkOverdue, StatePaid, ErrInvalidTransition},
		{"send twice", StateSent, "0", TriggerSend, StateSent, ErrInvalidTransition},
		{"pay cancelled", StateCancelled, "0", TriggerPayPartially, StatePartiallyPaid, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewInvoiceMachine(tt.from, decimalOf(tt.paid))
			require.NoError(t, err)

			err = m.Fire(context.Background(), tt.trigger)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, m.CanFire(context.Background(), tt.trigger))
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, m.State())
		})
	}
}

func TestNewInvoiceMachine_InvalidState(t *testing.T) {
	_, err := NewInvoiceMachine(State("archived"), decimalOf("0"))
	assert.ErrorIs(t, err, ErrInvalidState)
}
