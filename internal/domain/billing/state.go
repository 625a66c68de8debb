package billing

import "github.com/bolibooks/bolibooks/internal/domain/entity"

// State is an invoice lifecycle status
type State string

const (
	StateDraft         State = entity.InvoiceStatusDraft
	StateSent          State = entity.InvoiceStatusSent
	StatePartiallyPaid State = entity.InvoiceStatusPartiallyPaid
	StatePaid          State = entity.InvoiceStatusPaid
	StateOverdue       State = entity.InvoiceStatusOverdue
	StateCancelled     State = entity.InvoiceStatusCancelled
)

var validStates = map[State]bool{
	StateDraft:         true,
	StateSent:          true,
	StatePartiallyPaid: true,
	StatePaid:          true,
	StateOverdue:       true,
	StateCancelled:     true,
}

// States lists every status in lifecycle order
var States = []State{StateDraft, StateSent, StatePartiallyPaid, StatePaid, StateOverdue, StateCancelled}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known invoice status
func (s State) IsValid() bool {
	return validStates[s]
}

// IsOpen reports whether the invoice is still expecting money
func (s State) IsOpen() bool {
	return s == StateSent || s == StatePartiallyPaid || s == StateOverdue
}
