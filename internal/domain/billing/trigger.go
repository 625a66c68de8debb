package billing

// Trigger represents an event that can cause a status transition
type Trigger string

const (
	TriggerSend          Trigger = "send"
	TriggerCancel        Trigger = "cancel"
	TriggerMarkOverdue   Trigger = "mark_overdue"
	TriggerPayPartially  Trigger = "pay_partially"
	TriggerPayInFull     Trigger = "pay_in_full"
	TriggerClearPayments Trigger = "clear_payments"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
