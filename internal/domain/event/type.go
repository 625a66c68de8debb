package event

// Type identifies the type of domain event
type Type string

const (
	TypePaymentRecorded         Type = "payment.recorded"
	TypePaymentUpdated          Type = "payment.updated"
	TypePaymentDeleted          Type = "payment.deleted"
	TypeInvoicePaid             Type = "invoice.paid"
	TypeInvoiceOverdue          Type = "invoice.overdue"
	TypeGatewayPaymentSucceeded Type = "gateway.payment_succeeded"
	TypeGatewayPaymentFailed    Type = "gateway.payment_failed"
	TypeGatewayPaymentUnapplied Type = "gateway.payment_unapplied"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypePaymentRecorded,
		TypePaymentUpdated,
		TypePaymentDeleted,
		TypeInvoicePaid,
		TypeInvoiceOverdue,
		TypeGatewayPaymentSucceeded,
		TypeGatewayPaymentFailed,
		TypeGatewayPaymentUnapplied:
		return true
	default:
		return false
	}
}
