package entity

// DocumentKind distinguishes the documents stored in the invoices table
type DocumentKind string

const (
	DocumentKindInvoice DocumentKind = "invoice"
	DocumentKindQuote   DocumentKind = "quote"
)

// IsValid reports whether k is a known document kind
func (k DocumentKind) IsValid() bool {
	return k == DocumentKindInvoice || k == DocumentKindQuote
}

// NumberPrefix returns the prefix used when numbering documents of this kind
func (k DocumentKind) NumberPrefix() string {
	if k == DocumentKindQuote {
		return "QT"
	}
	return "INV"
}

// SequenceScope returns the sequence name documents of this kind draw numbers from
func (k DocumentKind) SequenceScope() string {
	return "document:" + string(k)
}

// Invoice statuses
const (
	InvoiceStatusDraft         = "draft"
	InvoiceStatusSent          = "sent"
	InvoiceStatusPartiallyPaid = "partially_paid"
	InvoiceStatusPaid          = "paid"
	InvoiceStatusOverdue       = "overdue"
	InvoiceStatusCancelled     = "cancelled"
)

// PaymentMethod is how a payment was settled
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCheque       PaymentMethod = "cheque"
	PaymentMethodStripe       PaymentMethod = "stripe"
	PaymentMethodPayPal       PaymentMethod = "paypal"
	PaymentMethodBML          PaymentMethod = "bml"
	PaymentMethodOther        PaymentMethod = "other"
)

// PaymentMethods lists every accepted payment method in display order
var PaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodCard,
	PaymentMethodBankTransfer,
	PaymentMethodCheque,
	PaymentMethodStripe,
	PaymentMethodPayPal,
	PaymentMethodBML,
	PaymentMethodOther,
}

// IsValid reports whether m is an accepted payment method
func (m PaymentMethod) IsValid() bool {
	for _, known := range PaymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

// PaymentStatus is the settlement state of a payment row
type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// IsValid reports whether s is a known payment status
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusCompleted, PaymentStatusPending, PaymentStatusFailed:
		return true
	}
	return false
}

// Role is a user's permission level within a company
type Role string

const (
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
	RoleStaff Role = "staff"
)

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleStaff:
		return true
	}
	return false
}

// CanManage reports whether the role may change company settings and plans
func (r Role) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

// POS sale statuses
const (
	POSSaleStatusCompleted = "completed"
	POSSaleStatusVoided    = "voided"
)

// PlanInterval is the billing period of a subscription plan
type PlanInterval string

const (
	PlanIntervalMonth PlanInterval = "month"
	PlanIntervalYear  PlanInterval = "year"
)

// IsValid reports whether i is a known interval
func (i PlanInterval) IsValid() bool {
	return i == PlanIntervalMonth || i == PlanIntervalYear
}

// Activity actions
const (
	ActionPaymentRecorded  = "payment.recorded"
	ActionPaymentUpdated   = "payment.updated"
	ActionPaymentDeleted   = "payment.deleted"
	ActionInvoicePaid      = "invoice.paid"
	ActionInvoiceOverdue   = "invoice.overdue"
	ActionDocumentCreated  = "document.created"
	ActionDocumentSent     = "document.sent"
	ActionDocumentCanceled = "document.cancelled"
	ActionDocumentDeleted  = "document.deleted"
	ActionQuoteConverted   = "quote.converted"
	ActionSaleCreated      = "pos_sale.created"
	ActionSaleVoided       = "pos_sale.voided"
)
