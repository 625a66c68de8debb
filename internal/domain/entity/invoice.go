package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is a billable document. Quotes share the table and are told apart by Kind.
type Invoice struct {
	ID              int64           `json:"id"`
	CompanyID       int64           `json:"company_id"`
	CustomerID      int64           `json:"customer_id"`
	Kind            DocumentKind    `json:"kind"`
	Number          string          `json:"number"`
	Status          string          `json:"status"`
	IssueDate       time.Time       `json:"issue_date"`
	DueDate         *time.Time      `json:"due_date,omitempty"`
	Currency        string          `json:"currency"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountTotal   decimal.Decimal `json:"discount_total"`
	TaxTotal        decimal.Decimal `json:"tax_total"`
	Total           decimal.Decimal `json:"total"`
	PaidAmount      decimal.Decimal `json:"paid_amount"`
	PaidAt          *time.Time      `json:"paid_at"`
	Notes           string          `json:"notes,omitempty"`
	PortalToken     string          `json:"portal_token,omitempty"`
	ConvertedFromID *int64          `json:"converted_from_id,omitempty"`
	ConvertedToID   *int64          `json:"converted_to_id,omitempty"`
	Version         int64           `json:"version"`
	Items           []InvoiceItem   `json:"items,omitempty"`
	Customer        *Customer       `json:"customer,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Tombstone
}

// InvoiceItem is one line of a document
type InvoiceItem struct {
	ID           int64           `json:"id"`
	InvoiceID    int64           `json:"invoice_id"`
	ProductID    *int64          `json:"product_id,omitempty"`
	Description  string          `json:"description"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	LineAmounts
	Position int `json:"position"`
}

// RemainingBalance is total minus what has been paid so far
func (i *Invoice) RemainingBalance() decimal.Decimal {
	return i.Total.Sub(i.PaidAmount)
}

// IsPayable reports whether payments may be recorded against the document
func (i *Invoice) IsPayable() bool {
	return i.Kind == DocumentKindInvoice && !i.IsDeleted()
}

// IsEditable reports whether lines and dates may still change
func (i *Invoice) IsEditable() bool {
	return i.Status == InvoiceStatusDraft && i.PaidAmount.IsZero() && !i.IsDeleted()
}

// ApplyTotals sums the line amounts of items onto the document
func (i *Invoice) ApplyTotals() {
	lines := make([]LineAmounts, len(i.Items))
	for idx, item := range i.Items {
		lines[idx] = item.LineAmounts
	}
	sum := SumLines(lines)
	i.Subtotal = sum.Subtotal
	i.DiscountTotal = sum.Discount
	i.TaxTotal = sum.Tax
	i.Total = sum.Total
}
