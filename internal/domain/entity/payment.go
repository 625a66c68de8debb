package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is one settlement against exactly one invoice
type Payment struct {
	ID        int64           `json:"id"`
	CompanyID int64           `json:"company_id"`
	InvoiceID int64           `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    PaymentMethod   `json:"method"`
	Status    PaymentStatus   `json:"status"`
	Date      time.Time       `json:"date"`
	Reference string          `json:"reference,omitempty"`
	Notes     string          `json:"notes,omitempty"`
	Invoice   *PaymentInvoice `json:"invoice,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// PaymentInvoice is the invoice summary embedded in payment responses
type PaymentInvoice struct {
	ID           int64           `json:"id"`
	Number       string          `json:"number"`
	Status       string          `json:"status"`
	Total        decimal.Decimal `json:"total"`
	PaidAmount   decimal.Decimal `json:"paid_amount"`
	CustomerID   int64           `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
}

// MethodStat aggregates completed payments per method
type MethodStat struct {
	Method PaymentMethod   `json:"method"`
	Count  int64           `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

// POSSale is a standalone point-of-sale transaction
type POSSale struct {
	ID             int64           `json:"id"`
	CompanyID      int64           `json:"company_id"`
	SaleNumber     string          `json:"sale_number"`
	CustomerID     *int64          `json:"customer_id,omitempty"`
	CashierID      *int64          `json:"cashier_id,omitempty"`
	Status         string          `json:"status"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountTotal  decimal.Decimal `json:"discount_total"`
	TaxTotal       decimal.Decimal `json:"tax_total"`
	Total          decimal.Decimal `json:"total"`
	AmountTendered decimal.Decimal `json:"amount_tendered"`
	ChangeDue      decimal.Decimal `json:"change_due"`
	Notes          string          `json:"notes,omitempty"`
	Items          []POSSaleItem   `json:"items,omitempty"`
	SoldAt         time.Time       `json:"sold_at"`
	VoidedAt       *time.Time      `json:"voided_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// POSSaleItem is one line of a POS sale
type POSSaleItem struct {
	ID           int64           `json:"id"`
	SaleID       int64           `json:"sale_id"`
	ProductID    *int64          `json:"product_id,omitempty"`
	Description  string          `json:"description"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	LineAmounts
}
