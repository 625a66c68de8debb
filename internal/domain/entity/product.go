package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalogue item that can be placed on documents and POS sales
type Product struct {
	ID            int64           `json:"id"`
	CompanyID     int64           `json:"company_id"`
	Name          string          `json:"name"`
	SKU           string          `json:"sku,omitempty"`
	Description   string          `json:"description,omitempty"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	TrackStock    bool            `json:"track_stock"`
	StockQuantity decimal.Decimal `json:"stock_quantity"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Tombstone
}

// HasStock reports whether qty units can be taken from stock
func (p *Product) HasStock(qty decimal.Decimal) bool {
	if !p.TrackStock {
		return true
	}
	return p.StockQuantity.GreaterThanOrEqual(qty)
}

// SubscriptionPlan is a plan a company can subscribe to
type SubscriptionPlan struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Interval    PlanInterval    `json:"interval"`
	Features    []string        `json:"features"`
	MaxUsers    int             `json:"max_users"`
	MaxInvoices int             `json:"max_invoices"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
