package entity

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// LineAmounts are the computed money columns of a document or sale line
type LineAmounts struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount_amount"`
	Tax      decimal.Decimal `json:"tax_amount"`
	Total    decimal.Decimal `json:"total"`
}

// CalculateLine prices one line. The discount applies before tax and each
// component is rounded to cents, so the parts always add up to the total.
func CalculateLine(qty, unitPrice, discountRate, taxRate decimal.Decimal) LineAmounts {
	subtotal := qty.Mul(unitPrice).Round(2)
	discount := subtotal.Mul(discountRate).Div(hundred).Round(2)
	tax := subtotal.Sub(discount).Mul(taxRate).Div(hundred).Round(2)
	return LineAmounts{
		Subtotal: subtotal,
		Discount: discount,
		Tax:      tax,
		Total:    subtotal.Sub(discount).Add(tax),
	}
}

// SumLines adds up line amounts column by column
func SumLines(lines []LineAmounts) LineAmounts {
	sum := LineAmounts{
		Subtotal: decimal.Zero,
		Discount: decimal.Zero,
		Tax:      decimal.Zero,
		Total:    decimal.Zero,
	}
	for _, l := range lines {
		sum.Subtotal = sum.Subtotal.Add(l.Subtotal)
		sum.Discount = sum.Discount.Add(l.Discount)
		sum.Tax = sum.Tax.Add(l.Tax)
		sum.Total = sum.Total.Add(l.Total)
	}
	return sum
}
