package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bolibooks/bolibooks/internal/application/port"
	"github.com/bolibooks/bolibooks/internal/domain/entity"
	"github.com/bolibooks/bolibooks/internal/infrastructure/persistence/sqlite"
)

// POSSaleRepository implements port.POSSaleRepository
type POSSaleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPOSSaleRepository creates a new POS sale repository
func NewPOSSaleRepository(db *sql.DB, logger *zap.Logger) port.POSSaleRepository {
	return &POSSaleRepository{db: db, logger: logger}
}

const posSaleColumns = `id, company_id, sale_number, customer_id, cashier_id, status, payment_method,
	subtotal_cents, discount_cents, tax_cents, total_cents, tendered_cents, change_cents,
	notes, sold_at, voided_at, created_at`

func scanPOSSale(s rowScanner) (*entity.POSSale, error) {
	var sale entity.POSSale
	var customerID, cashierID sql.NullInt64
	var voidedAt sql.NullTime
	var subtotal, discount, tax, total, tendered, change int64

	if err := s.Scan(
		&sale.ID, &sale.CompanyID, &sale.SaleNumber, &customerID, &cashierID, &sale.Status, &sale.PaymentMethod,
		&subtotal, &discount, &tax, &total, &tendered, &change,
		&sale.Notes, &sale.SoldAt, &voidedAt, &sale.CreatedAt,
	); err != nil {
		return nil, err
	}

	sale.CustomerID = int64Ptr(customerID)
	sale.CashierID = int64Ptr(cashierID)
	sale.VoidedAt = timePtr(voidedAt)
	sale.Subtotal = fromCents(subtotal)
	sale.DiscountTotal = fromCents(discount)
	sale.TaxTotal = fromCents(tax)
	sale.Total = fromCents(total)
	sale.AmountTendered = fromCents(tendered)
	sale.ChangeDue = fromCents(change)
	return &sale, nil
}

// Create inserts the sale and its items
func (r *POSSaleRepository) Create(ctx context.Context, sale *entity.POSSale) error {
	now := time.Now().UTC()
	exec := sqlite.Conn(ctx, r.db)

	result, err := exec.ExecContext(ctx, `
		INSERT INTO pos_sales (
			company_id, sale_number, customer_id, cashier_id, status, payment_method,
			subtotal_cents, discount_cents, tax_cents, total_cents, tendered_cents, change_cents,
			notes, sold_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sale.CompanyID, sale.SaleNumber, nullableInt(sale.CustomerID), nullableInt(sale.CashierID),
		sale.Status, sale.PaymentMethod,
		toCents(sale.Subtotal), toCents(sale.DiscountTotal), toCents(sale.TaxTotal), toCents(sale.Total),
		toCents(sale.AmountTendered), toCents(sale.ChangeDue),
		sale.Notes, sale.SoldAt.UTC(), now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: sale number %s", port.ErrDuplicate, sale.SaleNumber)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: customer or cashier of sale %s", port.ErrMissingReference, sale.SaleNumber)
		}
		r.logger.Error("Failed to create POS sale", zap.Int64("company_id", sale.CompanyID), zap.Error(err))
		return fmt.Errorf("failed to create POS sale: %w", err)
	}

	if sale.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	sale.CreatedAt = now

	for i := range sale.Items {
		item := &sale.Items[i]
		item.SaleID = sale.ID
		res, err := exec.ExecContext(ctx, `
			INSERT INTO pos_sale_items (
				sale_id, product_id, description, quantity, unit_price_cents, discount_rate, tax_rate,
				subtotal_cents, discount_cents, tax_cents, total_cents
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			item.SaleID, nullableInt(item.ProductID), item.Description, item.Quantity,
			toCents(item.UnitPrice), item.DiscountRate, item.TaxRate,
			toCents(item.Subtotal), toCents(item.Discount), toCents(item.Tax), toCents(item.Total),
		)
		if err != nil {
			r.logger.Error("Failed to create POS sale item", zap.Int64("sale_id", sale.ID), zap.Error(err))
			return fmt.Errorf("failed to create POS sale item: %w", err)
		}
		if item.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
	}
	return nil
}

// GetByID returns a sale of the company with its items, or nil
func (r *POSSaleRepository) GetByID(ctx context.Context, companyID, id int64) (*entity.POSSale, error) {
	exec := sqlite.Conn(ctx, r.db)
	row := exec.QueryRowContext(ctx,
		`SELECT `+posSaleColumns+` FROM pos_sales WHERE id = ? AND company_id = ?`, id, companyID)

	sale, err := scanPOSSale(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get POS sale", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get POS sale: %w", err)
	}

	rows, err := exec.QueryContext(ctx, `
		SELECT id, sale_id, product_id, description, quantity, unit_price_cents, discount_rate, tax_rate,
			subtotal_cents, discount_cents, tax_cents, total_cents
		FROM pos_sale_items WHERE sale_id = ? ORDER BY id
	`, sale.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get POS sale items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item entity.POSSaleItem
		var productID sql.NullInt64
		var unitPrice, subtotal, discount, tax, total int64
		if err := rows.Scan(
			&item.ID, &item.SaleID, &productID, &item.Description, &item.Quantity, &unitPrice,
			&item.DiscountRate, &item.TaxRate, &subtotal, &discount, &tax, &total,
		); err != nil {
			return nil, fmt.Errorf("failed to scan POS sale item: %w", err)
		}
		item.ProductID = int64Ptr(productID)
		item.UnitPrice = fromCents(unitPrice)
		item.Subtotal = fromCents(subtotal)
		item.Discount = fromCents(discount)
		item.Tax = fromCents(tax)
		item.Total = fromCents(total)
		sale.Items = append(sale.Items, item)
	}
	return sale, rows.Err()
}

// MarkVoided flags a completed sale as voided
func (r *POSSaleRepository) MarkVoided(ctx context.Context, companyID, id int64, at time.Time) error {
	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE pos_sales SET status = ?, voided_at = ?
		WHERE id = ? AND company_id = ? AND status = ?
	`, entity.POSSaleStatusVoided, at.UTC(), id, companyID, entity.POSSaleStatusCompleted)
	if err != nil {
		r.logger.Error("Failed to void POS sale", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to void POS sale: %w", err)
	}
	return nil
}

// List returns a page of sales, newest first, with the total match count
func (r *POSSaleRepository) List(ctx context.Context, companyID int64, f port.POSSaleFilter) ([]*entity.POSSale, int, error) {
	w := &where{}
	w.add("company_id = ?", companyID)
	if f.From != nil {
		w.add("sold_at >= ?", f.From.UTC())
	}
	if f.To != nil {
		w.add("sold_at <= ?", f.To.UTC())
	}

	exec := sqlite.Conn(ctx, r.db)

	var total int
	if err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM pos_sales `+w.String(), w.args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count POS sales", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count POS sales: %w", err)
	}

	rows, err := exec.QueryContext(ctx, `
		SELECT `+posSaleColumns+` FROM pos_sales `+w.String()+`
		ORDER BY sold_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, append(w.args, f.Limit, f.Offset)...)
	if err != nil {
		r.logger.Error("Failed to list POS sales", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list POS sales: %w", err)
	}
	defer rows.Close()

	sales := make([]*entity.POSSale, 0)
	for rows.Next() {
		sale, err := scanPOSSale(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan POS sale: %w", err)
		}
		sales = append(sales, sale)
	}
	return sales, total, rows.Err()
}
