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

// InvoiceRepository implements port.InvoiceRepository for invoices and quotes
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) port.InvoiceRepository {
	return &InvoiceRepository{db: db, logger: logger}
}

const invoiceColumns = `i.id, i.company_id, i.customer_id, i.kind, i.number, i.status,
	i.issue_date, i.due_date, i.currency,
	i.subtotal_cents, i.discount_cents, i.tax_cents, i.total_cents, i.paid_cents, i.paid_at,
	i.notes, i.portal_token, i.converted_from_id, i.converted_to_id, i.version,
	i.created_at, i.updated_at, i.deleted_at,
	c.id, c.name, c.email`

const invoiceFrom = `FROM invoices i JOIN customers c ON c.id = i.customer_id`

func scanInvoice(s rowScanner) (*entity.Invoice, error) {
	var inv entity.Invoice
	var cust entity.Customer
	var dueDate, paidAt, deletedAt sql.NullTime
	var portalToken sql.NullString
	var fromID, toID sql.NullInt64
	var subtotal, discount, tax, total, paid int64

	err := s.Scan(
		&inv.ID, &inv.CompanyID, &inv.CustomerID, &inv.Kind, &inv.Number, &inv.Status,
		&inv.IssueDate, &dueDate, &inv.Currency,
		&subtotal, &discount, &tax, &total, &paid, &paidAt,
		&inv.Notes, &portalToken, &fromID, &toID, &inv.Version,
		&inv.CreatedAt, &inv.UpdatedAt, &deletedAt,
		&cust.ID, &cust.Name, &cust.Email,
	)
	if err != nil {
		return nil, err
	}

	inv.DueDate = timePtr(dueDate)
	inv.PaidAt = timePtr(paidAt)
	inv.DeletedAt = timePtr(deletedAt)
	inv.PortalToken = portalToken.String
	inv.ConvertedFromID = int64Ptr(fromID)
	inv.ConvertedToID = int64Ptr(toID)
	inv.Subtotal = fromCents(subtotal)
	inv.DiscountTotal = fromCents(discount)
	inv.TaxTotal = fromCents(tax)
	inv.Total = fromCents(total)
	inv.PaidAmount = fromCents(paid)
	cust.CompanyID = inv.CompanyID
	inv.Customer = &cust
	return &inv, nil
}

// Create inserts the document header and its items
func (r *InvoiceRepository) Create(ctx context.Context, inv *entity.Invoice) error {
	now := time.Now().UTC()
	inv.Version = 1

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO invoices (
			company_id, customer_id, kind, number, status, issue_date, due_date, currency,
			subtotal_cents, discount_cents, tax_cents, total_cents, paid_cents, paid_at,
			notes, portal_token, converted_from_id, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		inv.CompanyID, inv.CustomerID, inv.Kind, inv.Number, inv.Status,
		inv.IssueDate.UTC(), nullableTime(inv.DueDate), inv.Currency,
		toCents(inv.Subtotal), toCents(inv.DiscountTotal), toCents(inv.TaxTotal),
		toCents(inv.Total), toCents(inv.PaidAmount), nullableTime(inv.PaidAt),
		inv.Notes, nullableString(inv.PortalToken), nullableInt(inv.ConvertedFromID),
		inv.Version, now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: document number %s", port.ErrDuplicate, inv.Number)
		}
		r.logger.Error("Failed to create invoice", zap.Int64("company_id", inv.CompanyID), zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	inv.ID = id
	inv.CreatedAt, inv.UpdatedAt = now, now

	return r.insertItems(ctx, inv)
}

func (r *InvoiceRepository) insertItems(ctx context.Context, inv *entity.Invoice) error {
	exec := sqlite.Conn(ctx, r.db)
	for i := range inv.Items {
		item := &inv.Items[i]
		item.InvoiceID = inv.ID
		item.Position = i

		result, err := exec.ExecContext(ctx, `
			INSERT INTO invoice_items (
				invoice_id, product_id, description, quantity, unit_price_cents,
				discount_rate, tax_rate, subtotal_cents, discount_cents, tax_cents, total_cents, position
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			item.InvoiceID, nullableInt(item.ProductID), item.Description, item.Quantity,
			toCents(item.UnitPrice), item.DiscountRate, item.TaxRate,
			toCents(item.Subtotal), toCents(item.Discount), toCents(item.Tax), toCents(item.Total),
			item.Position,
		)
		if err != nil {
			r.logger.Error("Failed to create invoice item", zap.Int64("invoice_id", inv.ID), zap.Error(err))
			return fmt.Errorf("failed to create invoice item: %w", err)
		}
		if item.ID, err = result.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
	}
	return nil
}

// GetByID returns a live document of the company, or nil
func (r *InvoiceRepository) GetByID(ctx context.Context, companyID, id int64) (*entity.Invoice, error) {
	row := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT `+invoiceColumns+` `+invoiceFrom+`
		WHERE i.id = ? AND i.company_id = ? AND i.deleted_at IS NULL
	`, id, companyID)

	inv, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

// GetByPortalToken returns a live document by portal token, or nil
func (r *InvoiceRepository) GetByPortalToken(ctx context.Context, token string) (*entity.Invoice, error) {
	row := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT `+invoiceColumns+` `+invoiceFrom+`
		WHERE i.portal_token = ? AND i.deleted_at IS NULL
	`, token)

	inv, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice by portal token", zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

// GetItems returns the document's lines in position order
func (r *InvoiceRepository) GetItems(ctx context.Context, invoiceID int64) ([]entity.InvoiceItem, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, invoice_id, product_id, description, quantity, unit_price_cents,
			discount_rate, tax_rate, subtotal_cents, discount_cents, tax_cents, total_cents, position
		FROM invoice_items
		WHERE invoice_id = ?
		ORDER BY position, id
	`, invoiceID)
	if err != nil {
		r.logger.Error("Failed to get invoice items", zap.Int64("invoice_id", invoiceID), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice items: %w", err)
	}
	defer rows.Close()

	items := make([]entity.InvoiceItem, 0)
	for rows.Next() {
		var item entity.InvoiceItem
		var productID sql.NullInt64
		var unitPrice, subtotal, discount, tax, total int64
		if err := rows.Scan(
			&item.ID, &item.InvoiceID, &productID, &item.Description, &item.Quantity, &unitPrice,
			&item.DiscountRate, &item.TaxRate, &subtotal, &discount, &tax, &total, &item.Position,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invoice item: %w", err)
		}
		item.ProductID = int64Ptr(productID)
		item.UnitPrice = fromCents(unitPrice)
		item.Subtotal = fromCents(subtotal)
		item.Discount = fromCents(discount)
		item.Tax = fromCents(tax)
		item.Total = fromCents(total)
		items = append(items, item)
	}
	return items, rows.Err()
}

// Update writes the header when the stored version still equals inv.Version,
// then advances inv.Version. A concurrent writer that got there first yields
// port.ErrStaleVersion.
func (r *InvoiceRepository) Update(ctx context.Context, inv *entity.Invoice) error {
	now := time.Now().UTC()

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE invoices
		SET customer_id = ?, status = ?, issue_date = ?, due_date = ?, currency = ?,
			subtotal_cents = ?, discount_cents = ?, tax_cents = ?, total_cents = ?,
			paid_cents = ?, paid_at = ?, notes = ?, portal_token = ?,
			converted_from_id = ?, converted_to_id = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND company_id = ? AND version = ? AND deleted_at IS NULL
	`,
		inv.CustomerID, inv.Status, inv.IssueDate.UTC(), nullableTime(inv.DueDate), inv.Currency,
		toCents(inv.Subtotal), toCents(inv.DiscountTotal), toCents(inv.TaxTotal), toCents(inv.Total),
		toCents(inv.PaidAmount), nullableTime(inv.PaidAt), inv.Notes, nullableString(inv.PortalToken),
		nullableInt(inv.ConvertedFromID), nullableInt(inv.ConvertedToID),
		now, inv.ID, inv.CompanyID, inv.Version,
	)
	if err != nil {
		r.logger.Error("Failed to update invoice", zap.Int64("id", inv.ID), zap.Error(err))
		return fmt.Errorf("failed to update invoice: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: invoice %d at version %d", port.ErrStaleVersion, inv.ID, inv.Version)
	}

	inv.Version++
	inv.UpdatedAt = now
	return nil
}

// ReplaceItems deletes the document's lines and inserts inv.Items
func (r *InvoiceRepository) ReplaceItems(ctx context.Context, inv *entity.Invoice) error {
	if _, err := sqlite.Conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM invoice_items WHERE invoice_id = ?`, inv.ID); err != nil {
		r.logger.Error("Failed to clear invoice items", zap.Int64("invoice_id", inv.ID), zap.Error(err))
		return fmt.Errorf("failed to clear invoice items: %w", err)
	}
	return r.insertItems(ctx, inv)
}

// SoftDelete buries the document and releases its portal token
func (r *InvoiceRepository) SoftDelete(ctx context.Context, companyID, id int64, at time.Time) error {
	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE invoices
		SET deleted_at = ?, updated_at = ?, portal_token = NULL, version = version + 1
		WHERE id = ? AND company_id = ? AND deleted_at IS NULL
	`, at.UTC(), at.UTC(), id, companyID)
	if err != nil {
		r.logger.Error("Failed to delete invoice", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	return nil
}

// List returns a page of live documents, newest first, with the total match count
func (r *InvoiceRepository) List(ctx context.Context, companyID int64, f port.InvoiceFilter) ([]*entity.Invoice, int, error) {
	w := &where{}
	w.add("i.company_id = ?", companyID)
	w.add("i.deleted_at IS NULL")
	if f.Kind != "" {
		w.add("i.kind = ?", f.Kind)
	}
	if f.Status != "" {
		w.add("i.status = ?", f.Status)
	}
	if f.CustomerID != 0 {
		w.add("i.customer_id = ?", f.CustomerID)
	}

	exec := sqlite.Conn(ctx, r.db)

	var total int
	if err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM invoices i `+w.String(), w.args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count invoices", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count invoices: %w", err)
	}

	rows, err := exec.QueryContext(ctx, `
		SELECT `+invoiceColumns+` `+invoiceFrom+` `+w.String()+`
		ORDER BY i.issue_date DESC, i.id DESC
		LIMIT ? OFFSET ?
	`, append(w.args, f.Limit, f.Offset)...)
	if err != nil {
		r.logger.Error("Failed to list invoices", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	invoices := make([]*entity.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, total, rows.Err()
}

// ListOverdueCandidates returns open invoices of every company due before the
// given instant. Pages are keyed on id so rows that stay open never block later ones.
func (r *InvoiceRepository) ListOverdueCandidates(ctx context.Context, before time.Time, afterID int64, limit int) ([]*entity.Invoice, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT `+invoiceColumns+` `+invoiceFrom+`
		WHERE i.kind = 'invoice'
			AND i.status IN ('sent', 'partially_paid')
			AND i.due_date IS NOT NULL AND i.due_date < ?
			AND i.deleted_at IS NULL
			AND i.id > ?
		ORDER BY i.id
		LIMIT ?
	`, before.UTC(), afterID, limit)
	if err != nil {
		r.logger.Error("Failed to list overdue candidates", zap.Error(err))
		return nil, fmt.Errorf("failed to list overdue candidates: %w", err)
	}
	defer rows.Close()

	invoices := make([]*entity.Invoice, 0)
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}
