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

// PaymentRepository implements port.PaymentRepository
type PaymentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(db *sql.DB, logger *zap.Logger) port.PaymentRepository {
	return &PaymentRepository{db: db, logger: logger}
}

const paymentColumns = `p.id, p.company_id, p.invoice_id, p.amount_cents, p.method, p.status,
	p.paid_on, p.reference, p.notes, p.created_at, p.updated_at,
	i.number, i.status, i.total_cents, i.paid_cents, c.id, c.name`

const paymentFrom = `FROM payments p
	JOIN invoices i ON i.id = p.invoice_id
	JOIN customers c ON c.id = i.customer_id`

func scanPayment(s rowScanner) (*entity.Payment, error) {
	var p entity.Payment
	var inv entity.PaymentInvoice
	var amount, total, paid int64

	if err := s.Scan(
		&p.ID, &p.CompanyID, &p.InvoiceID, &amount, &p.Method, &p.Status,
		&p.Date, &p.Reference, &p.Notes, &p.CreatedAt, &p.UpdatedAt,
		&inv.Number, &inv.Status, &total, &paid, &inv.CustomerID, &inv.CustomerName,
	); err != nil {
		return nil, err
	}

	p.Amount = fromCents(amount)
	inv.ID = p.InvoiceID
	inv.Total = fromCents(total)
	inv.PaidAmount = fromCents(paid)
	p.Invoice = &inv
	return &p, nil
}

// Create inserts a payment row
func (r *PaymentRepository) Create(ctx context.Context, p *entity.Payment) error {
	now := time.Now().UTC()
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO payments (company_id, invoice_id, amount_cents, method, status, paid_on,
			reference, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.CompanyID, p.InvoiceID, toCents(p.Amount), p.Method, p.Status, p.Date.UTC(),
		p.Reference, p.Notes, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: payment reference %s", port.ErrDuplicate, p.Reference)
		}
		r.logger.Error("Failed to create payment", zap.Int64("invoice_id", p.InvoiceID), zap.Error(err))
		return fmt.Errorf("failed to create payment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	p.ID = id
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

// GetByID returns a payment of the company, or nil
func (r *PaymentRepository) GetByID(ctx context.Context, companyID, id int64) (*entity.Payment, error) {
	return r.getOne(ctx, `p.id = ? AND p.company_id = ?`, id, companyID)
}

// GetByReference returns the company's payment carrying a provider reference, or nil
func (r *PaymentRepository) GetByReference(ctx context.Context, companyID int64, reference string) (*entity.Payment, error) {
	return r.getOne(ctx, `p.company_id = ? AND p.reference = ?`, companyID, reference)
}

func (r *PaymentRepository) getOne(ctx context.Context, cond string, args ...interface{}) (*entity.Payment, error) {
	row := sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+paymentColumns+` `+paymentFrom+` WHERE `+cond+` ORDER BY p.id LIMIT 1`, args...)

	p, err := scanPayment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get payment", zap.Error(err))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// Update writes the mutable payment fields
func (r *PaymentRepository) Update(ctx context.Context, p *entity.Payment) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE payments
		SET amount_cents = ?, method = ?, status = ?, paid_on = ?, reference = ?, notes = ?, updated_at = ?
		WHERE id = ? AND company_id = ?
	`, toCents(p.Amount), p.Method, p.Status, p.Date.UTC(), p.Reference, p.Notes, p.UpdatedAt,
		p.ID, p.CompanyID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: payment reference %s", port.ErrDuplicate, p.Reference)
		}
		r.logger.Error("Failed to update payment", zap.Int64("id", p.ID), zap.Error(err))
		return fmt.Errorf("failed to update payment: %w", err)
	}
	return nil
}

// Delete removes the payment row permanently
func (r *PaymentRepository) Delete(ctx context.Context, companyID, id int64) error {
	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM payments WHERE id = ? AND company_id = ?`, id, companyID)
	if err != nil {
		r.logger.Error("Failed to delete payment", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	return nil
}

func paymentWhere(companyID int64, f port.PaymentFilter) *where {
	w := &where{}
	w.add("p.company_id = ?", companyID)
	if f.InvoiceID != 0 {
		w.add("p.invoice_id = ?", f.InvoiceID)
	}
	if f.Method != "" {
		w.add("p.method = ?", f.Method)
	}
	if f.From != nil {
		w.add("p.paid_on >= ?", f.From.UTC())
	}
	if f.To != nil {
		w.add("p.paid_on <= ?", f.To.UTC())
	}
	return w
}

// List returns a page of payments, newest first, with the total match count.
// A zero limit returns every match.
func (r *PaymentRepository) List(ctx context.Context, companyID int64, f port.PaymentFilter) ([]*entity.Payment, int, error) {
	w := paymentWhere(companyID, f)
	exec := sqlite.Conn(ctx, r.db)

	var total int
	if err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM payments p `+w.String(), w.args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count payments", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}

	rows, err := exec.QueryContext(ctx, `
		SELECT `+paymentColumns+` `+paymentFrom+` `+w.String()+`
		ORDER BY p.paid_on DESC, p.id DESC
		LIMIT ? OFFSET ?
	`, append(w.args, limit, f.Offset)...)
	if err != nil {
		r.logger.Error("Failed to list payments", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	payments, err := collectPayments(rows)
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// ListByInvoice returns every payment of one invoice in the order they were made
func (r *PaymentRepository) ListByInvoice(ctx context.Context, companyID, invoiceID int64) ([]*entity.Payment, error) {
	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT `+paymentColumns+` `+paymentFrom+`
		WHERE p.company_id = ? AND p.invoice_id = ?
		ORDER BY p.paid_on, p.id
	`, companyID, invoiceID)
	if err != nil {
		r.logger.Error("Failed to list invoice payments", zap.Int64("invoice_id", invoiceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list invoice payments: %w", err)
	}
	defer rows.Close()

	return collectPayments(rows)
}

func collectPayments(rows *sql.Rows) ([]*entity.Payment, error) {
	payments := make([]*entity.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// MethodStats sums completed payments per method within an optional date range
func (r *PaymentRepository) MethodStats(ctx context.Context, companyID int64, from, to *time.Time) ([]entity.MethodStat, error) {
	w := paymentWhere(companyID, port.PaymentFilter{From: from, To: to})
	w.add("p.status = ?", entity.PaymentStatusCompleted)

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT p.method, COUNT(*), COALESCE(SUM(p.amount_cents), 0)
		FROM payments p `+w.String()+`
		GROUP BY p.method
		ORDER BY SUM(p.amount_cents) DESC, p.method
	`, w.args...)
	if err != nil {
		r.logger.Error("Failed to aggregate payment methods", zap.Error(err))
		return nil, fmt.Errorf("failed to aggregate payment methods: %w", err)
	}
	defer rows.Close()

	stats := make([]entity.MethodStat, 0)
	for rows.Next() {
		var s entity.MethodStat
		var cents int64
		if err := rows.Scan(&s.Method, &s.Count, &cents); err != nil {
			return nil, fmt.Errorf("failed to scan method stat: %w", err)
		}
		s.Total = fromCents(cents)
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
