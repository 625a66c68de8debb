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

// CustomerRepository implements port.CustomerRepository
type CustomerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(db *sql.DB, logger *zap.Logger) port.CustomerRepository {
	return &CustomerRepository{db: db, logger: logger}
}

const customerColumns = `id, company_id, name, email, phone, address, tax_number, notes,
	created_at, updated_at, deleted_at`

func scanCustomer(s rowScanner) (*entity.Customer, error) {
	var c entity.Customer
	var deletedAt sql.NullTime
	if err := s.Scan(&c.ID, &c.CompanyID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.TaxNumber,
		&c.Notes, &c.CreatedAt, &c.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}
	c.DeletedAt = timePtr(deletedAt)
	return &c, nil
}

// Create inserts a customer
func (r *CustomerRepository) Create(ctx context.Context, c *entity.Customer) error {
	now := time.Now().UTC()
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO customers (company_id, name, email, phone, address, tax_number, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.CompanyID, c.Name, c.Email, c.Phone, c.Address, c.TaxNumber, c.Notes, now, now)
	if err != nil {
		r.logger.Error("Failed to create customer", zap.Int64("company_id", c.CompanyID), zap.Error(err))
		return fmt.Errorf("failed to create customer: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	c.ID = id
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

// GetByID returns a live customer of the company, or nil
func (r *CustomerRepository) GetByID(ctx context.Context, companyID, id int64) (*entity.Customer, error) {
	row := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE id = ? AND company_id = ? AND deleted_at IS NULL
	`, id, companyID)

	c, err := scanCustomer(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get customer", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return c, nil
}

// Update writes the customer's contact fields
func (r *CustomerRepository) Update(ctx context.Context, c *entity.Customer) error {
	c.UpdatedAt = time.Now().UTC()
	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE customers
		SET name = ?, email = ?, phone = ?, address = ?, tax_number = ?, notes = ?, updated_at = ?
		WHERE id = ? AND company_id = ? AND deleted_at IS NULL
	`, c.Name, c.Email, c.Phone, c.Address, c.TaxNumber, c.Notes, c.UpdatedAt, c.ID, c.CompanyID)
	if err != nil {
		r.logger.Error("Failed to update customer", zap.Int64("id", c.ID), zap.Error(err))
		return fmt.Errorf("failed to update customer: %w", err)
	}
	return nil
}

// SoftDelete buries the customer
func (r *CustomerRepository) SoftDelete(ctx context.Context, companyID, id int64, at time.Time) error {
	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE customers SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND company_id = ? AND deleted_at IS NULL
	`, at.UTC(), at.UTC(), id, companyID)
	if err != nil {
		r.logger.Error("Failed to delete customer", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete customer: %w", err)
	}
	return nil
}

// List returns a page of live customers ordered by name, with the total match count
func (r *CustomerRepository) List(ctx context.Context, companyID int64, f port.CustomerFilter) ([]*entity.Customer, int, error) {
	w := &where{}
	w.add("company_id = ?", companyID)
	w.add("deleted_at IS NULL")
	if f.Search != "" {
		p := likePattern(f.Search)
		w.add(`(name LIKE ? ESCAPE '\' OR email LIKE ? ESCAPE '\' OR phone LIKE ? ESCAPE '\')`, p, p, p)
	}

	exec := sqlite.Conn(ctx, r.db)

	var total int
	if err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers `+w.String(), w.args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count customers", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count customers: %w", err)
	}

	rows, err := exec.QueryContext(ctx, `
		SELECT `+customerColumns+` FROM customers `+w.String()+`
		ORDER BY name COLLATE NOCASE, id
		LIMIT ? OFFSET ?
	`, append(w.args, f.Limit, f.Offset)...)
	if err != nil {
		r.logger.Error("Failed to list customers", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	customers := make([]*entity.Customer, 0)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, total, rows.Err()
}
