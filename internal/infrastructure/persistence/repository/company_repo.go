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

// CompanyRepository implements port.CompanyRepository
type CompanyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCompanyRepository creates a new company repository
func NewCompanyRepository(db *sql.DB, logger *zap.Logger) port.CompanyRepository {
	return &CompanyRepository{db: db, logger: logger}
}

// Create inserts a company
func (r *CompanyRepository) Create(ctx context.Context, c *entity.Company) error {
	now := time.Now().UTC()
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO companies (name, email, phone, address, tax_number, currency,
			subscription_plan_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.Name, c.Email, c.Phone, c.Address, c.TaxNumber, c.Currency,
		nullableInt(c.SubscriptionPlanID), now, now)
	if err != nil {
		r.logger.Error("Failed to create company", zap.Error(err))
		return fmt.Errorf("failed to create company: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	c.ID = id
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

// GetByID returns the company or nil
func (r *CompanyRepository) GetByID(ctx context.Context, id int64) (*entity.Company, error) {
	var c entity.Company
	var planID sql.NullInt64

	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, name, email, phone, address, tax_number, currency,
			subscription_plan_id, created_at, updated_at
		FROM companies WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.TaxNumber, &c.Currency,
		&planID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get company", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get company: %w", err)
	}

	c.SubscriptionPlanID = int64Ptr(planID)
	return &c, nil
}

// Update writes the company profile
func (r *CompanyRepository) Update(ctx context.Context, c *entity.Company) error {
	c.UpdatedAt = time.Now().UTC()
	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE companies
		SET name = ?, email = ?, phone = ?, address = ?, tax_number = ?, currency = ?,
			subscription_plan_id = ?, updated_at = ?
		WHERE id = ?
	`, c.Name, c.Email, c.Phone, c.Address, c.TaxNumber, c.Currency,
		nullableInt(c.SubscriptionPlanID), c.UpdatedAt, c.ID)
	if err != nil {
		r.logger.Error("Failed to update company", zap.Int64("id", c.ID), zap.Error(err))
		return fmt.Errorf("failed to update company: %w", err)
	}
	return nil
}
