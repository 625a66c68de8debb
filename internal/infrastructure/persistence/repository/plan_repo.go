package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bolibooks/bolibooks/internal/application/port"
	"github.com/bolibooks/bolibooks/internal/domain/entity"
	"github.com/bolibooks/bolibooks/internal/infrastructure/persistence/sqlite"
)

// SubscriptionPlanRepository implements port.SubscriptionPlanRepository
type SubscriptionPlanRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSubscriptionPlanRepository creates a new subscription plan repository
func NewSubscriptionPlanRepository(db *sql.DB, logger *zap.Logger) port.SubscriptionPlanRepository {
	return &SubscriptionPlanRepository{db: db, logger: logger}
}

const planColumns = `id, name, description, price_cents, currency, billing_interval, features,
	max_users, max_invoices, is_active, created_at, updated_at`

func scanPlan(s rowScanner) (*entity.SubscriptionPlan, error) {
	var p entity.SubscriptionPlan
	var cents int64
	var features string
	if err := s.Scan(&p.ID, &p.Name, &p.Description, &cents, &p.Currency, &p.Interval, &features,
		&p.MaxUsers, &p.MaxInvoices, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Price = fromCents(cents)
	if err := json.Unmarshal([]byte(features), &p.Features); err != nil {
		return nil, fmt.Errorf("failed to decode plan features: %w", err)
	}
	if p.Features == nil {
		p.Features = []string{}
	}
	return &p, nil
}

func encodeFeatures(features []string) (string, error) {
	if features == nil {
		features = []string{}
	}
	b, err := json.Marshal(features)
	return string(b), err
}

// Create inserts a plan
func (r *SubscriptionPlanRepository) Create(ctx context.Context, p *entity.SubscriptionPlan) error {
	features, err := encodeFeatures(p.Features)
	if err != nil {
		return fmt.Errorf("failed to encode plan features: %w", err)
	}

	now := time.Now().UTC()
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO subscription_plans (name, description, price_cents, currency, billing_interval,
			features, max_users, max_invoices, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Name, p.Description, toCents(p.Price), p.Currency, p.Interval, features,
		p.MaxUsers, p.MaxInvoices, p.IsActive, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: plan %s", port.ErrDuplicate, p.Name)
		}
		r.logger.Error("Failed to create subscription plan", zap.Error(err))
		return fmt.Errorf("failed to create subscription plan: %w", err)
	}

	if p.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

// GetByID returns the plan or nil
func (r *SubscriptionPlanRepository) GetByID(ctx context.Context, id int64) (*entity.SubscriptionPlan, error) {
	return r.getOne(ctx, `SELECT `+planColumns+` FROM subscription_plans WHERE id = ?`, id)
}

// GetByName returns the plan with the exact name or nil
func (r *SubscriptionPlanRepository) GetByName(ctx context.Context, name string) (*entity.SubscriptionPlan, error) {
	return r.getOne(ctx, `SELECT `+planColumns+` FROM subscription_plans WHERE name = ?`, name)
}

func (r *SubscriptionPlanRepository) getOne(ctx context.Context, query string, arg interface{}) (*entity.SubscriptionPlan, error) {
	p, err := scanPlan(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get subscription plan", zap.Error(err))
		return nil, fmt.Errorf("failed to get subscription plan: %w", err)
	}
	return p, nil
}

// Update writes every plan field
func (r *SubscriptionPlanRepository) Update(ctx context.Context, p *entity.SubscriptionPlan) error {
	features, err := encodeFeatures(p.Features)
	if err != nil {
		return fmt.Errorf("failed to encode plan features: %w", err)
	}

	p.UpdatedAt = time.Now().UTC()
	_, err = sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE subscription_plans
		SET name = ?, description = ?, price_cents = ?, currency = ?, billing_interval = ?,
			features = ?, max_users = ?, max_invoices = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`, p.Name, p.Description, toCents(p.Price), p.Currency, p.Interval, features,
		p.MaxUsers, p.MaxInvoices, p.IsActive, p.UpdatedAt, p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: plan %s", port.ErrDuplicate, p.Name)
		}
		r.logger.Error("Failed to update subscription plan", zap.Int64("id", p.ID), zap.Error(err))
		return fmt.Errorf("failed to update subscription plan: %w", err)
	}
	return nil
}

// List returns plans ordered by price
func (r *SubscriptionPlanRepository) List(ctx context.Context, activeOnly bool) ([]*entity.SubscriptionPlan, error) {
	query := `SELECT ` + planColumns + ` FROM subscription_plans`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY price_cents, name`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list subscription plans", zap.Error(err))
		return nil, fmt.Errorf("failed to list subscription plans: %w", err)
	}
	defer rows.Close()

	plans := make([]*entity.SubscriptionPlan, 0)
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}
