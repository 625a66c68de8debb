package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bolibooks/bolibooks/internal/application/port"
	"github.com/bolibooks/bolibooks/internal/domain/entity"
	"github.com/bolibooks/bolibooks/internal/infrastructure/persistence/sqlite"
)

// ProductRepository implements port.ProductRepository
type ProductRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *sql.DB, logger *zap.Logger) port.ProductRepository {
	return &ProductRepository{db: db, logger: logger}
}

const productColumns = `id, company_id, name, sku, description, unit_price_cents, tax_rate,
	track_stock, stock_quantity, created_at, updated_at, deleted_at`

func scanProduct(s rowScanner) (*entity.Product, error) {
	var p entity.Product
	var priceCents int64
	var deletedAt sql.NullTime
	if err := s.Scan(&p.ID, &p.CompanyID, &p.Name, &p.SKU, &p.Description, &priceCents, &p.TaxRate,
		&p.TrackStock, &p.StockQuantity, &p.CreatedAt, &p.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}
	p.UnitPrice = fromCents(priceCents)
	p.DeletedAt = timePtr(deletedAt)
	return &p, nil
}

// Create inserts a product
func (r *ProductRepository) Create(ctx context.Context, p *entity.Product) error {
	now := time.Now().UTC()
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO products (company_id, name, sku, description, unit_price_cents, tax_rate,
			track_stock, stock_quantity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.CompanyID, p.Name, p.SKU, p.Description, toCents(p.UnitPrice), p.TaxRate,
		p.TrackStock, p.StockQuantity, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: sku %s", port.ErrDuplicate, p.SKU)
		}
		r.logger.Error("Failed to create product", zap.Int64("company_id", p.CompanyID), zap.Error(err))
		return fmt.Errorf("failed to create product: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	p.ID = id
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

// GetByID returns a live product of the company, or nil
func (r *ProductRepository) GetByID(ctx context.Context, companyID, id int64) (*entity.Product, error) {
	row := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ? AND company_id = ? AND deleted_at IS NULL
	`, id, companyID)

	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get product", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// Update writes catalogue fields and stock
func (r *ProductRepository) Update(ctx context.Context, p *entity.Product) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE products
		SET name = ?, sku = ?, description = ?, unit_price_cents = ?, tax_rate = ?,
			track_stock = ?, stock_quantity = ?, updated_at = ?
		WHERE id = ? AND company_id = ? AND deleted_at IS NULL
	`, p.Name, p.SKU, p.Description, toCents(p.UnitPrice), p.TaxRate,
		p.TrackStock, p.StockQuantity, p.UpdatedAt, p.ID, p.CompanyID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: sku %s", port.ErrDuplicate, p.SKU)
		}
		r.logger.Error("Failed to update product", zap.Int64("id", p.ID), zap.Error(err))
		return fmt.Errorf("failed to update product: %w", err)
	}
	return nil
}

// SetStock overwrites the on-hand quantity
func (r *ProductRepository) SetStock(ctx context.Context, companyID, id int64, qty decimal.Decimal) error {
	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE products SET stock_quantity = ?, updated_at = ?
		WHERE id = ? AND company_id = ?
	`, qty, time.Now().UTC(), id, companyID)
	if err != nil {
		r.logger.Error("Failed to set stock", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to set stock: %w", err)
	}
	return nil
}

// SoftDelete buries the product
func (r *ProductRepository) SoftDelete(ctx context.Context, companyID, id int64, at time.Time) error {
	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE products SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND company_id = ? AND deleted_at IS NULL
	`, at.UTC(), at.UTC(), id, companyID)
	if err != nil {
		r.logger.Error("Failed to delete product", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

// List returns a page of live products ordered by name, with the total match count
func (r *ProductRepository) List(ctx context.Context, companyID int64, f port.ProductFilter) ([]*entity.Product, int, error) {
	w := &where{}
	w.add("company_id = ?", companyID)
	w.add("deleted_at IS NULL")
	if f.Search != "" {
		p := likePattern(f.Search)
		w.add(`(name LIKE ? ESCAPE '\' OR sku LIKE ? ESCAPE '\')`, p, p)
	}

	exec := sqlite.Conn(ctx, r.db)

	var total int
	if err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM products `+w.String(), w.args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count products", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	rows, err := exec.QueryContext(ctx, `
		SELECT `+productColumns+` FROM products `+w.String()+`
		ORDER BY name COLLATE NOCASE, id
		LIMIT ? OFFSET ?
	`, append(w.args, f.Limit, f.Offset)...)
	if err != nil {
		r.logger.Error("Failed to list products", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := make([]*entity.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}
