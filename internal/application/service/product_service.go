package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bolibooks/bolibooks/internal/application/port"
	"github.com/bolibooks/bolibooks/internal/domain/entity"
	"github.com/bolibooks/bolibooks/pkg/utils"
)

// ProductInput is the body of a new or edited product
type ProductInput struct {
	Name          string          `json:"name"`
	SKU           string          `json:"sku"`
	Description   string          `json:"description"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	TrackStock    bool            `json:"track_stock"`
	StockQuantity decimal.Decimal `json:"stock_quantity"`
}

// ProductService manages a company's catalogue
type ProductService interface {
	Create(ctx context.Context, companyID int64, in ProductInput) (*entity.Product, error)
	Get(ctx context.Context, companyID, id int64) (*entity.Product, error)
	Update(ctx context.Context, companyID, id int64, in ProductInput) (*entity.Product, error)
	Delete(ctx context.Context, companyID, id int64) error
	List(ctx context.Context, companyID int64, search string, limit, offset int) (*PageResult[*entity.Product], error)
}

type productServiceImpl struct {
	repo   port.ProductRepository
	logger Logger
}

// NewProductService creates a new ProductService
func NewProductService(repo port.ProductRepository, logger Logger) ProductService {
	return &productServiceImpl{repo: repo, logger: logger}
}

func (in ProductInput) apply(p *entity.Product) error {
	name := utils.SanitizeString(in.Name)
	if name == "" {
		return validationError("name is required")
	}
	if err := utils.ValidateNonNegative(in.UnitPrice); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := utils.ValidateRate(in.TaxRate); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if in.StockQuantity.IsNegative() {
		return validationError("stock quantity must not be negative")
	}

	p.Name = name
	p.SKU = strings.ToUpper(utils.SanitizeString(in.SKU))
	p.Description = strings.TrimSpace(in.Description)
	p.UnitPrice = in.UnitPrice
	p.TaxRate = in.TaxRate
	p.TrackStock = in.TrackStock
	p.StockQuantity = in.StockQuantity
	return nil
}

func (s *productServiceImpl) Create(ctx context.Context, companyID int64, in ProductInput) (*entity.Product, error) {
	p := &entity.Product{CompanyID: companyID}
	if err := in.apply(p); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		s.logger.Error("Failed to create product", "error", err, "company_id", companyID, "sku", p.SKU)
		return nil, classify(err)
	}
	s.logger.Info("Product created", "id", p.ID, "company_id", companyID)
	return p, nil
}

func (s *productServiceImpl) Get(ctx context.Context, companyID, id int64) (*entity.Product, error) {
	p, err := s.repo.GetByID(ctx, companyID, id)
	if err != nil {
		s.logger.Error("Failed to get product", "error", err, "id", id)
		return nil, err
	}
	if p == nil {
		return nil, notFound("product", id)
	}
	return p, nil
}

func (s *productServiceImpl) Update(ctx context.Context, companyID, id int64, in ProductInput) (*entity.Product, error) {
	p, err := s.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if err := in.apply(p); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		s.logger.Error("Failed to update product", "error", err, "id", id)
		return nil, classify(err)
	}
	return p, nil
}

func (s *productServiceImpl) Delete(ctx context.Context, companyID, id int64) error {
	if _, err := s.Get(ctx, companyID, id); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, companyID, id, time.Now()); err != nil {
		s.logger.Error("Failed to delete product", "error", err, "id", id)
		return err
	}
	s.logger.Info("Product deleted", "id", id, "company_id", companyID)
	return nil
}

func (s *productServiceImpl) List(ctx context.Context, companyID int64, search string, limit, offset int) (*PageResult[*entity.Product], error) {
	page := NormalizePage(limit, offset)
	products, total, err := s.repo.List(ctx, companyID, port.ProductFilter{Search: strings.TrimSpace(search), Page: page})
	if err != nil {
		s.logger.Error("Failed to list products", "error", err, "company_id", companyID)
		return nil, err
	}
	return newPage(products, total, page), nil
}
