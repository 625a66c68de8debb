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

const posSequenceScope = "pos"

// SaleInput is the body of a new POS sale
type SaleInput struct {
	CustomerID     *int64               `json:"customer_id"`
	PaymentMethod  entity.PaymentMethod `json:"payment_method"`
	AmountTendered *decimal.Decimal     `json:"amount_tendered"`
	Notes          string               `json:"notes"`
	Items          []LineInput          `json:"items"`
}

// SaleQuery filters a sale listing by sale date
type SaleQuery struct {
	From   string
	To     string
	Limit  int
	Offset int
}

// POSService rings up and voids point-of-sale transactions
type POSService interface {
	CreateSale(ctx context.Context, companyID int64, in SaleInput) (*entity.POSSale, error)
	GetSale(ctx context.Context, companyID, id int64) (*entity.POSSale, error)
	ListSales(ctx context.Context, companyID int64, q SaleQuery) (*PageResult[*entity.POSSale], error)
	VoidSale(ctx context.Context, companyID, id int64) (*entity.POSSale, error)
}

type posServiceImpl struct {
	saleRepo     port.POSSaleRepository
	productRepo  port.ProductRepository
	customerRepo port.CustomerRepository
	sequenceRepo port.SequenceRepository
	txManager    port.TransactionManager
	activity     activityWriter
	logger       Logger
	now          Clock
}

// NewPOSService creates a new POSService
func NewPOSService(
	saleRepo port.POSSaleRepository,
	productRepo port.ProductRepository,
	customerRepo port.CustomerRepository,
	sequenceRepo port.SequenceRepository,
	activityRepo port.ActivityRepository,
	txManager port.TransactionManager,
	logger Logger,
) POSService {
	return &posServiceImpl{
		saleRepo:     saleRepo,
		productRepo:  productRepo,
		customerRepo: customerRepo,
		sequenceRepo: sequenceRepo,
		txManager:    txManager,
		activity:     activityWriter{repo: activityRepo},
		logger:       logger,
		now:          time.Now,
	}
}

// saleNumber formats the n-th sale of a day, e.g. POS-20260315-0007
func saleNumber(day string, n int64) string {
	return fmt.Sprintf("POS-%s-%04d", day, n)
}

// CreateSale prices the items, takes tracked stock, settles the tender and
// numbers the sale from the company's counter for the day
func (s *posServiceImpl) CreateSale(ctx context.Context, companyID int64, in SaleInput) (*entity.POSSale, error) {
	if !in.PaymentMethod.IsValid() {
		return nil, validationError("unknown payment method %q", in.PaymentMethod)
	}
	if len(in.Items) == 0 {
		return nil, validationError("at least one item is required")
	}

	soldAt := s.now()
	sale := &entity.POSSale{
		CompanyID:     companyID,
		CustomerID:    in.CustomerID,
		CashierID:     actorPtr(ctx),
		Status:        entity.POSSaleStatusCompleted,
		PaymentMethod: in.PaymentMethod,
		Notes:         strings.TrimSpace(in.Notes),
		SoldAt:        soldAt,
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if in.CustomerID != nil {
			cust, err := s.customerRepo.GetByID(txCtx, companyID, *in.CustomerID)
			if err != nil {
				return err
			}
			if cust == nil {
				return notFound("customer", *in.CustomerID)
			}
		}

		lines := make([]entity.LineAmounts, 0, len(in.Items))
		taken := make(map[int64]decimal.Decimal)
		for i, li := range in.Items {
			line, err := priceLine(txCtx, s.productRepo, companyID, li)
			if err != nil {
				return fmt.Errorf("item %d: %w", i+1, err)
			}
			if p := line.product; p != nil && p.TrackStock {
				want := taken[p.ID].Add(line.quantity)
				if !p.HasStock(want) {
					return conflict("insufficient stock for %s: %s available, %s requested",
						p.Name, p.StockQuantity.String(), want.String())
				}
				taken[p.ID] = want
			}
			sale.Items = append(sale.Items, entity.POSSaleItem{
				ProductID:    line.productID,
				Description:  line.description,
				Quantity:     line.quantity,
				UnitPrice:    line.unitPrice,
				DiscountRate: line.discountRate,
				TaxRate:      line.taxRate,
				LineAmounts:  line.amounts,
			})
			lines = append(lines, line.amounts)
		}

		sum := entity.SumLines(lines)
		sale.Subtotal, sale.DiscountTotal, sale.TaxTotal, sale.Total = sum.Subtotal, sum.Discount, sum.Tax, sum.Total
		if err := settleTender(sale, in.AmountTendered); err != nil {
			return err
		}

		for id, qty := range taken {
			p, err := s.productRepo.GetByID(txCtx, companyID, id)
			if err != nil {
				return err
			}
			if err := s.productRepo.SetStock(txCtx, companyID, id, p.StockQuantity.Sub(qty)); err != nil {
				return fmt.Errorf("take stock: %w", err)
			}
		}

		day := soldAt.Format("20060102")
		n, err := s.sequenceRepo.Next(txCtx, companyID, posSequenceScope, day)
		if err != nil {
			return fmt.Errorf("next sale number: %w", err)
		}
		sale.SaleNumber = saleNumber(day, n)

		if err := s.saleRepo.Create(txCtx, sale); err != nil {
			return fmt.Errorf("create sale: %w", err)
		}
		return s.activity.record(txCtx, companyID, entity.ActionSaleCreated, "pos_sale", sale.ID,
			map[string]interface{}{"sale_number": sale.SaleNumber, "total": sale.Total.StringFixed(2), "method": string(sale.PaymentMethod)})
	})
	if err != nil {
		err = classify(err)
		s.logger.Error("Failed to create POS sale", "error", err, "company_id", companyID)
		return nil, err
	}

	s.logger.Info("POS sale created", "id", sale.ID, "sale_number", sale.SaleNumber, "total", sale.Total.String())
	return sale, nil
}

// settleTender fills tendered and change. Cash must be tendered and cover the
// total; other methods default to the exact total.
func settleTender(sale *entity.POSSale, tendered *decimal.Decimal) error {
	switch {
	case tendered != nil:
		if err := utils.ValidateNonNegative(*tendered); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		sale.AmountTendered = *tendered
	case sale.PaymentMethod == entity.PaymentMethodCash:
		return validationError("amount_tendered is required for cash sales")
	default:
		sale.AmountTendered = sale.Total
	}

	if sale.AmountTendered.LessThan(sale.Total) {
		return invalidAmount("tendered %s does not cover total %s", sale.AmountTendered.StringFixed(2), sale.Total.StringFixed(2))
	}
	sale.ChangeDue = sale.AmountTendered.Sub(sale.Total)
	return nil
}

func (s *posServiceImpl) GetSale(ctx context.Context, companyID, id int64) (*entity.POSSale, error) {
	sale, err := s.saleRepo.GetByID(ctx, companyID, id)
	if err != nil {
		s.logger.Error("Failed to get POS sale", "error", err, "id", id)
		return nil, err
	}
	if sale == nil {
		return nil, notFound("sale", id)
	}
	return sale, nil
}

func (s *posServiceImpl) ListSales(ctx context.Context, companyID int64, q SaleQuery) (*PageResult[*entity.POSSale], error) {
	from, err := parseRangeStart(q.From)
	if err != nil {
		return nil, err
	}
	to, err := parseRangeEnd(q.To)
	if err != nil {
		return nil, err
	}

	filter := port.POSSaleFilter{From: from, To: to, Page: NormalizePage(q.Limit, q.Offset)}
	sales, total, err := s.saleRepo.List(ctx, companyID, filter)
	if err != nil {
		s.logger.Error("Failed to list POS sales", "error", err, "company_id", companyID)
		return nil, err
	}
	return newPage(sales, total, filter.Page), nil
}

// VoidSale voids a completed sale and puts tracked stock back
func (s *posServiceImpl) VoidSale(ctx context.Context, companyID, id int64) (*entity.POSSale, error) {
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		sale, err := s.saleRepo.GetByID(txCtx, companyID, id)
		if err != nil {
			return err
		}
		if sale == nil {
			return notFound("sale", id)
		}
		if sale.Status != entity.POSSaleStatusCompleted {
			return conflict("sale %s is already %s", sale.SaleNumber, sale.Status)
		}

		for _, item := range sale.Items {
			if item.ProductID == nil {
				continue
			}
			p, err := s.productRepo.GetByID(txCtx, companyID, *item.ProductID)
			if err != nil {
				return err
			}
			if p == nil || !p.TrackStock {
				continue
			}
			if err := s.productRepo.SetStock(txCtx, companyID, p.ID, p.StockQuantity.Add(item.Quantity)); err != nil {
				return fmt.Errorf("restore stock: %w", err)
			}
		}

		if err := s.saleRepo.MarkVoided(txCtx, companyID, id, s.now()); err != nil {
			return err
		}
		return s.activity.record(txCtx, companyID, entity.ActionSaleVoided, "pos_sale", sale.ID,
			map[string]interface{}{"sale_number": sale.SaleNumber, "total": sale.Total.StringFixed(2)})
	})
	if err != nil {
		err = classify(err)
		s.logger.Error("Failed to void POS sale", "error", err, "id", id)
		return nil, err
	}

	s.logger.Info("POS sale voided", "id", id)
	return s.GetSale(ctx, companyID, id)
}
