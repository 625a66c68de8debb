package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bolibooks/bolibooks/internal/application/port"
	"github.com/bolibooks/bolibooks/internal/domain/billing"
	"github.com/bolibooks/bolibooks/internal/domain/entity"
	"github.com/bolibooks/bolibooks/internal/domain/event"
	"github.com/bolibooks/bolibooks/pkg/utils"
)

// LineInput is one requested document or sale line. Product fields fill
// description, unit price and tax rate when they are left empty.
type LineInput struct {
	ProductID    *int64           `json:"product_id"`
	Description  string           `json:"description"`
	Quantity     decimal.Decimal  `json:"quantity"`
	UnitPrice    *decimal.Decimal `json:"unit_price"`
	DiscountRate decimal.Decimal  `json:"discount_rate"`
	TaxRate      *decimal.Decimal `json:"tax_rate"`
}

// DocumentInput is the body of a new or edited invoice or quote
type DocumentInput struct {
	Kind       entity.DocumentKind `json:"kind"`
	CustomerID int64               `json:"customer_id"`
	IssueDate  string              `json:"issue_date"`
	DueDate    string              `json:"due_date"`
	Currency   string              `json:"currency"`
	Notes      string              `json:"notes"`
	Items      []LineInput         `json:"items"`
}

// DocumentQuery filters a document listing
type DocumentQuery struct {
	Kind       string
	Status     string
	CustomerID int64
	Limit      int
	Offset     int
}

// DocumentService manages invoices and quotes
type DocumentService interface {
	Create(ctx context.Context, companyID int64, in DocumentInput) (*entity.Invoice, error)
	List(ctx context.Context, companyID int64, q DocumentQuery) (*PageResult[*entity.Invoice], error)
	Get(ctx context.Context, companyID, id int64) (*entity.Invoice, error)
	Update(ctx context.Context, companyID, id int64, in DocumentInput) (*entity.Invoice, error)
	Send(ctx context.Context, companyID, id int64) (*entity.Invoice, error)
	Cancel(ctx context.Context, companyID, id int64) (*entity.Invoice, error)
	Delete(ctx context.Context, companyID, id int64) error
	ConvertQuote(ctx context.Context, companyID, id int64) (*entity.Invoice, error)
	MarkOverdue(ctx context.Context, asOf time.Time, afterID int64, batch int) (marked int, lastID int64, err error)
}

type documentServiceImpl struct {
	invoiceRepo  port.InvoiceRepository
	customerRepo port.CustomerRepository
	productRepo  port.ProductRepository
	companyRepo  port.CompanyRepository
	paymentRepo  port.PaymentRepository
	sequenceRepo port.SequenceRepository
	txManager    port.TransactionManager
	activity     activityWriter
	events       EventPublisher
	logger       Logger
	now          Clock
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	invoiceRepo port.InvoiceRepository,
	customerRepo port.CustomerRepository,
	productRepo port.ProductRepository,
	companyRepo port.CompanyRepository,
	paymentRepo port.PaymentRepository,
	sequenceRepo port.SequenceRepository,
	activityRepo port.ActivityRepository,
	txManager port.TransactionManager,
	events EventPublisher,
	logger Logger,
) DocumentService {
	return &documentServiceImpl{
		invoiceRepo:  invoiceRepo,
		customerRepo: customerRepo,
		productRepo:  productRepo,
		companyRepo:  companyRepo,
		paymentRepo:  paymentRepo,
		sequenceRepo: sequenceRepo,
		txManager:    txManager,
		activity:     activityWriter{repo: activityRepo},
		events:       events,
		logger:       logger,
		now:          time.Now,
	}
}

func formatDocumentNumber(kind entity.DocumentKind, n int64) string {
	return fmt.Sprintf("%s-%06d", kind.NumberPrefix(), n)
}

// Create stores a draft document numbered from the company's sequence for its kind
func (s *documentServiceImpl) Create(ctx context.Context, companyID int64, in DocumentInput) (*entity.Invoice, error) {
	if in.Kind == "" {
		in.Kind = entity.DocumentKindInvoice
	}
	if !in.Kind.IsValid() {
		return nil, validationError("unknown document kind %q", in.Kind)
	}

	inv := &entity.Invoice{
		CompanyID:  companyID,
		Kind:       in.Kind,
		Status:     entity.InvoiceStatusDraft,
		PaidAmount: decimal.Zero,
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.fill(txCtx, inv, in); err != nil {
			return err
		}

		n, err := s.sequenceRepo.Next(txCtx, companyID, in.Kind.SequenceScope(), "")
		if err != nil {
			return fmt.Errorf("next document number: %w", err)
		}
		inv.Number = formatDocumentNumber(in.Kind, n)

		if err := s.invoiceRepo.Create(txCtx, inv); err != nil {
			return fmt.Errorf("create document: %w", err)
		}
		return s.activity.record(txCtx, companyID, entity.ActionDocumentCreated, string(inv.Kind), inv.ID,
			map[string]interface{}{"number": inv.Number, "total": inv.Total.StringFixed(2)})
	})
	if err != nil {
		err = classify(err)
		s.logger.Error("Failed to create document", "error", err, "company_id", companyID, "kind", in.Kind)
		return nil, err
	}

	s.logger.Info("Document created", "id", inv.ID, "number", inv.Number, "total", inv.Total.String())
	return s.Get(ctx, companyID, inv.ID)
}

// fill validates in and copies it onto inv, pricing every line
func (s *documentServiceImpl) fill(ctx context.Context, inv *entity.Invoice, in DocumentInput) error {
	if in.CustomerID <= 0 {
		return validationError("customer_id is required")
	}
	cust, err := s.customerRepo.GetByID(ctx, inv.CompanyID, in.CustomerID)
	if err != nil {
		return err
	}
	if cust == nil {
		return notFound("customer", in.CustomerID)
	}

	issue, err := parseDate(in.IssueDate, s.now())
	if err != nil {
		return err
	}
	due, err := optionalDate(in.DueDate)
	if err != nil {
		return err
	}
	if due != nil && due.Before(issue.Truncate(24*time.Hour)) {
		return validationError("due date is before issue date")
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		company, err := s.companyRepo.GetByID(ctx, inv.CompanyID)
		if err != nil {
			return err
		}
		if company == nil {
			return notFound("company", inv.CompanyID)
		}
		currency = company.Currency
	}
	if err := utils.ValidateCurrency(currency); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if len(in.Items) == 0 {
		return validationError("at least one item is required")
	}
	items := make([]entity.InvoiceItem, 0, len(in.Items))
	for i, li := range in.Items {
		line, err := priceLine(ctx, s.productRepo, inv.CompanyID, li)
		if err != nil {
			return fmt.Errorf("item %d: %w", i+1, err)
		}
		items = append(items, entity.InvoiceItem{
			ProductID:    line.productID,
			Description:  line.description,
			Quantity:     line.quantity,
			UnitPrice:    line.unitPrice,
			DiscountRate: line.discountRate,
			TaxRate:      line.taxRate,
			LineAmounts:  line.amounts,
			Position:     i,
		})
	}

	inv.CustomerID = cust.ID
	inv.Customer = cust
	inv.IssueDate = issue
	inv.DueDate = due
	inv.Currency = currency
	inv.Notes = strings.TrimSpace(in.Notes)
	inv.Items = items
	inv.ApplyTotals()
	return nil
}

// pricedLine is a validated line with its computed amounts
type pricedLine struct {
	productID    *int64
	product      *entity.Product
	description  string
	quantity     decimal.Decimal
	unitPrice    decimal.Decimal
	discountRate decimal.Decimal
	taxRate      decimal.Decimal
	amounts      entity.LineAmounts
}

func priceLine(ctx context.Context, products port.ProductRepository, companyID int64, li LineInput) (*pricedLine, error) {
	line := &pricedLine{
		description:  utils.SanitizeString(li.Description),
		quantity:     li.Quantity,
		discountRate: li.DiscountRate,
		unitPrice:    decimal.Zero,
		taxRate:      decimal.Zero,
	}

	if li.ProductID != nil {
		p, err := products.GetByID(ctx, companyID, *li.ProductID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, notFound("product", *li.ProductID)
		}
		line.productID, line.product = &p.ID, p
		line.unitPrice, line.taxRate = p.UnitPrice, p.TaxRate
		if line.description == "" {
			line.description = p.Name
		}
	}
	if li.UnitPrice != nil {
		line.unitPrice = *li.UnitPrice
	}
	if li.TaxRate != nil {
		line.taxRate = *li.TaxRate
	}

	if line.description == "" {
		return nil, validationError("description is required")
	}
	if !line.quantity.IsPositive() {
		return nil, validationError("quantity must be positive")
	}
	if err := utils.ValidateNonNegative(line.unitPrice); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := utils.ValidateRate(line.discountRate); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := utils.ValidateRate(line.taxRate); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	line.amounts = entity.CalculateLine(line.quantity, line.unitPrice, line.discountRate, line.taxRate)
	return line, nil
}

func (s *documentServiceImpl) List(ctx context.Context, companyID int64, q DocumentQuery) (*PageResult[*entity.Invoice], error) {
	filter := port.InvoiceFilter{CustomerID: q.CustomerID, Page: NormalizePage(q.Limit, q.Offset)}
	if q.Kind != "" {
		kind := entity.DocumentKind(q.Kind)
		if !kind.IsValid() {
			return nil, validationError("unknown document kind %q", q.Kind)
		}
		filter.Kind = kind
	}
	if q.Status != "" {
		if !billing.State(q.Status).IsValid() {
			return nil, validationError("unknown status %q", q.Status)
		}
		filter.Status = q.Status
	}

	docs, total, err := s.invoiceRepo.List(ctx, companyID, filter)
	if err != nil {
		s.logger.Error("Failed to list documents", "error", err, "company_id", companyID)
		return nil, err
	}
	return newPage(docs, total, filter.Page), nil
}

// Get returns a document with its items
func (s *documentServiceImpl) Get(ctx context.Context, companyID, id int64) (*entity.Invoice, error) {
	inv, err := s.load(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if inv.Items, err = s.invoiceRepo.GetItems(ctx, inv.ID); err != nil {
		s.logger.Error("Failed to load document items", "error", err, "id", id)
		return nil, err
	}
	return inv, nil
}

func (s *documentServiceImpl) load(ctx context.Context, companyID, id int64) (*entity.Invoice, error) {
	inv, err := s.invoiceRepo.GetByID(ctx, companyID, id)
	if err != nil {
		s.logger.Error("Failed to get document", "error", err, "id", id)
		return nil, err
	}
	if inv == nil {
		return nil, notFound("document", id)
	}
	return inv, nil
}

// Update rewrites an unpaid draft. The kind and number never change.
func (s *documentServiceImpl) Update(ctx context.Context, companyID, id int64, in DocumentInput) (*entity.Invoice, error) {
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		inv, err := s.load(txCtx, companyID, id)
		if err != nil {
			return err
		}
		if !inv.IsEditable() {
			return conflict("%s %s is %s and can no longer be edited", inv.Kind, inv.Number, inv.Status)
		}
		if in.Kind != "" && in.Kind != inv.Kind {
			return validationError("document kind cannot change")
		}

		if err := s.fill(txCtx, inv, in); err != nil {
			return err
		}
		if err := s.invoiceRepo.ReplaceItems(txCtx, inv); err != nil {
			return fmt.Errorf("replace items: %w", err)
		}
		return s.invoiceRepo.Update(txCtx, inv)
	})
	if err != nil {
		err = classify(err)
		s.logger.Error("Failed to update document", "error", err, "id", id)
		return nil, err
	}
	return s.Get(ctx, companyID, id)
}

// Send moves a draft to sent and issues its customer portal token
func (s *documentServiceImpl) Send(ctx context.Context, companyID, id int64) (*entity.Invoice, error) {
	return s.transition(ctx, companyID, id, billing.TriggerSend, entity.ActionDocumentSent, func(inv *entity.Invoice) {
		if inv.PortalToken == "" {
			inv.PortalToken = uuid.NewString()
		}
	})
}

// Cancel cancels a document on which nothing has been paid
func (s *documentServiceImpl) Cancel(ctx context.Context, companyID, id int64) (*entity.Invoice, error) {
	return s.transition(ctx, companyID, id, billing.TriggerCancel, entity.ActionDocumentCanceled, nil)
}

func (s *documentServiceImpl) transition(ctx context.Context, companyID, id int64, trigger billing.Trigger, action string, then func(*entity.Invoice)) (*entity.Invoice, error) {
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		inv, err := s.load(txCtx, companyID, id)
		if err != nil {
			return err
		}
		prev := inv.Status
		if err := billing.Advance(txCtx, inv, trigger); err != nil {
			return fmt.Errorf("%s %s from %s: %w", trigger, inv.Number, prev, err)
		}
		if then != nil {
			then(inv)
		}
		if err := s.invoiceRepo.Update(txCtx, inv); err != nil {
			return err
		}
		return s.activity.record(txCtx, companyID, action, string(inv.Kind), inv.ID,
			map[string]interface{}{"number": inv.Number, "from": prev, "to": inv.Status})
	})
	if err != nil {
		err = classify(err)
		s.logger.Error("Failed to change document status", "error", err, "id", id, "trigger", trigger)
		return nil, err
	}

	s.logger.Info("Document status changed", "id", id, "trigger", trigger)
	return s.Get(ctx, companyID, id)
}

// Delete buries a document that has no payments
func (s *documentServiceImpl) Delete(ctx context.Context, companyID, id int64) error {
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		inv, err := s.load(txCtx, companyID, id)
		if err != nil {
			return err
		}

		payments, err := s.paymentRepo.ListByInvoice(txCtx, companyID, id)
		if err != nil {
			return err
		}
		if len(payments) > 0 {
			return conflict("%s has %d payment(s); delete them first", inv.Number, len(payments))
		}

		if err := s.invoiceRepo.SoftDelete(txCtx, companyID, id, s.now()); err != nil {
			return err
		}
		return s.activity.record(txCtx, companyID, entity.ActionDocumentDeleted, string(inv.Kind), inv.ID,
			map[string]interface{}{"number": inv.Number})
	})
	if err != nil {
		err = classify(err)
		s.logger.Error("Failed to delete document", "error", err, "id", id)
		return err
	}

	s.logger.Info("Document deleted", "id", id)
	return nil
}

// ConvertQuote copies a quote into a new draft invoice. A quote converts once.
func (s *documentServiceImpl) ConvertQuote(ctx context.Context, companyID, id int64) (*entity.Invoice, error) {
	var created *entity.Invoice

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		quote, err := s.load(txCtx, companyID, id)
		if err != nil {
			return err
		}
		if quote.Kind != entity.DocumentKindQuote {
			return conflict("%s is not a quote", quote.Number)
		}
		if quote.ConvertedToID != nil {
			return conflict("quote %s was already converted", quote.Number)
		}
		if quote.Status == entity.InvoiceStatusCancelled {
			return conflict("quote %s is cancelled", quote.Number)
		}

		items, err := s.invoiceRepo.GetItems(txCtx, quote.ID)
		if err != nil {
			return err
		}
		for i := range items {
			items[i].ID, items[i].InvoiceID = 0, 0
		}

		n, err := s.sequenceRepo.Next(txCtx, companyID, entity.DocumentKindInvoice.SequenceScope(), "")
		if err != nil {
			return fmt.Errorf("next document number: %w", err)
		}

		created = &entity.Invoice{
			CompanyID:       companyID,
			CustomerID:      quote.CustomerID,
			Kind:            entity.DocumentKindInvoice,
			Number:          formatDocumentNumber(entity.DocumentKindInvoice, n),
			Status:          entity.InvoiceStatusDraft,
			IssueDate:       s.now(),
			DueDate:         quote.DueDate,
			Currency:        quote.Currency,
			PaidAmount:      decimal.Zero,
			Notes:           quote.Notes,
			ConvertedFromID: &quote.ID,
			Items:           items,
		}
		created.ApplyTotals()
		if err := s.invoiceRepo.Create(txCtx, created); err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}

		quote.ConvertedToID = &created.ID
		if err := s.invoiceRepo.Update(txCtx, quote); err != nil {
			return err
		}
		return s.activity.record(txCtx, companyID, entity.ActionQuoteConverted, string(entity.DocumentKindQuote), quote.ID,
			map[string]interface{}{"quote": quote.Number, "invoice": created.Number, "invoice_id": created.ID})
	})
	if err != nil {
		err = classify(err)
		s.logger.Error("Failed to convert quote", "error", err, "id", id)
		return nil, err
	}

	s.logger.Info("Quote converted", "quote_id", id, "invoice_id", created.ID, "number", created.Number)
	return s.Get(ctx, companyID, created.ID)
}

// MarkOverdue moves open invoices due before asOf's day to overdue, examining
// up to batch candidates with ids above afterID. It reports how many moved and
// the last id examined, which is 0 once no candidates remain. Invoices that
// fail to save are skipped and left for the next sweep.
func (s *documentServiceImpl) MarkOverdue(ctx context.Context, asOf time.Time, afterID int64, batch int) (int, int64, error) {
	y, m, d := asOf.Date()
	startOfDay := time.Date(y, m, d, 0, 0, 0, 0, asOf.Location())

	candidates, err := s.invoiceRepo.ListOverdueCandidates(ctx, startOfDay, afterID, batch)
	if err != nil {
		s.logger.Error("Failed to list overdue candidates", "error", err)
		return 0, 0, err
	}

	moved := 0
	var lastID int64
	for _, inv := range candidates {
		if err := ctx.Err(); err != nil {
			return moved, lastID, err
		}
		lastID = inv.ID
		if !billing.IsOverdue(inv, asOf) {
			continue
		}

		prev := inv.Status
		err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
			if err := billing.Advance(txCtx, inv, billing.TriggerMarkOverdue); err != nil {
				return err
			}
			if err := s.invoiceRepo.Update(txCtx, inv); err != nil {
				return err
			}
			return s.activity.record(txCtx, inv.CompanyID, entity.ActionInvoiceOverdue, string(inv.Kind), inv.ID,
				map[string]interface{}{"number": inv.Number, "from": prev})
		})
		if err != nil {
			s.logger.Error("Failed to mark invoice overdue", "error", err, "id", inv.ID)
			continue
		}

		moved++
		if s.events != nil {
			evt := event.NewEvent(event.TypeInvoiceOverdue, inv.CompanyID, inv.ID, map[string]interface{}{
				"invoice_number": inv.Number,
				"due_date":       inv.DueDate.Format(dateLayout),
				"balance":        inv.RemainingBalance().StringFixed(2),
			})
			if err := s.events.Dispatch(ctx, evt); err != nil {
				s.logger.Error("Failed to dispatch overdue event", "error", err, "id", inv.ID)
			}
		}
	}

	if moved > 0 {
		s.logger.Info("Invoices marked overdue", "count", moved)
	}
	return moved, lastID, nil
}
