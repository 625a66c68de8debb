package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bolibooks/bolibooks/internal/application/port"
	"github.com/bolibooks/bolibooks/internal/domain/billing"
	"github.com/bolibooks/bolibooks/internal/domain/entity"
	"github.com/bolibooks/bolibooks/internal/domain/event"
	"github.com/bolibooks/bolibooks/pkg/utils"
)

// PaymentInput is the body of a new payment
type PaymentInput struct {
	InvoiceID int64                `json:"invoice_id"`
	Amount    decimal.Decimal      `json:"amount"`
	Method    entity.PaymentMethod `json:"method"`
	Date      string               `json:"date"`
	Reference string               `json:"reference"`
	Notes     string               `json:"notes"`
}

// PaymentUpdate carries the fields of a payment that change; nil leaves a field as is
type PaymentUpdate struct {
	Amount    *decimal.Decimal      `json:"amount"`
	Method    *entity.PaymentMethod `json:"method"`
	Date      *string               `json:"date"`
	Reference *string               `json:"reference"`
	Notes     *string               `json:"notes"`
}

// PaymentQuery filters a payment listing. Dates are YYYY-MM-DD or RFC3339.
type PaymentQuery struct {
	InvoiceID int64
	Method    string
	From      string
	To        string
	Limit     int
	Offset    int
}

// GatewayPayment is a provider-confirmed collection to be booked against an invoice
type GatewayPayment struct {
	CompanyID int64
	InvoiceID int64
	Provider  string
	Reference string
	Amount    decimal.Decimal
	Currency  string
}

// PaymentExport is a rendered payment report
type PaymentExport struct {
	Filename    string
	ContentType string
	Body        []byte
}

// PaymentService records payments and keeps invoice balances reconciled with them
type PaymentService interface {
	List(ctx context.Context, companyID int64, q PaymentQuery) (*PageResult[*entity.Payment], error)
	Get(ctx context.Context, companyID, id int64) (*entity.Payment, error)
	Create(ctx context.Context, companyID int64, in PaymentInput) (*entity.Payment, error)
	Update(ctx context.Context, companyID, id int64, in PaymentUpdate) (*entity.Payment, error)
	Delete(ctx context.Context, companyID, id int64) error
	MethodStats(ctx context.Context, companyID int64, from, to string) ([]entity.MethodStat, error)
	ListByInvoice(ctx context.Context, companyID, invoiceID int64) ([]*entity.Payment, error)
	RecordGatewayPayment(ctx context.Context, gp GatewayPayment) (*entity.Payment, error)
	Export(ctx context.Context, companyID int64, q PaymentQuery) (*PaymentExport, error)
}

type paymentServiceImpl struct {
	invoiceRepo port.InvoiceRepository
	paymentRepo port.PaymentRepository
	txManager   port.TransactionManager
	exporter    port.PaymentExporter
	events      EventPublisher
	logger      Logger
	now         Clock
}

// NewPaymentService creates a new PaymentService. exporter and events may be nil.
func NewPaymentService(
	invoiceRepo port.InvoiceRepository,
	paymentRepo port.PaymentRepository,
	txManager port.TransactionManager,
	exporter port.PaymentExporter,
	events EventPublisher,
	logger Logger,
) PaymentService {
	return &paymentServiceImpl{
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
		txManager:   txManager,
		exporter:    exporter,
		events:      events,
		logger:      logger,
		now:         time.Now,
	}
}

// reconciliation is the outcome of one balance change, published after commit
type reconciliation struct {
	payment    *entity.Payment
	invoice    *entity.Invoice
	prevStatus string
	prevPaid   decimal.Decimal
}

func (s *paymentServiceImpl) List(ctx context.Context, companyID int64, q PaymentQuery) (*PageResult[*entity.Payment], error) {
	filter, err := paymentFilter(q)
	if err != nil {
		return nil, err
	}
	filter.Page = NormalizePage(q.Limit, q.Offset)

	payments, total, err := s.paymentRepo.List(ctx, companyID, filter)
	if err != nil {
		s.logger.Error("Failed to list payments", "error", err, "company_id", companyID)
		return nil, err
	}
	return newPage(payments, total, filter.Page), nil
}

func paymentFilter(q PaymentQuery) (port.PaymentFilter, error) {
	f := port.PaymentFilter{InvoiceID: q.InvoiceID}
	if q.Method != "" {
		m := entity.PaymentMethod(q.Method)
		if !m.IsValid() {
			return f, validationError("unknown payment method %q", q.Method)
		}
		f.Method = m
	}

	var err error
	if f.From, err = parseRangeStart(q.From); err != nil {
		return f, err
	}
	if f.To, err = parseRangeEnd(q.To); err != nil {
		return f, err
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return f, validationError("date range start is after its end")
	}
	return f, nil
}

func (s *paymentServiceImpl) Get(ctx context.Context, companyID, id int64) (*entity.Payment, error) {
	p, err := s.paymentRepo.GetByID(ctx, companyID, id)
	if err != nil {
		s.logger.Error("Failed to get payment", "error", err, "id", id)
		return nil, err
	}
	if p == nil {
		return nil, notFound("payment", id)
	}
	return p, nil
}

// Create books a payment and moves the invoice balance up by its amount.
// The amount may not exceed the remaining balance.
func (s *paymentServiceImpl) Create(ctx context.Context, companyID int64, in PaymentInput) (*entity.Payment, error) {
	if in.InvoiceID <= 0 {
		return nil, validationError("invoice_id is required")
	}
	if err := utils.ValidateAmount(in.Amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !in.Method.IsValid() {
		return nil, validationError("unknown payment method %q", in.Method)
	}
	date, err := parseDate(in.Date, s.now())
	if err != nil {
		return nil, err
	}

	payment := &entity.Payment{
		CompanyID: companyID,
		InvoiceID: in.InvoiceID,
		Amount:    in.Amount,
		Method:    in.Method,
		Status:    entity.PaymentStatusCompleted,
		Date:      date,
		Reference: utils.SanitizeString(in.Reference),
		Notes:     strings.TrimSpace(in.Notes),
	}

	var rec *reconciliation
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		rec, err = s.book(txCtx, payment)
		return err
	})
	if err != nil {
		err = classify(err)
		s.logger.Error("Failed to create payment", "error", err, "invoice_id", in.InvoiceID, "company_id", companyID)
		return nil, err
	}

	s.logger.Info("Payment recorded", "id", payment.ID, "invoice_id", payment.InvoiceID,
		"amount", payment.Amount.String(), "status", rec.invoice.Status)
	s.publish(ctx, event.TypePaymentRecorded, rec)
	return s.reload(ctx, payment)
}

// book writes payment and applies it to its invoice. Runs inside a transaction.
func (s *paymentServiceImpl) book(ctx context.Context, payment *entity.Payment) (*reconciliation, error) {
	inv, err := s.loadPayable(ctx, payment.CompanyID, payment.InvoiceID)
	if err != nil {
		return nil, err
	}

	if remaining := inv.RemainingBalance(); payment.Amount.GreaterThan(remaining) {
		return nil, invalidAmount("amount %s exceeds remaining balance %s", payment.Amount.StringFixed(2), remaining.StringFixed(2))
	}

	rec := &reconciliation{payment: payment, invoice: inv, prevStatus: inv.Status, prevPaid: inv.PaidAmount}
	if err := billing.ApplyBalance(inv, inv.PaidAmount.Add(payment.Amount), s.now()); err != nil {
		return nil, err
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}
	if err := s.invoiceRepo.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("update invoice balance: %w", err)
	}
	return rec, nil
}

// Update changes a payment. An amount change moves the invoice balance by the
// difference and must keep it within [0, total].
func (s *paymentServiceImpl) Update(ctx context.Context, companyID, id int64, in PaymentUpdate) (*entity.Payment, error) {
	var rec *reconciliation
	var payment *entity.Payment

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		payment, err = s.paymentRepo.GetByID(txCtx, companyID, id)
		if err != nil {
			return err
		}
		if payment == nil {
			return notFound("payment", id)
		}

		oldAmount := payment.Amount
		if err := s.applyUpdate(payment, in); err != nil {
			return err
		}

		delta := payment.Amount.Sub(oldAmount)
		if delta.IsZero() {
			return s.paymentRepo.Update(txCtx, payment)
		}

		inv, err := s.loadPayable(txCtx, companyID, payment.InvoiceID)
		if err != nil {
			return err
		}

		// paid already includes the old amount, so only the upper bound can break here;
		// ApplyBalance still rejects anything outside [0, total]
		newPaid := inv.PaidAmount.Add(delta)
		if newPaid.GreaterThan(inv.Total) {
			return invalidAmount("amount %s would overpay invoice %s (total %s, paid %s)",
				payment.Amount.StringFixed(2), inv.Number, inv.Total.StringFixed(2), inv.PaidAmount.StringFixed(2))
		}

		rec = &reconciliation{payment: payment, invoice: inv, prevStatus: inv.Status, prevPaid: inv.PaidAmount}
		if err := billing.ApplyBalance(inv, newPaid, s.now()); err != nil {
			return err
		}
		if err := s.paymentRepo.Update(txCtx, payment); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		if err := s.invoiceRepo.Update(txCtx, inv); err != nil {
			return fmt.Errorf("update invoice balance: %w", err)
		}
		return nil
	})
	if err != nil {
		err = classify(err)
		s.logger.Error("Failed to update payment", "error", err, "id", id, "company_id", companyID)
		return nil, err
	}

	if rec == nil {
		rec = &reconciliation{payment: payment}
	}
	s.logger.Info("Payment updated", "id", id, "amount", payment.Amount.String())
	s.publish(ctx, event.TypePaymentUpdated, rec)
	return s.reload(ctx, payment)
}

func (s *paymentServiceImpl) applyUpdate(p *entity.Payment, in PaymentUpdate) error {
	if in.Amount != nil {
		if err := utils.ValidateAmount(*in.Amount); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		p.Amount = *in.Amount
	}
	if in.Method != nil {
		if !in.Method.IsValid() {
			return validationError("unknown payment method %q", *in.Method)
		}
		p.Method = *in.Method
	}
	if in.Date != nil {
		date, err := parseDate(*in.Date, p.Date)
		if err != nil {
			return err
		}
		p.Date = date
	}
	if in.Reference != nil {
		p.Reference = utils.SanitizeString(*in.Reference)
	}
	if in.Notes != nil {
		p.Notes = strings.TrimSpace(*in.Notes)
	}
	return nil
}

// Delete removes a payment and takes its amount back off the invoice balance, floored at zero
func (s *paymentServiceImpl) Delete(ctx context.Context, companyID, id int64) error {
	var rec *reconciliation

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		payment, err := s.paymentRepo.GetByID(txCtx, companyID, id)
		if err != nil {
			return err
		}
		if payment == nil {
			return notFound("payment", id)
		}

		inv, err := s.invoiceRepo.GetByID(txCtx, companyID, payment.InvoiceID)
		if err != nil {
			return err
		}

		rec = &reconciliation{payment: payment}
		if inv != nil {
			rec.invoice, rec.prevStatus, rec.prevPaid = inv, inv.Status, inv.PaidAmount
			newPaid := decimal.Max(inv.PaidAmount.Sub(payment.Amount), decimal.Zero)
			if err := billing.ApplyBalance(inv, newPaid, s.now()); err != nil {
				return err
			}
		}

		if err := s.paymentRepo.Delete(txCtx, companyID, id); err != nil {
			return fmt.Errorf("delete payment: %w", err)
		}
		if inv != nil {
			if err := s.invoiceRepo.Update(txCtx, inv); err != nil {
				return fmt.Errorf("update invoice balance: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		err = classify(err)
		s.logger.Error("Failed to delete payment", "error", err, "id", id, "company_id", companyID)
		return err
	}

	s.logger.Info("Payment deleted", "id", id, "invoice_id", rec.payment.InvoiceID)
	s.publish(ctx, event.TypePaymentDeleted, rec)
	return nil
}

func (s *paymentServiceImpl) MethodStats(ctx context.Context, companyID int64, from, to string) ([]entity.MethodStat, error) {
	start, err := parseRangeStart(from)
	if err != nil {
		return nil, err
	}
	end, err := parseRangeEnd(to)
	if err != nil {
		return nil, err
	}

	stats, err := s.paymentRepo.MethodStats(ctx, companyID, start, end)
	if err != nil {
		s.logger.Error("Failed to aggregate payment methods", "error", err, "company_id", companyID)
		return nil, err
	}
	return stats, nil
}

func (s *paymentServiceImpl) ListByInvoice(ctx context.Context, companyID, invoiceID int64) ([]*entity.Payment, error) {
	inv, err := s.invoiceRepo.GetByID(ctx, companyID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, notFound("invoice", invoiceID)
	}
	return s.paymentRepo.ListByInvoice(ctx, companyID, invoiceID)
}

// RecordGatewayPayment books a provider-confirmed payment once per provider reference.
// Redelivered notifications return the payment booked the first time.
func (s *paymentServiceImpl) RecordGatewayPayment(ctx context.Context, gp GatewayPayment) (*entity.Payment, error) {
	method := entity.PaymentMethod(gp.Provider)
	if !method.IsValid() {
		return nil, validationError("unknown payment provider %q", gp.Provider)
	}
	if gp.Reference == "" {
		return nil, validationError("gateway payment needs a provider reference")
	}
	if err := utils.ValidateAmount(gp.Amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	payment := &entity.Payment{
		CompanyID: gp.CompanyID,
		InvoiceID: gp.InvoiceID,
		Amount:    gp.Amount,
		Method:    method,
		Status:    entity.PaymentStatusCompleted,
		Date:      s.now(),
		Reference: gp.Reference,
		Notes:     fmt.Sprintf("Paid online via %s", gp.Provider),
	}

	var rec *reconciliation
	var existing *entity.Payment
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		existing, err = s.paymentRepo.GetByReference(txCtx, gp.CompanyID, gp.Reference)
		if err != nil || existing != nil {
			return err
		}

		inv, err := s.loadPayable(txCtx, gp.CompanyID, gp.InvoiceID)
		if err != nil {
			return err
		}
		if gp.Currency != "" && !strings.EqualFold(gp.Currency, inv.Currency) {
			return invalidAmount("payment currency %s does not match invoice currency %s", gp.Currency, inv.Currency)
		}

		rec, err = s.book(txCtx, payment)
		return err
	})
	if err != nil && errors.Is(err, port.ErrDuplicate) {
		if again, getErr := s.paymentRepo.GetByReference(ctx, gp.CompanyID, gp.Reference); getErr == nil && again != nil {
			return again, nil
		}
	}
	if err != nil {
		err = classify(err)
		s.logger.Error("Failed to record gateway payment", "error", err, "provider", gp.Provider,
			"reference", gp.Reference, "invoice_id", gp.InvoiceID)
		return nil, err
	}
	if existing != nil {
		s.logger.Info("Gateway payment already recorded", "id", existing.ID, "reference", gp.Reference)
		return existing, nil
	}

	s.logger.Info("Gateway payment recorded", "id", payment.ID, "provider", gp.Provider, "reference", gp.Reference)
	s.publish(ctx, event.TypePaymentRecorded, rec)
	return s.reload(ctx, payment)
}

// Export renders the payments matching q, ignoring paging
func (s *paymentServiceImpl) Export(ctx context.Context, companyID int64, q PaymentQuery) (*PaymentExport, error) {
	if s.exporter == nil {
		return nil, conflict("payment export is not configured")
	}
	filter, err := paymentFilter(q)
	if err != nil {
		return nil, err
	}

	payments, _, err := s.paymentRepo.List(ctx, companyID, filter)
	if err != nil {
		s.logger.Error("Failed to list payments for export", "error", err, "company_id", companyID)
		return nil, err
	}

	var buf bytes.Buffer
	if err := s.exporter.WritePayments(&buf, payments); err != nil {
		s.logger.Error("Failed to render payment export", "error", err, "company_id", companyID)
		return nil, fmt.Errorf("render payment export: %w", err)
	}

	return &PaymentExport{
		Filename:    fmt.Sprintf("payments-%s.%s", s.now().Format("20060102"), s.exporter.FileExtension()),
		ContentType: s.exporter.ContentType(),
		Body:        buf.Bytes(),
	}, nil
}

// loadPayable returns a live invoice of the company that accepts payments
func (s *paymentServiceImpl) loadPayable(ctx context.Context, companyID, invoiceID int64) (*entity.Invoice, error) {
	inv, err := s.invoiceRepo.GetByID(ctx, companyID, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, notFound("invoice", invoiceID)
	}
	if !inv.IsPayable() {
		return nil, conflict("%s %s does not accept payments", inv.Kind, inv.Number)
	}
	return inv, nil
}

// reload fetches the payment with its invoice summary. Falls back to p when the read fails.
func (s *paymentServiceImpl) reload(ctx context.Context, p *entity.Payment) (*entity.Payment, error) {
	fresh, err := s.paymentRepo.GetByID(ctx, p.CompanyID, p.ID)
	if err != nil || fresh == nil {
		return p, nil
	}
	return fresh, nil
}

// publish emits the payment event and, when the invoice just became paid, invoice.paid.
// Delivery failures are logged; the payment is already committed.
func (s *paymentServiceImpl) publish(ctx context.Context, typ event.Type, rec *reconciliation) {
	if s.events == nil || rec == nil {
		return
	}

	payload := map[string]interface{}{
		"payment_id": rec.payment.ID,
		"amount":     rec.payment.Amount.StringFixed(2),
		"method":     string(rec.payment.Method),
	}
	if id, ok := ActorFromContext(ctx); ok {
		payload["actor_id"] = id
	}
	if rec.invoice != nil {
		payload["invoice_number"] = rec.invoice.Number
		payload["previous_status"] = rec.prevStatus
		payload["status"] = rec.invoice.Status
		payload["previous_paid"] = rec.prevPaid.StringFixed(2)
		payload["paid_amount"] = rec.invoice.PaidAmount.StringFixed(2)
	}

	evt := event.NewEvent(typ, rec.payment.CompanyID, rec.payment.InvoiceID, payload)
	if err := s.events.Dispatch(ctx, evt); err != nil {
		s.logger.Error("Failed to dispatch payment event", "error", err, "type", typ, "payment_id", rec.payment.ID)
	}

	if rec.invoice != nil && rec.invoice.Status == entity.InvoiceStatusPaid && rec.prevStatus != entity.InvoiceStatusPaid {
		paid := evt.Follow(event.TypeInvoicePaid, map[string]interface{}{
			"invoice_number": rec.invoice.Number,
			"total":          rec.invoice.Total.StringFixed(2),
			"actor_id":       payload["actor_id"],
		})
		if err := s.events.Dispatch(ctx, paid); err != nil {
			s.logger.Error("Failed to dispatch invoice paid event", "error", err, "invoice_id", rec.invoice.ID)
		}
	}
}
