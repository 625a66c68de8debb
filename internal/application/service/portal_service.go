package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bolibooks/bolibooks/internal/application/port"
	"github.com/bolibooks/bolibooks/internal/domain/entity"
)

// PortalView is what a customer sees when opening an invoice link
type PortalView struct {
	CompanyName string            `json:"company_name"`
	Invoice     *entity.Invoice   `json:"invoice"`
	Balance     decimal.Decimal   `json:"balance"`
	Payments    []*entity.Payment `json:"payments"`
	Providers   []string          `json:"providers"`
}

// PortalService serves invoices to customers through their portal token
type PortalService interface {
	View(ctx context.Context, token string) (*PortalView, error)
	Checkout(ctx context.Context, token, provider string) (*port.IntentResult, error)
}

type portalServiceImpl struct {
	invoiceRepo port.InvoiceRepository
	companyRepo port.CompanyRepository
	paymentRepo port.PaymentRepository
	checkout    CheckoutService
	logger      Logger
}

// NewPortalService creates a new PortalService
func NewPortalService(
	invoiceRepo port.InvoiceRepository,
	companyRepo port.CompanyRepository,
	paymentRepo port.PaymentRepository,
	checkout CheckoutService,
	logger Logger,
) PortalService {
	return &portalServiceImpl{
		invoiceRepo: invoiceRepo,
		companyRepo: companyRepo,
		paymentRepo: paymentRepo,
		checkout:    checkout,
		logger:      logger,
	}
}

func (s *portalServiceImpl) byToken(ctx context.Context, token string) (*entity.Invoice, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: portal link", ErrNotFound)
	}
	inv, err := s.invoiceRepo.GetByPortalToken(ctx, token)
	if err != nil {
		s.logger.Error("Failed to look up portal token", "error", err)
		return nil, err
	}
	if inv == nil || inv.Status == entity.InvoiceStatusDraft {
		return nil, fmt.Errorf("%w: portal link", ErrNotFound)
	}
	return inv, nil
}

func (s *portalServiceImpl) View(ctx context.Context, token string) (*PortalView, error) {
	inv, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if inv.Items, err = s.invoiceRepo.GetItems(ctx, inv.ID); err != nil {
		return nil, err
	}

	company, err := s.companyRepo.GetByID(ctx, inv.CompanyID)
	if err != nil {
		return nil, err
	}
	payments, err := s.paymentRepo.ListByInvoice(ctx, inv.CompanyID, inv.ID)
	if err != nil {
		return nil, err
	}

	view := &PortalView{
		Invoice:   inv,
		Balance:   inv.RemainingBalance(),
		Payments:  payments,
		Providers: []string{},
	}
	if company != nil {
		view.CompanyName = company.Name
	}
	if s.checkout != nil && inv.IsPayable() && view.Balance.IsPositive() && inv.Status != entity.InvoiceStatusCancelled {
		view.Providers = s.checkout.Providers()
	}
	inv.PortalToken = ""
	return view, nil
}

// Checkout starts an online payment of the remaining balance on behalf of the customer
func (s *portalServiceImpl) Checkout(ctx context.Context, token, provider string) (*port.IntentResult, error) {
	inv, err := s.byToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if s.checkout == nil {
		return nil, conflict("online payments are not enabled")
	}
	return s.checkout.StartCheckout(ctx, inv.CompanyID, inv.ID, provider)
}
