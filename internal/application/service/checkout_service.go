package service

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/bolibooks/bolibooks/internal/application/port"
	"github.com/bolibooks/bolibooks/internal/domain/entity"
	"github.com/bolibooks/bolibooks/internal/domain/event"
)

// Metadata keys attached to provider intents and read back from their webhooks
const (
	MetaCompanyID     = "company_id"
	MetaInvoiceID     = "invoice_id"
	MetaInvoiceNumber = "invoice_number"
)

// CheckoutService starts online collections and turns provider webhooks into events
type CheckoutService interface {
	Providers() []string
	StartCheckout(ctx context.Context, companyID, invoiceID int64, provider string) (*port.IntentResult, error)
	HandleWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (*port.WebhookEvent, error)
}

type checkoutServiceImpl struct {
	invoiceRepo port.InvoiceRepository
	gateways    port.GatewayRegistry
	events      EventPublisher
	logger      Logger
}

// NewCheckoutService creates a new CheckoutService
func NewCheckoutService(invoiceRepo port.InvoiceRepository, gateways port.GatewayRegistry, events EventPublisher, logger Logger) CheckoutService {
	return &checkoutServiceImpl{invoiceRepo: invoiceRepo, gateways: gateways, events: events, logger: logger}
}

func (s *checkoutServiceImpl) Providers() []string {
	return s.gateways.Names()
}

func (s *checkoutServiceImpl) gateway(provider string) (port.PaymentGateway, error) {
	gw, ok := s.gateways.Get(provider)
	if !ok {
		return nil, validationError("payment provider %q is not enabled", provider)
	}
	return gw, nil
}

// StartCheckout asks the provider to collect the invoice's remaining balance
func (s *checkoutServiceImpl) StartCheckout(ctx context.Context, companyID, invoiceID int64, provider string) (*port.IntentResult, error) {
	gw, err := s.gateway(provider)
	if err != nil {
		return nil, err
	}

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
	switch inv.Status {
	case entity.InvoiceStatusDraft, entity.InvoiceStatusCancelled:
		return nil, conflict("invoice %s is %s", inv.Number, inv.Status)
	}
	balance := inv.RemainingBalance()
	if !balance.IsPositive() {
		return nil, conflict("invoice %s has nothing left to pay", inv.Number)
	}

	result, err := gw.CreateIntent(ctx, port.IntentRequest{
		Amount:      balance,
		Currency:    inv.Currency,
		Description: fmt.Sprintf("Invoice %s", inv.Number),
		Metadata: map[string]string{
			MetaCompanyID:     strconv.FormatInt(inv.CompanyID, 10),
			MetaInvoiceID:     strconv.FormatInt(inv.ID, 10),
			MetaInvoiceNumber: inv.Number,
		},
		IdempotencyKey: uuid.NewString(),
	})
	if err != nil {
		s.logger.Error("Failed to create payment intent", "error", err, "provider", provider, "invoice_id", invoiceID)
		return nil, fmt.Errorf("%w: %s: %v", ErrGateway, provider, err)
	}

	s.logger.Info("Payment intent created", "provider", provider, "invoice_id", invoiceID,
		"external_id", result.ExternalID, "amount", balance.String())
	return result, nil
}

// HandleWebhook verifies a provider notification and dispatches the matching
// gateway event. Notifications that do not settle money are acknowledged and dropped.
func (s *checkoutServiceImpl) HandleWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) (*port.WebhookEvent, error) {
	gw, err := s.gateway(provider)
	if err != nil {
		return nil, err
	}

	wh, err := gw.VerifyWebhook(ctx, payload, headers)
	if err != nil {
		s.logger.Error("Rejected webhook", "error", err, "provider", provider)
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	var typ event.Type
	switch wh.Outcome {
	case port.WebhookSucceeded:
		typ = event.TypeGatewayPaymentSucceeded
	case port.WebhookFailed:
		typ = event.TypeGatewayPaymentFailed
	default:
		s.logger.Info("Ignoring webhook", "provider", provider, "event_type", wh.EventType)
		return wh, nil
	}

	companyID, _ := strconv.ParseInt(wh.Metadata[MetaCompanyID], 10, 64)
	invoiceID, _ := strconv.ParseInt(wh.Metadata[MetaInvoiceID], 10, 64)
	if companyID == 0 || invoiceID == 0 {
		s.logger.Info("Webhook carries no invoice reference", "provider", provider, "external_id", wh.ExternalID)
		return wh, nil
	}

	evt := event.NewEvent(typ, companyID, invoiceID, map[string]interface{}{
		"provider":    wh.Provider,
		"external_id": wh.ExternalID,
		"amount":      wh.Amount.StringFixed(2),
		"currency":    wh.Currency,
		"event_type":  wh.EventType,
		"reason":      wh.Reason,
	})
	if err := s.events.Dispatch(ctx, evt); err != nil {
		s.logger.Error("Failed to handle gateway event", "error", err, "provider", provider, "external_id", wh.ExternalID)
		return nil, err
	}

	s.logger.Info("Webhook processed", "provider", provider, "outcome", wh.Outcome, "external_id", wh.ExternalID)
	return wh, nil
}
