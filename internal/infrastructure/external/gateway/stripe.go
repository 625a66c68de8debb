package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/bolibooks/bolibooks/internal/application/port"
)

// StripeProvider is the provider name used for Stripe payments
const StripeProvider = "stripe"

// StripeGateway collects payments through Stripe PaymentIntents
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	logger        *zap.Logger
}

// NewStripeGateway creates a Stripe gateway. backends may be nil for the live API.
func NewStripeGateway(secretKey, webhookSecret string, backends *stripe.Backends, logger *zap.Logger) *StripeGateway {
	return &StripeGateway{
		api:           client.New(secretKey, backends),
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

func (g *StripeGateway) Name() string { return StripeProvider }

// CreateIntent opens a PaymentIntent for the amount
func (g *StripeGateway) CreateIntent(ctx context.Context, req port.IntentRequest) (*port.IntentResult, error) {
	cents, err := toMinorUnits(req.Amount)
	if err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(cents),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Description: stripe.String(req.Description),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		g.logger.Error("Stripe payment intent failed", zap.Error(err), zap.Int64("amount", cents))
		return nil, fmt.Errorf("stripe: create payment intent: %w", err)
	}

	g.logger.Debug("Stripe payment intent created", zap.String("id", pi.ID), zap.String("status", string(pi.Status)))
	return &port.IntentResult{
		Provider:     StripeProvider,
		ExternalID:   pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}, nil
}

// VerifyWebhook checks the Stripe-Signature header and maps payment_intent events
func (g *StripeGateway) VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) (*port.WebhookEvent, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, headers.Get("Stripe-Signature"), g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("stripe: %w", err)
	}

	out := &port.WebhookEvent{
		Provider:  StripeProvider,
		Outcome:   port.WebhookIgnored,
		EventType: string(evt.Type),
	}

	switch string(evt.Type) {
	case "payment_intent.succeeded":
		out.Outcome = port.WebhookSucceeded
	case "payment_intent.payment_failed":
		out.Outcome = port.WebhookFailed
	default:
		return out, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("stripe: decode payment intent: %w", err)
	}

	received := pi.AmountReceived
	if received == 0 {
		received = pi.Amount
	}
	out.ExternalID = pi.ID
	out.Amount = fromMinorUnits(received)
	out.Currency = strings.ToUpper(string(pi.Currency))
	out.Metadata = pi.Metadata
	if pi.LastPaymentError != nil {
		out.Reason = pi.LastPaymentError.Msg
	}
	return out, nil
}
