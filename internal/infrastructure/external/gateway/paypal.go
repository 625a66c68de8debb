package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bolibooks/bolibooks/internal/application/port"
)

// PayPalProvider is the provider name used for PayPal payments
const PayPalProvider = "paypal"

// PayPalGateway collects payments through PayPal Orders
type PayPalGateway struct {
	client    *paypal.Client
	webhookID string
	logger    *zap.Logger
}

// NewPayPalGateway creates a PayPal gateway against apiBase
// (paypal.APIBaseSandBox or paypal.APIBaseLive)
func NewPayPalGateway(clientID, secret, apiBase, webhookID string, logger *zap.Logger) (*PayPalGateway, error) {
	c, err := paypal.NewClient(clientID, secret, apiBase)
	if err != nil {
		return nil, fmt.Errorf("paypal: create client: %w", err)
	}
	return &PayPalGateway{client: c, webhookID: webhookID, logger: logger}, nil
}

func (g *PayPalGateway) Name() string { return PayPalProvider }

// CreateIntent creates a capture order and returns its approval link
func (g *PayPalGateway) CreateIntent(ctx context.Context, req port.IntentRequest) (*port.IntentResult, error) {
	units := []paypal.PurchaseUnitRequest{{
		Amount: &paypal.PurchaseUnitAmount{
			Currency: strings.ToUpper(req.Currency),
			Value:    req.Amount.StringFixed(2),
		},
		Description: req.Description,
		CustomID:    packMetadata(req.Metadata),
	}}

	order, err := g.client.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, nil)
	if err != nil {
		g.logger.Error("PayPal order failed", zap.Error(err), zap.String("amount", req.Amount.String()))
		return nil, fmt.Errorf("paypal: create order: %w", err)
	}

	result := &port.IntentResult{Provider: PayPalProvider, ExternalID: order.ID, Status: order.Status}
	for _, link := range order.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			result.ApprovalURL = link.Href
			break
		}
	}
	return result, nil
}

type paypalWebhook struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  json.RawMessage `json:"resource"`
}

type paypalResource struct {
	ID       string `json:"id"`
	CustomID string `json:"custom_id"`
	Amount   struct {
		CurrencyCode string `json:"currency_code"`
		Value        string `json:"value"`
	} `json:"amount"`
	StatusDetails struct {
		Reason string `json:"reason"`
	} `json:"status_details"`
}

// VerifyWebhook asks PayPal to verify the transmission, captures approved
// orders and maps capture events
func (g *PayPalGateway) VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) (*port.WebhookEvent, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header = headers.Clone()

	verification, err := g.client.VerifyWebhookSignature(ctx, httpReq, g.webhookID)
	if err != nil {
		return nil, fmt.Errorf("paypal: verify signature: %w", err)
	}
	if verification.VerificationStatus != "SUCCESS" {
		return nil, fmt.Errorf("paypal: signature verification status %s", verification.VerificationStatus)
	}

	var hook paypalWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return nil, fmt.Errorf("paypal: decode webhook: %w", err)
	}
	out := &port.WebhookEvent{Provider: PayPalProvider, Outcome: port.WebhookIgnored, EventType: hook.EventType}

	var res paypalResource
	if len(hook.Resource) > 0 {
		if err := json.Unmarshal(hook.Resource, &res); err != nil {
			return nil, fmt.Errorf("paypal: decode resource: %w", err)
		}
	}

	switch hook.EventType {
	case "CHECKOUT.ORDER.APPROVED":
		// the capture produces its own PAYMENT.CAPTURE.COMPLETED notification
		if _, err := g.client.CaptureOrder(ctx, res.ID, paypal.CaptureOrderRequest{}); err != nil {
			g.logger.Error("PayPal capture failed", zap.Error(err), zap.String("order_id", res.ID))
			return nil, fmt.Errorf("paypal: capture order %s: %w", res.ID, err)
		}
		return out, nil
	case "PAYMENT.CAPTURE.COMPLETED":
		out.Outcome = port.WebhookSucceeded
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED":
		out.Outcome = port.WebhookFailed
	default:
		return out, nil
	}

	amount, err := decimal.NewFromString(res.Amount.Value)
	if err != nil {
		return nil, fmt.Errorf("paypal: bad capture amount %q: %w", res.Amount.Value, err)
	}
	out.ExternalID = res.ID
	out.Amount = amount
	out.Currency = strings.ToUpper(res.Amount.CurrencyCode)
	out.Metadata = unpackMetadata(res.CustomID)
	out.Reason = res.StatusDetails.Reason
	return out, nil
}
