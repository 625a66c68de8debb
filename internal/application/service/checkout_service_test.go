package service

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolibooks/bolibooks/internal/application/dispatcher"
	"github.com/bolibooks/bolibooks/internal/application/port"
	"github.com/bolibooks/bolibooks/internal/domain/entity"
)

type fakeGateway struct {
	name       string
	intents    []port.IntentRequest
	createErr  error
	verifyFunc func(payload []byte, headers http.Header) (*port.WebhookEvent, error)
}

func (g *fakeGateway) Name() string { return g.name }

func (g *fakeGateway) CreateIntent(ctx context.Context, req port.IntentRequest) (*port.IntentResult, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.intents = append(g.intents, req)
	return &port.IntentResult{Provider: g.name, ExternalID: "pi_test", ClientSecret: "secret", Status: "requires_payment_method"}, nil
}

func (g *fakeGateway) VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) (*port.WebhookEvent, error) {
	return g.verifyFunc(payload, headers)
}

type fakeRegistry map[string]port.PaymentGateway

func (r fakeRegistry) Get(name string) (port.PaymentGateway, bool) {
	gw, ok := r[name]
	return gw, ok
}

func (r fakeRegistry) Names() []string {
	names := make([]string, 0, len(r))
	for n := range r {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func TestCheckoutService_StartCheckout(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	company := l.company(t)
	gw := &fakeGateway{name: "stripe"}
	svc := NewCheckoutService(l.invoices, fakeRegistry{"stripe": gw}, l.events, nopLogger{})

	inv := l.invoice(t, company.ID, entity.DocumentKindInvoice, entity.InvoiceStatusSent, "100")
	_, err := l.paymentService().Create(ctx, company.ID, PaymentInput{InvoiceID: inv.ID, Amount: dec("30"), Method: entity.PaymentMethodCash})
	require.NoError(t, err)

	result, err := svc.StartCheckout(ctx, company.ID, inv.ID, "stripe")
	require.NoError(t, err)
	assert.Equal(t, "pi_test", result.ExternalID)
	require.Len(t, gw.intents, 1)
	assert.True(t, dec("70").Equal(gw.intents[0].Amount), "collects the remaining balance")
	assert.Equal(t, "MVR", gw.intents[0].Currency)
	assert.Equal(t, inv.Number, gw.intents[0].Metadata[MetaInvoiceNumber])
	assert.NotEmpty(t, gw.intents[0].IdempotencyKey)

	draft := l.invoice(t, company.ID, entity.DocumentKindInvoice, entity.InvoiceStatusDraft, "10")
	quote := l.invoice(t, company.ID, entity.DocumentKindQuote, entity.InvoiceStatusSent, "10")

	tests := []struct {
		name      string
		invoiceID int64
		provider  string
		wantErr   error
	}{
		{"provider not enabled", inv.ID, "paypal", ErrValidation},
		{"unknown invoice", 999, "stripe", ErrNotFound},
		{"draft", draft.ID, "stripe", ErrConflict},
		{"quote", quote.ID, "stripe", ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.StartCheckout(ctx, company.ID, tt.invoiceID, tt.provider)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	gw.createErr = errors.New("card_declined")
	_, err = svc.StartCheckout(ctx, company.ID, inv.ID, "stripe")
	assert.ErrorIs(t, err, ErrGateway)
}

func TestCheckoutService_WebhookBooksPaymentOnce(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	company := l.company(t)
	inv := l.invoice(t, company.ID, entity.DocumentKindInvoice, entity.InvoiceStatusSent, "100")

	outcome := port.WebhookSucceeded
	gw := &fakeGateway{name: "stripe", verifyFunc: func(payload []byte, headers http.Header) (*port.WebhookEvent, error) {
		if headers.Get("Stripe-Signature") != "valid" {
			return nil, errors.New("signature mismatch")
		}
		return &port.WebhookEvent{
			Provider:   "stripe",
			Outcome:    outcome,
			EventType:  "payment_intent.succeeded",
			ExternalID: "pi_3Nabc",
			Amount:     dec("100"),
			Currency:   "mvr",
			Metadata: map[string]string{
				MetaCompanyID: strconv.FormatInt(company.ID, 10),
				MetaInvoiceID: strconv.FormatInt(inv.ID, 10),
			},
		}, nil
	}}

	d := dispatcher.NewDispatcher()
	payments := NewPaymentService(l.invoices, l.payments, l.tx, nil, d, nopLogger{})
	activity := NewActivityService(l.activity, nopLogger{})
	RegisterSubscribers(d, payments, activity, nopLogger{})
	svc := NewCheckoutService(l.invoices, fakeRegistry{"stripe": gw}, d, nopLogger{})

	signed := http.Header{"Stripe-Signature": []string{"valid"}}
	_, err := svc.HandleWebhook(ctx, "stripe", []byte(`{}`), signed)
	require.NoError(t, err)

	got := l.reload(t, inv)
	assert.Equal(t, entity.InvoiceStatusPaid, got.Status)
	assert.True(t, dec("100").Equal(got.PaidAmount))

	// providers redeliver
	_, err = svc.HandleWebhook(ctx, "stripe", []byte(`{}`), signed)
	require.NoError(t, err)
	list, err := payments.ListByInvoice(ctx, company.ID, inv.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, entity.PaymentMethodStripe, list[0].Method)
	assert.Equal(t, "pi_3Nabc", list[0].Reference)

	outcome = port.WebhookFailed
	_, err = svc.HandleWebhook(ctx, "stripe", []byte(`{}`), signed)
	require.NoError(t, err)

	entries, err := activity.List(ctx, company.ID, 100, 0)
	require.NoError(t, err)
	counts := map[string]int{}
	for _, e := range entries.Data {
		counts[e.Action]++
	}
	assert.Equal(t, 1, counts["payment.recorded"])
	assert.Equal(t, 1, counts["invoice.paid"])
	assert.Equal(t, 1, counts["gateway.payment_failed"])

	_, err = svc.HandleWebhook(ctx, "stripe", []byte(`{}`), http.Header{})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCheckoutService_WebhookAfterManualSettlement(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	company := l.company(t)
	inv := l.invoice(t, company.ID, entity.DocumentKindInvoice, entity.InvoiceStatusSent, "100")

	gw := &fakeGateway{name: "stripe", verifyFunc: func([]byte, http.Header) (*port.WebhookEvent, error) {
		return &port.WebhookEvent{
			Provider:   "stripe",
			Outcome:    port.WebhookSucceeded,
			EventType:  "payment_intent.succeeded",
			ExternalID: "pi_late",
			Amount:     dec("100"),
			Currency:   "mvr",
			Metadata: map[string]string{
				MetaCompanyID: strconv.FormatInt(company.ID, 10),
				MetaInvoiceID: strconv.FormatInt(inv.ID, 10),
			},
		}, nil
	}}

	d := dispatcher.NewDispatcher()
	payments := NewPaymentService(l.invoices, l.payments, l.tx, nil, d, nopLogger{})
	activity := NewActivityService(l.activity, nopLogger{})
	RegisterSubscribers(d, payments, activity, nopLogger{})
	svc := NewCheckoutService(l.invoices, fakeRegistry{"stripe": gw}, d, nopLogger{})

	// the customer paid cash at the counter after the intent was created
	_, err := payments.Create(ctx, company.ID, PaymentInput{InvoiceID: inv.ID, Amount: dec("80"), Method: entity.PaymentMethodCash})
	require.NoError(t, err)

	wh, err := svc.HandleWebhook(ctx, "stripe", []byte(`{}`), http.Header{})
	require.NoError(t, err, "acknowledged so the provider stops retrying")
	assert.Equal(t, port.WebhookSucceeded, wh.Outcome)

	got := l.reload(t, inv)
	assert.True(t, dec("80").Equal(got.PaidAmount))
	assert.Equal(t, entity.InvoiceStatusPartiallyPaid, got.Status)

	list, err := payments.ListByInvoice(ctx, company.ID, inv.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	entries, err := activity.List(ctx, company.ID, 100, 0)
	require.NoError(t, err)
	var unapplied *entity.ActivityEntry
	for _, e := range entries.Data {
		if e.Action == "gateway.payment_unapplied" {
			unapplied = e
		}
	}
	require.NotNil(t, unapplied)
	assert.Equal(t, inv.ID, unapplied.EntityID)
	assert.Equal(t, "pi_late", unapplied.Details["external_id"])
	assert.Equal(t, "100.00", unapplied.Details["amount"])
	assert.NotEmpty(t, unapplied.Details["reason"])
}

func TestCheckoutService_IgnoredWebhook(t *testing.T) {
	l := newLedger(t)
	gw := &fakeGateway{name: "bml", verifyFunc: func([]byte, http.Header) (*port.WebhookEvent, error) {
		return &port.WebhookEvent{Provider: "bml", Outcome: port.WebhookIgnored, EventType: "PENDING"}, nil
	}}
	svc := NewCheckoutService(l.invoices, fakeRegistry{"bml": gw}, l.events, nopLogger{})

	wh, err := svc.HandleWebhook(context.Background(), "bml", []byte(`{}`), http.Header{})
	require.NoError(t, err)
	assert.Equal(t, port.WebhookIgnored, wh.Outcome)
	assert.Empty(t, l.events.types())
}

func TestPortalService_View(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	company := l.company(t)
	docs := l.documentService()
	gw := &fakeGateway{name: "stripe"}
	checkout := NewCheckoutService(l.invoices, fakeRegistry{"stripe": gw}, l.events, nopLogger{})
	portal := NewPortalService(l.invoices, l.companies, l.payments, checkout, nopLogger{})

	inv := l.invoice(t, company.ID, entity.DocumentKindInvoice, entity.InvoiceStatusDraft, "80")
	sent, err := docs.Send(ctx, company.ID, inv.ID)
	require.NoError(t, err)
	require.NotEmpty(t, sent.PortalToken)

	view, err := portal.View(ctx, sent.PortalToken)
	require.NoError(t, err)
	assert.Equal(t, "Boli Traders", view.CompanyName)
	assert.True(t, dec("80").Equal(view.Balance))
	assert.Equal(t, []string{"stripe"}, view.Providers)
	assert.Empty(t, view.Invoice.PortalToken)
	assert.Len(t, view.Invoice.Items, 1)

	result, err := portal.Checkout(ctx, sent.PortalToken, "stripe")
	require.NoError(t, err)
	assert.Equal(t, "stripe", result.Provider)

	_, err = portal.View(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = portal.View(ctx, "  ")
	assert.ErrorIs(t, err, ErrNotFound)
}
