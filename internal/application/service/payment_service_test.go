package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bolibooks/bolibooks/internal/application/port"
	"github.com/bolibooks/bolibooks/internal/domain/entity"
	"github.com/bolibooks/bolibooks/internal/domain/event"
	"github.com/bolibooks/bolibooks/internal/infrastructure/persistence/repository"
	"github.com/bolibooks/bolibooks/internal/testutil"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (p *recordingPublisher) Dispatch(ctx context.Context, evt *event.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) types() []event.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]event.Type, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type ledger struct {
	companies port.CompanyRepository
	customers port.CustomerRepository
	products  port.ProductRepository
	invoices  port.InvoiceRepository
	payments  port.PaymentRepository
	sequences port.SequenceRepository
	sales     port.POSSaleRepository
	plans     port.SubscriptionPlanRepository
	users     port.UserRepository
	activity  port.ActivityRepository
	tx        port.TransactionManager
	events    *recordingPublisher
}

func newLedger(t *testing.T) *ledger {
	db := testutil.NewDB(t)
	logger := zap.NewNop()
	return &ledger{
		companies: repository.NewCompanyRepository(db.DB, logger),
		customers: repository.NewCustomerRepository(db.DB, logger),
		products:  repository.NewProductRepository(db.DB, logger),
		invoices:  repository.NewInvoiceRepository(db.DB, logger),
		payments:  repository.NewPaymentRepository(db.DB, logger),
		sequences: repository.NewSequenceRepository(db.DB, logger),
		sales:     repository.NewPOSSaleRepository(db.DB, logger),
		plans:     repository.NewSubscriptionPlanRepository(db.DB, logger),
		users:     repository.NewUserRepository(db.DB, logger),
		activity:  repository.NewActivityRepository(db.DB, logger),
		tx:        db,
		events:    &recordingPublisher{},
	}
}

func (l *ledger) paymentService() PaymentService {
	return NewPaymentService(l.invoices, l.payments, l.tx, nil, l.events, nopLogger{})
}

func (l *ledger) company(t *testing.T) *entity.Company {
	c := &entity.Company{Name: "Boli Traders", Email: "owner@boli.mv", Currency: "MVR"}
	require.NoError(t, l.companies.Create(context.Background(), c))
	return c
}

func (l *ledger) customer(t *testing.T, companyID int64) *entity.Customer {
	c := &entity.Customer{CompanyID: companyID, Name: "Ahmed"}
	require.NoError(t, l.customers.Create(context.Background(), c))
	return c
}

// invoice stores a document with a single line worth total
func (l *ledger) invoice(t *testing.T, companyID int64, kind entity.DocumentKind, status, total string) *entity.Invoice {
	ctx := context.Background()
	cust := l.customer(t, companyID)
	n, err := l.sequences.Next(ctx, companyID, kind.SequenceScope(), "")
	require.NoError(t, err)

	amount := dec(total)
	inv := &entity.Invoice{
		CompanyID:  companyID,
		CustomerID: cust.ID,
		Kind:       kind,
		Number:     formatDocumentNumber(kind, n),
		Status:     status,
		IssueDate:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Currency:   "MVR",
		PaidAmount: decimal.Zero,
		Items: []entity.InvoiceItem{{
			Description:  "Consulting",
			Quantity:     decimal.NewFromInt(1),
			UnitPrice:    amount,
			DiscountRate: decimal.Zero,
			TaxRate:      decimal.Zero,
			LineAmounts:  entity.CalculateLine(decimal.NewFromInt(1), amount, decimal.Zero, decimal.Zero),
		}},
	}
	inv.ApplyTotals()
	require.NoError(t, l.invoices.Create(ctx, inv))
	return inv
}

func (l *ledger) reload(t *testing.T, inv *entity.Invoice) *entity.Invoice {
	got, err := l.invoices.GetByID(context.Background(), inv.CompanyID, inv.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	return got
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestPaymentService_PartialThenFullThenDelete(t *testing.T) {
	l := newLedger(t)
	svc := l.paymentService()
	ctx := context.Background()
	company := l.company(t)
	inv := l.invoice(t, company.ID, entity.DocumentKindInvoice, entity.InvoiceStatusSent, "100.00")

	first, err := svc.Create(ctx, company.ID, PaymentInput{InvoiceID: inv.ID, Amount: dec("40"), Method: entity.PaymentMethodCash})
	require.NoError(t, err)
	got := l.reload(t, inv)
	assert.True(t, dec("40").Equal(got.PaidAmount))
	assert.Equal(t, entity.InvoiceStatusPartiallyPaid, got.Status)
	assert.Nil(t, got.PaidAt)
	require.NotNil(t, first.Invoice)
	assert.Equal(t, inv.Number, first.Invoice.Number)

	second, err := svc.Create(ctx, company.ID, PaymentInput{InvoiceID: inv.ID, Amount: dec("60"), Method: entity.PaymentMethodCard})
	require.NoError(t, err)
	got = l.reload(t, inv)
	assert.True(t, dec("100").Equal(got.PaidAmount))
	assert.Equal(t, entity.InvoiceStatusPaid, got.Status)
	assert.NotNil(t, got.PaidAt)

	require.NoError(t, svc.Delete(ctx, company.ID, second.ID))
	got = l.reload(t, inv)
	assert.True(t, dec("40").Equal(got.PaidAmount))
	assert.Equal(t, entity.InvoiceStatusPartiallyPaid, got.Status)
	assert.Nil(t, got.PaidAt)

	_, err = svc.Get(ctx, company.ID, second.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []event.Type{
		event.TypePaymentRecorded,
		event.TypePaymentRecorded,
		event.TypeInvoicePaid,
		event.TypePaymentDeleted,
	}, l.events.types())
}

func TestPaymentService_CreateRejectsOverpayment(t *testing.T) {
	l := newLedger(t)
	svc := l.paymentService()
	ctx := context.Background()
	company := l.company(t)
	inv := l.invoice(t, company.ID, entity.DocumentKindInvoice, entity.InvoiceStatusSent, "100.00")

	_, err := svc.Create(ctx, company.ID, PaymentInput{InvoiceID: inv.ID, Amount: dec("70"), Method: entity.PaymentMethodCash})
	require.NoError(t, err)

	_, err = svc.Create(ctx, company.ID, PaymentInput{InvoiceID: inv.ID, Amount: dec("30.01"), Method: entity.PaymentMethodCash})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	got := l.reload(t, inv)
	assert.True(t, dec("70").Equal(got.PaidAmount))
	assert.Equal(t, entity.InvoiceStatusPartiallyPaid, got.Status)

	payments, err := svc.ListByInvoice(ctx, company.ID, inv.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestPaymentService_CreateValidation(t *testing.T) {
	l := newLedger(t)
	svc := l.paymentService()
	company := l.company(t)
	inv := l.invoice(t, company.ID, entity.DocumentKindInvoice, entity.InvoiceStatusSent, "100.00")
	other := l.company(t)
	quote := l.invoice(t, company.ID, entity.DocumentKindQuote, entity.InvoiceStatusSent, "50.00")

	tests := []struct {
		name      string
		companyID int64
		input     PaymentInput
		wantErr   error
	}{
		{"zero amount", company.ID, PaymentInput{InvoiceID: inv.ID, Amount: decimal.Zero, Method: entity.PaymentMethodCash}, ErrValidation},
		{"negative amount", company.ID, PaymentInput{InvoiceID: inv.ID, Amount: dec("-5"), Method: entity.PaymentMethodCash}, ErrValidation},
		{"sub-cent amount", company.ID, PaymentInput{InvoiceID: inv.ID, Amount: dec("1.005"), Method: entity.PaymentMethodCash}, ErrValidation},
		{"unknown method", company.ID, PaymentInput{InvoiceID: inv.ID, Amount: dec("5"), Method: "barter"}, ErrValidation},
		{"bad date", company.ID, PaymentInput{InvoiceID: inv.ID, Amount: dec("5"), Method: entity.PaymentMethodCash, Date: "15/03/2026"}, ErrValidation},
		{"missing invoice", company.ID, PaymentInput{InvoiceID: 9999, Amount: dec("5"), Method: entity.PaymentMethodCash}, ErrNotFound},
		{"foreign company", other.ID, PaymentInput{InvoiceID: inv.ID, Amount: dec("5"), Method: entity.PaymentMethodCash}, ErrNotFound},
		{"quote", company.ID, PaymentInput{InvoiceID: quote.ID, Amount: dec("5"), Method: entity.PaymentMethodCash}, ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.companyID, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.True(t, l.reload(t, inv).PaidAmount.IsZero())
}

func TestPaymentService_CreateAcceptsDates(t *testing.T) {
	l := newLedger(t)
	svc := l.paymentService()
	company := l.company(t)
	inv := l.invoice(t, company.ID, entity.DocumentKindInvoice, entity.InvoiceStatusSent, "100.00")

	p, err := svc.Create(context.Background(), company.ID, PaymentInput{
		InvoiceID: inv.ID, Amount: dec("5"), Method: entity.PaymentMethodBankTransfer, Date: "2026-03-15",
	})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-15", p.Date.UTC().Format("2006-01-02"))

	p, err = svc.Create(context.Background(), company.ID, PaymentInput{
		InvoiceID: inv.ID, Amount: dec("5"), Method: entity.PaymentMethodBankTransfer, Date: "2026-03-16T10:30:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, 10, p.Date.UTC().Hour())
}

func TestPaymentService_ExactBalanceStampsPaidAt(t *testing.T) {
	l := newLedger(t)
	svc := l.paymentService()
	company := l.company(t)
	inv := l.invoice(t, company.ID, entity.DocumentKindInvoice, entity.InvoiceStatusOverdue, "250.50")

	_, err := svc.Create(context.Background(), company.ID, PaymentInput{InvoiceID: inv.ID, Amount: dec("250.50"), Method: entity.PaymentMethodCheque})
	require.NoError(t, err)

	got := l.reload(t, inv)
	assert.Equal(t, entity.InvoiceStatusPaid, got.Status)
	assert.NotNil(t, got.PaidAt)
}

func TestPaymentService_RandomSequenceKeepsBalanceInRange(t *testing.T) {
	for _, seed := range []int64{1, 7, 42, 2026} {
		t.Run(fmt.Sprintf("seed %d", seed), func(t *testing.T) {
			l := newLedger(t)
			svc := l.paymentService()
			ctx := context.Background()
			company := l.company(t)
			inv := l.invoice(t, company.ID, entity.DocumentKindInvoice, entity.InvoiceStatusSent, "100.00")
			total := dec("100")

			rng := rand.New(rand.NewSource(seed))
			amounts := map[int64]decimal.Decimal{}
			ids := []int64{}
			paid := decimal.Zero

			for step := 0; step < 60; step++ {
				amount := decimal.New(int64(rng.Intn(6000)+1), -2)
				op := rng.Intn(3)
				if len(ids) == 0 {
					op = 0
				}

				switch op {
				case 0:
					p, err := svc.Create(ctx, company.ID, PaymentInput{InvoiceID: inv.ID, Amount: amount, Method: entity.PaymentMethodCash})
					if paid.Add(amount).GreaterThan(total) {
						require.ErrorIs(t, err, ErrInvalidAmount, "step %d", step)
						break
					}
					require.NoError(t, err, "step %d", step)
					amounts[p.ID] = amount
					ids = append(ids, p.ID)
					paid = paid.Add(amount)
				case 1:
					id := ids[rng.Intn(len(ids))]
					next := paid.Sub(amounts[id]).Add(amount)
					_, err := svc.Update(ctx, company.ID, id, PaymentUpdate{Amount: &amount})
					if next.GreaterThan(total) {
						require.ErrorIs(t, err, ErrInvalidAmount, "step %d", step)
						break
					}
					require.NoError(t, err, "step %d", step)
					amounts[id] = amount
					paid = next
				case 2:
					i := rng.Intn(len(ids))
					id := ids[i]
					require.NoError(t, svc.Delete(ctx, company.ID, id), "step %d", step)
					paid = paid.Sub(amounts[id])
					delete(amounts, id)
					ids = append(ids[:i], ids[i+1:]...)
				}

				got := l.reload(t, inv)
				require.False(t, got.PaidAmount.IsNegative(), "step %d", step)
				require.False(t, got.PaidAmount.GreaterThan(got.Total), "step %d", step)
				require.True(t, paid.Equal(got.PaidAmount), "step %d: want %s got %s", step, paid, got.PaidAmount)

				switch {
				case got.PaidAmount.Equal(got.Total):
					require.Equal(t, entity.InvoiceStatusPaid, got.Status, "step %d", step)
					require.NotNil(t, got.PaidAt, "step %d", step)
				case got.PaidAmount.IsPositive():
					require.Equal(t, entity.InvoiceStatusPartiallyPaid, got.Status, "step %d", step)
					require.Nil(t, got.PaidAt, "step %d", step)
				default:
					require.Contains(t, []string{entity.InvoiceStatusSent, entity.InvoiceStatusPartiallyPaid}, got.Status, "step %d", step)
					require.Nil(t, got.PaidAt, "step %d", step)
				}
			}

			list, err := svc.ListByInvoice(ctx, company.ID, inv.ID)
			require.NoError(t, err)
			sum := decimal.Zero
			for _, p := range list {
				sum = sum.Add(p.Amount)
			}
			assert.True(t, paid.Equal(sum), "payments add up to the paid amount")
		})
	}
}

func TestPaymentService_Update(t *testing.T) {
	l := newLedger(t)
	svc := l.paymentService()
	ctx := context.Background()
	company := l.company(t)
	inv := l.invoice(t, company.ID, entity.DocumentKindInvoice, entity.InvoiceStatusSent, "100.00")

	a, err := svc.Create(ctx, company.ID, PaymentInput{InvoiceID: inv.ID, Amount: dec("40"), Method: entity.PaymentMethodCash})
	require.NoError(t, err)
	_, err = svc.Create(ctx, company.ID, PaymentInput{InvoiceID: inv.ID, Amount: dec("30"), Method: entity.PaymentMethodCash})
	require.NoError(t, err)

	t.Run("increase beyond total fails and keeps the amount", func(t *testing.T) {
		_, err := svc.Update(ctx, company.ID, a.ID, PaymentUpdate{Amount: decPtr("70.01")})
		assert.ErrorIs(t, err, ErrInvalidAmount)

		p, err := svc.Get(ctx, company.ID, a.ID)
		require.NoError(t, err)
		assert.True(t, dec("40").Equal(p.Amount))
		assert.True(t, dec("70").Equal(l.reload(t, inv).PaidAmount))
	})

	t.Run("increase to exactly the total pays the invoice", func(t *testing.T) {
		p, err := svc.Update(ctx, company.ID, a.ID, PaymentUpdate{Amount: decPtr("70")})
		require.NoError(t, err)
		assert.True(t, dec("70").Equal(p.Amount))

		got := l.reload(t, inv)
		assert.True(t, dec("100").Equal(got.PaidAmount))
		assert.Equal(t, entity.InvoiceStatusPaid, got.Status)
		assert.NotNil(t, got.PaidAt)
	})

	t.Run("decrease moves back to partially paid", func(t *testing.T) {
		_, err := svc.Update(ctx, company.ID, a.ID, PaymentUpdate{Amount: decPtr("10")})
		require.NoError(t, err)

		got := l.reload(t, inv)
		assert.True(t, dec("40").Equal(got.PaidAmount))
		assert.Equal(t, entity.InvoiceStatusPartiallyPaid, got.Status)
		assert.Nil(t, got.PaidAt)
	})

	t.Run("non-amount fields leave the balance alone", func(t *testing.T) {
		ref := "RCPT-9"
		method := entity.PaymentMethodBankTransfer
		p, err := svc.Update(ctx, company.ID, a.ID, PaymentUpdate{Reference: &ref, Method: &method})
		require.NoError(t, err)
		assert.Equal(t, "RCPT-9", p.Reference)
		assert.Equal(t, entity.PaymentMethodBankTransfer, p.Method)
		assert.True(t, dec("40").Equal(l.reload(t, inv).PaidAmount))
	})

	t.Run("unknown payment", func(t *testing.T) {
		_, err := svc.Update(ctx, company.ID, 9999, PaymentUpdate{Amount: decPtr("1")})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPaymentService_DeleteOnlyPaymentRevertsToSent(t *testing.T) {
	l := newLedger(t)
	svc := l.paymentService()
	ctx := context.Background()
	company := l.company(t)
	inv := l.invoice(t, company.ID, entity.DocumentKindInvoice, entity.InvoiceStatusSent, "80.00")

	p, err := svc.Create(ctx, company.ID, PaymentInput{InvoiceID: inv.ID, Amount: dec("80"), Method: entity.PaymentMethodCash})
	require.NoError(t, err)
	require.Equal(t, entity.InvoiceStatusPaid, l.reload(t, inv).Status)

	require.NoError(t, svc.Delete(ctx, company.ID, p.ID))

	got := l.reload(t, inv)
	assert.True(t, got.PaidAmount.IsZero())
	assert.Equal(t, entity.InvoiceStatusSent, got.Status)
	assert.Nil(t, got.PaidAt)

	assert.ErrorIs(t, svc.Delete(ctx, company.ID, p.ID), ErrNotFound)
}

func TestPaymentService_PaymentOnCancelledInvoiceRederivesStatus(t *testing.T) {
	l := newLedger(t)
	svc := l.paymentService()
	company := l.company(t)
	inv := l.invoice(t, company.ID, entity.DocumentKindInvoice, entity.InvoiceStatusCancelled, "100.00")

	_, err := svc.Create(context.Background(), company.ID, PaymentInput{InvoiceID: inv.ID, Amount: dec("10"), Method: entity.PaymentMethodCash})
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusPartiallyPaid, l.reload(t, inv).Status)
}

func TestPaymentService_ConcurrentPaymentsCannotOverpay(t *testing.T) {
	l := newLedger(t)
	svc := l.paymentService()
	company := l.company(t)
	inv := l.invoice(t, company.ID, entity.DocumentKindInvoice, entity.InvoiceStatusSent, "100.00")

	const workers = 2
	errs := make([]error, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.Create(context.Background(), company.ID, PaymentInput{
				InvoiceID: inv.ID, Amount: dec("60"), Method: entity.PaymentMethodCash,
			})
		}(i)
	}
	close(start)
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInvalidAmount):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, rejected)

	got := l.reload(t, inv)
	assert.True(t, dec("60").Equal(got.PaidAmount))
	assert.Equal(t, entity.InvoiceStatusPartiallyPaid, got.Status)
}

func TestPaymentService_RecordGatewayPaymentIsIdempotent(t *testing.T) {
	l := newLedger(t)
	svc := l.paymentService()
	ctx := context.Background()
	company := l.company(t)
	inv := l.invoice(t, company.ID, entity.DocumentKindInvoice, entity.InvoiceStatusSent, "100.00")

	gp := GatewayPayment{CompanyID: company.ID, InvoiceID: inv.ID, Provider: "stripe", Reference: "pi_3Nabc", Amount: dec("100"), Currency: "mvr"}
	first, err := svc.RecordGatewayPayment(ctx, gp)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentMethodStripe, first.Method)

	again, err := svc.RecordGatewayPayment(ctx, gp)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	got := l.reload(t, inv)
	assert.True(t, dec("100").Equal(got.PaidAmount))
	assert.Equal(t, entity.InvoiceStatusPaid, got.Status)

	_, err = svc.RecordGatewayPayment(ctx, GatewayPayment{CompanyID: company.ID, InvoiceID: inv.ID, Provider: "stripe",
		Reference: "pi_other", Amount: dec("1")})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.RecordGatewayPayment(ctx, GatewayPayment{CompanyID: company.ID, InvoiceID: inv.ID, Provider: "bitcoin",
		Reference: "x", Amount: dec("1")})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPaymentService_RecordGatewayPaymentRejectsCurrencyMismatch(t *testing.T) {
	l := newLedger(t)
	svc := l.paymentService()
	company := l.company(t)
	inv := l.invoice(t, company.ID, entity.DocumentKindInvoice, entity.InvoiceStatusSent, "100.00")

	_, err := svc.RecordGatewayPayment(context.Background(), GatewayPayment{
		CompanyID: company.ID, InvoiceID: inv.ID, Provider: "paypal", Reference: "ORDER-1", Amount: dec("10"), Currency: "USD",
	})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.True(t, l.reload(t, inv).PaidAmount.IsZero())
}

func TestPaymentService_ListAndStats(t *testing.T) {
	l := newLedger(t)
	svc := l.paymentService()
	ctx := context.Background()
	company := l.company(t)
	inv := l.invoice(t, company.ID, entity.DocumentKindInvoice, entity.InvoiceStatusSent, "500.00")

	for _, in := range []PaymentInput{
		{InvoiceID: inv.ID, Amount: dec("10"), Method: entity.PaymentMethodCash, Date: "2026-03-01"},
		{InvoiceID: inv.ID, Amount: dec("20"), Method: entity.PaymentMethodCard, Date: "2026-03-15"},
		{InvoiceID: inv.ID, Amount: dec("30"), Method: entity.PaymentMethodCash, Date: "2026-03-31"},
	} {
		_, err := svc.Create(ctx, company.ID, in)
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, company.ID, PaymentQuery{From: "2026-03-15", To: "2026-03-31"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 20, page.Limit)

	page, err = svc.List(ctx, company.ID, PaymentQuery{Method: "cash", Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 100, page.Limit)

	_, err = svc.List(ctx, company.ID, PaymentQuery{Method: "gold"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.List(ctx, company.ID, PaymentQuery{From: "2026-04-01", To: "2026-03-01"})
	assert.ErrorIs(t, err, ErrValidation)

	stats, err := svc.MethodStats(ctx, company.ID, "", "")
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, entity.PaymentMethodCash, stats[0].Method)
	assert.True(t, dec("40").Equal(stats[0].Total))

	_, err = svc.ListByInvoice(ctx, company.ID, 4242)
	assert.ErrorIs(t, err, ErrNotFound)
}

type stubExporter struct {
	rows int
}

func (e *stubExporter) ContentType() string   { return "text/plain" }
func (e *stubExporter) FileExtension() string { return "txt" }
func (e *stubExporter) WritePayments(w io.Writer, payments []*entity.Payment) error {
	e.rows = len(payments)
	_, err := w.Write([]byte("ok"))
	return err
}

func TestPaymentService_Export(t *testing.T) {
	l := newLedger(t)
	exp := &stubExporter{}
	svc := NewPaymentService(l.invoices, l.payments, l.tx, exp, nil, nopLogger{})
	ctx := context.Background()
	company := l.company(t)
	inv := l.invoice(t, company.ID, entity.DocumentKindInvoice, entity.InvoiceStatusSent, "500.00")

	for i := 0; i < 25; i++ {
		_, err := svc.Create(ctx, company.ID, PaymentInput{InvoiceID: inv.ID, Amount: dec("1"), Method: entity.PaymentMethodCash})
		require.NoError(t, err)
	}

	out, err := svc.Export(ctx, company.ID, PaymentQuery{})
	require.NoError(t, err)
	assert.Equal(t, 25, exp.rows, "export ignores paging")
	assert.Equal(t, "text/plain", out.ContentType)
	assert.Regexp(t, `^payments-\d{8}\.txt$`, out.Filename)
	assert.Equal(t, []byte("ok"), out.Body)
}
