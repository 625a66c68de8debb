package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/bolibooks/bolibooks/internal/application/dispatcher"
	"github.com/bolibooks/bolibooks/internal/application/port"
	"github.com/bolibooks/bolibooks/internal/application/service"
	"github.com/bolibooks/bolibooks/internal/domain/entity"
	"github.com/bolibooks/bolibooks/internal/infrastructure/auth"
	"github.com/bolibooks/bolibooks/internal/infrastructure/export"
	"github.com/bolibooks/bolibooks/internal/infrastructure/external/gateway"
	"github.com/bolibooks/bolibooks/internal/infrastructure/persistence/repository"
	"github.com/bolibooks/bolibooks/internal/testutil"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

type testAPI struct {
	t      *testing.T
	server *Server
	issuer *auth.JWTIssuer
	users  port.UserRepository
}

func newTestAPI(t *testing.T) *testAPI {
	db := testutil.NewDB(t)
	zl := zap.NewNop()
	log := nopLogger{}

	companies := repository.NewCompanyRepository(db.DB, zl)
	users := repository.NewUserRepository(db.DB, zl)
	plans := repository.NewSubscriptionPlanRepository(db.DB, zl)
	customers := repository.NewCustomerRepository(db.DB, zl)
	products := repository.NewProductRepository(db.DB, zl)
	invoices := repository.NewInvoiceRepository(db.DB, zl)
	payments := repository.NewPaymentRepository(db.DB, zl)
	sequences := repository.NewSequenceRepository(db.DB, zl)
	sales := repository.NewPOSSaleRepository(db.DB, zl)
	activity := repository.NewActivityRepository(db.DB, zl)

	issuer, err := auth.NewJWTIssuer("0123456789abcdef0123456789abcdef", time.Hour)
	require.NoError(t, err)

	events := dispatcher.NewDispatcher()
	paymentSvc := service.NewPaymentService(invoices, payments, db, export.NewXLSXExporter(zl), events, log)
	activitySvc := service.NewActivityService(activity, log)
	service.RegisterSubscribers(events, paymentSvc, activitySvc, log)
	checkout := service.NewCheckoutService(invoices, gateway.NewRegistry(zl), events, log)

	services := Services{
		Auth:      service.NewAuthService(companies, users, plans, db, issuer, auth.BcryptHasher{Cost: bcrypt.MinCost}, log),
		Company:   service.NewCompanyService(companies, plans, log),
		Plans:     service.NewSubscriptionPlanService(plans, log),
		Customers: service.NewCustomerService(customers, log),
		Products:  service.NewProductService(products, log),
		Documents: service.NewDocumentService(invoices, customers, products, companies, payments, sequences, activity, db, events, log),
		Payments:  paymentSvc,
		POS:       service.NewPOSService(sales, products, customers, sequences, activity, db, log),
		Checkout:  checkout,
		Portal:    service.NewPortalService(invoices, companies, payments, checkout, log),
		Activity:  activitySvc,
	}
	return &testAPI{
		t:      t,
		server: NewServer(DefaultServerConfig(), services, log),
		issuer: issuer,
		users:  users,
	}
}

func (a *testAPI) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.server.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

// register signs up a company and returns its owner token
func (a *testAPI) register(email string) (string, map[string]interface{}) {
	w := a.do(http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"company_name": "Boli Traders", "name": "Aminath", "email": email, "password": "s3cret-pass",
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	session := decode(a.t, w)
	return session["token"].(string), session
}

func (a *testAPI) sentInvoice(token, unitPrice string) int64 {
	w := a.do(http.MethodPost, "/api/v1/customers", token, map[string]string{"name": "Ahmed"})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	customerID := int64(decode(a.t, w)["id"].(float64))

	w = a.do(http.MethodPost, "/api/v1/documents", token, map[string]interface{}{
		"customer_id": customerID,
		"issue_date":  "2026-03-01",
		"due_date":    "2099-03-31",
		"items":       []map[string]string{{"description": "Consulting", "quantity": "1", "unit_price": unitPrice}},
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	id := int64(decode(a.t, w)["id"].(float64))

	w = a.do(http.MethodPost, fmt.Sprintf("/api/v1/documents/%d/send", id), token, nil)
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())
	return id
}

func TestHealthCheck(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestAuthentication(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic abc"},
		{"forged", "Bearer not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			api.server.Router().ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.NotEmpty(t, decode(t, w)["error"])
		})
	}

	token, _ := api.register("owner@boli.mv")
	w := api.do(http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": "owner@boli.mv", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPaymentEndpoints(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.register("owner@boli.mv")
	invoiceID := api.sentInvoice(token, "100.00")

	w := api.do(http.MethodPost, "/api/v1/payments", token, map[string]interface{}{
		"invoice_id": invoiceID, "amount": "40", "method": "cash", "date": "2026-03-05",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode(t, w)
	paymentID := int64(first["id"].(float64))

	w = api.do(http.MethodPost, "/api/v1/payments", token, map[string]interface{}{
		"invoice_id": invoiceID, "amount": "70", "method": "cash",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())

	w = api.do(http.MethodPost, "/api/v1/payments", token, map[string]interface{}{
		"invoice_id": invoiceID, "amount": "10", "method": "barter",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/v1/payments", token, map[string]interface{}{
		"invoice_id": invoiceID, "amount": "60", "method": "bank_transfer", "reference": "TT-1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = api.do(http.MethodGet, fmt.Sprintf("/api/v1/documents/%d", invoiceID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entity.InvoiceStatusPaid, decode(t, w)["status"])

	w = api.do(http.MethodGet, fmt.Sprintf("/api/v1/payments?invoiceId=%d&limit=1", invoiceID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode(t, w)
	assert.Equal(t, float64(2), page["total"])
	assert.Equal(t, float64(1), page["limit"])
	assert.Len(t, page["data"], 1)

	w = api.do(http.MethodGet, fmt.Sprintf("/api/v1/payments/invoice/%d", invoiceID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	w = api.do(http.MethodGet, "/api/v1/payments/stats/methods", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(http.MethodDelete, fmt.Sprintf("/api/v1/payments/%d", paymentID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, fmt.Sprintf("/api/v1/documents/%d", invoiceID), token, nil)
	assert.Equal(t, entity.InvoiceStatusPartiallyPaid, decode(t, w)["status"])

	w = api.do(http.MethodGet, fmt.Sprintf("/api/v1/payments/%d", paymentID), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(http.MethodGet, "/api/v1/payments/abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, "/api/v1/payments/export", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".xlsx")

	w = api.do(http.MethodGet, "/api/v1/activity", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotZero(t, decode(t, w)["total"])
}

func TestCompanyScoping(t *testing.T) {
	api := newTestAPI(t)
	ownerA, _ := api.register("a@boli.mv")
	ownerB, _ := api.register("b@boli.mv")
	invoiceID := api.sentInvoice(ownerA, "50")

	w := api.do(http.MethodGet, fmt.Sprintf("/api/v1/documents/%d", invoiceID), ownerB, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(http.MethodPost, "/api/v1/payments", ownerB, map[string]interface{}{
		"invoice_id": invoiceID, "amount": "5", "method": "cash",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestManagerOnlyRoutes(t *testing.T) {
	api := newTestAPI(t)
	_, session := api.register("owner@boli.mv")
	company := session["company"].(map[string]interface{})

	staff := &entity.User{
		CompanyID: int64(company["id"].(float64)), Name: "Cashier", Email: "cashier@boli.mv",
		PasswordHash: "x", Role: entity.RoleStaff,
	}
	require.NoError(t, api.users.Create(context.Background(), staff))
	staffToken, _, err := api.issuer.Issue(staff)
	require.NoError(t, err)

	w := api.do(http.MethodPut, "/api/v1/company", staffToken, map[string]string{"name": "Renamed", "email": "x@boli.mv"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodGet, "/api/v1/company", staffToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodGet, "/api/v1/subscription-plans", staffToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var plans []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plans))
	assert.NotEmpty(t, plans)
}

func TestPortalAndWebhooks(t *testing.T) {
	api := newTestAPI(t)
	token, _ := api.register("owner@boli.mv")
	invoiceID := api.sentInvoice(token, "80")

	w := api.do(http.MethodGet, fmt.Sprintf("/api/v1/documents/%d", invoiceID), token, nil)
	portalToken, _ := decode(t, w)["portal_token"].(string)
	require.NotEmpty(t, portalToken)

	w = api.do(http.MethodGet, "/portal/"+portalToken, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	view := decode(t, w)
	assert.Equal(t, "Boli Traders", view["company_name"])

	w = api.do(http.MethodGet, "/portal/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(http.MethodPost, "/portal/"+portalToken+"/checkout", "", map[string]string{"provider": "stripe"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "no gateway is enabled")

	w = api.do(http.MethodPost, "/webhooks/stripe", "", map[string]string{"type": "payment_intent.succeeded"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
