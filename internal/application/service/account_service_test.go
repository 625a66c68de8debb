package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolibooks/bolibooks/internal/application/port"
	"github.com/bolibooks/bolibooks/internal/domain/entity"
)

type mockTokenIssuer struct {
	issueFunc func(user *entity.User) (string, time.Time, error)
	parseFunc func(token string) (*port.Claims, error)
}

func (m *mockTokenIssuer) Issue(user *entity.User) (string, time.Time, error) {
	if m.issueFunc != nil {
		return m.issueFunc(user)
	}
	return fmt.Sprintf("token-%d", user.ID), time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), nil
}

func (m *mockTokenIssuer) Parse(token string) (*port.Claims, error) {
	if m.parseFunc != nil {
		return m.parseFunc(token)
	}
	return nil, errors.New("bad token")
}

type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "h:" + password, nil }
func (plainHasher) Compare(hash, password string) error {
	if hash != "h:"+password {
		return errors.New("mismatch")
	}
	return nil
}

func (l *ledger) authService() AuthService {
	return NewAuthService(l.companies, l.users, l.plans, l.tx, &mockTokenIssuer{}, plainHasher{}, nopLogger{})
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	l := newLedger(t)
	svc := l.authService()
	ctx := context.Background()

	session, err := svc.Register(ctx, RegisterInput{
		CompanyName: "Boli Traders", Name: "Aminath", Email: "Aminath@Boli.mv", Password: "s3cret-pass",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.RoleOwner, session.User.Role)
	assert.Equal(t, "aminath@boli.mv", session.User.Email)
	assert.Equal(t, "MVR", session.Company.Currency)
	require.NotNil(t, session.Company.SubscriptionPlanID, "new companies start on the default plan")
	assert.NotEmpty(t, session.Token)

	_, err = svc.Register(ctx, RegisterInput{CompanyName: "Other", Name: "X", Email: "aminath@boli.mv", Password: "another-pass"})
	assert.ErrorIs(t, err, ErrConflict)

	login, err := svc.Login(ctx, "AMINATH@boli.mv", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, login.User.ID)

	_, err = svc.Login(ctx, "aminath@boli.mv", "wrong")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = svc.Login(ctx, "nobody@boli.mv", "s3cret-pass")
	assert.ErrorIs(t, err, ErrUnauthorized)

	me, err := svc.Me(ctx, session.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Boli Traders", me.Company.Name)
	assert.Empty(t, me.Token)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	l := newLedger(t)
	svc := l.authService()

	tests := []struct {
		name  string
		input RegisterInput
	}{
		{"bad email", RegisterInput{CompanyName: "C", Name: "N", Email: "nope", Password: "long-enough"}},
		{"short password", RegisterInput{CompanyName: "C", Name: "N", Email: "a@b.mv", Password: "short"}},
		{"missing company", RegisterInput{Name: "N", Email: "a@b.mv", Password: "long-enough"}},
		{"bad currency", RegisterInput{CompanyName: "C", Name: "N", Email: "a@b.mv", Password: "long-enough", Currency: "dollars"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.input)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestAuthService_Authenticate(t *testing.T) {
	issuer := &mockTokenIssuer{
		parseFunc: func(token string) (*port.Claims, error) {
			if token == "good" {
				return &port.Claims{UserID: 1, CompanyID: 2, Role: entity.RoleAdmin}, nil
			}
			return nil, errors.New("signature is invalid")
		},
	}
	svc := NewAuthService(nil, nil, nil, nil, issuer, plainHasher{}, nopLogger{})

	claims, err := svc.Authenticate("good")
	require.NoError(t, err)
	assert.Equal(t, int64(2), claims.CompanyID)

	_, err = svc.Authenticate("forged")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCompanyService_UpdateAndSelectPlan(t *testing.T) {
	l := newLedger(t)
	svc := NewCompanyService(l.companies, l.plans, nopLogger{})
	ctx := context.Background()
	company := l.company(t)

	profile, err := svc.Update(ctx, company.ID, CompanyInput{Name: "Boli Traders Pvt Ltd", Email: "Accounts@Boli.mv", Currency: "usd"})
	require.NoError(t, err)
	assert.Equal(t, "accounts@boli.mv", profile.Email)
	assert.Equal(t, "USD", profile.Currency)

	_, err = svc.Update(ctx, company.ID, CompanyInput{Name: "", Email: "a@b.mv"})
	assert.ErrorIs(t, err, ErrValidation)

	business, err := l.plans.GetByName(ctx, "Business")
	require.NoError(t, err)
	profile, err = svc.SelectPlan(ctx, company.ID, business.ID)
	require.NoError(t, err)
	require.NotNil(t, profile.Plan)
	assert.Equal(t, "Business", profile.Plan.Name)

	business.IsActive = false
	require.NoError(t, l.plans.Update(ctx, business))
	_, err = svc.SelectPlan(ctx, company.ID, business.ID)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.SelectPlan(ctx, company.ID, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSubscriptionPlanService(t *testing.T) {
	l := newLedger(t)
	svc := NewSubscriptionPlanService(l.plans, nopLogger{})
	ctx := context.Background()

	plan, err := svc.Create(ctx, PlanInput{Name: "Enterprise", Price: dec("1999.00"), Interval: entity.PlanIntervalYear,
		Features: []string{"pos", " ", "gateways"}, MaxUsers: 50})
	require.NoError(t, err)
	assert.True(t, plan.IsActive)
	assert.Equal(t, []string{"pos", "gateways"}, plan.Features)
	assert.Equal(t, "MVR", plan.Currency)

	_, err = svc.Create(ctx, PlanInput{Name: "Enterprise", Price: dec("1")})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.Create(ctx, PlanInput{Name: "Weekly", Price: dec("1"), Interval: "week"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, PlanInput{Name: "Negative", Price: dec("-1")})
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, svc.Deactivate(ctx, plan.ID))
	active, err := svc.List(ctx, true)
	require.NoError(t, err)
	for _, p := range active {
		assert.NotEqual(t, plan.ID, p.ID)
	}

	all, err := svc.List(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, len(active)+1)
}

func TestCustomerAndProductServices(t *testing.T) {
	l := newLedger(t)
	customers := NewCustomerService(l.customers, nopLogger{})
	products := NewProductService(l.products, nopLogger{})
	ctx := context.Background()
	company := l.company(t)

	c, err := customers.Create(ctx, company.ID, CustomerInput{Name: "  Hassan  ", Email: "Hassan@Mail.mv"})
	require.NoError(t, err)
	assert.Equal(t, "Hassan", c.Name)
	assert.Equal(t, "hassan@mail.mv", c.Email)

	_, err = customers.Create(ctx, company.ID, CustomerInput{Name: "X", Email: "not-an-email"})
	assert.ErrorIs(t, err, ErrValidation)

	page, err := customers.List(ctx, company.ID, "hass", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	require.NoError(t, customers.Delete(ctx, company.ID, c.ID))
	assert.ErrorIs(t, customers.Delete(ctx, company.ID, c.ID), ErrNotFound)

	p, err := products.Create(ctx, company.ID, ProductInput{Name: "Rope", SKU: "rope-10", UnitPrice: dec("15.5"), TaxRate: dec("8")})
	require.NoError(t, err)
	assert.Equal(t, "ROPE-10", p.SKU)

	_, err = products.Create(ctx, company.ID, ProductInput{Name: "Rope again", SKU: "ROPE-10", UnitPrice: dec("1"), TaxRate: dec("0")})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = products.Update(ctx, company.ID, p.ID, ProductInput{Name: "Rope", UnitPrice: dec("1.234"), TaxRate: dec("0")})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = products.Get(ctx, company.ID+1, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
