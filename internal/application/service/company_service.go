package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bolibooks/bolibooks/internal/application/port"
	"github.com/bolibooks/bolibooks/internal/domain/entity"
	"github.com/bolibooks/bolibooks/pkg/utils"
)

// CompanyInput is the editable company profile
type CompanyInput struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	TaxNumber string `json:"tax_number"`
	Currency  string `json:"currency"`
}

// CompanyProfile is a company with its current plan
type CompanyProfile struct {
	*entity.Company
	Plan *entity.SubscriptionPlan `json:"plan,omitempty"`
}

// CompanyService manages the caller's company profile and subscription
type CompanyService interface {
	Get(ctx context.Context, companyID int64) (*CompanyProfile, error)
	Update(ctx context.Context, companyID int64, in CompanyInput) (*CompanyProfile, error)
	SelectPlan(ctx context.Context, companyID, planID int64) (*CompanyProfile, error)
}

type companyServiceImpl struct {
	companyRepo port.CompanyRepository
	planRepo    port.SubscriptionPlanRepository
	logger      Logger
}

// NewCompanyService creates a new CompanyService
func NewCompanyService(companyRepo port.CompanyRepository, planRepo port.SubscriptionPlanRepository, logger Logger) CompanyService {
	return &companyServiceImpl{companyRepo: companyRepo, planRepo: planRepo, logger: logger}
}

func (s *companyServiceImpl) Get(ctx context.Context, companyID int64) (*CompanyProfile, error) {
	c, err := s.companyRepo.GetByID(ctx, companyID)
	if err != nil {
		s.logger.Error("Failed to get company", "error", err, "id", companyID)
		return nil, err
	}
	if c == nil {
		return nil, notFound("company", companyID)
	}

	profile := &CompanyProfile{Company: c}
	if c.SubscriptionPlanID != nil {
		if profile.Plan, err = s.planRepo.GetByID(ctx, *c.SubscriptionPlanID); err != nil {
			return nil, err
		}
	}
	return profile, nil
}

func (s *companyServiceImpl) Update(ctx context.Context, companyID int64, in CompanyInput) (*CompanyProfile, error) {
	profile, err := s.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if err := in.apply(profile.Company); err != nil {
		return nil, err
	}
	if err := s.companyRepo.Update(ctx, profile.Company); err != nil {
		s.logger.Error("Failed to update company", "error", err, "id", companyID)
		return nil, err
	}
	return profile, nil
}

func (in CompanyInput) apply(c *entity.Company) error {
	name := utils.SanitizeString(in.Name)
	if name == "" {
		return validationError("name is required")
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := utils.ValidateEmail(email); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = c.Currency
	}
	if err := utils.ValidateCurrency(currency); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	c.Name = name
	c.Email = email
	c.Phone = utils.SanitizeString(in.Phone)
	c.Address = strings.TrimSpace(in.Address)
	c.TaxNumber = utils.SanitizeString(in.TaxNumber)
	c.Currency = currency
	return nil
}

// SelectPlan subscribes the company to an active plan
func (s *companyServiceImpl) SelectPlan(ctx context.Context, companyID, planID int64) (*CompanyProfile, error) {
	plan, err := s.planRepo.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, notFound("subscription plan", planID)
	}
	if !plan.IsActive {
		return nil, conflict("subscription plan %q is no longer offered", plan.Name)
	}

	profile, err := s.Get(ctx, companyID)
	if err != nil {
		return nil, err
	}
	profile.SubscriptionPlanID = &plan.ID
	if err := s.companyRepo.Update(ctx, profile.Company); err != nil {
		s.logger.Error("Failed to change subscription plan", "error", err, "company_id", companyID, "plan_id", planID)
		return nil, err
	}

	s.logger.Info("Subscription plan selected", "company_id", companyID, "plan", plan.Name)
	profile.Plan = plan
	return profile, nil
}
