package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bolibooks/bolibooks/internal/application/port"
	"github.com/bolibooks/bolibooks/internal/domain/entity"
	"github.com/bolibooks/bolibooks/pkg/utils"
)

// PlanInput is the body of a new or edited subscription plan
type PlanInput struct {
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Price       decimal.Decimal     `json:"price"`
	Currency    string              `json:"currency"`
	Interval    entity.PlanInterval `json:"interval"`
	Features    []string            `json:"features"`
	MaxUsers    int                 `json:"max_users"`
	MaxInvoices int                 `json:"max_invoices"`
	IsActive    *bool               `json:"is_active"`
}

// SubscriptionPlanService manages the plans companies subscribe to
type SubscriptionPlanService interface {
	List(ctx context.Context, activeOnly bool) ([]*entity.SubscriptionPlan, error)
	Get(ctx context.Context, id int64) (*entity.SubscriptionPlan, error)
	Create(ctx context.Context, in PlanInput) (*entity.SubscriptionPlan, error)
	Update(ctx context.Context, id int64, in PlanInput) (*entity.SubscriptionPlan, error)
	Deactivate(ctx context.Context, id int64) error
}

type planServiceImpl struct {
	repo   port.SubscriptionPlanRepository
	logger Logger
}

// NewSubscriptionPlanService creates a new SubscriptionPlanService
func NewSubscriptionPlanService(repo port.SubscriptionPlanRepository, logger Logger) SubscriptionPlanService {
	return &planServiceImpl{repo: repo, logger: logger}
}

func (s *planServiceImpl) List(ctx context.Context, activeOnly bool) ([]*entity.SubscriptionPlan, error) {
	plans, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		s.logger.Error("Failed to list subscription plans", "error", err)
		return nil, err
	}
	return plans, nil
}

func (s *planServiceImpl) Get(ctx context.Context, id int64) (*entity.SubscriptionPlan, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, notFound("subscription plan", id)
	}
	return p, nil
}

func (s *planServiceImpl) Create(ctx context.Context, in PlanInput) (*entity.SubscriptionPlan, error) {
	p := &entity.SubscriptionPlan{IsActive: true}
	if err := in.apply(p); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p); err != nil {
		s.logger.Error("Failed to create subscription plan", "error", err, "name", p.Name)
		return nil, classify(err)
	}
	s.logger.Info("Subscription plan created", "id", p.ID, "name", p.Name)
	return p, nil
}

func (s *planServiceImpl) Update(ctx context.Context, id int64, in PlanInput) (*entity.SubscriptionPlan, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.apply(p); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		s.logger.Error("Failed to update subscription plan", "error", err, "id", id)
		return nil, classify(err)
	}
	return p, nil
}

// Deactivate withdraws a plan from sale. Subscribed companies keep it.
func (s *planServiceImpl) Deactivate(ctx context.Context, id int64) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !p.IsActive {
		return nil
	}
	p.IsActive = false
	if err := s.repo.Update(ctx, p); err != nil {
		s.logger.Error("Failed to deactivate subscription plan", "error", err, "id", id)
		return err
	}
	s.logger.Info("Subscription plan deactivated", "id", id)
	return nil
}

func (in PlanInput) apply(p *entity.SubscriptionPlan) error {
	name := utils.SanitizeString(in.Name)
	if name == "" {
		return validationError("name is required")
	}
	if err := utils.ValidateNonNegative(in.Price); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "MVR"
	}
	if err := utils.ValidateCurrency(currency); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	interval := in.Interval
	if interval == "" {
		interval = entity.PlanIntervalMonth
	}
	if !interval.IsValid() {
		return validationError("interval must be month or year")
	}
	if in.MaxUsers < 0 || in.MaxInvoices < 0 {
		return validationError("limits must not be negative")
	}

	features := make([]string, 0, len(in.Features))
	for _, f := range in.Features {
		if f = strings.TrimSpace(f); f != "" {
			features = append(features, f)
		}
	}

	p.Name = name
	p.Description = strings.TrimSpace(in.Description)
	p.Price = in.Price
	p.Currency = currency
	p.Interval = interval
	p.Features = features
	p.MaxUsers = in.MaxUsers
	p.MaxInvoices = in.MaxInvoices
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	return nil
}
