package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bolibooks/bolibooks/internal/application/port"
	"github.com/bolibooks/bolibooks/internal/domain/entity"
	"github.com/bolibooks/bolibooks/pkg/utils"
)

// CustomerInput is the body of a new or edited customer
type CustomerInput struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	TaxNumber string `json:"tax_number"`
	Notes     string `json:"notes"`
}

// CustomerService manages a company's customers
type CustomerService interface {
	Create(ctx context.Context, companyID int64, in CustomerInput) (*entity.Customer, error)
	Get(ctx context.Context, companyID, id int64) (*entity.Customer, error)
	Update(ctx context.Context, companyID, id int64, in CustomerInput) (*entity.Customer, error)
	Delete(ctx context.Context, companyID, id int64) error
	List(ctx context.Context, companyID int64, search string, limit, offset int) (*PageResult[*entity.Customer], error)
}

type customerServiceImpl struct {
	repo   port.CustomerRepository
	logger Logger
}

// NewCustomerService creates a new CustomerService
func NewCustomerService(repo port.CustomerRepository, logger Logger) CustomerService {
	return &customerServiceImpl{repo: repo, logger: logger}
}

func (in CustomerInput) apply(c *entity.Customer) error {
	name := utils.SanitizeString(in.Name)
	if name == "" {
		return validationError("name is required")
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email != "" {
		if err := utils.ValidateEmail(email); err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
	}

	c.Name = name
	c.Email = email
	c.Phone = utils.SanitizeString(in.Phone)
	c.Address = strings.TrimSpace(in.Address)
	c.TaxNumber = utils.SanitizeString(in.TaxNumber)
	c.Notes = strings.TrimSpace(in.Notes)
	return nil
}

func (s *customerServiceImpl) Create(ctx context.Context, companyID int64, in CustomerInput) (*entity.Customer, error) {
	c := &entity.Customer{CompanyID: companyID}
	if err := in.apply(c); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		s.logger.Error("Failed to create customer", "error", err, "company_id", companyID)
		return nil, classify(err)
	}
	s.logger.Info("Customer created", "id", c.ID, "company_id", companyID)
	return c, nil
}

func (s *customerServiceImpl) Get(ctx context.Context, companyID, id int64) (*entity.Customer, error) {
	c, err := s.repo.GetByID(ctx, companyID, id)
	if err != nil {
		s.logger.Error("Failed to get customer", "error", err, "id", id)
		return nil, err
	}
	if c == nil {
		return nil, notFound("customer", id)
	}
	return c, nil
}

func (s *customerServiceImpl) Update(ctx context.Context, companyID, id int64, in CustomerInput) (*entity.Customer, error) {
	c, err := s.Get(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if err := in.apply(c); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, c); err != nil {
		s.logger.Error("Failed to update customer", "error", err, "id", id)
		return nil, classify(err)
	}
	return c, nil
}

// Delete buries the customer. Documents already issued keep pointing at it.
func (s *customerServiceImpl) Delete(ctx context.Context, companyID, id int64) error {
	if _, err := s.Get(ctx, companyID, id); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, companyID, id, time.Now()); err != nil {
		s.logger.Error("Failed to delete customer", "error", err, "id", id)
		return err
	}
	s.logger.Info("Customer deleted", "id", id, "company_id", companyID)
	return nil
}

func (s *customerServiceImpl) List(ctx context.Context, companyID int64, search string, limit, offset int) (*PageResult[*entity.Customer], error) {
	page := NormalizePage(limit, offset)
	customers, total, err := s.repo.List(ctx, companyID, port.CustomerFilter{Search: strings.TrimSpace(search), Page: page})
	if err != nil {
		s.logger.Error("Failed to list customers", "error", err, "company_id", companyID)
		return nil, err
	}
	return newPage(customers, total, page), nil
}
