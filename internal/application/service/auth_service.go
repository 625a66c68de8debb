package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bolibooks/bolibooks/internal/application/port"
	"github.com/bolibooks/bolibooks/internal/domain/entity"
	"github.com/bolibooks/bolibooks/pkg/utils"
)

const (
	minPasswordLength = 8
	defaultPlanName   = "Starter"
)

// RegisterInput signs up a new company and its owner
type RegisterInput struct {
	CompanyName string `json:"company_name"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Currency    string `json:"currency"`
}

// Session is the result of a successful sign-in
type Session struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      *entity.User    `json:"user"`
	Company   *entity.Company `json:"company"`
}

// AuthService registers and authenticates users
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*Session, error)
	Login(ctx context.Context, email, password string) (*Session, error)
	Me(ctx context.Context, userID int64) (*Session, error)
	Authenticate(token string) (*port.Claims, error)
}

type authServiceImpl struct {
	companyRepo port.CompanyRepository
	userRepo    port.UserRepository
	planRepo    port.SubscriptionPlanRepository
	txManager   port.TransactionManager
	tokens      port.TokenIssuer
	hasher      port.PasswordHasher
	logger      Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	companyRepo port.CompanyRepository,
	userRepo port.UserRepository,
	planRepo port.SubscriptionPlanRepository,
	txManager port.TransactionManager,
	tokens port.TokenIssuer,
	hasher port.PasswordHasher,
	logger Logger,
) AuthService {
	return &authServiceImpl{
		companyRepo: companyRepo,
		userRepo:    userRepo,
		planRepo:    planRepo,
		txManager:   txManager,
		tokens:      tokens,
		hasher:      hasher,
		logger:      logger,
	}
}

// Register creates the company on the default plan with the caller as owner
func (s *authServiceImpl) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if err := utils.ValidateEmail(email); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if len(in.Password) < minPasswordLength {
		return nil, validationError("password must be at least %d characters", minPasswordLength)
	}
	name := utils.SanitizeString(in.Name)
	companyName := utils.SanitizeString(in.CompanyName)
	if name == "" || companyName == "" {
		return nil, validationError("name and company_name are required")
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "MVR"
	}
	if err := utils.ValidateCurrency(currency); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	company := &entity.Company{Name: companyName, Email: email, Currency: currency}
	user := &entity.User{Name: name, Email: email, PasswordHash: hash, Role: entity.RoleOwner}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		plan, err := s.planRepo.GetByName(txCtx, defaultPlanName)
		if err != nil {
			return err
		}
		if plan != nil && plan.IsActive {
			company.SubscriptionPlanID = &plan.ID
		}

		if err := s.companyRepo.Create(txCtx, company); err != nil {
			return fmt.Errorf("create company: %w", err)
		}
		user.CompanyID = company.ID
		if err := s.userRepo.Create(txCtx, user); err != nil {
			if errors.Is(err, port.ErrDuplicate) {
				return conflict("email %s is already registered", email)
			}
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
	if err != nil {
		err = classify(err)
		s.logger.Error("Failed to register", "error", err, "email", email)
		return nil, err
	}

	s.logger.Info("Company registered", "company_id", company.ID, "user_id", user.ID)
	return s.session(user, company)
}

func (s *authServiceImpl) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		s.logger.Error("Failed to look up user", "error", err)
		return nil, err
	}
	if user == nil || s.hasher.Compare(user.PasswordHash, password) != nil {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}

	company, err := s.companyRepo.GetByID(ctx, user.CompanyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, fmt.Errorf("%w: company no longer exists", ErrUnauthorized)
	}

	s.logger.Info("User logged in", "user_id", user.ID, "company_id", user.CompanyID)
	return s.session(user, company)
}

// Me returns the caller's user and company without a token
func (s *authServiceImpl) Me(ctx context.Context, userID int64) (*Session, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user no longer exists", ErrUnauthorized)
	}
	company, err := s.companyRepo.GetByID(ctx, user.CompanyID)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Company: company}, nil
}

// Authenticate validates a bearer token
func (s *authServiceImpl) Authenticate(token string) (*port.Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return claims, nil
}

func (s *authServiceImpl) session(user *entity.User, company *entity.Company) (*Session, error) {
	token, expires, err := s.tokens.Issue(user)
	if err != nil {
		s.logger.Error("Failed to issue token", "error", err, "user_id", user.ID)
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: expires, User: user, Company: company}, nil
}
