package port

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bolibooks/bolibooks/internal/domain/entity"
)

// IntentRequest asks a provider to start collecting money
type IntentRequest struct {
	Amount         decimal.Decimal
	Currency       string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

// IntentResult is the provider's handle on a started collection
type IntentResult struct {
	Provider     string `json:"provider"`
	ExternalID   string `json:"external_id"`
	ClientSecret string `json:"client_secret,omitempty"`
	ApprovalURL  string `json:"approval_url,omitempty"`
	Status       string `json:"status"`
}

// WebhookOutcome classifies a verified provider notification
type WebhookOutcome string

const (
	WebhookSucceeded WebhookOutcome = "succeeded"
	WebhookFailed    WebhookOutcome = "failed"
	WebhookIgnored   WebhookOutcome = "ignored"
)

// WebhookEvent is a verified, provider-neutral notification
type WebhookEvent struct {
	Provider   string            `json:"provider"`
	Outcome    WebhookOutcome    `json:"outcome"`
	EventType  string            `json:"event_type"`
	ExternalID string            `json:"external_id"`
	Amount     decimal.Decimal   `json:"amount"`
	Currency   string            `json:"currency"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Reason     string            `json:"reason,omitempty"`
}

// PaymentGateway is one external payment provider
type PaymentGateway interface {
	Name() string
	CreateIntent(ctx context.Context, req IntentRequest) (*IntentResult, error)
	VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) (*WebhookEvent, error)
}

// GatewayRegistry looks gateways up by provider name
type GatewayRegistry interface {
	Get(name string) (PaymentGateway, bool)
	Names() []string
}

// PaymentExporter renders payments into a downloadable document
type PaymentExporter interface {
	ContentType() string
	FileExtension() string
	WritePayments(w io.Writer, payments []*entity.Payment) error
}

// Claims are the authenticated identity carried by a bearer token
type Claims struct {
	UserID    int64
	CompanyID int64
	Role      entity.Role
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies bearer tokens
type TokenIssuer interface {
	Issue(user *entity.User) (token string, expiresAt time.Time, err error)
	Parse(token string) (*Claims, error)
}

// PasswordHasher hashes and checks user passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}
