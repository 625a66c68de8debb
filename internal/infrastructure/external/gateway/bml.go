package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bolibooks/bolibooks/internal/application/port"
)

// BMLProvider is the provider name used for Bank of Maldives payments
const BMLProvider = "bml"

// BMLSignatureHeader carries the hex HMAC-SHA256 of the webhook body
const BMLSignatureHeader = "X-Signature"

// BMLGateway collects payments through the Bank of Maldives Connect API
type BMLGateway struct {
	baseURL       string
	apiKey        string
	webhookSecret string
	redirectURL   string
	httpClient    *http.Client
	logger        *zap.Logger
}

// BMLConfig holds the BML connection settings
type BMLConfig struct {
	BaseURL       string
	APIKey        string
	WebhookSecret string
	RedirectURL   string
	Timeout       time.Duration
}

// NewBMLGateway creates a BML gateway
func NewBMLGateway(cfg BMLConfig, logger *zap.Logger) *BMLGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BMLGateway{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		webhookSecret: cfg.WebhookSecret,
		redirectURL:   cfg.RedirectURL,
		httpClient:    &http.Client{Timeout: timeout},
		logger:        logger,
	}
}

func (g *BMLGateway) Name() string { return BMLProvider }

type bmlTransactionRequest struct {
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	LocalID           string `json:"localId"`
	CustomerReference string `json:"customerReference"`
	RedirectURL       string `json:"redirectUrl,omitempty"`
}

type bmlTransaction struct {
	ID                string `json:"id"`
	State             string `json:"state"`
	URL               string `json:"url"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	LocalID           string `json:"localId"`
	CustomerReference string `json:"customerReference"`
	Message           string `json:"message,omitempty"`
}

// CreateIntent creates a BML transaction and returns its hosted payment URL
func (g *BMLGateway) CreateIntent(ctx context.Context, req port.IntentRequest) (*port.IntentResult, error) {
	cents, err := toMinorUnits(req.Amount)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(bmlTransactionRequest{
		Amount:            cents,
		Currency:          strings.ToUpper(req.Currency),
		LocalID:           packMetadata(req.Metadata),
		CustomerReference: req.Description,
		RedirectURL:       g.redirectURL,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/transactions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", g.apiKey)
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		g.logger.Error("BML request failed", zap.Error(err))
		return nil, fmt.Errorf("bml: create transaction: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("bml: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		g.logger.Error("BML rejected transaction", zap.Int("status", resp.StatusCode), zap.ByteString("body", raw))
		return nil, fmt.Errorf("bml: create transaction: status %d", resp.StatusCode)
	}

	var tx bmlTransaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return nil, fmt.Errorf("bml: decode transaction: %w", err)
	}
	return &port.IntentResult{Provider: BMLProvider, ExternalID: tx.ID, ApprovalURL: tx.URL, Status: tx.State}, nil
}

// VerifyWebhook checks the body signature and maps transaction states
func (g *BMLGateway) VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) (*port.WebhookEvent, error) {
	if !g.validSignature(payload, headers.Get(BMLSignatureHeader)) {
		return nil, errors.New("bml: signature mismatch")
	}

	var tx bmlTransaction
	if err := json.Unmarshal(payload, &tx); err != nil {
		return nil, fmt.Errorf("bml: decode webhook: %w", err)
	}

	out := &port.WebhookEvent{
		Provider:   BMLProvider,
		Outcome:    port.WebhookIgnored,
		EventType:  tx.State,
		ExternalID: tx.ID,
		Amount:     fromMinorUnits(tx.Amount),
		Currency:   strings.ToUpper(tx.Currency),
		Metadata:   unpackMetadata(tx.LocalID),
		Reason:     tx.Message,
	}
	switch strings.ToUpper(tx.State) {
	case "CONFIRMED":
		out.Outcome = port.WebhookSucceeded
	case "CANCELLED", "FAILED", "EXPIRED":
		out.Outcome = port.WebhookFailed
	}
	return out, nil
}

func (g *BMLGateway) validSignature(payload []byte, signature string) bool {
	if g.webhookSecret == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(got, signBML(g.webhookSecret, payload))
}

func signBML(secret string, payload []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}
