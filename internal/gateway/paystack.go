package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/craftlearn/academy-billing-api/pkg/config"
)

// Transaction is the gateway's server-side view of one charge.
type Transaction struct {
	Reference string
	Status    string
	Amount    int64
	Currency  string
	PaidAt    time.Time
}

// Succeeded reports whether the gateway settled the charge.
func (t *Transaction) Succeeded() bool {
	return t != nil && t.Status == "success"
}

// Verifier confirms a transaction reference against the gateway. The redirect
// alone is client-controlled, so callers re-check the reference server-side
// before trusting it.
type Verifier interface {
	Verify(ctx context.Context, reference string) (*Transaction, error)
}

// PaystackClient verifies transactions against the Paystack REST API.
type PaystackClient struct {
	baseURL   string
	secretKey string
	client    *http.Client
	logger    *zap.Logger
}

// NewPaystackClient constructs the client from gateway configuration.
func NewPaystackClient(cfg config.GatewayConfig, logger *zap.Logger) *PaystackClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}
	return &PaystackClient{
		baseURL:   baseURL,
		secretKey: cfg.SecretKey,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

type verifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Reference string    `json:"reference"`
		Status    string    `json:"status"`
		Amount    int64     `json:"amount"`
		Currency  string    `json:"currency"`
		PaidAt    time.Time `json:"paid_at"`
	} `json:"data"`
}

// Verify fetches the transaction state for a reference.
func (c *PaystackClient) Verify(ctx context.Context, reference string) (*Transaction, error) {
	if reference == "" {
		return nil, fmt.Errorf("reference required")
	}
	endpoint := fmt.Sprintf("%s/transaction/verify/%s", c.baseURL, url.PathEscape(reference))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verify transaction %s: %w", reference, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("verify transaction %s: gateway returned %d", reference, resp.StatusCode)
	}

	var payload verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}
	if !payload.Status {
		return nil, fmt.Errorf("verify transaction %s: %s", reference, payload.Message)
	}

	return &Transaction{
		Reference: payload.Data.Reference,
		Status:    payload.Data.Status,
		Amount:    payload.Data.Amount,
		Currency:  payload.Data.Currency,
		PaidAt:    payload.Data.PaidAt,
	}, nil
}
