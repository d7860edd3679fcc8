package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/payrelay/internal/config"
	"github.com/smallbiznis/payrelay/internal/gateway/domain"
)

const testKeyPrefix = "rzp_test_"

type orderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderResponse struct {
	ID        string `json:"id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Receipt   string `json:"receipt"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
}

func New(cfg config.GatewayConfig) *Client {
	return &Client{
		baseURL:   strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		keyID:     strings.TrimSpace(cfg.KeyID),
		keySecret: strings.TrimSpace(cfg.KeySecret),
		client:    &http.Client{Timeout: 12 * time.Second},
	}
}

// WithHTTPClient swaps the transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.client = hc
	}
	return c
}

// IsTestCredential reports whether the configured key id is a sandbox key.
func (c *Client) IsTestCredential() bool {
	return strings.HasPrefix(c.keyID, testKeyPrefix)
}

// CreateOrder opens an order on the gateway. Returned errors carry the gateway's
// description at most; credentials never appear in them.
func (c *Client) CreateOrder(ctx context.Context, in domain.CreateOrderInput) (*domain.Order, error) {
	if c.keyID == "" || c.keySecret == "" || c.baseURL == "" {
		return nil, domain.ErrNotConfigured
	}

	body, err := json.Marshal(orderRequest{
		Amount:   in.Amount,
		Currency: in.Currency,
		Receipt:  in.Receipt,
		Notes:    in.Notes,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request", domain.ErrRequestFailed)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrRequestFailed, transportReason(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var gwErr errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&gwErr); err != nil {
			return nil, fmt.Errorf("%w: status %d", domain.ErrRequestFailed, resp.StatusCode)
		}
		message := strings.TrimSpace(gwErr.Error.Description)
		if message == "" {
			message = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrRequestFailed, message)
	}

	var out orderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domain.ErrInvalidResponse
	}
	if out.ID == "" {
		return nil, domain.ErrInvalidResponse
	}
	return &domain.Order{
		ID:        out.ID,
		Amount:    out.Amount,
		Currency:  out.Currency,
		Receipt:   out.Receipt,
		Status:    out.Status,
		CreatedAt: out.CreatedAt,
	}, nil
}

func transportReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "unreachable"
}

var _ domain.Client = (*Client)(nil)
