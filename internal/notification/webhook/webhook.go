// Package webhook delivers notifications to a tenant-owned HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/smallbiznis/payrelay/internal/notification/domain"
	tenantdomain "github.com/smallbiznis/payrelay/internal/tenant/domain"
)

type Client struct {
	url     string
	headers map[string]string
	http    *http.Client
}

// New returns nil when the tenant has no endpoint URL.
func New(cfg tenantdomain.CustomEndpointConfig, httpClient *http.Client) *Client {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil
	}
	return &Client{url: url, headers: cfg.Headers, http: httpClient}
}

type payload struct {
	RecipientIDs []string       `json:"recipientIds"`
	Title        string         `json:"title"`
	Body         string         `json:"body"`
	Data         map[string]any `json:"data"`
}

// Send posts the message once. Non-2xx responses are failures and are not retried.
func (c *Client) Send(ctx context.Context, recipients []string, msg domain.Message) error {
	data := msg.Data
	if data == nil {
		data = map[string]any{}
	}
	body, err := json.Marshal(payload{
		RecipientIDs: recipients,
		Title:        msg.Title,
		Body:         msg.Body,
		Data:         data,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", domain.ErrProviderRejected, resp.StatusCode)
	}
	return nil
}

var _ domain.Sender = (*Client)(nil)
