package onesignal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/smallbiznis/payrelay/internal/notification/domain"
	tenantdomain "github.com/smallbiznis/payrelay/internal/tenant/domain"
)

const DefaultEndpoint = "https://onesignal.com/api/v1/notifications"

type Client struct {
	appID    string
	apiKey   string
	endpoint string
	http     *http.Client
}

// New returns nil when the tenant has no OneSignal credentials.
func New(cfg tenantdomain.OneSignalConfig, httpClient *http.Client, endpoint string) *Client {
	appID := strings.TrimSpace(cfg.AppID)
	apiKey := strings.TrimSpace(cfg.APIKey)
	if appID == "" || apiKey == "" {
		return nil
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{appID: appID, apiKey: apiKey, endpoint: endpoint, http: httpClient}
}

type notificationRequest struct {
	AppID                  string            `json:"app_id"`
	IncludeExternalUserIDs []string          `json:"include_external_user_ids"`
	Headings               map[string]string `json:"headings"`
	Contents               map[string]string `json:"contents"`
	Data                   map[string]any    `json:"data,omitempty"`
}

type notificationResponse struct {
	ID     string          `json:"id"`
	Errors json.RawMessage `json:"errors"`
}

// Send pushes to the devices registered under the recipients' external user ids.
func (c *Client) Send(ctx context.Context, recipients []string, msg domain.Message) error {
	payload, err := json.Marshal(notificationRequest{
		AppID:                  c.appID,
		IncludeExternalUserIDs: recipients,
		Headings:               map[string]string{"en": msg.Title},
		Contents:               map[string]string{"en": msg.Body},
		Data:                   msg.Data,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Basic "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: status %d", domain.ErrProviderRejected, resp.StatusCode)
	}

	var out notificationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrProviderRejected, err)
	}
	if out.ID == "" && len(bytes.TrimSpace(out.Errors)) > 0 && string(bytes.TrimSpace(out.Errors)) != "null" {
		return fmt.Errorf("%w: %s", domain.ErrProviderRejected, out.Errors)
	}
	return nil
}

var _ domain.Sender = (*Client)(nil)
