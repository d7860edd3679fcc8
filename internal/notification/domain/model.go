package domain

import (
	"context"
	"errors"
	"fmt"

	tenantdomain "github.com/smallbiznis/payrelay/internal/tenant/domain"
)

var (
	ErrProviderRejected = errors.New("notification_provider_rejected")
	ErrNotConfigured    = errors.New("notification_provider_not_configured")
)

// Message is the provider-neutral notification payload.
type Message struct {
	Title string
	Body  string
	Data  map[string]any
}

// Sender delivers one message to a set of recipient identities.
type Sender interface {
	Send(ctx context.Context, recipients []string, msg Message) error
}

// NotificationError wraps a provider failure. It is logged, never surfaced to clients.
type NotificationError struct {
	Provider tenantdomain.NotificationProvider
	Err      error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notification_error: %s: %v", e.Provider, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }
