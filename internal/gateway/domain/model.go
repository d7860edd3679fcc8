package domain

import (
	"context"
	"errors"
)

var (
	ErrNotConfigured   = errors.New("gateway_not_configured")
	ErrRequestFailed   = errors.New("gateway_request_failed")
	ErrInvalidResponse = errors.New("gateway_response_invalid")
	ErrInvalidPayload  = errors.New("gateway_payload_invalid")
	ErrEventIgnored    = errors.New("gateway_event_ignored")
)

// CreateOrderInput is what the gateway needs to open an order.
type CreateOrderInput struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// Order is the gateway's view of an order.
type Order struct {
	ID        string
	Amount    int64
	Currency  string
	Receipt   string
	Status    string
	CreatedAt int64
}

// Client is the order-creation collaborator.
type Client interface {
	CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error)
	IsTestCredential() bool
}

const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventOrderPaid       = "order.paid"
)

// WebhookEvent is the subset of a gateway webhook the relay settles on.
type WebhookEvent struct {
	Type        string
	PaymentID   string
	OrderID     string
	Amount      int64
	Currency    string
	Notes       map[string]string
	Description string
}
