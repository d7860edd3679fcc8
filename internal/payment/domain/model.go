package domain

import (
	"errors"
	"time"

	storedomain "github.com/smallbiznis/payrelay/internal/recordstore/domain"
)

var (
	ErrInvalidRequest   = errors.New("invalid_request")
	ErrSignatureInvalid = errors.New("signature_invalid")
	ErrGateway          = errors.New("gateway_error")
	ErrUnavailable      = errors.New("service_unavailable")
)

const (
	MinAmount       int64 = 100
	DefaultCurrency       = "INR"
)

type OrderStatus string

const (
	OrderStatusCreated OrderStatus = "created"
	OrderStatusPaid    OrderStatus = "paid"
)

// Order is the relay's record of a gateway order. It is written once and
// later only has its status flipped to paid.
type Order struct {
	ExternalOrderID string         `json:"id"`
	Amount          int64          `json:"amount"`
	Currency        string         `json:"currency"`
	Receipt         string         `json:"receipt"`
	Status          OrderStatus    `json:"status"`
	LinkedRecordID  string         `json:"linkedRecordId,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Fields is the stored representation of the order.
func (o Order) Fields(tenantID string) map[string]any {
	fields := map[string]any{
		"externalOrderId":         o.ExternalOrderID,
		"amount":                  o.Amount,
		"currency":                o.Currency,
		"receipt":                 o.Receipt,
		"status":                  string(o.Status),
		storedomain.FieldTenantID: tenantID,
		"createdAt":               storedomain.ServerTime,
	}
	if o.LinkedRecordID != "" {
		fields["linkedRecordId"] = o.LinkedRecordID
	}
	if len(o.Metadata) > 0 {
		fields["metadata"] = o.Metadata
	}
	return fields
}

type CreateOrderRequest struct {
	Amount         int64
	Currency       string
	Receipt        string
	LinkedRecordID string
	Metadata       map[string]any
}

type AttemptStatus string

const (
	AttemptCompleted AttemptStatus = "completed"
	AttemptFailed    AttemptStatus = "failed"
)

const (
	SourceClient  = "client"
	SourceWebhook = "webhook"
)

// PaymentAttempt is an append-only audit entry for one verification.
type PaymentAttempt struct {
	ExternalPaymentID string
	ExternalOrderID   string
	Signature         string
	Amount            int64
	Currency          string
	Status            AttemptStatus
	Verified          bool
	TestMode          bool
	LinkedRecordID    string
	Source            string
	Reason            string
}

func (a PaymentAttempt) Fields(tenantID string) map[string]any {
	fields := map[string]any{
		"externalPaymentId":       a.ExternalPaymentID,
		"externalOrderId":         a.ExternalOrderID,
		"signature":               a.Signature,
		"status":                  string(a.Status),
		"verified":                a.Verified,
		"testMode":                a.TestMode,
		"source":                  a.Source,
		storedomain.FieldTenantID: tenantID,
		"createdAt":               storedomain.ServerTime,
	}
	if a.Amount > 0 {
		fields["amount"] = a.Amount
	}
	if a.Currency != "" {
		fields["currency"] = a.Currency
	}
	if a.LinkedRecordID != "" {
		fields["linkedRecordId"] = a.LinkedRecordID
	}
	if a.Reason != "" {
		fields["reason"] = a.Reason
	}
	return fields
}

const (
	LinkedStatusPaid    = "paid"
	LinkedStatusPending = "pending"
)

// LinkedRecordUpdate is the only field set the relay writes on a linked record.
type LinkedRecordUpdate struct {
	PaymentStatus string
	PaymentID     string
	Paid          bool
}

func (u LinkedRecordUpdate) Fields() map[string]any {
	fields := map[string]any{
		"paymentStatus": u.PaymentStatus,
		"paymentId":     u.PaymentID,
		"updatedAt":     storedomain.ServerTime,
	}
	if u.Paid {
		fields["paidAt"] = storedomain.ServerTime
	}
	return fields
}

type VerifyRequest struct {
	OrderID          string         `json:"orderId"`
	PaymentID        string         `json:"paymentId"`
	Signature        string         `json:"signature"`
	LinkedRecordID   string         `json:"linkedRecordId,omitempty"`
	Amount           *int64         `json:"amount,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	TestModeOverride *bool          `json:"testModeOverride,omitempty"`
}

type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeTestModeSoftFail Outcome = "test_mode_soft_fail"
	OutcomeHardFail         Outcome = "hard_fail"
)

type VerifyResult struct {
	Outcome      Outcome
	OrderID      string
	PaymentID    string
	VerifiedAt   time.Time
	RecordBooked bool
	Message      string
}

type WebhookStatus string

const (
	WebhookProcessed WebhookStatus = "processed"
	WebhookIgnored   WebhookStatus = "ignored"
	WebhookDuplicate WebhookStatus = "duplicate"
)

type WebhookResult struct {
	Status    WebhookStatus
	EventType string
	TenantID  string
	PaymentID string
}
