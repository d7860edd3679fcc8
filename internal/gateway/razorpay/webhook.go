package razorpay

import (
	"encoding/json"
	"strings"

	"github.com/smallbiznis/payrelay/internal/gateway/domain"
)

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity paymentEntity `json:"entity"`
		} `json:"payment"`
		Order *struct {
			Entity orderEntity `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

type paymentEntity struct {
	ID               string          `json:"id"`
	OrderID          string          `json:"order_id"`
	Amount           int64           `json:"amount"`
	Currency         string          `json:"currency"`
	Notes            json.RawMessage `json:"notes"`
	ErrorDescription *string         `json:"error_description"`
}

type orderEntity struct {
	ID       string          `json:"id"`
	Amount   int64           `json:"amount"`
	Currency string          `json:"currency"`
	Notes    json.RawMessage `json:"notes"`
}

// ParseWebhook extracts the settlement-relevant parts of a gateway webhook.
// Events the relay does not settle on return ErrEventIgnored.
func ParseWebhook(payload []byte) (*domain.WebhookEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, domain.ErrInvalidPayload
	}

	eventType := strings.TrimSpace(env.Event)
	switch eventType {
	case domain.EventPaymentCaptured, domain.EventPaymentFailed, domain.EventOrderPaid:
	default:
		return nil, domain.ErrEventIgnored
	}

	out := &domain.WebhookEvent{Type: eventType, Notes: map[string]string{}}
	if env.Payload.Order != nil {
		o := env.Payload.Order.Entity
		out.OrderID = o.ID
		out.Amount = o.Amount
		out.Currency = o.Currency
		mergeNotes(out.Notes, o.Notes)
	}
	if env.Payload.Payment != nil {
		p := env.Payload.Payment.Entity
		out.PaymentID = p.ID
		if p.OrderID != "" {
			out.OrderID = p.OrderID
		}
		if p.Amount > 0 {
			out.Amount = p.Amount
		}
		if p.Currency != "" {
			out.Currency = p.Currency
		}
		if p.ErrorDescription != nil {
			out.Description = *p.ErrorDescription
		}
		mergeNotes(out.Notes, p.Notes)
	}

	if out.PaymentID == "" || out.OrderID == "" {
		return nil, domain.ErrInvalidPayload
	}
	return out, nil
}

// mergeNotes tolerates the gateway sending an empty array for empty notes.
func mergeNotes(dst map[string]string, raw json.RawMessage) {
	if len(raw) == 0 {
		return
	}
	var notes map[string]any
	if err := json.Unmarshal(raw, &notes); err != nil {
		return
	}
	for k, v := range notes {
		if s, ok := v.(string); ok {
			dst[k] = s
		}
	}
}
