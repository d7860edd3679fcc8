package razorpay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/payrelay/internal/gateway/domain"
)

func TestParseWebhook(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    *domain.WebhookEvent
		wantErr error
	}{{
		name: "payment captured",
		payload: `{"event":"payment.captured","payload":{"payment":{"entity":{
			"id":"pay_1","order_id":"order_1","amount":50000,"currency":"INR",
			"notes":{"appId":"clinic-a","linkedRecordId":"c1"},"error_description":null}}}}`,
		want: &domain.WebhookEvent{
			Type: domain.EventPaymentCaptured, PaymentID: "pay_1", OrderID: "order_1",
			Amount: 50000, Currency: "INR",
			Notes: map[string]string{"appId": "clinic-a", "linkedRecordId": "c1"},
		},
	}, {
		name: "payment failed with empty notes array",
		payload: `{"event":"payment.failed","payload":{"payment":{"entity":{
			"id":"pay_2","order_id":"order_2","amount":100,"currency":"INR",
			"notes":[],"error_description":"card declined"}}}}`,
		want: &domain.WebhookEvent{
			Type: domain.EventPaymentFailed, PaymentID: "pay_2", OrderID: "order_2",
			Amount: 100, Currency: "INR", Notes: map[string]string{}, Description: "card declined",
		},
	}, {
		name:    "refund ignored",
		payload: `{"event":"refund.processed","payload":{}}`,
		wantErr: domain.ErrEventIgnored,
	}, {
		name:    "missing payment",
		payload: `{"event":"order.paid","payload":{"order":{"entity":{"id":"order_3"}}}}`,
		wantErr: domain.ErrInvalidPayload,
	}, {
		name:    "not json",
		payload: `nope`,
		wantErr: domain.ErrInvalidPayload,
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWebhook([]byte(tt.payload))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
