package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	paymentdomain "github.com/smallbiznis/payrelay/internal/payment/domain"
	"github.com/smallbiznis/payrelay/internal/signature"
)

const capturedPayload = `{"event":"payment.captured","payload":{"payment":{"entity":{
	"id":"pay_wh_1","order_id":"order_wh_1","amount":25000,"currency":"INR",
	"notes":{"appId":"Clinic A","linkedRecordId":"consult_1"}}}}}`

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.HandleGatewayWebhook(context.Background(), []byte(capturedPayload), "not-a-signature", "evt_1")
	assert.ErrorIs(t, err, paymentdomain.ErrSignatureInvalid)

	_, err = h.svc.HandleGatewayWebhook(context.Background(), []byte(capturedPayload), "", "evt_1")
	assert.ErrorIs(t, err, paymentdomain.ErrSignatureInvalid)

	h.runner.Wait()
	assert.Zero(t, h.mem.Calls())
}

func TestWebhookSettlesAndDedupes(t *testing.T) {
	h := newHarness(t)
	h.seedConsultation()
	body := []byte(capturedPayload)
	sig := signature.SignWebhook(body, webhookSecret)

	res, err := h.svc.HandleGatewayWebhook(context.Background(), body, sig, "evt_1")
	require.NoError(t, err)
	h.runner.Wait()

	assert.Equal(t, paymentdomain.WebhookProcessed, res.Status)
	assert.Equal(t, "pay_wh_1", res.PaymentID)
	assert.Equal(t, "paid", h.mem.Records("consultations")["consult_1"]["paymentStatus"])

	attempt := onlyRecord(t, h.mem.Records("payments"))
	assert.Equal(t, "webhook", attempt["source"])
	assert.EqualValues(t, 25000, attempt["amount"])

	again, err := h.svc.HandleGatewayWebhook(context.Background(), body, sig, "evt_1")
	require.NoError(t, err)
	h.runner.Wait()

	assert.Equal(t, paymentdomain.WebhookDuplicate, again.Status)
	assert.Len(t, h.mem.Records("payments"), 1)
}

func TestWebhookPaymentFailedLeavesRecord(t *testing.T) {
	h := newHarness(t)
	h.seedConsultation()
	body := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{
		"id":"pay_wh_2","order_id":"order_wh_2","amount":25000,"currency":"INR",
		"notes":{"linkedRecordId":"consult_1"},"error_description":"card declined"}}}}`)

	res, err := h.svc.HandleGatewayWebhook(context.Background(), body, signature.SignWebhook(body, webhookSecret), "")
	require.NoError(t, err)
	h.runner.Wait()

	assert.Equal(t, paymentdomain.WebhookProcessed, res.Status)
	assert.Equal(t, "default", res.TenantID)
	assert.Equal(t, "unpaid", h.mem.Records("consultations")["consult_1"]["paymentStatus"])

	attempt := onlyRecord(t, h.mem.Records("payments"))
	assert.Equal(t, "failed", attempt["status"])
	assert.Equal(t, "card declined", attempt["reason"])
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	h := newHarness(t)
	body := []byte(`{"event":"refund.processed","payload":{}}`)

	res, err := h.svc.HandleGatewayWebhook(context.Background(), body, signature.SignWebhook(body, webhookSecret), "evt_9")
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.WebhookIgnored, res.Status)

	h.runner.Wait()
	assert.Zero(t, h.mem.Calls())
}

func TestWebhookDuringShutdownReleasesReplayKey(t *testing.T) {
	h := newHarness(t)
	h.seedConsultation()
	require.NoError(t, h.runner.Drain(context.Background()))
	body := []byte(capturedPayload)

	_, err := h.svc.HandleGatewayWebhook(context.Background(), body, signature.SignWebhook(body, webhookSecret), "evt_shutdown")
	assert.ErrorIs(t, err, paymentdomain.ErrUnavailable)

	assert.False(t, h.redis.Exists("payrelay:replay:evt_shutdown"))
	assert.Equal(t, "unpaid", h.mem.Records("consultations")["consult_1"]["paymentStatus"])
	assert.Empty(t, h.mem.Records("payments"))
}
