package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	gatewaydomain "github.com/smallbiznis/payrelay/internal/gateway/domain"
	"github.com/smallbiznis/payrelay/internal/gateway/razorpay"
	"github.com/smallbiznis/payrelay/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/payrelay/internal/payment/domain"
	"github.com/smallbiznis/payrelay/internal/signature"
)

const defaultReplayTTL = 24 * time.Hour

// HandleGatewayWebhook authenticates a gateway delivery with the webhook
// secret, drops replays, and settles captured or failed payments for the
// tenant named in the payment notes.
func (s *Service) HandleGatewayWebhook(ctx context.Context, body []byte, sig, eventID string) (*paymentdomain.WebhookResult, error) {
	log := logger.WithContext(ctx, s.log)

	valid, err := signature.VerifyWebhook(body, sig, s.gatewayCfg.WebhookSecret)
	if err != nil || !valid {
		s.obsMetrics.RecordWebhookEvent(ctx, "unknown", "rejected")
		log.Warn("gateway webhook rejected", zap.Bool("signature_present", strings.TrimSpace(sig) != ""))
		return nil, paymentdomain.ErrSignatureInvalid
	}

	event, err := razorpay.ParseWebhook(body)
	if errors.Is(err, gatewaydomain.ErrEventIgnored) {
		s.obsMetrics.RecordWebhookEvent(ctx, "other", string(paymentdomain.WebhookIgnored))
		return &paymentdomain.WebhookResult{Status: paymentdomain.WebhookIgnored}, nil
	}
	if err != nil {
		s.obsMetrics.RecordWebhookEvent(ctx, "unknown", "invalid")
		return nil, fmt.Errorf("%w: %v", paymentdomain.ErrInvalidRequest, err)
	}

	replayKey := strings.TrimSpace(eventID)
	if replayKey == "" {
		replayKey = event.Type + ":" + event.PaymentID
	}
	ttl := s.replayTTL
	if ttl <= 0 {
		ttl = defaultReplayTTL
	}
	claimed, err := s.replay.Acquire(ctx, replayKey, ttl)
	if err != nil {
		log.Warn("replay guard unavailable, processing delivery", zap.Error(err))
		claimed = true
	}
	if !claimed {
		s.obsMetrics.RecordWebhookEvent(ctx, event.Type, string(paymentdomain.WebhookDuplicate))
		log.Info("duplicate gateway webhook dropped", zap.String("event_type", event.Type), zap.String("payment_id", event.PaymentID))
		return &paymentdomain.WebhookResult{
			Status:    paymentdomain.WebhookDuplicate,
			EventType: event.Type,
			PaymentID: event.PaymentID,
		}, nil
	}

	if s.runner.Closed() {
		if err := s.replay.Release(ctx, replayKey); err != nil {
			log.Warn("replay key release failed", zap.Error(err))
		}
		s.obsMetrics.RecordWebhookEvent(ctx, event.Type, "unavailable")
		return nil, paymentdomain.ErrUnavailable
	}

	cfg, resolution := s.tenants.Get(event.Notes["appId"])
	st := settlement{
		cfg:       cfg,
		orderID:   event.OrderID,
		paymentID: event.PaymentID,
		linkedID:  strings.TrimSpace(event.Notes["linkedRecordId"]),
		amount:    event.Amount,
		currency:  event.Currency,
		source:    paymentdomain.SourceWebhook,
	}

	switch event.Type {
	case gatewaydomain.EventPaymentFailed:
		st.reason = orDefault(event.Description, "payment_failed")
		s.settleHardFail(ctx, st)
	default:
		s.settleSuccess(ctx, st)
	}

	s.obsMetrics.RecordWebhookEvent(ctx, event.Type, string(paymentdomain.WebhookProcessed))
	log.Info("gateway webhook processed",
		zap.String("tenant_id", cfg.ID),
		zap.String("tenant_resolution", string(resolution)),
		zap.String("event_type", event.Type),
		zap.String("payment_id", event.PaymentID),
	)
	return &paymentdomain.WebhookResult{
		Status:    paymentdomain.WebhookProcessed,
		EventType: event.Type,
		TenantID:  cfg.ID,
		PaymentID: event.PaymentID,
	}, nil
}
