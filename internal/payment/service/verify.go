package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/smallbiznis/payrelay/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/payrelay/internal/payment/domain"
	"github.com/smallbiznis/payrelay/internal/signature"
	tenantdomain "github.com/smallbiznis/payrelay/internal/tenant/domain"
)

const softFailMessage = "Payment verification failed in test mode; the booking has been kept as pending."

// Verify checks the checkout signature and decides the outcome. The decision
// is final when Verify returns; bookkeeping runs afterwards on the runner and
// never changes the result.
func (s *Service) Verify(ctx context.Context, cfg tenantdomain.TenantConfig, req paymentdomain.VerifyRequest) (*paymentdomain.VerifyResult, error) {
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.PaymentID = strings.TrimSpace(req.PaymentID)
	req.Signature = strings.TrimSpace(req.Signature)
	req.LinkedRecordID = strings.TrimSpace(req.LinkedRecordID)
	if req.LinkedRecordID == "" {
		req.LinkedRecordID = metadataString(req.Metadata, "linkedRecordId")
	}

	valid, err := signature.Verify(req.OrderID, req.PaymentID, req.Signature, s.gatewayCfg.KeySecret)
	if errors.Is(err, signature.ErrMissingField) {
		return nil, fmt.Errorf("%w: orderId, paymentId and signature are required", paymentdomain.ErrInvalidRequest)
	}
	if err != nil {
		return nil, err
	}

	st := settlement{
		cfg:       cfg,
		orderID:   req.OrderID,
		paymentID: req.PaymentID,
		signature: req.Signature,
		linkedID:  req.LinkedRecordID,
		source:    paymentdomain.SourceClient,
	}
	if req.Amount != nil && *req.Amount > 0 {
		st.amount = *req.Amount
	}

	result := &paymentdomain.VerifyResult{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
	}

	switch {
	case valid:
		result.Outcome = paymentdomain.OutcomeSuccess
		result.VerifiedAt = s.clock.Now().UTC()
		s.settleSuccess(ctx, st)
	case s.isTestMode(cfg, req) && cfg.TestMode.BookOnFailure:
		result.Outcome = paymentdomain.OutcomeTestModeSoftFail
		result.RecordBooked = true
		result.Message = softFailMessage
		st.testMode = true
		st.reason = paymentdomain.ErrSignatureInvalid.Error()
		s.settleSoftFail(ctx, st)
	default:
		result.Outcome = paymentdomain.OutcomeHardFail
		st.reason = paymentdomain.ErrSignatureInvalid.Error()
		s.settleHardFail(ctx, st)
	}

	s.obsMetrics.RecordVerification(ctx, cfg.ID, string(result.Outcome))
	logger.WithContext(ctx, s.log).Info("payment verification decided",
		zap.String("tenant_id", cfg.ID),
		zap.String("order_id", req.OrderID),
		zap.String("payment_id", req.PaymentID),
		zap.String("outcome", string(result.Outcome)),
	)
	return result, nil
}
