package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/smallbiznis/payrelay/internal/events"
	gatewaydomain "github.com/smallbiznis/payrelay/internal/gateway/domain"
	"github.com/smallbiznis/payrelay/internal/observability/logger"
	paymentdomain "github.com/smallbiznis/payrelay/internal/payment/domain"
	storedomain "github.com/smallbiznis/payrelay/internal/recordstore/domain"
	tenantdomain "github.com/smallbiznis/payrelay/internal/tenant/domain"
)

// CreateOrder validates the request, opens the order on the gateway and
// persists it in the background. The gateway is not called for invalid input.
func (s *Service) CreateOrder(ctx context.Context, cfg tenantdomain.TenantConfig, req paymentdomain.CreateOrderRequest) (*paymentdomain.Order, error) {
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = paymentdomain.DefaultCurrency
	}
	if req.Amount < paymentdomain.MinAmount {
		return nil, fmt.Errorf("%w: amount must be at least %d minor units", paymentdomain.ErrInvalidRequest, paymentdomain.MinAmount)
	}
	if currency != paymentdomain.DefaultCurrency {
		return nil, fmt.Errorf("%w: currency %s is not supported", paymentdomain.ErrInvalidRequest, currency)
	}

	receipt := strings.TrimSpace(req.Receipt)
	if receipt == "" {
		receipt = "rcpt_" + ulid.Make().String()
	}
	linkedID := strings.TrimSpace(req.LinkedRecordID)
	if linkedID == "" {
		linkedID = metadataString(req.Metadata, "linkedRecordId")
	}

	notes := map[string]string{"appId": cfg.ID}
	if linkedID != "" {
		notes["linkedRecordId"] = linkedID
	}

	gwOrder, err := s.gateway.CreateOrder(ctx, gatewaydomain.CreateOrderInput{
		Amount:   req.Amount,
		Currency: currency,
		Receipt:  receipt,
		Notes:    notes,
	})
	if err != nil {
		logger.WithContext(ctx, s.log).Warn("gateway order creation failed",
			zap.String("tenant_id", cfg.ID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", paymentdomain.ErrGateway, err)
	}

	order := &paymentdomain.Order{
		ExternalOrderID: gwOrder.ID,
		Amount:          orDefault(gwOrder.Amount, req.Amount),
		Currency:        currency,
		Receipt:         orDefault(gwOrder.Receipt, receipt),
		Status:          paymentdomain.OrderStatusCreated,
		LinkedRecordID:  linkedID,
		Metadata:        req.Metadata,
	}

	store := s.stores.For(cfg)
	fields := order.Fields(cfg.ID)
	s.runner.Go(ctx, "persist_order", func(ctx context.Context) error {
		_, err := store.Insert(ctx, storedomain.CollectionOrders, fields)
		return err
	})
	s.runner.Go(ctx, "publish_order_created", s.publishTask(events.KeyOrderCreated, cfg.ID, order))

	s.obsMetrics.RecordOrderCreated(ctx, cfg.ID)
	logger.WithContext(ctx, s.log).Info("order created",
		zap.String("tenant_id", cfg.ID),
		zap.String("order_id", order.ExternalOrderID),
		zap.Int64("amount", order.Amount),
	)
	return order, nil
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
