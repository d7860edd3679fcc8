package service

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/smallbiznis/payrelay/internal/events"
	notificationdomain "github.com/smallbiznis/payrelay/internal/notification/domain"
	paymentdomain "github.com/smallbiznis/payrelay/internal/payment/domain"
	"github.com/smallbiznis/payrelay/internal/recordstore"
	storedomain "github.com/smallbiznis/payrelay/internal/recordstore/domain"
	tenantdomain "github.com/smallbiznis/payrelay/internal/tenant/domain"
)

// settlement carries what every outcome needs for its bookkeeping.
type settlement struct {
	cfg       tenantdomain.TenantConfig
	orderID   string
	paymentID string
	signature string
	linkedID  string
	amount    int64
	currency  string
	testMode  bool
	source    string
	reason    string
}

func (st settlement) eventData() map[string]any {
	data := map[string]any{
		"orderId":   st.orderID,
		"paymentId": st.paymentID,
		"source":    st.source,
		"testMode":  st.testMode,
	}
	if st.linkedID != "" {
		data["linkedRecordId"] = st.linkedID
	}
	if st.amount > 0 {
		data["amount"] = st.amount
	}
	if st.reason != "" {
		data["reason"] = st.reason
	}
	return data
}

// Each task below is independent: one failing never stops the others.

func (s *Service) settleSuccess(ctx context.Context, st settlement) {
	store := s.stores.For(st.cfg)

	s.runner.Go(ctx, "persist_attempt", s.attemptTask(store, st, paymentdomain.AttemptCompleted, true))
	if st.linkedID != "" {
		s.runner.Go(ctx, "update_linked_record", s.linkedTask(store, st, paymentdomain.LinkedRecordUpdate{
			PaymentStatus: paymentdomain.LinkedStatusPaid,
			PaymentID:     st.paymentID,
			Paid:          true,
		}))
	}
	s.runner.Go(ctx, "mark_order_paid", func(ctx context.Context) error {
		return s.markOrderPaid(ctx, store, st.orderID)
	})
	s.runner.Go(ctx, "notify_success", s.notifyTask(store, st, notificationdomain.Message{
		Title: "Payment successful",
		Body:  "Your payment has been received and your booking is confirmed.",
		Data:  map[string]any{"type": "payment_success", "orderId": st.orderID, "paymentId": st.paymentID, "linkedRecordId": st.linkedID},
	}))
	s.runner.Go(ctx, "publish_verified", s.publishTask(events.KeyPaymentVerified, st.cfg.ID, st.eventData()))
}

func (s *Service) settleSoftFail(ctx context.Context, st settlement) {
	store := s.stores.For(st.cfg)

	s.runner.Go(ctx, "persist_attempt", s.attemptTask(store, st, paymentdomain.AttemptFailed, false))
	if st.linkedID != "" {
		s.runner.Go(ctx, "update_linked_record", s.linkedTask(store, st, paymentdomain.LinkedRecordUpdate{
			PaymentStatus: paymentdomain.LinkedStatusPending,
			PaymentID:     st.paymentID,
		}))
	}
	s.runner.Go(ctx, "notify_soft_fail", s.notifyTask(store, st, notificationdomain.Message{
		Title: "Payment not verified",
		Body:  "We could not verify this test payment. Your booking remains reserved while payment is pending.",
		Data:  map[string]any{"type": "payment_test_mode_failure", "orderId": st.orderID, "paymentId": st.paymentID, "linkedRecordId": st.linkedID},
	}))
	s.runner.Go(ctx, "publish_soft_failed", s.publishTask(events.KeyPaymentSoftFailed, st.cfg.ID, st.eventData()))
}

// settleHardFail records the attempt only. The linked record is left as it was.
func (s *Service) settleHardFail(ctx context.Context, st settlement) {
	store := s.stores.For(st.cfg)

	s.runner.Go(ctx, "persist_attempt", s.attemptTask(store, st, paymentdomain.AttemptFailed, false))
	s.runner.Go(ctx, "publish_failed", s.publishTask(events.KeyPaymentFailed, st.cfg.ID, st.eventData()))
}

func (s *Service) attemptTask(store *recordstore.Store, st settlement, status paymentdomain.AttemptStatus, verified bool) func(context.Context) error {
	return func(ctx context.Context) error {
		attempt := paymentdomain.PaymentAttempt{
			ExternalPaymentID: st.paymentID,
			ExternalOrderID:   st.orderID,
			Signature:         st.signature,
			Amount:            st.amount,
			Currency:          st.currency,
			Status:            status,
			Verified:          verified,
			TestMode:          st.testMode,
			LinkedRecordID:    st.linkedID,
			Source:            st.source,
			Reason:            st.reason,
		}
		var lookupErr error
		if attempt.Amount == 0 {
			order, err := s.findOrder(ctx, store, st.orderID)
			if err != nil {
				lookupErr = err
			} else if order != nil {
				attempt.Amount = toInt64(order.Fields["amount"])
				if attempt.Currency == "" {
					attempt.Currency = order.String("currency")
				}
			}
		}
		_, err := store.Insert(ctx, storedomain.CollectionPayments, attempt.Fields(st.cfg.ID))
		return errors.Join(lookupErr, err)
	}
}

func (s *Service) linkedTask(store *recordstore.Store, st settlement, update paymentdomain.LinkedRecordUpdate) func(context.Context) error {
	return func(ctx context.Context) error {
		return store.Update(ctx, storedomain.CollectionConsultations, st.linkedID, update.Fields())
	}
}

func (s *Service) notifyTask(store *recordstore.Store, st settlement, msg notificationdomain.Message) func(context.Context) error {
	return func(ctx context.Context) error {
		var linked *storedomain.Record
		var lookupErr error
		if st.linkedID != "" {
			linked, lookupErr = store.Get(ctx, storedomain.CollectionConsultations, st.linkedID)
		}
		recipients := s.notifier.ResolveRecipients(ctx, store, st.cfg, linked)
		return errors.Join(lookupErr, s.notifier.Send(ctx, st.cfg, recipients, msg))
	}
}

func (s *Service) markOrderPaid(ctx context.Context, store *recordstore.Store, orderID string) error {
	orders, err := store.Query(ctx, storedomain.CollectionOrders, "externalOrderId", orderID)
	if err != nil {
		return err
	}
	var errs []error
	for _, order := range orders {
		if order.String("status") == string(paymentdomain.OrderStatusPaid) {
			continue
		}
		if err := store.Update(ctx, storedomain.CollectionOrders, order.ID, map[string]any{
			"status": string(paymentdomain.OrderStatusPaid),
		}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Service) findOrder(ctx context.Context, store *recordstore.Store, orderID string) (*storedomain.Record, error) {
	orders, err := store.Query(ctx, storedomain.CollectionOrders, "externalOrderId", orderID)
	if err != nil || len(orders) == 0 {
		return nil, err
	}
	return &orders[0], nil
}

// toInt64 reads numbers that may have been round-tripped through JSON.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	default:
		return 0
	}
}
