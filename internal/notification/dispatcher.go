package notification

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/payrelay/internal/notification/domain"
	"github.com/smallbiznis/payrelay/internal/notification/onesignal"
	"github.com/smallbiznis/payrelay/internal/notification/webhook"
	"github.com/smallbiznis/payrelay/internal/observability/logger"
	"github.com/smallbiznis/payrelay/internal/observability/metrics"
	tenantdomain "github.com/smallbiznis/payrelay/internal/tenant/domain"
)

const defaultTimeout = 10 * time.Second

type Params struct {
	fx.In

	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

// Dispatcher picks a sender from the tenant's notification provider.
type Dispatcher struct {
	log               *zap.Logger
	metrics           *metrics.Metrics
	http              *http.Client
	oneSignalEndpoint string
}

type Option func(*Dispatcher)

func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.http = c
		}
	}
}

func WithOneSignalEndpoint(endpoint string) Option {
	return func(d *Dispatcher) { d.oneSignalEndpoint = endpoint }
}

func New(p Params) *Dispatcher {
	return NewDispatcher(p.Log, p.Metrics)
}

func NewDispatcher(log *zap.Logger, m *metrics.Metrics, opts ...Option) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{
		log:               log.Named("notification"),
		metrics:           m,
		http:              &http.Client{Timeout: defaultTimeout},
		oneSignalEndpoint: onesignal.DefaultEndpoint,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send delivers msg through the tenant's provider. An empty recipient list or a
// disabled provider is a skip, not an error. Provider failures come back as
// *domain.NotificationError for the caller to log.
func (d *Dispatcher) Send(ctx context.Context, cfg tenantdomain.TenantConfig, recipients []string, msg domain.Message) error {
	provider := cfg.Notifications.Provider
	log := logger.WithContext(ctx, d.log).With(
		zap.String("tenant_id", cfg.ID),
		zap.String("provider", string(provider)),
	)

	if len(recipients) == 0 {
		log.Warn("notification skipped, no recipients")
		d.record(ctx, provider, "skipped")
		return nil
	}

	sender, err := d.sender(cfg)
	if err != nil {
		log.Warn("notification skipped", zap.Error(err))
		d.record(ctx, provider, "skipped")
		return nil
	}
	if sender == nil {
		log.Debug("notification provider disabled")
		d.record(ctx, provider, "disabled")
		return nil
	}

	if err := sender.Send(ctx, recipients, msg); err != nil {
		d.record(ctx, provider, "failed")
		return &domain.NotificationError{Provider: provider, Err: err}
	}

	log.Info("notification sent", zap.Int("recipients", len(recipients)))
	d.record(ctx, provider, "sent")
	return nil
}

func (d *Dispatcher) sender(cfg tenantdomain.TenantConfig) (domain.Sender, error) {
	switch cfg.Notifications.Provider {
	case tenantdomain.NotificationOneSignal:
		c := onesignal.New(cfg.Notifications.OneSignal, d.http, d.oneSignalEndpoint)
		if c == nil {
			return nil, domain.ErrNotConfigured
		}
		return c, nil
	case tenantdomain.NotificationCustom:
		c := webhook.New(cfg.Notifications.Custom, d.http)
		if c == nil {
			return nil, domain.ErrNotConfigured
		}
		return c, nil
	case tenantdomain.NotificationFCM:
		return nil, errors.New("fcm provider is not supported")
	default:
		return nil, nil
	}
}

func (d *Dispatcher) record(ctx context.Context, provider tenantdomain.NotificationProvider, result string) {
	d.metrics.RecordNotification(ctx, string(provider), result)
}
