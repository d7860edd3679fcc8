package service

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/payrelay/internal/clock"
	"github.com/smallbiznis/payrelay/internal/config"
	"github.com/smallbiznis/payrelay/internal/events"
	gatewaydomain "github.com/smallbiznis/payrelay/internal/gateway/domain"
	"github.com/smallbiznis/payrelay/internal/lock"
	"github.com/smallbiznis/payrelay/internal/notification"
	obsmetrics "github.com/smallbiznis/payrelay/internal/observability/metrics"
	"github.com/smallbiznis/payrelay/internal/recordstore"
	"github.com/smallbiznis/payrelay/internal/sideeffect"
	"github.com/smallbiznis/payrelay/internal/tenant"
)

type Params struct {
	fx.In

	Config     config.Config
	Log        *zap.Logger
	Clock      clock.Clock
	Tenants    *tenant.Registry
	Stores     *recordstore.Router
	Notifier   *notification.Dispatcher
	Gateway    gatewaydomain.Client
	Runner     *sideeffect.Runner
	Events     events.Publisher
	Replay     *lock.Guard         `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Service decides payment outcomes and schedules their bookkeeping.
type Service struct {
	gatewayCfg config.GatewayConfig
	replayTTL  time.Duration
	log        *zap.Logger
	clock      clock.Clock
	tenants    *tenant.Registry
	stores     *recordstore.Router
	notifier   *notification.Dispatcher
	gateway    gatewaydomain.Client
	runner     *sideeffect.Runner
	events     events.Publisher
	replay     *lock.Guard
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	pub := p.Events
	if pub == nil {
		pub = events.NewNoop(log)
	}
	return &Service{
		gatewayCfg: p.Config.Gateway,
		replayTTL:  p.Config.WebhookReplayTTL,
		log:        log.Named("payment.service"),
		clock:      c,
		tenants:    p.Tenants,
		stores:     p.Stores,
		notifier:   p.Notifier,
		gateway:    p.Gateway,
		runner:     p.Runner,
		events:     pub,
		replay:     p.Replay,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) publishTask(key, tenantID string, data any) sideeffect.Task {
	return func(ctx context.Context) error {
		return s.events.Publish(ctx, key, events.Envelope{
			Type:       key,
			TenantID:   tenantID,
			OccurredAt: s.clock.Now().UTC(),
			Data:       data,
		})
	}
}
