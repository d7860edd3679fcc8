package events

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/payrelay/internal/config"
)

var Module = fx.Module("events",
	fx.Provide(New),
)

// New connects to RabbitMQ when RABBITMQ_URL is set and falls back to Noop otherwise.
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Publisher, error) {
	log = log.Named("events")
	if cfg.RabbitMQURL == "" {
		log.Info("rabbitmq not configured, outcome events disabled")
		return NewNoop(log), nil
	}

	pub, err := NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange, log)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return pub.Close()
		},
	})
	log.Info("rabbitmq publisher ready", zap.String("exchange", cfg.RabbitMQExchange))
	return pub, nil
}
