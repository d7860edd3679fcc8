package gateway

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/payrelay/internal/config"
	"github.com/smallbiznis/payrelay/internal/gateway/domain"
	"github.com/smallbiznis/payrelay/internal/gateway/razorpay"
)

var Module = fx.Module("gateway",
	fx.Provide(NewClient),
)

func NewClient(cfg config.Config) domain.Client {
	return razorpay.New(cfg.Gateway)
}
