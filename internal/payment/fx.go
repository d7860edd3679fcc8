package payment

import (
	"go.uber.org/fx"

	paymentservice "github.com/smallbiznis/payrelay/internal/payment/service"
)

var Module = fx.Module("payment.service",
	fx.Provide(paymentservice.NewService),
)
