package sideeffect

import "go.uber.org/fx"

var Module = fx.Module("sideeffect",
	fx.Provide(New),
)
