package recordstore

import "go.uber.org/fx"

var Module = fx.Module("recordstore",
	fx.Provide(New),
)
