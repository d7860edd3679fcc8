package migration

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB  *gorm.DB `optional:"true"`
	Log *zap.Logger
}

var Module = fx.Module("migrations",
	fx.Invoke(func(p Params) error {
		if p.DB == nil {
			p.Log.Info("structured record store disabled, skipping migrations")
			return nil
		}
		if err := Migrate(p.DB); err != nil {
			return err
		}
		p.Log.Info("record store schema ready", zap.String("dialect", p.DB.Dialector.Name()))
		return nil
	}),
)
