package settings

import (
	"github.com/emberwallet/sparkstore/internal/settings/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("settings.repository",
	fx.Provide(repository.NewRepository),
)
