package syncer

import (
	"github.com/emberwallet/sparkstore/internal/syncer/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("syncer.repository",
	fx.Provide(repository.NewRepository),
)
