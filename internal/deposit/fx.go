package deposit

import (
	"github.com/emberwallet/sparkstore/internal/deposit/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("deposit.repository",
	fx.Provide(repository.NewRepository),
)
