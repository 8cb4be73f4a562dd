package payment

import (
	"github.com/emberwallet/sparkstore/internal/payment/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.repository",
	fx.Provide(repository.NewRepository),
)
