package main

import (
	"github.com/emberwallet/sparkstore/internal/clock"
	"github.com/emberwallet/sparkstore/internal/config"
	"github.com/emberwallet/sparkstore/internal/deposit"
	"github.com/emberwallet/sparkstore/internal/migration"
	"github.com/emberwallet/sparkstore/internal/observability"
	"github.com/emberwallet/sparkstore/internal/payment"
	"github.com/emberwallet/sparkstore/internal/settings"
	"github.com/emberwallet/sparkstore/internal/syncer"
	"github.com/emberwallet/sparkstore/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		db.Module,
		clock.Module,
		migration.Module,

		// Storage domains
		payment.Module,
		deposit.Module,
		syncer.Module,
		settings.Module,
	)
	app.Run()
}
