package migration

import (
	"context"

	"go.uber.org/fx"
)

// Module runs schema migrations during startup. A failed upgrade aborts the
// whole application: repositories must never observe a partial schema.
var Module = fx.Module("migration",
	fx.Provide(New),
	fx.Invoke(func(m *Migrator) error {
		return m.Migrate(context.Background())
	}),
)
