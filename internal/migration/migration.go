package migration

import (
	"context"
	"fmt"
	"strings"

	"github.com/emberwallet/sparkstore/internal/clock"
	obsmetrics "github.com/emberwallet/sparkstore/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Advisory lock key guarding concurrent schema upgrades on postgres. The
// lock is transaction-scoped, so it is released automatically on
// commit or rollback.
const advisoryLockID int64 = 0x73706b73746f7265 // "spksore"

// Migration is one schema version. Statements returns the ordered DDL for
// the given dialect. Versions are contiguous starting at 1 and the list is
// append-only.
type Migration struct {
	Version    int
	Statements func(dialect string) []string
}

// Params collects the migrator dependencies.
type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Metrics *obsmetrics.Metrics `optional:"true"`
}

// Migrator brings the storage schema to the latest defined version.
type Migrator struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	metrics *obsmetrics.Metrics
	list    []Migration
}

// New builds a Migrator over the default migration list.
func New(p Params) (*Migrator, error) {
	return newWithList(p, Migrations)
}

func newWithList(p Params, list []Migration) (*Migrator, error) {
	for i, m := range list {
		if m.Version != i+1 {
			return nil, fmt.Errorf("migration list is not contiguous: index %d has version %d", i, m.Version)
		}
	}
	return &Migrator{
		db:      p.DB,
		log:     p.Log.Named("migration"),
		clock:   p.Clock,
		metrics: p.Metrics,
		list:    list,
	}, nil
}

// Latest returns the highest defined schema version.
func (m *Migrator) Latest() int {
	return len(m.list)
}

// CurrentVersion returns the highest applied schema version, zero when the
// storage has never been migrated.
func (m *Migrator) CurrentVersion(ctx context.Context) (int, error) {
	if err := m.ensureVersionTable(ctx); err != nil {
		return 0, err
	}
	return currentVersion(m.db.WithContext(ctx))
}

// Migrate applies every pending migration in a single transaction. It is
// idempotent: a second call observes the already-advanced version and
// no-ops. Concurrent processes racing to initialize the same storage are
// serialized by a cooperative lock, so exactly one performs the DDL.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.ensureVersionTable(ctx); err != nil {
		return err
	}

	unlock, err := m.acquireSessionLock(ctx)
	if err != nil {
		return fmt.Errorf("acquire migration lock: %w", err)
	}
	defer unlock()

	dialect := m.db.Dialector.Name()
	err = m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := acquireTxLock(tx); err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}

		current, err := currentVersion(tx)
		if err != nil {
			return err
		}
		if current > len(m.list) {
			return fmt.Errorf("storage schema version %d is newer than latest known version %d", current, len(m.list))
		}
		if current == len(m.list) {
			m.log.Debug("schema already up to date", zap.Int("version", current))
			return nil
		}

		for _, mig := range m.list[current:] {
			for _, stmt := range mig.Statements(dialect) {
				if err := tx.Exec(stmt).Error; err != nil {
					return fmt.Errorf("apply migration %d: %w", mig.Version, err)
				}
			}
			if err := tx.Exec(
				`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
				mig.Version, m.clock.Now().Unix(),
			).Error; err != nil {
				return fmt.Errorf("record migration %d: %w", mig.Version, err)
			}
			m.metrics.RecordMigrationApplied(ctx, mig.Version)
			m.log.Info("applied schema migration", zap.Int("version", mig.Version))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (m *Migrator) ensureVersionTable(ctx context.Context) error {
	err := m.db.WithContext(ctx).Exec(
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at BIGINT NOT NULL
		)`,
	).Error
	if err != nil {
		// Two processes may race the CREATE despite IF NOT EXISTS.
		if strings.Contains(err.Error(), "already exists") {
			return nil
		}
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

// acquireSessionLock takes a session-scoped named lock on backends whose
// advisory locks cannot attach to a transaction. The transaction-scoped
// variant in acquireTxLock covers postgres and sqlite.
func (m *Migrator) acquireSessionLock(ctx context.Context) (func(), error) {
	switch m.db.Dialector.Name() {
	case "mysql":
		var acquired int
		err := m.db.WithContext(ctx).
			Raw(`SELECT GET_LOCK('sparkstore_schema_migrations', 60)`).
			Scan(&acquired).Error
		if err != nil {
			return nil, err
		}
		if acquired != 1 {
			return nil, fmt.Errorf("timed out waiting for migration lock")
		}
		return func() {
			_ = m.db.Exec(`SELECT RELEASE_LOCK('sparkstore_schema_migrations')`).Error
		}, nil
	case "sqlite":
		// A racing process waits for the winner instead of failing with
		// SQLITE_BUSY, then observes the advanced version and no-ops.
		if err := m.db.WithContext(ctx).Exec(`PRAGMA busy_timeout = 60000`).Error; err != nil {
			return nil, err
		}
		return func() {}, nil
	default:
		return func() {}, nil
	}
}

func acquireTxLock(tx *gorm.DB) error {
	switch tx.Dialector.Name() {
	case "postgres":
		return tx.Exec(`SELECT pg_advisory_xact_lock(?)`, advisoryLockID).Error
	case "sqlite":
		// Promote to a write transaction before the version read. Version
		// zero never exists, so this touches no rows; it only takes the
		// database write lock.
		return tx.Exec(`UPDATE schema_migrations SET applied_at = applied_at WHERE version = 0`).Error
	default:
		return nil
	}
}

func currentVersion(tx *gorm.DB) (int, error) {
	var version int
	err := tx.Raw(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version).Error
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}
