package repository

import (
	"context"
	"fmt"

	"github.com/emberwallet/sparkstore/internal/settings/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Params collects the repository dependencies.
type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type repository struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewRepository builds the settings store.
func NewRepository(p Params) domain.Repository {
	return &repository{
		db:  p.DB,
		log: p.Log.Named("settings.repository"),
	}
}

func (r *repository) Get(ctx context.Context, key string) (*string, error) {
	if key == "" {
		return nil, domain.ErrSettingKeyRequired
	}
	var values []string
	err := r.db.WithContext(ctx).
		Raw(`SELECT value FROM settings WHERE name = ?`, key).Scan(&values).Error
	if err != nil {
		return nil, fmt.Errorf("get setting %s: %w", key, err)
	}
	if len(values) == 0 {
		return nil, nil
	}
	return &values[0], nil
}

func (r *repository) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return domain.ErrSettingKeyRequired
	}
	query := `INSERT INTO settings (name, value) VALUES (?, ?) ON CONFLICT (name) DO UPDATE SET value = excluded.value`
	if r.db.Dialector.Name() == "mysql" {
		query = `INSERT INTO settings (name, value) VALUES (?, ?) ON DUPLICATE KEY UPDATE value = VALUES(value)`
	}
	if err := r.db.WithContext(ctx).Exec(query, key, value).Error; err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, key string) error {
	if key == "" {
		return domain.ErrSettingKeyRequired
	}
	if err := r.db.WithContext(ctx).Exec(`DELETE FROM settings WHERE name = ?`, key).Error; err != nil {
		return fmt.Errorf("delete setting %s: %w", key, err)
	}
	return nil
}
