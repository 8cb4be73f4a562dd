package domain

import (
	"context"
	"errors"
)

var ErrSettingKeyRequired = errors.New("setting_key_required")

// Repository is a small durable key-value store for wallet preferences.
type Repository interface {
	// Get returns the stored value, (nil, nil) when the key is unset.
	Get(ctx context.Context, key string) (*string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}
