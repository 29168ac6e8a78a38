package common

import (
	"context"

	"github.com/superworldapp/nftsalon-engine/src/utils/config"
)

type contextKey int

const configKey contextKey = iota

// SetConfig stores the global configuration in the context
func SetConfig(ctx context.Context, v *config.Config) context.Context {
	return context.WithValue(ctx, configKey, v)
}

// GetConfig retrieves the global configuration from the context
func GetConfig(ctx context.Context) *config.Config {
	return ctx.Value(configKey).(*config.Config)
}
