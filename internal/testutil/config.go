package testutil

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/rats/internal/config"
)

// NewViper returns a fresh viper instance with the default settings, the
// database files and exports directory pointed into env, and overrides
// applied on top.
func NewViper(env *TestEnv, overrides map[string]any) *viper.Viper {
	v := viper.New()
	config.SetDefaults(v)
	v.Set("exports_dir", env.Path("exports"))
	v.Set("cache.dbfile", env.Path("cache.db"))
	v.Set("history.dbfile", env.Path("rats.db"))
	for key, value := range overrides {
		v.Set(key, value)
	}
	return v
}

// NewConfig loads a Config from NewViper.
func NewConfig(t *testing.T, env *TestEnv, overrides map[string]any) *config.Config {
	t.Helper()
	cfg, err := config.Load(NewViper(env, overrides))
	require.NoError(t, err)
	return cfg
}
