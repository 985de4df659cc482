package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hl1221hl/thingsboard/pkg/config"
)

type loaderTestConfig struct {
	Name  string `env:"LOADER_TEST_NAME" envDefault:"fallback"`
	Count int    `env:"LOADER_TEST_COUNT" envDefault:"5"`
}

type requiredTestConfig struct {
	Token string `env:"LOADER_TEST_REQUIRED_TOKEN,required"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg loaderTestConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, "fallback", cfg.Name)
	assert.Equal(t, 5, cfg.Count)
}

func TestLoad_CachesPerType(t *testing.T) {
	var first loaderTestConfig
	require.NoError(t, config.Load(&first))

	// Changing the environment after the first load must not affect the
	// cached value.
	t.Setenv("LOADER_TEST_NAME", "changed")

	var second loaderTestConfig
	require.NoError(t, config.Load(&second))
	assert.Equal(t, first, second)
}

func TestLoad_RequiredMissing(t *testing.T) {
	var cfg requiredTestConfig
	err := config.Load(&cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrParsingConfig)
}

func TestLoad_NilPointer(t *testing.T) {
	err := config.Load[loaderTestConfig](nil)
	assert.ErrorIs(t, err, config.ErrNilPointer)
}
