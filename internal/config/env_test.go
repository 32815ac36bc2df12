package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/appserve/internal/mode"
)

func TestEnvironmentMode(t *testing.T) {
	tests := []struct {
		name string
		env  Environment
		want mode.Mode
	}{
		{"absent defaults to development", Environment{}, mode.Development},
		{"app env", Environment{AppEnv: "production"}, mode.Production},
		{"node env fallback", Environment{NodeEnv: "test"}, mode.Test},
		{"app env wins", Environment{AppEnv: "production", NodeEnv: "development"}, mode.Production},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.env.Mode()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEnvironmentMode_UnknownIsError(t *testing.T) {
	_, err := Environment{AppEnv: "staging"}.Mode()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "staging"`)
}

func TestDecodeEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "4000")
	t.Setenv("PRODUCT", "shop")

	env, err := DecodeEnvironment()
	require.NoError(t, err)
	assert.Equal(t, "production", env.AppEnv)
	assert.Equal(t, 4000, env.Port)
	assert.Equal(t, "shop", env.Product)
}

func TestDecodeEnvironment_InvalidPort(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	_, err := DecodeEnvironment()
	require.Error(t, err)
}

func TestLoadEnvFiles_LocalWins(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("APPSERVE_TEST_A=base\nAPPSERVE_TEST_B=base\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("APPSERVE_TEST_A=local\n"), 0o600))
	t.Setenv("APPSERVE_TEST_A", "")
	t.Setenv("APPSERVE_TEST_B", "")
	require.NoError(t, os.Unsetenv("APPSERVE_TEST_A"))
	require.NoError(t, os.Unsetenv("APPSERVE_TEST_B"))

	require.NoError(t, LoadEnvFiles(dir))
	assert.Equal(t, "local", os.Getenv("APPSERVE_TEST_A"))
	assert.Equal(t, "base", os.Getenv("APPSERVE_TEST_B"))
}

func TestLoadEnvFiles_ExistingNotOverridden(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("APPSERVE_TEST_C=file\n"), 0o600))
	t.Setenv("APPSERVE_TEST_C", "process")

	require.NoError(t, LoadEnvFiles(dir))
	assert.Equal(t, "process", os.Getenv("APPSERVE_TEST_C"))
}
