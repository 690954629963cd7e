package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoadFrom_DefaultsAndEnvExpansion(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APP_ENV", "test")
	t.Setenv("TEST_JWT_SECRET", "from-env")

	writeConfig(t, dir, "config.yaml", `
security:
  jwt:
    secret: ${TEST_JWT_SECRET}
vector:
  milvus:
    host: ${TEST_MILVUS_HOST:milvus.internal}
access:
  keywords:
    finance: [revenue]
`)
	writeConfig(t, dir, "config.test.yaml", `
pipeline:
  top_k: 8
`)

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Security.JWT.Secret)
	assert.Equal(t, "milvus.internal", cfg.Vector.Milvus.Host)
	assert.Equal(t, 8, cfg.Pipeline.TopK)
	assert.Equal(t, 8080, cfg.Server.HTTP.Port)
	assert.Equal(t, 10*time.Second, cfg.Pipeline.EmbeddingTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Security.JWT.Expiration)
	assert.Equal(t, []string{"revenue"}, cfg.Access.Keywords["finance"])
}

func TestLoadFrom_EnvironmentFileIsOptional(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APP_ENV", "staging")
	writeConfig(t, dir, "config.yaml", "security:\n  jwt:\n    secret: s\n")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Pipeline.TopK)
}

func TestLoadFrom_MissingSecretFails(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", "app:\n  name: x\n")

	_, err := LoadFrom(dir)
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "security.jwt.secret")
}

func TestLoadFrom_MissingBaseFileFails(t *testing.T) {
	_, err := LoadFrom(t.TempDir())
	require.Error(t, err)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("EXPAND_SET", "value")

	assert.Equal(t, "value", expandEnv("${EXPAND_SET}"))
	assert.Equal(t, "fallback", expandEnv("${EXPAND_UNSET_X:fallback}"))
	assert.Equal(t, "", expandEnv("${EXPAND_UNSET_X:}"))
	assert.Equal(t, "${EXPAND_UNSET_X}", expandEnv("${EXPAND_UNSET_X}"))
}
