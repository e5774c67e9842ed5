package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	v, err := Load(t.TempDir(), "does-not-exist")
	require.NoError(t, err)
	assert.NotNil(t, v)
}

func TestLoad_ExplicitFileAndEnv(t *testing.T) {
	file := filepath.Join(t.TempDir(), "svc.yaml")
	require.NoError(t, os.WriteFile(file, []byte("redis:\n  address: cache:6379\n"), 0o600))
	t.Setenv(EnvConfigFile, file)
	t.Setenv("SERVER_PORT", "7000")

	v, err := Load(".", "ignored")
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", v.GetString("redis.address"))
	assert.Equal(t, 7000, v.GetInt("server.port"))
}

func TestLoad_BrokenFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(file, []byte("server: [unclosed"), 0o600))
	t.Setenv(EnvConfigFile, file)

	_, err := Load(".", "ignored")
	assert.Error(t, err)
}

func TestDuration(t *testing.T) {
	v := viper.New()
	v.Set("good", "90s")
	v.Set("bad", "soon")

	assert.Equal(t, 90*time.Second, Duration(v, "good", time.Second))
	assert.Equal(t, time.Second, Duration(v, "bad", time.Second))
	assert.Equal(t, time.Minute, Duration(v, "missing", time.Minute))
}
