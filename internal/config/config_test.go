package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"AWS_DEFAULT_REGION", "NOTIFY_EMAIL", "ROLE_NAME", "STATE_PATH", "LAMBDA_DIR", "WEB_DIR", "DATA_DIR"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultRegion, cfg.Region)
	assert.Equal(t, DefaultRoleName, cfg.RoleName)
	assert.Equal(t, DefaultStatePath, cfg.StatePath)
	assert.Equal(t, DefaultLambdaDir, cfg.LambdaDir)
	assert.Equal(t, DefaultWebDir, cfg.WebDir)
	assert.Equal(t, DefaultDataDir, cfg.DataDir)
	assert.Empty(t, cfg.NotifyEmail, "alert subscription is opt-in")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AWS_DEFAULT_REGION", "eu-west-1")
	t.Setenv("NOTIFY_EMAIL", "ops@example.com")
	t.Setenv("ROLE_NAME", "DeployRole")
	t.Setenv("STATE_PATH", "/tmp/custom-state.json")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, "ops@example.com", cfg.NotifyEmail)
	assert.Equal(t, "DeployRole", cfg.RoleName)
	assert.Equal(t, "/tmp/custom-state.json", cfg.StatePath)
}

func TestLoad_DotEnvFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("AWS_DEFAULT_REGION=ap-southeast-2\nNOTIFY_EMAIL=alerts@example.com\n"), 0644))
	t.Chdir(dir)
	// t.Setenv registers the restore; Unsetenv makes the variable truly
	// absent so the .env value is picked up.
	for _, key := range []string{"AWS_DEFAULT_REGION", "NOTIFY_EMAIL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ap-southeast-2", cfg.Region)
	assert.Equal(t, "alerts@example.com", cfg.NotifyEmail)
}
