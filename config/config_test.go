package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `{
		"app_name": "TestApp",
		"listen_ip": "127.0.0.1",
		"listen_port": 9090,
		"session_key": "test-session-key",
		"db_driver": "mysql",
		"db_dsn": "app_user:app_password@tcp(127.0.0.1:3306)/app_db?charset=utf8mb4",
		"password_scheme": "plaintext"
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "TestApp", cfg.AppName)
	assert.Equal(t, "127.0.0.1:9090", cfg.Addr())
	assert.Equal(t, "test-session-key", cfg.SessionKey)
	assert.False(t, cfg.GeneratedSessionKey)
	assert.Equal(t, DriverMySQL, cfg.DBDriver)
	assert.Equal(t, SchemePlaintext, cfg.PasswordScheme)
	// untouched fields keep their defaults
	assert.Equal(t, 86400*7, cfg.SessionMaxAge)
	assert.True(t, cfg.AutoMigrate)
}

func TestLoadConfigGeneratesSessionKey(t *testing.T) {
	path := writeConfig(t, `{"session_key": "CHANGE_ME_IN_PRODUCTION"}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.GeneratedSessionKey)
	assert.Len(t, cfg.SessionKey, 64)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("USERINFO_SESSION_KEY", "from-env")
	t.Setenv("USERINFO_DB_DSN", "/tmp/other.db")
	t.Setenv("USERINFO_LISTEN_PORT", "7000")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.SessionKey)
	assert.Equal(t, "/tmp/other.db", cfg.DBDSN)
	assert.Equal(t, 7000, cfg.ListenPort)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "invalid json", content: `{ "invalid": json }`, wantErr: "failed to decode config file"},
		{name: "unknown field", content: `{"listen_prot": 1}`, wantErr: "unknown field"},
		{name: "bad driver", content: `{"db_driver": "oracle"}`, wantErr: "unsupported db_driver"},
		{name: "bad scheme", content: `{"password_scheme": "md5"}`, wantErr: "unsupported password_scheme"},
		{name: "bad port", content: `{"listen_port": 70000}`, wantErr: "out of range"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, test.content))
			require.ErrorContains(t, err, test.wantErr)
			assert.Nil(t, cfg)
		})
	}
}

func TestLoadConfigInvalidPath(t *testing.T) {
	_, err := LoadConfig("non-existent-path.json")
	require.ErrorIs(t, err, os.ErrNotExist)
}
