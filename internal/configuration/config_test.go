package configuration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_ReadsFileAndDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"storage": "memory",
		"mongo": {
			"uri": "mongodb://localhost:27017",
			"database": "helpdesk"
		},
		"server": {
			"app_port": 9090
		}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, "mongodb://localhost:27017", cfg.ChatDatabase.Uri)
	assert.Equal(t, "helpdesk", cfg.ChatDatabase.Database)
	assert.Equal(t, 9090, cfg.Server.AppPort)

	// Unset keys fall back to defaults.
	assert.Equal(t, "messages", cfg.ChatDatabase.MessagesCollection)
	assert.Equal(t, "conversations", cfg.ChatDatabase.ConversationsCollection)
	assert.Equal(t, "ws", cfg.ChatDatabase.SocketRoute)
	assert.Equal(t, 8081, cfg.Server.SocketPort)
	assert.Equal(t, []string{"http://localhost:4200"}, cfg.Server.AllowedOrigins)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `{"mongo": {"uri": "mongodb://from-file:27017", "database": "helpdesk"}}`)

	t.Setenv("HELPDESK_MONGO_URI", "mongodb://from-env:27017")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "mongodb://from-env:27017", cfg.ChatDatabase.Uri)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
