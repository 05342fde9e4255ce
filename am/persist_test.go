package am

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetUserValue(t *testing.T) {
	home, _ := isolateConfig(t)
	configPath := filepath.Join(home, ".nanoprobe", "am.toml")

	path, err := SetUserValue("queue.tick_interval_ms", "250")
	require.NoError(t, err)
	assert.Equal(t, configPath, path)

	_, err = SetUserValue("probe.block_private_ip", "true")
	require.NoError(t, err)
	_, err = SetUserValue("database.path", "/var/lib/nanoprobe.db")
	require.NoError(t, err)

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, toml.Unmarshal(data, &raw))
	assert.EqualValues(t, 250, raw["queue"].(map[string]interface{})["tick_interval_ms"])
	assert.Equal(t, true, raw["probe"].(map[string]interface{})["block_private_ip"])

	// Load picks up the persisted values
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 250, cfg.Queue.TickIntervalMS)
	assert.Equal(t, "/var/lib/nanoprobe.db", cfg.Database.Path)

	// Two rewrites of an existing file leave two backups
	assert.FileExists(t, configPath+".back1")
	assert.FileExists(t, configPath+".back2")
	assert.NoFileExists(t, configPath+".back3")
}

func TestSetUserValue_InvalidKey(t *testing.T) {
	isolateConfig(t)

	_, err := SetUserValue("queue..tick", "1")
	assert.Error(t, err)
	_, err = SetUserValue("", "1")
	assert.Error(t, err)
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, int64(1), parseValue("1"))
	assert.Equal(t, 2.5, parseValue("2.5"))
	assert.Equal(t, false, parseValue("False"))
	assert.Equal(t, "monitors.yaml", parseValue("monitors.yaml"))
}
