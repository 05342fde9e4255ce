package am

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/nanoprobe/errors"
	"github.com/teranos/nanoprobe/logger"
)

const backupGenerations = 3

// createBackup rotates backups (.back1 newest .. .back3 oldest) before modifying config
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}

	oldest := configPath + ".back" + strconv.Itoa(backupGenerations)
	if err := os.Remove(oldest); err != nil && !os.IsNotExist(err) {
		// Not fatal; the rename below overwrites it anyway on most platforms
		logger.Warnw("Failed to delete old config backup", logger.FieldFile, oldest, logger.FieldError, err)
	}

	for gen := backupGenerations - 1; gen >= 1; gen-- {
		from := configPath + ".back" + strconv.Itoa(gen)
		to := configPath + ".back" + strconv.Itoa(gen+1)
		if _, err := os.Stat(from); err == nil {
			if err := os.Rename(from, to); err != nil {
				return errors.Wrapf(err, "failed to rotate %s", filepath.Base(from))
			}
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}

	if err := os.WriteFile(configPath+".back1", content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}

	return nil
}

// loadOrInitializeUserConfig loads ~/.nanoprobe/am.toml as a raw map, or an empty map if absent
func loadOrInitializeUserConfig() (map[string]interface{}, string, error) {
	configPath := GetUserConfigPath()
	if configPath == "" {
		return nil, "", errors.New("could not determine home directory")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0750); err != nil {
		return nil, "", errors.Wrap(err, "failed to create .nanoprobe directory")
	}

	config := make(map[string]interface{})
	if data, err := os.ReadFile(configPath); err == nil {
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, "", errors.Wrapf(err, "failed to parse %s", configPath)
		}
	}

	return config, configPath, nil
}

// saveUserConfig writes the config map with a rotated backup
func saveUserConfig(config map[string]interface{}, configPath string) error {
	if err := createBackup(configPath); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	data, err := toml.Marshal(config)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	// Keep a running watcher from reloading our own write
	globalWatcherMu.Lock()
	if globalWatcher != nil {
		globalWatcher.MarkOwnWrite()
	}
	globalWatcherMu.Unlock()

	if err := os.WriteFile(configPath, data, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to write user config")
	}

	return nil
}

// SetUserValue stores a dotted key in ~/.nanoprobe/am.toml.
// Integers, floats and true/false are stored typed; anything else is stored as a string.
func SetUserValue(key, raw string) (string, error) {
	parts := strings.Split(key, ".")
	for _, p := range parts {
		if p == "" {
			return "", errors.Newf("invalid config key %q", key)
		}
	}

	config, configPath, err := loadOrInitializeUserConfig()
	if err != nil {
		return "", err
	}

	node := config
	for _, p := range parts[:len(parts)-1] {
		child, ok := node[p].(map[string]interface{})
		if !ok {
			child = make(map[string]interface{})
			node[p] = child
		}
		node = child
	}
	node[parts[len(parts)-1]] = parseValue(raw)

	if err := saveUserConfig(config, configPath); err != nil {
		return "", err
	}

	Reset()
	return configPath, nil
}

func parseValue(raw string) interface{} {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}
	return raw
}
