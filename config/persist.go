package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/Connor22/hydrus/errors"
)

// createBackup creates rotating backups (.back1, .back2, .back3) before modifying config.
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}

	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		fmt.Printf("warning: failed to delete old backup %s: %v\n", back3, err)
	}

	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}

	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read config for backup")
	}

	if err := os.WriteFile(back1, content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}

	return nil
}

// GetUIConfigPath returns the path to the UI-managed config file.
func GetUIConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".archivist", "config_from_ui.toml")
}

// loadOrInitializeUIConfig loads the UI config file, creating an empty one if absent.
func loadOrInitializeUIConfig() (map[string]interface{}, string, error) {
	configPath := GetUIConfigPath()
	if configPath == "" {
		return nil, "", errors.New("could not determine home directory")
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, "", errors.Wrap(err, "failed to create config directory")
	}

	var cfg map[string]interface{}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, "", errors.Wrap(err, "failed to parse UI config")
		}
	} else {
		cfg = make(map[string]interface{})
	}

	return cfg, configPath, nil
}

// saveUIConfig writes the config to the UI config file, backing up the previous version
// and marking the write as our own so the file watcher does not react to it.
func saveUIConfig(cfg map[string]interface{}, configPath string) error {
	if err := createBackup(configPath); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	globalWatcherMu.Lock()
	if globalWatcher != nil {
		globalWatcher.MarkOwnWrite()
	}
	globalWatcherMu.Unlock()

	if err := os.WriteFile(configPath, data, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to write UI config")
	}

	return nil
}

// UpdateIdleThresholds updates the idle-detector thresholds in the UI config.
func UpdateIdleThresholds(normalSeconds, veryIdleSeconds int) error {
	cfg, configPath, err := loadOrInitializeUIConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load UI config")
	}

	idle := sectionOf(cfg, "idle")
	idle["normal_idle_seconds"] = normalSeconds
	idle["very_idle_seconds"] = veryIdleSeconds
	cfg["idle"] = idle

	return saveUIConfig(cfg, configPath)
}

// UpdateBandwidthLimits updates the monthly/daily bandwidth ceilings in the UI config.
func UpdateBandwidthLimits(monthlyMB, dailyMB int) error {
	cfg, configPath, err := loadOrInitializeUIConfig()
	if err != nil {
		return errors.Wrap(err, "failed to load UI config")
	}

	bandwidth := sectionOf(cfg, "bandwidth")
	bandwidth["monthly_limit_mb"] = monthlyMB
	bandwidth["daily_limit_mb"] = dailyMB
	cfg["bandwidth"] = bandwidth

	return saveUIConfig(cfg, configPath)
}

func sectionOf(cfg map[string]interface{}, key string) map[string]interface{} {
	if section, ok := cfg[key].(map[string]interface{}); ok {
		return section
	}
	return make(map[string]interface{})
}
