package config

import (
	"fmt"
	"sort"

	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "client.db")

	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.network_version", 1)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	})
	v.SetDefault("server.log_theme", "everforest")

	v.SetDefault("kernel.fast_scheduler_interval_ms", 100)
	v.SetDefault("kernel.slow_scheduler_interval_ms", 1000)
	v.SetDefault("kernel.short_task_pool_cap", 200)
	v.SetDefault("kernel.thread_slots", map[string]int{
		"file_import":  10,
		"thumbnail":    20,
		"network_pull": 5,
	})

	v.SetDefault("idle.normal_idle_seconds", 10)
	v.SetDefault("idle.very_idle_seconds", 3600)
	v.SetDefault("idle.wake_grace_seconds", 15)
	v.SetDefault("idle.clock_jump_threshold_seconds", 600)

	v.SetDefault("bandwidth.monthly_limit_mb", 0) // 0 == unlimited
	v.SetDefault("bandwidth.daily_limit_mb", 0)

	v.SetDefault("auth.session_expiry_minutes", 30)
	v.SetDefault("auth.tls.enabled", false)
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("database.path", "ARCHIVIST_DATABASE_PATH")
	v.BindEnv("auth.tls.cert_file", "ARCHIVIST_TLS_CERT_FILE")
	v.BindEnv("auth.tls.key_file", "ARCHIVIST_TLS_KEY_FILE")
}

// GetDatabasePath returns the configured database path.
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return "client.db"
	}
	return c.Database.Path
}

// GetServerAllowedOrigins returns the allowed CORS origins, merging configured
// origins with the always-allowed local defaults.
func (c *Config) GetServerAllowedOrigins() []string {
	defaults := []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	}

	if len(c.Server.AllowedOrigins) == 0 {
		return defaults
	}

	originSet := make(map[string]bool)
	for _, origin := range defaults {
		originSet[origin] = true
	}
	for _, origin := range c.Server.AllowedOrigins {
		originSet[origin] = true
	}

	merged := make([]string, 0, len(originSet))
	for origin := range originSet {
		merged = append(merged, origin)
	}
	sort.Strings(merged)

	return merged
}

// GetServerLogTheme returns the log theme (default: everforest).
func (c *Config) GetServerLogTheme() string {
	if c.Server.LogTheme == "" {
		return "everforest"
	}
	return c.Server.LogTheme
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Database: %s, Server: {Port: %d, LogTheme: %s}}",
		c.Database.Path, c.Server.Port, c.Server.LogTheme)
}
