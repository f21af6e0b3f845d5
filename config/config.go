package config

// Config represents the full runtime configuration for a client or server process.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Kernel    KernelConfig    `mapstructure:"kernel"`
	Idle      IdleConfig      `mapstructure:"idle"`
	Bandwidth BandwidthConfig `mapstructure:"bandwidth"`
	Auth      AuthConfig      `mapstructure:"auth"`
}

// AuthConfig configures TLS and session behaviour for the service listeners.
type AuthConfig struct {
	SessionExpiryMinutes int           `mapstructure:"session_expiry_minutes"` // loaded but not read: IssueSession uses a fixed 30-minute TTL (default: 30)
	TLS                  AuthTLSConfig `mapstructure:"tls"`
}

// AuthTLSConfig configures TLS for a bound service.
type AuthTLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// DatabaseConfig configures the SQLite storage engine.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the bound service listeners.
type ServerConfig struct {
	Port           int      `mapstructure:"port"` // base port; service keys bind at Port+offset
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	LogTheme       string   `mapstructure:"log_theme"`
	NetworkVersion int      `mapstructure:"network_version"`
}

// Default listener ports, analogous to the teacher's graph/event port pair.
const (
	DefaultClientAPIPort = 45869
	DefaultServerPort    = 45870
	FallbackServerPort   = 47890
)

// KernelConfig configures the runtime kernel: schedulers, worker pools, thread slots.
type KernelConfig struct {
	FastSchedulerIntervalMS int            `mapstructure:"fast_scheduler_interval_ms"` // tick period of the fast scheduler (default: 100)
	SlowSchedulerIntervalMS int            `mapstructure:"slow_scheduler_interval_ms"` // tick period of the slow scheduler (default: 1000)
	ShortTaskPoolCap        int            `mapstructure:"short_task_pool_cap"`        // soft cap on short-task workers (default: 200)
	ThreadSlots             map[string]int `mapstructure:"thread_slots"`               // named semaphore capacities
}

// IdleConfig configures the idle/sleep detector thresholds.
type IdleConfig struct {
	NormalIdleSeconds         int `mapstructure:"normal_idle_seconds"`          // no UI activity for this long => idle (default: 10)
	VeryIdleSeconds           int `mapstructure:"very_idle_seconds"`            // idle for this long => very_idle (default: 3600)
	WakeGraceSeconds          int `mapstructure:"wake_grace_seconds"`           // window after a detected sleep gap to report just_woke (default: 15)
	ClockJumpThresholdSeconds int `mapstructure:"clock_jump_threshold_seconds"` // gap between successive sleep checks implying sleep (default: 600)
}

// BandwidthConfig configures per-tracker bandwidth ceilings.
type BandwidthConfig struct {
	MonthlyLimitMB int `mapstructure:"monthly_limit_mb"`
	DailyLimitMB   int `mapstructure:"daily_limit_mb"`
}

// File system constants
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
	ExecutablePermissions  = 0755
)
