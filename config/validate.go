package config

import "fmt"

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Kernel.ShortTaskPoolCap < 0 {
		return fmt.Errorf("kernel.short_task_pool_cap must be >= 0, got %d", c.Kernel.ShortTaskPoolCap)
	}
	if c.Kernel.FastSchedulerIntervalMS <= 0 {
		return fmt.Errorf("kernel.fast_scheduler_interval_ms must be > 0, got %d", c.Kernel.FastSchedulerIntervalMS)
	}
	if c.Kernel.SlowSchedulerIntervalMS <= 0 {
		return fmt.Errorf("kernel.slow_scheduler_interval_ms must be > 0, got %d", c.Kernel.SlowSchedulerIntervalMS)
	}
	for name, cap := range c.Kernel.ThreadSlots {
		if cap < 0 {
			return fmt.Errorf("kernel.thread_slots[%s] must be >= 0, got %d", name, cap)
		}
	}

	if c.Idle.NormalIdleSeconds <= 0 {
		return fmt.Errorf("idle.normal_idle_seconds must be > 0, got %d", c.Idle.NormalIdleSeconds)
	}
	if c.Idle.VeryIdleSeconds <= c.Idle.NormalIdleSeconds {
		return fmt.Errorf("idle.very_idle_seconds (%d) must exceed idle.normal_idle_seconds (%d)",
			c.Idle.VeryIdleSeconds, c.Idle.NormalIdleSeconds)
	}

	if c.Bandwidth.MonthlyLimitMB < 0 {
		return fmt.Errorf("bandwidth.monthly_limit_mb must be >= 0 (0 = unlimited), got %d", c.Bandwidth.MonthlyLimitMB)
	}
	if c.Bandwidth.DailyLimitMB < 0 {
		return fmt.Errorf("bandwidth.daily_limit_mb must be >= 0 (0 = unlimited), got %d", c.Bandwidth.DailyLimitMB)
	}

	if c.Auth.TLS.Enabled {
		if c.Auth.TLS.CertFile == "" || c.Auth.TLS.KeyFile == "" {
			return fmt.Errorf("auth.tls.cert_file and auth.tls.key_file are required when auth.tls.enabled is true")
		}
	}

	return nil
}
