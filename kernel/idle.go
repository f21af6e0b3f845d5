package kernel

import (
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"

	"github.com/Connor22/hydrus/logger"
)

// IdleDetector tracks whether the machine appears asleep/idle so maintenance
// jobs can back off while the user is active and catch up once they're not.
//
// The controller runs SleepCheck every SleepCheckInterval (120s). It compares now
// against the last time it ran: a gap far larger than its own cadence means
// the machine was suspended, not merely busy, so it sets just_woke_from_sleep
// and pushes now_awake forward by a short grace period before anything else
// is allowed to treat the system as idle again.
type IdleDetector struct {
	mu sync.Mutex

	bootTime       time.Time
	nowAwake       time.Time
	lastSleepCheck time.Time
	idleStarted    time.Time

	justWokeFromSleep bool
	wakeGrace         time.Duration
	normalIdle        time.Duration
	veryIdle          time.Duration
	clockJumpGap      time.Duration

	lastUserActivity time.Time
	lastCPUCheck     time.Time
	lastCPUBusy      bool
}

// IdleConfig configures the thresholds the detector applies; see
// config.IdleConfig for the on-disk shape these come from.
type IdleConfig struct {
	NormalIdle   time.Duration
	VeryIdle     time.Duration
	WakeGrace    time.Duration
	ClockJumpGap time.Duration
}

// NewIdleDetector starts the detector with now treated as boot time.
func NewIdleDetector(cfg IdleConfig) *IdleDetector {
	now := time.Now()
	return &IdleDetector{
		bootTime:         now,
		nowAwake:         now,
		lastSleepCheck:   now,
		idleStarted:      now,
		lastUserActivity: now,
		wakeGrace:        cfg.WakeGrace,
		normalIdle:       cfg.NormalIdle,
		veryIdle:         cfg.VeryIdle,
		clockJumpGap:     cfg.ClockJumpGap,
	}
}

// SleepCheck compares the current time against the last check. A gap larger
// than clockJumpGap (default 600s) means the process was asleep: it marks
// just_woke_from_sleep and advances now_awake by the configured grace period.
func (d *IdleDetector) SleepCheck() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	gap := now.Sub(d.lastSleepCheck)
	d.lastSleepCheck = now

	if gap > d.clockJumpGap {
		d.justWokeFromSleep = true
		d.nowAwake = now.Add(d.wakeGrace)
		d.idleStarted = now
		logger.ComponentLogger("kernel.idle").Infow("detected wake from sleep", "gap_seconds", gap.Seconds())
	} else {
		d.justWokeFromSleep = false
	}
}

// JustWokeFromSleep reports whether the most recent SleepCheck detected a
// suspend/resume gap. Implements Scheduler's IdleProvider.
func (d *IdleDetector) JustWokeFromSleep() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.justWokeFromSleep
}

// WakeGracePeriod returns the configured post-wake grace window. Implements
// Scheduler's IdleProvider.
func (d *IdleDetector) WakeGracePeriod() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wakeGrace
}

// NoteUserActivity records that the user interacted (mouse, keyboard,
// request traffic) just now, resetting the idle-quiet window.
func (d *IdleDetector) NoteUserActivity() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastUserActivity = time.Now()
	d.idleStarted = time.Now()
}

// CurrentlyIdle reports whether the process has been up for at least 120
// seconds past boot, is past now_awake, and has seen no user activity for at
// least the normal idle window.
func (d *IdleDetector) CurrentlyIdle() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := time.Now()
	if now.Before(d.nowAwake) {
		return false
	}
	if now.Sub(d.bootTime) < 120*time.Second {
		return false
	}
	return now.Sub(d.lastUserActivity) >= d.normalIdle
}

// CurrentlyVeryIdle additionally requires the quiet period to have persisted
// since idle_started for at least the very-idle window (default one hour).
func (d *IdleDetector) CurrentlyVeryIdle() bool {
	d.mu.Lock()
	idleStarted := d.idleStarted
	d.mu.Unlock()
	if !d.CurrentlyIdle() {
		return false
	}
	return time.Since(idleStarted) >= d.veryIdle
}

// SystemBusy samples overall CPU utilization, no more often than once every
// 60 seconds; intervening calls return the last sampled value.
func (d *IdleDetector) SystemBusy() bool {
	d.mu.Lock()
	if time.Since(d.lastCPUCheck) < 60*time.Second {
		busy := d.lastCPUBusy
		d.mu.Unlock()
		return busy
	}
	d.mu.Unlock()

	percents, err := cpu.Percent(0, false)
	busy := false
	if err == nil && len(percents) > 0 {
		busy = percents[0] >= 80.0
	}

	d.mu.Lock()
	d.lastCPUCheck = time.Now()
	d.lastCPUBusy = busy
	d.mu.Unlock()
	return busy
}
